package linkauth

import (
	"context"
)

// Setup2FA describes the setup2fa operation and its observable behavior.
//
// Setup2FA stores a fresh secret in the pending state and returns it with
// its provisioning URI. It fails with [ErrTwoFactorAlreadyEnabled] once 2FA
// is active; repeating it while pending replaces the secret.
func (e *Engine) Setup2FA(ctx context.Context, userID int64) (_ TwoFactorSetup, err error) {
	if err := e.ready(); err != nil {
		return TwoFactorSetup{}, err
	}
	ctx, span := e.startSpan(ctx, "Setup2FA", userAttr(userID))
	defer func() { endSpan(span, err) }()

	setup, err := e.twoFactor.BeginSetup(ctx, userID)
	if err != nil {
		e.emitAudit(ctx, auditRecord{eventType: auditEvent2FASetup, userID: userID, err: err})
		return TwoFactorSetup{}, err
	}
	e.emitAudit(ctx, auditRecord{eventType: auditEvent2FASetup, success: true, userID: userID})
	return setup, nil
}

// Confirm2FA enables 2FA when code matches the pending secret. The boolean
// reports that 2FA was already enabled, in which case code is not checked.
func (e *Engine) Confirm2FA(ctx context.Context, userID int64, code string) (_ bool, err error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	ctx, span := e.startSpan(ctx, "Confirm2FA", userAttr(userID))
	defer func() { endSpan(span, err) }()

	already, err := e.twoFactor.ConfirmSetup(ctx, userID, code)
	if err != nil {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditRecord{eventType: auditEvent2FAEnabled, userID: userID, err: err})
		return false, err
	}
	if !already {
		e.metricInc(MetricTwoFactorEnabled)
		e.emitAudit(ctx, auditRecord{eventType: auditEvent2FAEnabled, success: true, userID: userID})
	}
	return already, nil
}

// Disable2FA clears the secret and the flag after checking code. Accounts
// without a secret succeed without a code.
func (e *Engine) Disable2FA(ctx context.Context, userID int64, code string) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	ctx, span := e.startSpan(ctx, "Disable2FA", userAttr(userID))
	defer func() { endSpan(span, err) }()

	if err := e.twoFactor.Disable(ctx, userID, code); err != nil {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditRecord{eventType: auditEvent2FADisabled, userID: userID, err: err})
		return err
	}
	e.metricInc(MetricTwoFactorDisabled)
	e.emitAudit(ctx, auditRecord{eventType: auditEvent2FADisabled, success: true, userID: userID})
	return nil
}
