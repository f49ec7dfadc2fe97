package linkauth

import (
	"context"
	"log/slog"
)

// GetProfile describes the getprofile operation and its observable behavior.
//
// GetProfile returns [ErrUserNotFound] for unknown ids and never exposes the
// password hash or the TOTP secret.
func (e *Engine) GetProfile(ctx context.Context, userID int64) (_ UserProfile, err error) {
	if err := e.ready(); err != nil {
		return UserProfile{}, err
	}
	ctx, span := e.startSpan(ctx, "GetProfile", userAttr(userID))
	defer func() { endSpan(span, err) }()

	user, err := e.identity.Get(ctx, userID)
	if err != nil {
		return UserProfile{}, err
	}
	return newUserProfile(user), nil
}

// UpdateProfile describes the updateprofile operation and its observable behavior.
//
// Names are trimmed and capped at Account.MaxNameLength characters. An empty
// avatar keeps the current one.
func (e *Engine) UpdateProfile(ctx context.Context, userID int64, profile Profile) (_ UserProfile, err error) {
	if err := e.ready(); err != nil {
		return UserProfile{}, err
	}
	ctx, span := e.startSpan(ctx, "UpdateProfile", userAttr(userID))
	defer func() { endSpan(span, err) }()

	user, err := e.identity.UpdateProfile(ctx, userID, profile)
	if err != nil {
		return UserProfile{}, err
	}
	return newUserProfile(user), nil
}

// UpgradeToPremium marks the account premium. It is idempotent.
func (e *Engine) UpgradeToPremium(ctx context.Context, userID int64) (_ UserProfile, err error) {
	if err := e.ready(); err != nil {
		return UserProfile{}, err
	}
	ctx, span := e.startSpan(ctx, "UpgradeToPremium", userAttr(userID))
	defer func() { endSpan(span, err) }()

	user, err := e.identity.UpgradeToPremium(ctx, userID)
	if err != nil {
		return UserProfile{}, err
	}
	return newUserProfile(user), nil
}

// IsEmailAvailable reports whether email is unused by any account.
func (e *Engine) IsEmailAvailable(ctx context.Context, email string) (_ bool, err error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	ctx, span := e.startSpan(ctx, "IsEmailAvailable")
	defer func() { endSpan(span, err) }()

	return e.identity.IsEmailAvailable(ctx, email)
}

// ChangePassword describes the changepassword operation and its observable behavior.
//
// Local accounts must supply the current password. Provider-backed accounts
// set a first local password without one and become local accounts.
// isOAuthHint must agree with the stored provider or [ErrProviderMismatch]
// is returned. Existing sessions stay active.
func (e *Engine) ChangePassword(ctx context.Context, userID int64, current, next string, isOAuthHint bool) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	ctx, span := e.startSpan(ctx, "ChangePassword", userAttr(userID))
	defer func() { endSpan(span, err) }()

	if err := e.identity.ChangePassword(ctx, userID, current, next, isOAuthHint); err != nil {
		e.metricInc(MetricPasswordChangeRejected)
		e.emitAudit(ctx, auditRecord{eventType: auditEventPasswordChanged, userID: userID, err: err})
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditRecord{eventType: auditEventPasswordChanged, success: true, userID: userID})
	return nil
}

// DeleteAccount describes the deleteaccount operation and its observable behavior.
//
// DeleteAccount removes every session row of the user before the user row,
// so stores that keep sessions apart from users are cleaned up as well.
// Tokens of the deleted account fail [Engine.Authorize] afterwards.
func (e *Engine) DeleteAccount(ctx context.Context, userID int64) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	ctx, span := e.startSpan(ctx, "DeleteAccount", userAttr(userID))
	defer func() { endSpan(span, err) }()

	user, err := e.identity.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := e.sessions.DeleteAll(ctx, userID); err != nil {
		e.logger.ErrorContext(ctx, "session cleanup failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return err
	}
	if err := e.identity.DeleteAccount(ctx, userID); err != nil {
		return err
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditRecord{eventType: auditEventAccountDeleted, success: true, userID: userID, email: user.Email})
	return nil
}
