package linkauth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Register creates a local account and logs it in. New accounts never have
// 2FA, so a successful result always carries a token.
func (e *Engine) Register(ctx context.Context, email, pw string, profile Profile) (res AuthResult, err error) {
	if err := e.ready(); err != nil {
		return AuthResult{}, err
	}
	ctx, span := e.startSpan(ctx, "Register")
	defer func() { endSpan(span, err) }()

	user, err := e.identity.Register(ctx, email, pw, profile)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			e.metricInc(MetricRegisterDuplicate)
		}
		e.emitAudit(ctx, auditRecord{eventType: auditEventRegister, email: normalizeEmail(email), err: err})
		return AuthResult{}, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditRecord{eventType: auditEventRegister, success: true, userID: user.ID, email: user.Email})

	res, err = e.completeLogin(ctx, user, "", auditEventLoginSuccess)
	res.IsNewUser = true
	return res, err
}

// Login authenticates a local account. When the account has 2FA enabled and
// totpCode is empty, the result only reports RequiresTwoFactor.
func (e *Engine) Login(ctx context.Context, email, pw, totpCode string) (res AuthResult, err error) {
	if err := e.ready(); err != nil {
		return AuthResult{}, err
	}
	ctx, span := e.startSpan(ctx, "Login")
	defer func() { endSpan(span, err) }()

	user, err := e.identity.AuthenticateLocal(ctx, email, pw)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditRecord{eventType: auditEventLoginFailure, email: normalizeEmail(email), err: err})
		return AuthResult{}, err
	}
	return e.completeLogin(ctx, user, totpCode, auditEventLoginSuccess)
}

// LoginOAuth logs in with an identity already asserted by a provider,
// creating the account on first sight. An existing local account with the
// same email is switched to the provider.
func (e *Engine) LoginOAuth(ctx context.Context, id ProviderIdentity, totpCode string) (res AuthResult, err error) {
	if err := e.ready(); err != nil {
		return AuthResult{}, err
	}
	ctx, span := e.startSpan(ctx, "LoginOAuth", attribute.String("linkauth.provider", id.Provider))
	defer func() { endSpan(span, err) }()

	return e.loginOAuth(ctx, id, totpCode)
}

func (e *Engine) loginOAuth(ctx context.Context, id ProviderIdentity, totpCode string) (AuthResult, error) {
	user, created, err := e.identity.AuthenticateOAuth(ctx, id)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditRecord{eventType: auditEventLoginFailure, email: normalizeEmail(id.Email), err: err})
		return AuthResult{}, err
	}

	e.metricInc(MetricOAuthLogin)
	if created {
		e.metricInc(MetricOAuthUserCreated)
	}

	res, err := e.completeLogin(ctx, user, totpCode, auditEventOAuthLogin)
	res.IsNewUser = created
	return res, err
}

// AuthorizationURL returns the consent page URL of the named provider.
func (e *Engine) AuthorizationURL(provider, state string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	p, err := e.provider(provider)
	if err != nil {
		return "", err
	}
	return p.AuthCodeURL(state), nil
}

// LoginWithProvider exchanges an authorization code, fetches the profile and
// continues as [Engine.LoginOAuth].
func (e *Engine) LoginWithProvider(ctx context.Context, provider, code, redirectURI, totpCode string) (res AuthResult, err error) {
	if err := e.ready(); err != nil {
		return AuthResult{}, err
	}
	ctx, span := e.startSpan(ctx, "LoginWithProvider", attribute.String("linkauth.provider", provider))
	defer func() { endSpan(span, err) }()

	p, err := e.provider(provider)
	if err != nil {
		return AuthResult{}, err
	}

	accessToken, err := p.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		e.logger.WarnContext(ctx, "provider code exchange failed", slog.String("provider", p.Name()), slog.Any("error", err))
		return AuthResult{}, providerErr(err)
	}
	id, err := p.FetchProfile(ctx, accessToken)
	if err != nil {
		e.logger.WarnContext(ctx, "provider profile fetch failed", slog.String("provider", p.Name()), slog.Any("error", err))
		return AuthResult{}, providerErr(err)
	}
	if id.Provider == "" {
		id.Provider = p.Name()
	}

	return e.loginOAuth(ctx, id, totpCode)
}

func (e *Engine) provider(name string) (ExternalIdentityProvider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = ProviderGoogle.String()
	}
	if _, err := ParseAuthProvider(name); err != nil || name == ProviderLocal.String() {
		return nil, ErrUnknownProvider
	}
	p, ok := e.providers[name]
	if !ok {
		return nil, ErrProviderNotConfigured
	}
	return p, nil
}

// providerErr keeps linkauth errors a provider returned and folds anything
// else into ErrProviderUnavailable.
func providerErr(err error) error {
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	return errors.Join(ErrProviderUnavailable, err)
}

// completeLogin is the shared tail of every login path: 2FA gate, login
// stamp, token and session.
func (e *Engine) completeLogin(ctx context.Context, user User, totpCode, event string) (AuthResult, error) {
	if user.TwoFactorEnabled && user.TwoFactorSecret != "" {
		if strings.TrimSpace(totpCode) == "" {
			e.metricInc(MetricTwoFactorRequired)
			e.emitAudit(ctx, auditRecord{eventType: auditEventLogin2FARequired, success: true, userID: user.ID, email: user.Email})
			return AuthResult{
				RequiresTwoFactor: true,
				ID:                user.ID,
				Email:             user.Email,
				Name:              user.DisplayName(),
			}, nil
		}
		if !e.twoFactor.VerifyCode(user.TwoFactorSecret, totpCode) {
			e.metricInc(MetricTwoFactorFailure)
			e.emitAudit(ctx, auditRecord{eventType: auditEventLoginFailure, userID: user.ID, email: user.Email, err: ErrInvalidOneTimeCode})
			return AuthResult{}, ErrInvalidOneTimeCode
		}
	}

	touched, err := e.identity.TouchLogin(ctx, user)
	if err != nil {
		e.logger.WarnContext(ctx, "last login update failed", slog.Int64("user_id", user.ID), slog.Any("error", err))
	} else {
		user = touched
	}

	req := RequestInfoFromContext(ctx)
	token, expiresAt, err := e.tokens.Issue(user, req)
	if err != nil {
		return AuthResult{}, err
	}

	var sessionID int64
	s, err := e.sessions.Create(ctx, user.ID, token, req)
	if err != nil {
		e.metricInc(MetricSessionCreateFailed)
		e.logger.ErrorContext(ctx, "session persist failed", slog.Int64("user_id", user.ID), slog.Any("error", err))
	} else {
		sessionID = s.ID
		e.metricInc(MetricSessionCreated)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditRecord{eventType: event, success: true, userID: user.ID, email: user.Email, sessionID: sessionID})

	res := newAuthResult(user)
	res.Token = token
	res.ExpiresAt = expiresAt
	return res, nil
}
