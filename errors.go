package linkauth

import "errors"

// Kind classifies an error so transport layers can map it to a status code
// without matching individual sentinels.
type Kind uint8

const (
	// KindUnknown is returned by [KindOf] for errors that did not originate in linkauth.
	KindUnknown Kind = iota
	// KindValidation marks malformed or policy-violating input.
	KindValidation
	// KindConflict marks uniqueness violations such as a taken email.
	KindConflict
	// KindAuthentication marks failed credential, token or one-time code checks.
	KindAuthentication
	// KindAuthorization marks an authenticated caller acting outside its rights.
	KindAuthorization
	// KindNotFound marks a missing record.
	KindNotFound
	// KindConfiguration marks an engine that cannot start with the given settings.
	KindConfiguration
	// KindUnavailable marks a backing store or provider failure.
	KindUnavailable
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConfiguration:
		return "configuration"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is the concrete type behind every sentinel in this package.
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// KindOf reports the [Kind] of the first [*Error] in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

var (
	// ErrInvalidCredentials is returned for an unknown email, an account without a
	// local password, or a wrong password. The three cases are indistinguishable.
	ErrInvalidCredentials = newError(KindAuthentication, "invalid email or password")
	// ErrEmailTaken is returned when registering an email that already exists under any provider.
	ErrEmailTaken = newError(KindConflict, "email is already registered")
	// ErrInvalidEmail is returned for syntactically invalid email addresses.
	ErrInvalidEmail = newError(KindValidation, "invalid email address")
	// ErrPasswordPolicy is returned when a new password does not meet the configured policy.
	ErrPasswordPolicy = newError(KindValidation, "password does not meet policy")
	// ErrOAuthEmailMissing is returned when a provider identity carries no email.
	ErrOAuthEmailMissing = newError(KindValidation, "email is required from the identity provider")
	// ErrUnknownProvider is returned for provider names outside the supported set.
	ErrUnknownProvider = newError(KindValidation, "unknown identity provider")
	// ErrProviderMismatch is returned when a client claims an OAuth account while the
	// stored account is local.
	ErrProviderMismatch = newError(KindAuthentication, "authentication provider mismatch")
	// ErrCurrentPasswordRequired is returned when a local account changes its password
	// without supplying the current one.
	ErrCurrentPasswordRequired = newError(KindValidation, "current password is required")
	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = newError(KindNotFound, "user not found")
	// ErrSessionNotFound is returned when a session id is unknown or owned by another user.
	ErrSessionNotFound = newError(KindNotFound, "session not found")
	// ErrSigningKeyMissing is returned by Build when no usable token signing key is configured.
	ErrSigningKeyMissing = newError(KindConfiguration, "token signing key is missing or too short")
	// ErrRevokeCurrentSession is returned when the generic revoke path targets the
	// caller's own session. Logout is the supported way to end it.
	ErrRevokeCurrentSession = newError(KindValidation, "cannot revoke the current session, use logout instead")
	// ErrSessionInvalid is returned when a valid token has no active session record.
	ErrSessionInvalid = newError(KindAuthentication, "session expired or invalidated")
	// ErrTokenInvalid is returned for tokens that fail signature, claim or expiry checks.
	ErrTokenInvalid = newError(KindAuthentication, "invalid or expired token")
	// ErrTwoFactorAlreadyEnabled is returned by setup when 2FA is already on.
	ErrTwoFactorAlreadyEnabled = newError(KindValidation, "two-factor authentication is already enabled")
	// ErrTwoFactorNotInitiated is returned when confirming 2FA before setup.
	ErrTwoFactorNotInitiated = newError(KindValidation, "two-factor setup was not initiated")
	// ErrInvalidOneTimeCode is returned for a wrong or malformed TOTP code.
	ErrInvalidOneTimeCode = newError(KindAuthentication, "invalid two-factor code")
	// ErrProviderNotConfigured is returned when an OAuth operation names a provider
	// without a registered [ExternalIdentityProvider].
	ErrProviderNotConfigured = newError(KindConfiguration, "identity provider is not configured")
	// ErrProviderUnavailable wraps code exchange and profile fetch failures.
	ErrProviderUnavailable = newError(KindUnavailable, "identity provider unavailable")
	// ErrStoreUnavailable wraps credential store failures at the Engine boundary.
	ErrStoreUnavailable = newError(KindUnavailable, "credential store unavailable")
	// ErrEngineNotReady is returned by methods called on a nil or closed Engine.
	ErrEngineNotReady = newError(KindConfiguration, "engine not initialized")
)

// Store-level sentinels. CredentialStore implementations return these so the
// core can tell absence and uniqueness violations apart from outages.
var (
	// ErrRecordNotFound is returned by stores when a lookup matches nothing.
	ErrRecordNotFound = newError(KindNotFound, "record not found")
	// ErrDuplicateEmail is returned by stores when an insert violates email uniqueness.
	ErrDuplicateEmail = newError(KindConflict, "duplicate email")
)
