package linkauth

import (
	"strings"
	"time"
)

// AuthProvider identifies how an account authenticates. The set is closed;
// the wire and storage form is the lowercase name.
type AuthProvider uint8

const (
	// ProviderLocal accounts sign in with email and password.
	ProviderLocal AuthProvider = iota + 1
	// ProviderGoogle accounts were created or last merged through Google sign-in.
	ProviderGoogle
	// ProviderGitHub accounts were created or last merged through GitHub sign-in.
	ProviderGitHub
)

// String returns the lowercase wire form of p, or "" for the zero value.
func (p AuthProvider) String() string {
	switch p {
	case ProviderLocal:
		return "local"
	case ProviderGoogle:
		return "google"
	case ProviderGitHub:
		return "github"
	default:
		return ""
	}
}

// ParseAuthProvider parses a provider name case-insensitively.
func ParseAuthProvider(s string) (AuthProvider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return ProviderLocal, nil
	case "google":
		return ProviderGoogle, nil
	case "github":
		return ProviderGitHub, nil
	default:
		return 0, ErrUnknownProvider
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p AuthProvider) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *AuthProvider) UnmarshalText(b []byte) error {
	parsed, err := ParseAuthProvider(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// User is a value snapshot of an account record. Mutations go through
// [UserStore.UpdateUser]; holders of a User never observe later changes.
type User struct {
	ID               int64
	Email            string
	PasswordHash     string
	FirstName        string
	LastName         string
	AvatarURL        string
	IsPremium        bool
	AuthProvider     AuthProvider
	TwoFactorEnabled bool
	TwoFactorSecret  string
	CreatedAt        time.Time
	LastLoginAt      time.Time
}

// DisplayName joins first and last name.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Session is a value snapshot of a session record. TokenHash is the hex
// SHA-256 digest of the issued token.
type Session struct {
	ID             int64
	UserID         int64
	TokenHash      string
	DeviceInfo     string
	IPAddress      string
	Location       string
	CreatedAt      time.Time
	LastActivityAt time.Time
	IsActive       bool
}

// Profile carries the optional display attributes supplied at registration
// or profile update.
type Profile struct {
	FirstName string
	LastName  string
	AvatarURL string
}

// ProviderIdentity is the normalized identity asserted by an external
// provider after a successful exchange.
type ProviderIdentity struct {
	Provider  string
	Subject   string
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
}

// RequestInfo describes the client a session is issued to.
type RequestInfo struct {
	DeviceInfo string
	IPAddress  string
	Location   string
}

// AuthResult is returned by every login path. When RequiresTwoFactor is
// true only ID, Email and Name are set and no token has been issued.
type AuthResult struct {
	RequiresTwoFactor bool

	ID        int64
	Email     string
	Name      string
	FirstName string
	LastName  string
	AvatarURL string

	IsPremium        bool
	AuthProvider     AuthProvider
	TwoFactorEnabled bool
	IsNewUser        bool

	Token     string
	ExpiresAt time.Time
}

// UserProfile is the read-only account view returned by [Engine.GetProfile].
type UserProfile struct {
	ID               int64
	Email            string
	FirstName        string
	LastName         string
	AvatarURL        string
	IsPremium        bool
	AuthProvider     AuthProvider
	TwoFactorEnabled bool
	CreatedAt        time.Time
	LastLoginAt      time.Time
}

// SessionInfo is the caller-facing view of a session. IsCurrent marks the
// session bound to the token the request was made with.
type SessionInfo struct {
	ID             int64
	DeviceInfo     string
	IPAddress      string
	Location       string
	CreatedAt      time.Time
	LastActivityAt time.Time
	IsCurrent      bool
}

// TwoFactorSetup is returned when 2FA setup begins.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
	ManualKey       string
}

// TwoFactorState is the position of an account in the 2FA lifecycle.
type TwoFactorState uint8

const (
	// TwoFactorDisabled means no secret is stored.
	TwoFactorDisabled TwoFactorState = iota
	// TwoFactorPendingSetup means a secret is stored but has not been confirmed.
	TwoFactorPendingSetup
	// TwoFactorActive means logins require a one-time code.
	TwoFactorActive
)

func (s TwoFactorState) String() string {
	switch s {
	case TwoFactorPendingSetup:
		return "pending_setup"
	case TwoFactorActive:
		return "enabled"
	default:
		return "disabled"
	}
}

// Claims are the verified contents of a session token.
type Claims struct {
	TokenID    string
	UserID     int64
	Email      string
	DeviceInfo string
	IPAddress  string
	Location   string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Principal is the caller identity established by [Engine.Authorize].
type Principal struct {
	UserID    int64
	Email     string
	SessionID int64
	ExpiresAt time.Time
}

func newAuthResult(u User) AuthResult {
	return AuthResult{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.DisplayName(),
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		AvatarURL:        u.AvatarURL,
		IsPremium:        u.IsPremium,
		AuthProvider:     u.AuthProvider,
		TwoFactorEnabled: u.TwoFactorEnabled,
	}
}

func newUserProfile(u User) UserProfile {
	return UserProfile{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		AvatarURL:        u.AvatarURL,
		IsPremium:        u.IsPremium,
		AuthProvider:     u.AuthProvider,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CreatedAt:        u.CreatedAt,
		LastLoginAt:      u.LastLoginAt,
	}
}
