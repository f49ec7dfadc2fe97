package linkauth

import "context"

// UserStore persists accounts. Lookups by email receive the normalized
// (trimmed, lowercase) form. Implementations return [ErrRecordNotFound] for
// missing rows and [ErrDuplicateEmail] when an insert would violate email
// uniqueness; any other error is treated as an outage.
type UserStore interface {
	FindUserByID(ctx context.Context, id int64) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	// InsertUser assigns ID and returns the stored snapshot.
	InsertUser(ctx context.Context, user User) (User, error)
	UpdateUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id int64) error
}

// SessionStore persists session records keyed by token hash.
type SessionStore interface {
	// InsertSession assigns ID and returns the stored snapshot.
	InsertSession(ctx context.Context, session Session) (Session, error)
	UpdateSession(ctx context.Context, session Session) error
	FindSessionByTokenHash(ctx context.Context, tokenHash string) (Session, error)
	FindSessionByID(ctx context.Context, id int64) (Session, error)
	// ListSessionsByUser returns active and inactive sessions, newest activity first.
	ListSessionsByUser(ctx context.Context, userID int64) ([]Session, error)
	DeleteSessionsByUser(ctx context.Context, userID int64) error
}

// CredentialStore is the full persistence contract.
type CredentialStore interface {
	UserStore
	SessionStore
}

// ExternalIdentityProvider performs the authorization-code flow against a
// third-party identity service.
type ExternalIdentityProvider interface {
	// Name returns the provider's lowercase name, e.g. "google".
	Name() string
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code, redirectURI string) (string, error)
	FetchProfile(ctx context.Context, accessToken string) (ProviderIdentity, error)
}
