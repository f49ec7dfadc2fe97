package linkauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/linkauth/password"
)

const maxAvatarURLLength = 2048

// IdentityResolver owns account creation, credential checks and profile
// mutations. It never issues tokens or sessions.
type IdentityResolver struct {
	users         UserStore
	hasher        *password.Argon2
	maxNameLength int
	logger        *slog.Logger
	now           func() time.Time
}

func newIdentityResolver(users UserStore, hasher *password.Argon2, cfg AccountConfig, logger *slog.Logger, now func() time.Time) *IdentityResolver {
	return &IdentityResolver{
		users:         users,
		hasher:        hasher,
		maxNameLength: cfg.MaxNameLength,
		logger:        logger,
		now:           now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateEmail accepts bare addresses only: no display name, no angle brackets.
func validateEmail(email string) error {
	if email == "" || len(email) > 254 {
		return ErrInvalidEmail
	}
	parsed, err := mail.ParseAddress(email)
	if err != nil || parsed.Address != email || parsed.Name != "" {
		return ErrInvalidEmail
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return ErrInvalidEmail
	}
	return nil
}

func (r *IdentityResolver) clampName(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= r.maxNameLength {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:r.maxNameLength]))
}

func clampAvatar(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxAvatarURLLength {
		return ""
	}
	return s
}

func (r *IdentityResolver) checkPolicy(pw string) error {
	if err := r.hasher.CheckPolicy(pw); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}
	return nil
}

// storeErr maps store failures to engine errors. Absence maps to notFound,
// which may be nil when the caller handles absence itself.
func storeErr(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRecordNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, ErrDuplicateEmail):
		return ErrEmailTaken
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// Register creates a local account.
func (r *IdentityResolver) Register(ctx context.Context, email, pw string, profile Profile) (User, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return User{}, err
	}
	if err := r.checkPolicy(pw); err != nil {
		return User{}, err
	}

	_, err := r.users.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		return User{}, ErrEmailTaken
	case !errors.Is(err, ErrRecordNotFound):
		return User{}, storeErr(err, nil)
	}

	hash, err := r.hasher.Hash(pw)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	user, err := r.users.InsertUser(ctx, User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    r.clampName(profile.FirstName),
		LastName:     r.clampName(profile.LastName),
		AvatarURL:    clampAvatar(profile.AvatarURL),
		AuthProvider: ProviderLocal,
		CreatedAt:    r.now().UTC(),
	})
	if err != nil {
		return User{}, storeErr(err, nil)
	}
	return user, nil
}

// AuthenticateLocal checks an email and password. Unknown emails, accounts
// without a password and wrong passwords all yield [ErrInvalidCredentials]
// after the same amount of hashing work.
func (r *IdentityResolver) AuthenticateLocal(ctx context.Context, email, pw string) (User, error) {
	email = normalizeEmail(email)

	user, err := r.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			r.hasher.VerifyDummy(pw)
			return User{}, ErrInvalidCredentials
		}
		return User{}, storeErr(err, nil)
	}

	if user.PasswordHash == "" {
		r.hasher.VerifyDummy(pw)
		return User{}, ErrInvalidCredentials
	}

	ok, err := r.hasher.Verify(pw, user.PasswordHash)
	if err != nil {
		r.logger.WarnContext(ctx, "stored password hash unreadable", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return User{}, ErrInvalidCredentials
	}
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// AuthenticateOAuth finds or creates the account for a provider identity.
// The boolean reports whether a new account was created.
func (r *IdentityResolver) AuthenticateOAuth(ctx context.Context, id ProviderIdentity) (User, bool, error) {
	email := normalizeEmail(id.Email)
	if email == "" {
		return User{}, false, ErrOAuthEmailMissing
	}
	if err := validateEmail(email); err != nil {
		return User{}, false, err
	}

	name := id.Provider
	if strings.TrimSpace(name) == "" {
		name = ProviderGoogle.String()
	}
	provider, err := ParseAuthProvider(name)
	if err != nil || provider == ProviderLocal {
		return User{}, false, ErrUnknownProvider
	}

	user, err := r.users.FindUserByEmail(ctx, email)
	if err == nil {
		merged, err := r.mergeOAuth(ctx, user, provider, id)
		return merged, false, err
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return User{}, false, storeErr(err, nil)
	}

	hash, err := r.hasher.Unusable()
	if err != nil {
		return User{}, false, err
	}

	now := r.now().UTC()
	created, err := r.users.InsertUser(ctx, User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    r.clampName(id.FirstName),
		LastName:     r.clampName(id.LastName),
		AvatarURL:    clampAvatar(id.AvatarURL),
		AuthProvider: provider,
		CreatedAt:    now,
		LastLoginAt:  now,
	})
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, ErrDuplicateEmail) {
		return User{}, false, storeErr(err, nil)
	}

	// Lost an insert race for the same email: merge into the winner.
	winner, err := r.users.FindUserByEmail(ctx, email)
	if err != nil {
		return User{}, false, storeErr(err, nil)
	}
	merged, err := r.mergeOAuth(ctx, winner, provider, id)
	return merged, false, err
}

func (r *IdentityResolver) mergeOAuth(ctx context.Context, user User, provider AuthProvider, id ProviderIdentity) (User, error) {
	user.AuthProvider = provider
	if user.FirstName == "" {
		user.FirstName = r.clampName(id.FirstName)
	}
	if user.LastName == "" {
		user.LastName = r.clampName(id.LastName)
	}
	if user.AvatarURL == "" {
		user.AvatarURL = clampAvatar(id.AvatarURL)
	}
	user.LastLoginAt = r.now().UTC()

	if err := r.users.UpdateUser(ctx, user); err != nil {
		return User{}, storeErr(err, ErrUserNotFound)
	}
	return user, nil
}

// ChangePassword sets a new local password. isOAuthHint is the client's
// claim that the account is provider-backed; it must agree with the stored
// provider. Provider-backed accounts skip the current-password check and
// become local accounts on success.
func (r *IdentityResolver) ChangePassword(ctx context.Context, userID int64, current, next string, isOAuthHint bool) error {
	user, err := r.users.FindUserByID(ctx, userID)
	if err != nil {
		return storeErr(err, ErrUserNotFound)
	}

	isOAuth := user.AuthProvider != ProviderLocal
	if isOAuthHint && !isOAuth {
		r.logger.WarnContext(ctx, "password change claimed oauth account for local user", slog.Int64("user_id", userID))
		return ErrProviderMismatch
	}

	if !isOAuth {
		if current == "" {
			return ErrCurrentPasswordRequired
		}
		ok, err := r.hasher.Verify(current, user.PasswordHash)
		if err != nil || !ok {
			return ErrInvalidCredentials
		}
	}

	if err := r.checkPolicy(next); err != nil {
		return err
	}
	hash, err := r.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	user.PasswordHash = hash
	user.AuthProvider = ProviderLocal
	if err := r.users.UpdateUser(ctx, user); err != nil {
		return storeErr(err, ErrUserNotFound)
	}
	return nil
}

// DeleteAccount removes the user row. Session cleanup is the caller's job.
func (r *IdentityResolver) DeleteAccount(ctx context.Context, userID int64) error {
	if _, err := r.users.FindUserByID(ctx, userID); err != nil {
		return storeErr(err, ErrUserNotFound)
	}
	return storeErr(r.users.DeleteUser(ctx, userID), ErrUserNotFound)
}

// UpdateProfile replaces both name fields (trimmed and capped) and the
// avatar when one is supplied.
func (r *IdentityResolver) UpdateProfile(ctx context.Context, userID int64, profile Profile) (User, error) {
	user, err := r.users.FindUserByID(ctx, userID)
	if err != nil {
		return User{}, storeErr(err, ErrUserNotFound)
	}

	user.FirstName = r.clampName(profile.FirstName)
	user.LastName = r.clampName(profile.LastName)
	if avatar := clampAvatar(profile.AvatarURL); avatar != "" {
		user.AvatarURL = avatar
	}

	if err := r.users.UpdateUser(ctx, user); err != nil {
		return User{}, storeErr(err, ErrUserNotFound)
	}
	return user, nil
}

// UpgradeToPremium sets IsPremium. Upgrading a premium account is a no-op.
func (r *IdentityResolver) UpgradeToPremium(ctx context.Context, userID int64) (User, error) {
	user, err := r.users.FindUserByID(ctx, userID)
	if err != nil {
		return User{}, storeErr(err, ErrUserNotFound)
	}
	if user.IsPremium {
		return user, nil
	}

	user.IsPremium = true
	if err := r.users.UpdateUser(ctx, user); err != nil {
		return User{}, storeErr(err, ErrUserNotFound)
	}
	return user, nil
}

// IsEmailAvailable reports whether no account uses email under any provider.
func (r *IdentityResolver) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return false, err
	}

	_, err := r.users.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, ErrRecordNotFound):
		return true, nil
	default:
		return false, storeErr(err, nil)
	}
}

// TouchLogin stamps LastLoginAt and returns the updated snapshot.
func (r *IdentityResolver) TouchLogin(ctx context.Context, user User) (User, error) {
	user.LastLoginAt = r.now().UTC()
	if err := r.users.UpdateUser(ctx, user); err != nil {
		return User{}, storeErr(err, ErrUserNotFound)
	}
	return user, nil
}

// Get loads a user by id.
func (r *IdentityResolver) Get(ctx context.Context, userID int64) (User, error) {
	user, err := r.users.FindUserByID(ctx, userID)
	if err != nil {
		return User{}, storeErr(err, ErrUserNotFound)
	}
	return user, nil
}
