package sqlstore

import (
	"context"
	"fmt"

	"github.com/MrEthical07/linkauth"
)

const userColumns = `id, email, password_hash, first_name, last_name, avatar_url,
	is_premium, auth_provider, two_factor_enabled, two_factor_secret,
	created_at, last_login_at`

type userRow struct {
	ID               int64  `db:"id"`
	Email            string `db:"email"`
	PasswordHash     string `db:"password_hash"`
	FirstName        string `db:"first_name"`
	LastName         string `db:"last_name"`
	AvatarURL        string `db:"avatar_url"`
	IsPremium        bool   `db:"is_premium"`
	AuthProvider     string `db:"auth_provider"`
	TwoFactorEnabled bool   `db:"two_factor_enabled"`
	TwoFactorSecret  string `db:"two_factor_secret"`
	CreatedAt        int64  `db:"created_at"`
	LastLoginAt      int64  `db:"last_login_at"`
}

func (r userRow) toUser() (linkauth.User, error) {
	provider, err := linkauth.ParseAuthProvider(r.AuthProvider)
	if err != nil {
		return linkauth.User{}, fmt.Errorf("user %d: auth provider %q: %w", r.ID, r.AuthProvider, err)
	}
	return linkauth.User{
		ID:               r.ID,
		Email:            r.Email,
		PasswordHash:     r.PasswordHash,
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		AvatarURL:        r.AvatarURL,
		IsPremium:        r.IsPremium,
		AuthProvider:     provider,
		TwoFactorEnabled: r.TwoFactorEnabled,
		TwoFactorSecret:  r.TwoFactorSecret,
		CreatedAt:        fromNanos(r.CreatedAt),
		LastLoginAt:      fromNanos(r.LastLoginAt),
	}, nil
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (linkauth.User, error) {
	var row userRow
	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + where + ` = ?`)
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		return linkauth.User{}, translate(err, nil)
	}
	return row.toUser()
}

func (s *Store) FindUserByID(ctx context.Context, id int64) (linkauth.User, error) {
	return s.getUser(ctx, "id", id)
}

// FindUserByEmail matches the stored form exactly; the engine normalizes
// addresses before they reach the store.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (linkauth.User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *Store) InsertUser(ctx context.Context, user linkauth.User) (linkauth.User, error) {
	query := s.rebind(`INSERT INTO users (email, password_hash, first_name, last_name, avatar_url,
		is_premium, auth_provider, two_factor_enabled, two_factor_secret, created_at, last_login_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err := s.db.QueryRowxContext(ctx, query,
		user.Email, user.PasswordHash, user.FirstName, user.LastName, user.AvatarURL,
		user.IsPremium, user.AuthProvider.String(), user.TwoFactorEnabled, user.TwoFactorSecret,
		toNanos(user.CreatedAt), toNanos(user.LastLoginAt),
	).Scan(&user.ID)
	if err != nil {
		return linkauth.User{}, translate(err, linkauth.ErrDuplicateEmail)
	}
	return user, nil
}

func (s *Store) UpdateUser(ctx context.Context, user linkauth.User) error {
	query := s.rebind(`UPDATE users SET email = ?, password_hash = ?, first_name = ?, last_name = ?,
		avatar_url = ?, is_premium = ?, auth_provider = ?, two_factor_enabled = ?,
		two_factor_secret = ?, last_login_at = ?
		WHERE id = ?`)

	res, err := s.db.ExecContext(ctx, query,
		user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.AvatarURL, user.IsPremium, user.AuthProvider.String(), user.TwoFactorEnabled,
		user.TwoFactorSecret, toNanos(user.LastLoginAt),
		user.ID,
	)
	if err != nil {
		return translate(err, linkauth.ErrDuplicateEmail)
	}
	return affectedOne(res)
}

// DeleteUser removes the account row. Session rows go with it through the
// foreign key.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return translate(err, nil)
	}
	return affectedOne(res)
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func affectedOne(res rowsAffecter) error {
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, nil)
	}
	if n == 0 {
		return linkauth.ErrRecordNotFound
	}
	return nil
}
