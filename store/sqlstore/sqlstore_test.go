package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/linkauth"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "linkauth.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "pgx"), Postgres), mock
}

var created = time.Date(2026, 4, 2, 9, 30, 0, 500, time.UTC)

func localUser(email string) linkauth.User {
	return linkauth.User{
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		AuthProvider: linkauth.ProviderLocal,
		CreatedAt:    created,
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	store := openTempStore(t)
	require.NoError(t, store.Migrate(context.Background()))

	_, err := store.Ping(context.Background())
	require.NoError(t, err)
}

func TestSQLiteUsers(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	u, err := store.InsertUser(ctx, localUser("ada@example.com"))
	require.NoError(t, err)
	require.NotZero(t, u.ID)

	_, err = store.InsertUser(ctx, localUser("ada@example.com"))
	require.ErrorIs(t, err, linkauth.ErrDuplicateEmail)

	byEmail, err := store.FindUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, u, byEmail)

	u.IsPremium = true
	u.TwoFactorEnabled = true
	u.TwoFactorSecret = "JBSWY3DPEHPK3PXP"
	u.AuthProvider = linkauth.ProviderGoogle
	u.LastLoginAt = created.Add(time.Hour)
	require.NoError(t, store.UpdateUser(ctx, u))

	byID, err := store.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, byID)

	other, err := store.InsertUser(ctx, localUser("grace@example.com"))
	require.NoError(t, err)
	other.Email = "ada@example.com"
	require.ErrorIs(t, store.UpdateUser(ctx, other), linkauth.ErrDuplicateEmail)

	require.NoError(t, store.DeleteUser(ctx, u.ID))
	_, err = store.FindUserByID(ctx, u.ID)
	require.ErrorIs(t, err, linkauth.ErrRecordNotFound)
	require.ErrorIs(t, store.DeleteUser(ctx, u.ID), linkauth.ErrRecordNotFound)
	require.ErrorIs(t, store.UpdateUser(ctx, u), linkauth.ErrRecordNotFound)
}

func TestSQLiteSessions(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	u, err := store.InsertUser(ctx, localUser("sess@example.com"))
	require.NoError(t, err)

	insert := func(token string, activity time.Time) linkauth.Session {
		s, err := store.InsertSession(ctx, linkauth.Session{
			UserID:         u.ID,
			TokenHash:      linkauth.HashToken(token),
			DeviceInfo:     "Firefox",
			IPAddress:      "198.51.100.4",
			Location:       "unknown",
			CreatedAt:      activity,
			LastActivityAt: activity,
			IsActive:       true,
		})
		require.NoError(t, err)
		return s
	}

	older := insert("one", created)
	newer := insert("two", created.Add(time.Minute))

	got, err := store.FindSessionByTokenHash(ctx, linkauth.HashToken("one"))
	require.NoError(t, err)
	assert.Equal(t, older, got)

	older.LastActivityAt = created.Add(2 * time.Minute)
	older.IsActive = false
	require.NoError(t, store.UpdateSession(ctx, older))

	got, err = store.FindSessionByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, older, got)

	list, err := store.ListSessionsByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, older.ID, list[0].ID)
	assert.Equal(t, newer.ID, list[1].ID)

	_, err = store.FindSessionByTokenHash(ctx, linkauth.HashToken("missing"))
	require.ErrorIs(t, err, linkauth.ErrRecordNotFound)

	missing := newer
	missing.ID = 9999
	require.ErrorIs(t, store.UpdateSession(ctx, missing), linkauth.ErrRecordNotFound)

	require.NoError(t, store.DeleteSessionsByUser(ctx, u.ID))
	require.NoError(t, store.DeleteSessionsByUser(ctx, u.ID))
	list, err = store.ListSessionsByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLiteDeleteUserCascadesSessions(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	u, err := store.InsertUser(ctx, localUser("cascade@example.com"))
	require.NoError(t, err)
	s, err := store.InsertSession(ctx, linkauth.Session{
		UserID:         u.ID,
		TokenHash:      linkauth.HashToken("c"),
		CreatedAt:      created,
		LastActivityAt: created,
		IsActive:       true,
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteUser(ctx, u.ID))
	_, err = store.FindSessionByID(ctx, s.ID)
	require.ErrorIs(t, err, linkauth.ErrRecordNotFound)
}

func TestEngineOverSQLite(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	cfg := linkauth.DefaultConfig()
	cfg.JWT.SigningKey = strings.Repeat("q", 32)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := linkauth.New().WithConfig(cfg).WithStore(store).Build()
	require.NoError(t, err)
	defer engine.Close()

	reg, err := engine.Register(ctx, "Lite@Example.com", "sqlite password", linkauth.Profile{FirstName: "Lite"})
	require.NoError(t, err)
	assert.Equal(t, "lite@example.com", reg.Email)

	login, err := engine.Login(ctx, "lite@example.com", "sqlite password", "")
	require.NoError(t, err)

	p, err := engine.Authorize(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, p.UserID)

	sessions, err := engine.ListSessions(ctx, reg.ID, login.Token)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	require.NoError(t, engine.DeleteAccount(ctx, reg.ID))
	_, err = engine.Authorize(ctx, login.Token)
	require.Error(t, err)
}

func TestPostgresPlaceholders(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.FindUserByEmail(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, linkauth.ErrRecordNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := store.InsertUser(context.Background(), localUser("dup@example.com"))
	require.ErrorIs(t, err, linkauth.ErrDuplicateEmail)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFailuresAreWrapped(t *testing.T) {
	store, mock := newMockStore(t)
	down := errors.New("connection refused")

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET")).WillReturnError(down)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE user_id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateSession(context.Background(), linkauth.Session{ID: 1})
	require.ErrorIs(t, err, down)
	assert.NotErrorIs(t, err, linkauth.ErrRecordNotFound)
	assert.Contains(t, err.Error(), "db error")

	require.NoError(t, store.DeleteSessionsByUser(context.Background(), 3))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("UNIQUE constraint failed")))
}
