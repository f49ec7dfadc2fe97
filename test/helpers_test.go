//go:build integration
// +build integration

package test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/session"
	"github.com/MrEthical07/linkauth/store/memory"
	"github.com/MrEthical07/linkauth/store/sqlstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// backend pairs a user store with the session store deployed next to it.
type backend struct {
	name     string
	users    linkauth.UserStore
	sessions linkauth.SessionStore
}

func newMemoryBackend(t *testing.T) backend {
	t.Helper()
	s := memory.New()
	return backend{name: "memory", users: s, sessions: s}
}

func newSQLiteBackend(t *testing.T) backend {
	t.Helper()
	s, err := sqlstore.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "conformance.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return backend{name: "sqlite", users: s, sessions: s}
}

func newRedisBackend(t *testing.T) backend {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return backend{
		name:     "memory+redis",
		users:    memory.New(),
		sessions: session.NewStore(client, "it", 24*time.Hour),
	}
}

var backends = []func(*testing.T) backend{
	newMemoryBackend,
	newSQLiteBackend,
	newRedisBackend,
}

// forEachBackend runs fn once per backend as a subtest.
func forEachBackend(t *testing.T, fn func(t *testing.T, b backend)) {
	for _, newBackend := range backends {
		b := newBackend(t)
		t.Run(b.name, func(t *testing.T) {
			fn(t, b)
		})
	}
}

var baseTime = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, b backend, email string) linkauth.User {
	t.Helper()
	u, err := b.users.InsertUser(context.Background(), linkauth.User{
		Email:        email,
		AuthProvider: linkauth.ProviderGoogle,
		CreatedAt:    baseTime,
	})
	if err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	return u
}

func seedSession(t *testing.T, b backend, userID int64, token string, activity time.Time) linkauth.Session {
	t.Helper()
	s, err := b.sessions.InsertSession(context.Background(), linkauth.Session{
		UserID:         userID,
		TokenHash:      linkauth.HashToken(token),
		DeviceInfo:     "integration",
		IPAddress:      "192.0.2.10",
		Location:       "unknown",
		CreatedAt:      activity,
		LastActivityAt: activity,
		IsActive:       true,
	})
	if err != nil {
		t.Fatalf("InsertSession: %v", err)
	}
	return s
}

func newEngine(t *testing.T, b backend) *linkauth.Engine {
	t.Helper()
	cfg := linkauth.DefaultConfig()
	cfg.JWT.SigningKey = strings.Repeat("i", 32)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := linkauth.New().
		WithConfig(cfg).
		WithUserStore(b.users).
		WithSessionStore(b.sessions).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
