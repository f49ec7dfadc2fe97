// Command linkauthd serves the linkauth engine over JSON/HTTP.
//
// Configuration comes from LINKAUTH_* environment variables. Engine settings
// (signing key, TTLs, Argon2 cost, TOTP) are documented on linkauth.Config;
// process settings are:
//
//	LINKAUTH_ADDR              listen address (default :8080)
//	LINKAUTH_STORE             memory | sqlite | postgres (default memory)
//	LINKAUTH_SQLITE_PATH       database file for the sqlite store
//	LINKAUTH_POSTGRES_DSN      connection string for the postgres store
//	LINKAUTH_SESSIONS          store | redis | miniredis (default store)
//	LINKAUTH_REDIS_ADDR        redis address for LINKAUTH_SESSIONS=redis
//	LINKAUTH_GOOGLE_CLIENT_ID  enables Google sign-in together with _CLIENT_SECRET
//	LINKAUTH_GITHUB_CLIENT_ID  enables GitHub sign-in together with _CLIENT_SECRET
//	LINKAUTH_LOG_LEVEL         debug | info | warn | error
//
// Run with an in-memory store:
//
//	LINKAUTH_JWT_SIGNING_KEY=$(openssl rand -hex 32) go run ./cmd/linkauthd
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/oauth"
	"github.com/MrEthical07/linkauth/session"
	"github.com/MrEthical07/linkauth/store/memory"
	"github.com/MrEthical07/linkauth/store/sqlstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "linkauthd:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := loadSettings()
	if err != nil {
		return err
	}
	cfg, err := linkauth.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	logger := newLogger(s)

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	users, c, err := openUserStore(ctx, s)
	if err != nil {
		return err
	}
	closers = append(closers, c...)

	sessions, c, err := openSessionStore(ctx, s, users, cfg.JWT.TokenTTL)
	if err != nil {
		return err
	}
	closers = append(closers, c...)

	b := linkauth.New().
		WithConfig(cfg).
		WithUserStore(users).
		WithSessionStore(sessions).
		WithLogger(logger).
		WithAuditSink(linkauth.NewSlogSink(logger.With("component", "audit")))

	providers, err := identityProviders(s)
	if err != nil {
		return err
	}
	for _, p := range providers {
		b.WithIdentityProvider(p)
		logger.Info("identity provider enabled", "provider", p.Name())
	}

	engine, err := b.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	rep := engine.SecurityReport()
	logger.Info("engine ready",
		"token_ttl", rep.TokenTTL,
		"key_rotation", rep.KeyRotationActive,
		"providers", rep.IdentityProviders,
	)
	for _, w := range rep.Warnings {
		logger.Warn("weak security setting", "code", w)
	}

	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           newRouter(engine, s, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", s.Addr, "store", s.Store, "sessions", s.Sessions)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// credentialStore is what openUserStore hands back: every backend we ship
// stores both users and sessions.
type credentialStore = linkauth.CredentialStore

func openUserStore(ctx context.Context, s settings) (credentialStore, []io.Closer, error) {
	switch s.Store {
	case "sqlite":
		st, err := sqlstore.OpenSQLite(ctx, s.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, []io.Closer{st}, nil
	case "postgres":
		st, err := sqlstore.OpenPostgres(ctx, s.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return st, []io.Closer{st}, nil
	default:
		return memory.New(), nil, nil
	}
}

func openSessionStore(ctx context.Context, s settings, users credentialStore, retention time.Duration) (linkauth.SessionStore, []io.Closer, error) {
	var (
		client  redis.UniversalClient
		closers []io.Closer
	)
	switch s.Sessions {
	case "redis":
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{s.Redis.Addr},
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
		})
		closers = append(closers, client)
	case "miniredis":
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		closers = append(closers, closerFunc(func() error { mr.Close(); return nil }), client)
	default:
		return users, nil, nil
	}

	store := session.NewStore(client, s.Redis.Prefix, retention)
	if _, err := store.Ping(ctx); err != nil {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		return nil, nil, err
	}
	return store, closers, nil
}

func identityProviders(s settings) ([]linkauth.ExternalIdentityProvider, error) {
	var out []linkauth.ExternalIdentityProvider
	if s.Google.Enabled() {
		p, err := oauth.NewGoogle(s.Google)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if s.GitHub.Enabled() {
		p, err := oauth.NewGitHub(s.GitHub)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
