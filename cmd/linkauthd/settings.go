package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/oauth"
	"github.com/caarlos0/env/v11"
)

// settings are the process-level options. Engine options are read
// separately by linkauth.LoadConfigFromEnv under the same prefix.
type settings struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	TrustProxy      bool          `env:"TRUST_PROXY"`

	// Store is memory, sqlite or postgres.
	Store       string `env:"STORE" envDefault:"memory"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"linkauth.db"`
	PostgresDSN string `env:"POSTGRES_DSN"`

	// Sessions is store (same backend as users), redis or miniredis.
	Sessions string        `env:"SESSIONS" envDefault:"store"`
	Redis    redisSettings `envPrefix:"REDIS_"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text"`

	Google oauth.Config `envPrefix:"GOOGLE_"`
	GitHub oauth.Config `envPrefix:"GITHUB_"`
}

type redisSettings struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"`
	Prefix   string `env:"PREFIX" envDefault:"la"`
}

func loadSettings() (settings, error) {
	var s settings
	if err := env.ParseWithOptions(&s, env.Options{Prefix: linkauth.EnvPrefix}); err != nil {
		return settings{}, fmt.Errorf("parse environment: %w", err)
	}
	s.Store = strings.ToLower(strings.TrimSpace(s.Store))
	s.Sessions = strings.ToLower(strings.TrimSpace(s.Sessions))

	switch s.Store {
	case "memory", "sqlite":
	case "postgres":
		if s.PostgresDSN == "" {
			return settings{}, fmt.Errorf("%sPOSTGRES_DSN is required for the postgres store", linkauth.EnvPrefix)
		}
	default:
		return settings{}, fmt.Errorf("unknown store %q (want memory, sqlite or postgres)", s.Store)
	}
	switch s.Sessions {
	case "store", "redis", "miniredis":
	default:
		return settings{}, fmt.Errorf("unknown session backend %q (want store, redis or miniredis)", s.Sessions)
	}
	return s, nil
}

func newLogger(s settings) *slog.Logger {
	opts := &slog.HandlerOptions{Level: s.LogLevel}
	if s.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
