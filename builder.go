package linkauth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/linkauth/internal/audit"
	"github.com/MrEthical07/linkauth/jwt"
	"github.com/MrEthical07/linkauth/password"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Builder assembles an [Engine].
//
// Builder instances are intended to be configured during initialization and
// used for exactly one Build call.
type Builder struct {
	config Config

	users     UserStore
	sessions  SessionStore
	providers []ExternalIdentityProvider

	auditSink      AuditSink
	logger         *slog.Logger
	tracerProvider trace.TracerProvider

	// now overrides the clock of every component. Tests only.
	now func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig]. A signing key must
// still be supplied through WithConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig replaces the whole configuration; start from [DefaultConfig]
// or [LoadConfigFromEnv] to keep the defaults.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore uses one store for both users and sessions.
func (b *Builder) WithStore(store CredentialStore) *Builder {
	b.users = store
	b.sessions = store
	return b
}

// WithUserStore sets the user store. It overrides WithStore for users.
func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

// WithSessionStore sets the session store. It overrides WithStore for
// sessions, e.g. to keep sessions in Redis and users in SQL.
func (b *Builder) WithSessionStore(sessions SessionStore) *Builder {
	b.sessions = sessions
	return b
}

// WithIdentityProvider registers an external identity provider under its
// Name. Registering the same name twice fails Build.
func (b *Builder) WithIdentityProvider(p ExternalIdentityProvider) *Builder {
	b.providers = append(b.providers, p)
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// The sink only receives events when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for best-effort failures. The default
// discards everything.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithTracerProvider sets where Engine spans go. The default is the global
// provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(v bool) *Builder {
	b.config.Metrics.Enabled = v
	return b
}

// WithLatencyHistograms toggles the Authorize latency histogram.
func (b *Builder) WithLatencyHistograms(v bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = v
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration and wires the components. A missing or
// short signing key yields [ErrSigningKeyMissing]; other problems are
// configuration errors. A Builder can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, configError("builder already used")
	}

	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil || b.sessions == nil {
		return nil, configError("user and session stores are required")
	}

	providers := make(map[string]ExternalIdentityProvider, len(b.providers))
	for _, p := range b.providers {
		if p == nil {
			return nil, configError("nil identity provider")
		}
		name := strings.ToLower(strings.TrimSpace(p.Name()))
		if kind, err := ParseAuthProvider(name); err != nil || kind == ProviderLocal {
			return nil, configError(fmt.Sprintf("unsupported identity provider %q", p.Name()))
		}
		if _, dup := providers[name]; dup {
			return nil, configError(fmt.Sprintf("identity provider %q registered twice", name))
		}
		providers[name] = p
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	hasher, err := password.NewArgon2(b.config.Password.hasherConfig())
	if err != nil {
		return nil, configError("password: " + err.Error())
	}

	jwtCfg := b.config.JWT.managerConfig()
	jwtCfg.Now = now
	manager, err := jwt.NewManager(jwtCfg)
	if err != nil {
		if errors.Is(err, jwt.ErrSecretTooShort) {
			return nil, ErrSigningKeyMissing
		}
		return nil, configError(err.Error())
	}

	sink := b.auditSink
	if sink == nil {
		sink = NoOpSink{}
	}

	e := &Engine{
		config:    b.config,
		identity:  newIdentityResolver(b.users, hasher, b.config.Account, logger, now),
		tokens:    newTokenIssuer(manager),
		sessions:  newSessionRegistry(b.sessions, b.config.Session, logger, now),
		twoFactor: newTwoFactorManager(b.users, b.config.TOTP, now),
		providers: providers,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    b.config.Audit.Enabled,
			BufferSize: b.config.Audit.BufferSize,
			DropIfFull: b.config.Audit.DropIfFull,
		}, sink, logger),
		metrics: NewMetrics(b.config.Metrics),
		logger:  logger,
		tracer:  tp.Tracer(tracerName),
		now:     now,
	}

	b.built = true
	return e, nil
}
