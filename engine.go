package linkauth

import (
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/linkauth/internal/audit"
	"go.opentelemetry.io/otel/trace"
)

// Engine orchestrates registration, login, session liveness and 2FA.
//
// Engine instances are built once through [Builder.Build] and hold only
// immutable configuration and stateless collaborators; every method is safe
// for concurrent use.
type Engine struct {
	config    Config
	identity  *IdentityResolver
	tokens    *TokenIssuer
	sessions  *SessionRegistry
	twoFactor *TwoFactorManager
	providers map[string]ExternalIdentityProvider
	audit     *audit.Dispatcher
	metrics   *Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	closed    atomic.Bool
}

// Close stops the audit dispatcher after draining buffered events. Further
// calls to Engine methods return [ErrEngineNotReady].
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closed.Store(true)
	e.audit.Close()
}

func (e *Engine) ready() error {
	if e == nil || e.closed.Load() {
		return ErrEngineNotReady
	}
	return nil
}

// Config returns a copy of the configuration the engine was built with.
// The signing keys are redacted.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	cfg := e.config
	cfg.JWT.SigningKey = redact(cfg.JWT.SigningKey)
	cfg.JWT.PreviousSigningKey = redact(cfg.JWT.PreviousSigningKey)
	return cfg
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return strings.Repeat("*", 8)
}

// Identity exposes the account component for callers that need it directly.
func (e *Engine) Identity() *IdentityResolver { return e.identity }

// Tokens exposes the token component.
func (e *Engine) Tokens() *TokenIssuer { return e.tokens }

// Sessions exposes the session component.
func (e *Engine) Sessions() *SessionRegistry { return e.sessions }

// TwoFactor exposes the 2FA component.
func (e *Engine) TwoFactor() *TwoFactorManager { return e.twoFactor }
