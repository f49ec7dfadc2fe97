package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/linkauth"
)

type principalContextKey struct{}
type tokenContextKey struct{}

// Message bodies written on rejection.
const (
	MessageUnauthorized   = "unauthorized"
	MessageSessionInvalid = "Session expired or invalidated. Please login again."
	MessageUnavailable    = "service temporarily unavailable"
)

// PrincipalFromContext returns the principal stored by [Guard] or [Optional].
func PrincipalFromContext(ctx context.Context) (linkauth.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(linkauth.Principal)
	return p, ok
}

// TokenFromContext returns the bearer token that authorized the request.
// Handlers need it to mark the current session in listings and to log out.
func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenContextKey{}).(string)
	return t, ok && t != ""
}

// Option configures Guard and Optional.
type Option func(*guardConfig)

type guardConfig struct {
	logger *slog.Logger
}

// WithLogger logs rejected sessions at warn level.
func WithLogger(l *slog.Logger) Option {
	return func(c *guardConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

func newGuardConfig(opts []Option) guardConfig {
	c := guardConfig{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Guard rejects requests without a live session. Invalid or missing tokens
// get 401 "unauthorized"; a verified token whose session was revoked gets
// 401 with [MessageSessionInvalid]; store outages get 503.
func Guard(engine *linkauth.Engine, opts ...Option) func(http.Handler) http.Handler {
	cfg := newGuardConfig(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				reject(w, http.StatusUnauthorized, MessageUnauthorized)
				return
			}
			authorize(engine, cfg, w, r, token, next)
		})
	}
}

// Optional authorizes requests that carry a bearer token and passes
// anonymous ones through untouched.
func Optional(engine *linkauth.Engine, opts ...Option) func(http.Handler) http.Handler {
	cfg := newGuardConfig(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			authorize(engine, cfg, w, r, token, next)
		})
	}
}

func authorize(engine *linkauth.Engine, cfg guardConfig, w http.ResponseWriter, r *http.Request, token string, next http.Handler) {
	p, err := engine.Authorize(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, linkauth.ErrSessionInvalid):
			cfg.logger.WarnContext(r.Context(), "rejected request with invalid session",
				"ip", clientIP(r), "path", r.URL.Path)
			reject(w, http.StatusUnauthorized, MessageSessionInvalid)
		case errors.Is(err, linkauth.ErrEngineNotReady), linkauth.KindOf(err) == linkauth.KindUnavailable:
			cfg.logger.ErrorContext(r.Context(), "authorization unavailable", "error", err)
			reject(w, http.StatusServiceUnavailable, MessageUnavailable)
		default:
			reject(w, http.StatusUnauthorized, MessageUnauthorized)
		}
		return
	}

	ctx := context.WithValue(r.Context(), principalContextKey{}, p)
	ctx = context.WithValue(ctx, tokenContextKey{}, token)
	next.ServeHTTP(w, r.WithContext(ctx))
}

func reject(w http.ResponseWriter, status int, message string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// RequestInfo attaches the User-Agent and client IP to the request context
// for session bookkeeping. Put chi's middleware.RealIP in front of it when
// the service runs behind a trusted proxy.
func RequestInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := linkauth.WithUserAgent(r.Context(), r.UserAgent())
		ctx = linkauth.WithClientIP(ctx, clientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
