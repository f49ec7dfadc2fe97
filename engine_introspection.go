package linkauth

import (
	"context"
	"time"
)

// Pinger is implemented by stores that can report a round trip. The Redis
// session store and the SQL store both do.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// BackendHealth is the result of pinging one store. Stores that do not
// implement [Pinger] are reported available with zero latency.
type BackendHealth struct {
	Available bool
	Latency   time.Duration
	Error     string
}

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	Users    BackendHealth
	Sessions BackendHealth
}

// OK reports whether both stores answered.
func (h HealthStatus) OK() bool {
	return h.Users.Available && h.Sessions.Available
}

func ping(ctx context.Context, store any) BackendHealth {
	p, ok := store.(Pinger)
	if !ok {
		return BackendHealth{Available: true}
	}
	latency, err := p.Ping(ctx)
	if err != nil {
		return BackendHealth{Error: err.Error()}
	}
	return BackendHealth{Available: true, Latency: latency}
}

// Health pings the user and session stores. A nil or closed engine reports
// both unavailable.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if err := e.ready(); err != nil {
		down := BackendHealth{Error: err.Error()}
		return HealthStatus{Users: down, Sessions: down}
	}
	return HealthStatus{
		Users:    ping(ctx, e.identity.users),
		Sessions: ping(ctx, e.sessions.sessions),
	}
}

// ActiveSessionCount describes the activesessioncount operation and its observable behavior.
//
// ActiveSessionCount counts the user's active sessions across all devices.
func (e *Engine) ActiveSessionCount(ctx context.Context, userID int64) (_ int, err error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	ctx, span := e.startSpan(ctx, "ActiveSessionCount", userAttr(userID))
	defer func() { endSpan(span, err) }()

	list, err := e.sessions.ListActive(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}
