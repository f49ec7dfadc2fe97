package linkauth

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Authorize is the liveness check every protected operation goes through.
// The token must verify and its session row must still be active and owned
// by the token's user. Activity is refreshed best-effort.
func (e *Engine) Authorize(ctx context.Context, token string) (_ Principal, err error) {
	if err := e.ready(); err != nil {
		return Principal{}, err
	}
	start := time.Now()
	defer func() { e.metrics.Observe(MetricAuthorizeLatency, time.Since(start)) }()

	ctx, span := e.startSpan(ctx, "Authorize")
	defer func() { endSpan(span, err) }()

	claims := e.tokens.Validate(token)
	if claims == nil {
		e.metricInc(MetricAuthorizeRejected)
		return Principal{}, ErrTokenInvalid
	}

	s, err := e.sessions.GetByToken(ctx, claims.UserID, token)
	if err != nil {
		return Principal{}, err
	}
	if s == nil {
		e.metricInc(MetricAuthorizeRejected)
		return Principal{}, ErrSessionInvalid
	}

	if !e.sessions.touch(ctx, *s) {
		e.metricInc(MetricActivityRefreshFailed)
	}
	e.metricInc(MetricAuthorizeSuccess)

	return Principal{
		UserID:    claims.UserID,
		Email:     claims.Email,
		SessionID: s.ID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

func newSessionInfo(s Session, currentHash string) SessionInfo {
	return SessionInfo{
		ID:             s.ID,
		DeviceInfo:     s.DeviceInfo,
		IPAddress:      s.IPAddress,
		Location:       s.Location,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		IsCurrent:      currentHash != "" && s.TokenHash == currentHash,
	}
}

// ListSessions returns the user's active sessions, most recent activity
// first, flagging the one bound to currentToken.
func (e *Engine) ListSessions(ctx context.Context, userID int64, currentToken string) (_ []SessionInfo, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ctx, span := e.startSpan(ctx, "ListSessions", userAttr(userID))
	defer func() { endSpan(span, err) }()

	active, err := e.sessions.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	current := ""
	if currentToken != "" {
		current = HashToken(currentToken)
	}
	out := make([]SessionInfo, 0, len(active))
	for _, s := range active {
		out = append(out, newSessionInfo(s, current))
	}
	span.SetAttributes(attribute.Int("linkauth.sessions", len(out)))
	return out, nil
}

// CurrentSession returns the active session bound to token, or
// [ErrSessionNotFound].
func (e *Engine) CurrentSession(ctx context.Context, token string) (_ SessionInfo, err error) {
	if err := e.ready(); err != nil {
		return SessionInfo{}, err
	}
	ctx, span := e.startSpan(ctx, "CurrentSession")
	defer func() { endSpan(span, err) }()

	claims := e.tokens.Validate(token)
	if claims == nil {
		return SessionInfo{}, ErrTokenInvalid
	}
	s, err := e.sessions.GetByToken(ctx, claims.UserID, token)
	if err != nil {
		return SessionInfo{}, err
	}
	if s == nil {
		return SessionInfo{}, ErrSessionNotFound
	}
	return newSessionInfo(*s, s.TokenHash), nil
}

// RevokeSession deactivates one of the user's other sessions. Unknown and
// foreign ids yield [ErrSessionNotFound]; the caller's own session yields
// [ErrRevokeCurrentSession] and stays active. Use [Engine.Logout] for it.
func (e *Engine) RevokeSession(ctx context.Context, userID, sessionID int64, currentToken string) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	ctx, span := e.startSpan(ctx, "RevokeSession", userAttr(userID), attribute.Int64("linkauth.session_id", sessionID))
	defer func() { endSpan(span, err) }()

	ok, err := e.sessions.Revoke(ctx, sessionID, userID, currentToken)
	if err == nil && !ok {
		err = ErrSessionNotFound
	}
	if err != nil {
		e.emitAudit(ctx, auditRecord{eventType: auditEventSessionRevoked, userID: userID, sessionID: sessionID, err: err})
		return err
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditRecord{eventType: auditEventSessionRevoked, success: true, userID: userID, sessionID: sessionID})
	return nil
}

// RevokeAllExceptCurrent deactivates every active session of the user other
// than the one bound to currentToken and returns how many it deactivated.
func (e *Engine) RevokeAllExceptCurrent(ctx context.Context, userID int64, currentToken string) (_ int, err error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	ctx, span := e.startSpan(ctx, "RevokeAllExceptCurrent", userAttr(userID))
	defer func() { endSpan(span, err) }()

	n, err := e.sessions.RevokeAllExceptCurrent(ctx, userID, currentToken)
	if err != nil {
		e.logger.ErrorContext(ctx, "bulk session revoke stopped", slog.Int64("user_id", userID), slog.Int("revoked", n), slog.Any("error", err))
		e.emitAudit(ctx, auditRecord{eventType: auditEventSessionsRevokedAll, userID: userID, err: err})
		return n, err
	}

	e.metricInc(MetricLogoutOthers)
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventSessionsRevokedAll,
		success:   true,
		userID:    userID,
		metadata:  map[string]string{"revoked": strconv.Itoa(n)},
	})
	return n, nil
}

// Logout deactivates the session bound to token. Logging out a session
// that is already inactive succeeds.
func (e *Engine) Logout(ctx context.Context, userID int64, token string) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	ctx, span := e.startSpan(ctx, "Logout", userAttr(userID))
	defer func() { endSpan(span, err) }()

	ok, err := e.sessions.RevokeCurrent(ctx, userID, token)
	if err != nil {
		return err
	}
	if ok {
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditRecord{eventType: auditEventLogout, success: true, userID: userID})
	}
	return nil
}
