package linkauth

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"slices"
	"time"
)

// HashToken returns the hex SHA-256 digest under which a token's session
// row is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// SessionRegistry records issued tokens as revocable sessions. Rows are
// deactivated, never deleted, and never reactivated.
type SessionRegistry struct {
	sessions         SessionStore
	activityInterval time.Duration
	logger           *slog.Logger
	now              func() time.Time
}

func newSessionRegistry(sessions SessionStore, cfg SessionConfig, logger *slog.Logger, now func() time.Time) *SessionRegistry {
	return &SessionRegistry{
		sessions:         sessions,
		activityInterval: cfg.ActivityInterval,
		logger:           logger,
		now:              now,
	}
}

// Create records a new active session for token.
func (r *SessionRegistry) Create(ctx context.Context, userID int64, token string, req RequestInfo) (Session, error) {
	now := r.now().UTC()
	s, err := r.sessions.InsertSession(ctx, Session{
		UserID:         userID,
		TokenHash:      HashToken(token),
		DeviceInfo:     req.DeviceInfo,
		IPAddress:      req.IPAddress,
		Location:       req.Location,
		CreatedAt:      now,
		LastActivityAt: now,
		IsActive:       true,
	})
	if err != nil {
		return Session{}, storeErr(err, nil)
	}
	return s, nil
}

// ListActive returns the user's active sessions, most recently used first.
func (r *SessionRegistry) ListActive(ctx context.Context, userID int64) ([]Session, error) {
	all, err := r.sessions.ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err, nil)
	}

	active := make([]Session, 0, len(all))
	for _, s := range all {
		if s.IsActive && s.UserID == userID {
			active = append(active, s)
		}
	}
	slices.SortStableFunc(active, func(a, b Session) int {
		return cmp.Compare(b.LastActivityAt.UnixNano(), a.LastActivityAt.UnixNano())
	})
	return active, nil
}

// GetByToken returns the session for token only if it is active and owned
// by userID.
func (r *SessionRegistry) GetByToken(ctx context.Context, userID int64, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}
	s, err := r.sessions.FindSessionByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeErr(err, nil)
	}
	if !s.IsActive || s.UserID != userID {
		return nil, nil
	}
	return &s, nil
}

// GetByID returns the session if userID owns it, active or not.
func (r *SessionRegistry) GetByID(ctx context.Context, sessionID, userID int64) (*Session, error) {
	s, err := r.sessions.FindSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeErr(err, nil)
	}
	if s.UserID != userID {
		return nil, nil
	}
	return &s, nil
}

// Revoke deactivates one of the user's sessions. It reports false when the
// session does not exist or belongs to someone else, and refuses the
// session bound to currentToken with [ErrRevokeCurrentSession].
func (r *SessionRegistry) Revoke(ctx context.Context, sessionID, userID int64, currentToken string) (bool, error) {
	s, err := r.GetByID(ctx, sessionID, userID)
	if err != nil || s == nil {
		return false, err
	}
	if currentToken != "" && s.TokenHash == HashToken(currentToken) {
		return false, ErrRevokeCurrentSession
	}
	if !s.IsActive {
		return true, nil
	}
	return true, r.deactivate(ctx, *s)
}

// RevokeCurrent deactivates the session bound to token. It reports false
// when there is no active session for it.
func (r *SessionRegistry) RevokeCurrent(ctx context.Context, userID int64, token string) (bool, error) {
	s, err := r.GetByToken(ctx, userID, token)
	if err != nil || s == nil {
		return false, err
	}
	return true, r.deactivate(ctx, *s)
}

// RevokeAllExceptCurrent deactivates every other active session of the
// user and returns how many were deactivated.
func (r *SessionRegistry) RevokeAllExceptCurrent(ctx context.Context, userID int64, currentToken string) (int, error) {
	active, err := r.ListActive(ctx, userID)
	if err != nil {
		return 0, err
	}

	keep := ""
	if currentToken != "" {
		keep = HashToken(currentToken)
	}

	revoked := 0
	for _, s := range active {
		if s.TokenHash == keep {
			continue
		}
		if err := r.deactivate(ctx, s); err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}

// RefreshActivity stamps LastActivityAt on the active session for token.
// Failures are logged and reported as false, never returned.
func (r *SessionRegistry) RefreshActivity(ctx context.Context, userID int64, token string) bool {
	s, err := r.GetByToken(ctx, userID, token)
	if err != nil {
		r.logger.WarnContext(ctx, "session activity lookup failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return false
	}
	if s == nil {
		return false
	}
	return r.touch(ctx, *s)
}

func (r *SessionRegistry) touch(ctx context.Context, s Session) bool {
	now := r.now().UTC()
	if r.activityInterval > 0 && now.Sub(s.LastActivityAt) < r.activityInterval {
		return true
	}

	s.LastActivityAt = now
	if err := r.sessions.UpdateSession(ctx, s); err != nil {
		r.logger.WarnContext(ctx, "session activity update failed",
			slog.Int64("session_id", s.ID), slog.Int64("user_id", s.UserID), slog.Any("error", err))
		return false
	}
	return true
}

func (r *SessionRegistry) deactivate(ctx context.Context, s Session) error {
	s.IsActive = false
	if err := r.sessions.UpdateSession(ctx, s); err != nil {
		return storeErr(err, ErrSessionNotFound)
	}
	return nil
}

// DeleteAll removes every session row of the user. Used on account deletion.
func (r *SessionRegistry) DeleteAll(ctx context.Context, userID int64) error {
	return storeErr(r.sessions.DeleteSessionsByUser(ctx, userID), nil)
}
