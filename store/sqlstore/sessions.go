package sqlstore

import (
	"context"

	"github.com/MrEthical07/linkauth"
)

const sessionColumns = `id, user_id, token_hash, device_info, ip_address, location,
	created_at, last_activity_at, is_active`

type sessionRow struct {
	ID             int64  `db:"id"`
	UserID         int64  `db:"user_id"`
	TokenHash      string `db:"token_hash"`
	DeviceInfo     string `db:"device_info"`
	IPAddress      string `db:"ip_address"`
	Location       string `db:"location"`
	CreatedAt      int64  `db:"created_at"`
	LastActivityAt int64  `db:"last_activity_at"`
	IsActive       bool   `db:"is_active"`
}

func (r sessionRow) toSession() linkauth.Session {
	return linkauth.Session{
		ID:             r.ID,
		UserID:         r.UserID,
		TokenHash:      r.TokenHash,
		DeviceInfo:     r.DeviceInfo,
		IPAddress:      r.IPAddress,
		Location:       r.Location,
		CreatedAt:      fromNanos(r.CreatedAt),
		LastActivityAt: fromNanos(r.LastActivityAt),
		IsActive:       r.IsActive,
	}
}

func (s *Store) InsertSession(ctx context.Context, sess linkauth.Session) (linkauth.Session, error) {
	query := s.rebind(`INSERT INTO sessions (user_id, token_hash, device_info, ip_address, location,
		created_at, last_activity_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err := s.db.QueryRowxContext(ctx, query,
		sess.UserID, sess.TokenHash, sess.DeviceInfo, sess.IPAddress, sess.Location,
		toNanos(sess.CreatedAt), toNanos(sess.LastActivityAt), sess.IsActive,
	).Scan(&sess.ID)
	if err != nil {
		return linkauth.Session{}, translate(err, nil)
	}
	return sess, nil
}

// UpdateSession rewrites the mutable columns. Ownership and token hash never
// change after insert.
func (s *Store) UpdateSession(ctx context.Context, sess linkauth.Session) error {
	query := s.rebind(`UPDATE sessions SET device_info = ?, ip_address = ?, location = ?,
		last_activity_at = ?, is_active = ?
		WHERE id = ?`)

	res, err := s.db.ExecContext(ctx, query,
		sess.DeviceInfo, sess.IPAddress, sess.Location,
		toNanos(sess.LastActivityAt), sess.IsActive,
		sess.ID,
	)
	if err != nil {
		return translate(err, nil)
	}
	return affectedOne(res)
}

func (s *Store) getSession(ctx context.Context, where string, arg any) (linkauth.Session, error) {
	var row sessionRow
	query := s.rebind(`SELECT ` + sessionColumns + ` FROM sessions WHERE ` + where + ` = ?`)
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		return linkauth.Session{}, translate(err, nil)
	}
	return row.toSession(), nil
}

func (s *Store) FindSessionByTokenHash(ctx context.Context, tokenHash string) (linkauth.Session, error) {
	return s.getSession(ctx, "token_hash", tokenHash)
}

func (s *Store) FindSessionByID(ctx context.Context, id int64) (linkauth.Session, error) {
	return s.getSession(ctx, "id", id)
}

func (s *Store) ListSessionsByUser(ctx context.Context, userID int64) ([]linkauth.Session, error) {
	var rows []sessionRow
	query := s.rebind(`SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = ?
		ORDER BY last_activity_at DESC, id DESC`)
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, translate(err, nil)
	}

	sessions := make([]linkauth.Session, len(rows))
	for i, row := range rows {
		sessions[i] = row.toSession()
	}
	return sessions, nil
}

// DeleteSessionsByUser is idempotent; deleting zero rows is not an error.
func (s *Store) DeleteSessionsByUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM sessions WHERE user_id = ?`), userID)
	return translate(err, nil)
}
