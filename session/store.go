package session

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/MrEthical07/linkauth"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

var _ linkauth.SessionStore = (*Store)(nil)

// Store is a Redis-backed [linkauth.SessionStore].
//
// Layout, for prefix p:
//
//	p:seq          INCR counter for session ids
//	p:s:<id>       encoded record (see [Encode])
//	p:t:<hash>     session id for a token hash
//	p:u:<userID>   set of the user's session ids
//
// Records and token indexes expire after the retention period when one is
// set; the per-user set is pruned lazily on read.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewStore creates a session [Store] backed by the given Redis client.
// retention should be at least the token TTL; zero keeps rows forever.
func NewStore(client redis.UniversalClient, prefix string, retention time.Duration) *Store {
	if prefix == "" {
		prefix = "la"
	}
	return &Store{
		redis:     client,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *Store) seqKey() string {
	return s.prefix + ":seq"
}

func (s *Store) key(id int64) string {
	return s.prefix + ":s:" + strconv.FormatInt(id, 10)
}

func (s *Store) tokenKey(hash string) string {
	return s.prefix + ":t:" + hash
}

func (s *Store) userKey(userID int64) string {
	return s.prefix + ":u:" + strconv.FormatInt(userID, 10)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

// InsertSession assigns the next id and writes the record, its token index
// and its user-set membership in one MULTI block.
//
//	Performance: 2 round trips (INCR, then MULTI/EXEC).
func (s *Store) InsertSession(ctx context.Context, sess linkauth.Session) (linkauth.Session, error) {
	id, err := s.redis.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return linkauth.Session{}, unavailable(err)
	}
	sess.ID = id

	data, err := Encode(sess)
	if err != nil {
		return linkauth.Session{}, err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(id), data, s.retention)
		pipe.Set(ctx, s.tokenKey(sess.TokenHash), id, s.retention)
		pipe.SAdd(ctx, s.userKey(sess.UserID), id)
		return nil
	})
	if err != nil {
		return linkauth.Session{}, unavailable(err)
	}
	return sess, nil
}

// UpdateSession overwrites an existing record and keeps its expiry.
func (s *Store) UpdateSession(ctx context.Context, sess linkauth.Session) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	err = s.redis.SetArgs(ctx, s.key(sess.ID), data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return linkauth.ErrRecordNotFound
		}
		return unavailable(err)
	}
	return nil
}

// FindSessionByTokenHash resolves the token index, then the record.
func (s *Store) FindSessionByTokenHash(ctx context.Context, tokenHash string) (linkauth.Session, error) {
	id, err := s.redis.Get(ctx, s.tokenKey(tokenHash)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return linkauth.Session{}, linkauth.ErrRecordNotFound
		}
		return linkauth.Session{}, unavailable(err)
	}
	return s.FindSessionByID(ctx, id)
}

// FindSessionByID reads one record.
//
//	Performance: 1 Redis GET.
func (s *Store) FindSessionByID(ctx context.Context, id int64) (linkauth.Session, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return linkauth.Session{}, linkauth.ErrRecordNotFound
		}
		return linkauth.Session{}, unavailable(err)
	}
	return Decode(data)
}

// loadUser reads every live record in the user's set. Ids whose record has
// expired are returned separately.
func (s *Store) loadUser(ctx context.Context, userID int64) ([]linkauth.Session, []string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil, nil
		}
		return nil, nil, unavailable(err)
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.prefix + ":s:" + id
	}
	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, unavailable(err)
	}

	sessions := make([]linkauth.Session, 0, len(values))
	var stale []string
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		sess, err := Decode([]byte(raw))
		if err != nil {
			return nil, nil, fmt.Errorf("session %s: %w", ids[i], err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, stale, nil
}

// ListSessionsByUser returns active and inactive records, newest activity
// first, and prunes ids whose record has expired.
func (s *Store) ListSessionsByUser(ctx context.Context, userID int64) ([]linkauth.Session, error) {
	sessions, stale, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(stale) > 0 {
		members := make([]any, len(stale))
		for i, id := range stale {
			members[i] = id
		}
		if err := s.redis.SRem(ctx, s.userKey(userID), members...).Err(); err != nil {
			return nil, unavailable(err)
		}
	}

	slices.SortFunc(sessions, func(a, b linkauth.Session) int {
		if c := b.LastActivityAt.Compare(a.LastActivityAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return sessions, nil
}

// DeleteSessionsByUser removes every record of the user with its token
// indexes and the user set.
//
// ATOMICITY NOTE: the set is read before the MULTI block, so a session
// inserted in between survives. The engine only calls this while deleting
// the account, after which no new session can be created for the user.
func (s *Store) DeleteSessionsByUser(ctx context.Context, userID int64) error {
	sessions, stale, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	keys := make([]string, 0, 2*len(sessions)+len(stale)+1)
	for _, sess := range sessions {
		keys = append(keys, s.key(sess.ID), s.tokenKey(sess.TokenHash))
	}
	for _, id := range stale {
		keys = append(keys, s.prefix+":s:"+id)
	}
	keys = append(keys, s.userKey(userID))

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Ping measures one Redis round trip.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, unavailable(err)
	}
	return time.Since(start), nil
}
