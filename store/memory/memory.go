// Package memory is an in-process CredentialStore for tests, examples and
// single-node development.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/MrEthical07/linkauth"
)

var _ linkauth.CredentialStore = (*Store)(nil)

// Store keeps users and sessions in maps guarded by one mutex. Values are
// copied in and out, so callers never share state with the store.
type Store struct {
	mu sync.Mutex

	users       map[int64]linkauth.User
	byEmail     map[string]int64
	nextUserID  int64
	sessions    map[int64]linkauth.Session
	byTokenHash map[string]int64
	nextSession int64

	faults map[string]error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:       make(map[int64]linkauth.User),
		byEmail:     make(map[string]int64),
		sessions:    make(map[int64]linkauth.Session),
		byTokenHash: make(map[string]int64),
		faults:      make(map[string]error),
	}
}

// Fail makes every later call of the named method (e.g. "InsertSession")
// return err. A nil err clears the fault.
func (s *Store) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, method)
		return
	}
	s.faults[method] = err
}

func (s *Store) fault(method string) error {
	return s.faults[method]
}

func (s *Store) FindUserByID(_ context.Context, id int64) (linkauth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("FindUserByID"); err != nil {
		return linkauth.User{}, err
	}

	u, ok := s.users[id]
	if !ok {
		return linkauth.User{}, linkauth.ErrRecordNotFound
	}
	return u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (linkauth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("FindUserByEmail"); err != nil {
		return linkauth.User{}, err
	}

	id, ok := s.byEmail[email]
	if !ok {
		return linkauth.User{}, linkauth.ErrRecordNotFound
	}
	return s.users[id], nil
}

func (s *Store) InsertUser(_ context.Context, u linkauth.User) (linkauth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("InsertUser"); err != nil {
		return linkauth.User{}, err
	}

	if _, taken := s.byEmail[u.Email]; taken {
		return linkauth.User{}, linkauth.ErrDuplicateEmail
	}
	s.nextUserID++
	u.ID = s.nextUserID
	s.users[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u linkauth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UpdateUser"); err != nil {
		return err
	}

	old, ok := s.users[u.ID]
	if !ok {
		return linkauth.ErrRecordNotFound
	}
	if old.Email != u.Email {
		if _, taken := s.byEmail[u.Email]; taken {
			return linkauth.ErrDuplicateEmail
		}
		delete(s.byEmail, old.Email)
		s.byEmail[u.Email] = u.ID
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("DeleteUser"); err != nil {
		return err
	}

	u, ok := s.users[id]
	if !ok {
		return linkauth.ErrRecordNotFound
	}
	delete(s.byEmail, u.Email)
	delete(s.users, id)
	return nil
}

func (s *Store) InsertSession(_ context.Context, sess linkauth.Session) (linkauth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("InsertSession"); err != nil {
		return linkauth.Session{}, err
	}

	s.nextSession++
	sess.ID = s.nextSession
	s.sessions[sess.ID] = sess
	s.byTokenHash[sess.TokenHash] = sess.ID
	return sess, nil
}

func (s *Store) UpdateSession(_ context.Context, sess linkauth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UpdateSession"); err != nil {
		return err
	}

	if _, ok := s.sessions[sess.ID]; !ok {
		return linkauth.ErrRecordNotFound
	}
	s.sessions[sess.ID] = sess
	return nil
}

func (s *Store) FindSessionByTokenHash(_ context.Context, tokenHash string) (linkauth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("FindSessionByTokenHash"); err != nil {
		return linkauth.Session{}, err
	}

	id, ok := s.byTokenHash[tokenHash]
	if !ok {
		return linkauth.Session{}, linkauth.ErrRecordNotFound
	}
	return s.sessions[id], nil
}

func (s *Store) FindSessionByID(_ context.Context, id int64) (linkauth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("FindSessionByID"); err != nil {
		return linkauth.Session{}, err
	}

	sess, ok := s.sessions[id]
	if !ok {
		return linkauth.Session{}, linkauth.ErrRecordNotFound
	}
	return sess, nil
}

func (s *Store) ListSessionsByUser(_ context.Context, userID int64) ([]linkauth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("ListSessionsByUser"); err != nil {
		return nil, err
	}

	var out []linkauth.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	slices.SortFunc(out, func(a, b linkauth.Session) int {
		if c := b.LastActivityAt.Compare(a.LastActivityAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *Store) DeleteSessionsByUser(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("DeleteSessionsByUser"); err != nil {
		return err
	}

	for id, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.byTokenHash, sess.TokenHash)
			delete(s.sessions, id)
		}
	}
	return nil
}

// Len reports the number of users and session rows.
func (s *Store) Len() (users, sessions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), len(s.sessions)
}
