package session

import (
	"sync"
	"time"

	"session-gate/internal/session/domain"
)

// Store is the in-memory map of live sessions keyed by raw session id. One mutex guards every access;
// values are copied in and out so callers never share a *Session with the map.
//
// A cache fill from the durable row runs between BeginFill and EndFill. Evictions made while fills are
// in flight leave tombstones, and EndFill refuses a session evicted after its fill began, so a revoke or
// destroy racing a fill cannot put the session back.
type Store struct {
	mu       sync.Mutex
	sessions map[string]domain.Session

	epoch       uint64
	fills       int
	goneIDs     map[string]uint64
	revokedUser map[int64]uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		sessions:    make(map[string]domain.Session),
		goneIDs:     make(map[string]uint64),
		revokedUser: make(map[int64]uint64),
	}
}

// Get returns a copy of the cached session for id.
func (s *Store) Get(id string) (*domain.Session, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return &sess, true
}

// Put caches a copy of sess under sess.SessionID. The refresh token is never cached.
func (s *Store) Put(sess *domain.Session) {
	s.mu.Lock()
	s.put(sess)
	s.mu.Unlock()
}

// Replace overwrites the cached copy of sess only while its id is still cached. It reports false when
// the session has been evicted.
func (s *Store) Replace(sess *domain.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.SessionID]; !ok {
		return false
	}
	s.put(sess)
	return true
}

// BeginFill marks the start of a cache fill and returns the epoch EndFill checks against.
func (s *Store) BeginFill() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fills++
	return s.epoch
}

// EndFill closes a fill started at since. A non-nil sess is cached unless its id or its user was evicted
// after since; it reports whether sess was cached.
func (s *Store) EndFill(sess *domain.Session, since uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := sess != nil && s.goneIDs[sess.SessionID] <= since && s.revokedUser[sess.UserID] <= since
	if ok {
		s.put(sess)
	}
	s.fills--
	if s.fills == 0 {
		clear(s.goneIDs)
		clear(s.revokedUser)
	}
	return ok
}

// Remove evicts id and returns what was cached.
func (s *Store) Remove(id string) (*domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	if s.fills > 0 {
		s.epoch++
		s.goneIDs[id] = s.epoch
	}
	if !ok {
		return nil, false
	}
	return &sess, true
}

// RemoveUser evicts every session of userID and returns them.
func (s *Store) RemoveUser(userID int64) []domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []domain.Session
	for id, sess := range s.sessions {
		if sess.UserID == userID {
			removed = append(removed, sess)
			delete(s.sessions, id)
		}
	}
	if s.fills > 0 {
		s.epoch++
		s.revokedUser[userID] = s.epoch
	}
	return removed
}

// Sweep evicts sessions expired at now and returns them.
func (s *Store) Sweep(now time.Time) []domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []domain.Session
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			removed = append(removed, sess)
			delete(s.sessions, id)
		}
	}
	return removed
}

// Len returns the number of cached sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) put(sess *domain.Session) {
	cp := *sess
	cp.RefreshToken = ""
	s.sessions[cp.SessionID] = cp
}
