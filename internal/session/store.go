// Package session holds ephemeral pagination state for interactive shop
// browsing. Sessions live in memory only and do not survive a restart.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/model"
)

// InactivityWindow is how long an untouched session stays alive.
const InactivityWindow = 30 * time.Minute

// Session is one user's browsing state: which snapshot they are paging
// through and where they are in it.
type Session struct {
	OwnerID  string
	Snapshot *model.Snapshot
	Section  int
	Page     int

	lastTouched time.Time
}

// Store is a bounded, thread-safe map of sessions keyed by owner.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	max      int
	now      func() time.Time
}

// New creates a Store capped at max sessions.
func New(max int) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		max:      max,
		now:      time.Now,
	}
}

// GetOrCreate returns the owner's session, creating and touching it as
// needed. Creation may push the store over capacity; the periodic sweep
// brings it back under.
func (s *Store) GetOrCreate(ownerID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[ownerID]
	if !ok {
		sess = &Session{OwnerID: ownerID}
		s.sessions[ownerID] = sess
	}
	sess.lastTouched = s.now()
	return sess
}

// Get returns the owner's session without creating one.
func (s *Store) Get(ownerID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[ownerID]
	return sess, ok
}

// Touch refreshes the owner's last-touch time if the session exists.
func (s *Store) Touch(ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[ownerID]; ok {
		sess.lastTouched = s.now()
	}
}

// End removes the owner's session. Ending an absent session is a no-op.
func (s *Store) End(ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, ownerID)
}

// EvictExpired removes sessions untouched for longer than the
// inactivity window and returns how many were removed.
func (s *Store) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-InactivityWindow)
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastTouched.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// EvictOverCapacity removes least-recently-touched sessions until the
// store holds at most max, returning how many were removed.
func (s *Store) EvictOverCapacity(max int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	over := len(s.sessions) - max
	if over <= 0 {
		return 0
	}

	byAge := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		byAge = append(byAge, sess)
	}
	sort.Slice(byAge, func(i, j int) bool {
		return byAge[i].lastTouched.Before(byAge[j].lastTouched)
	})

	for _, sess := range byAge[:over] {
		delete(s.sessions, sess.OwnerID)
	}
	return over
}

// Sweep runs the periodic eviction pass: expiry first, then capacity.
func (s *Store) Sweep() int {
	return s.EvictExpired() + s.EvictOverCapacity(s.max)
}

// Len returns the current session count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
