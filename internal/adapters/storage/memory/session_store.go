package memory

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/PabloGalante/resq-agent/internal/domain"
)

type sessionEntry struct {
	mu      sync.Mutex
	session *domain.CallSession
	deleted atomic.Bool
}

// SessionStore keeps live calls in memory. Each call id has its own lock, so
// a slow turn on one call never blocks another.
type SessionStore struct {
	mu      sync.Mutex
	entries map[domain.CallID]*sessionEntry
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		entries: make(map[domain.CallID]*sessionEntry),
	}
}

func (s *SessionStore) Acquire(id domain.CallID, now time.Time) (*domain.CallSession, func()) {
	for {
		s.mu.Lock()
		e, ok := s.entries[id]
		if !ok {
			e = &sessionEntry{session: domain.NewCallSession(id, now)}
			s.entries[id] = e
		}
		s.mu.Unlock()

		if sess, release, ok := lockEntry(e); ok {
			return sess, release
		}
	}
}

func (s *SessionStore) Lookup(id domain.CallID) (*domain.CallSession, func(), error) {
	for {
		s.mu.Lock()
		e, ok := s.entries[id]
		s.mu.Unlock()
		if !ok {
			return nil, nil, domain.ErrSessionNotFound
		}

		if sess, release, ok := lockEntry(e); ok {
			return sess, release, nil
		}
	}
}

// Delete drops the session. A turn already holding it finishes on its copy.
func (s *SessionStore) Delete(id domain.CallID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		e.deleted.Store(true)
		delete(s.entries, id)
	}
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// lockEntry locks e unless it was deleted while we waited for it.
func lockEntry(e *sessionEntry) (*domain.CallSession, func(), bool) {
	e.mu.Lock()
	if e.deleted.Load() {
		e.mu.Unlock()
		return nil, nil, false
	}
	var once sync.Once
	return e.session, func() { once.Do(e.mu.Unlock) }, true
}
