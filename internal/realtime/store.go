package realtime

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrDuplicateSession reports a Create for an id already present.
	ErrDuplicateSession = errors.New("session id already exists")
	// ErrUnknownSession reports a lookup for an id the store does not hold.
	ErrUnknownSession = errors.New("unknown session id")
)

func randomID() string { return uuid.NewString() }

// Store maps session ids to live sessions. It is safe for concurrent
// use; each connection goroutine creates, reads and removes its own
// entry while status handlers read counts from other goroutines.
type Store struct {
	mu             sync.RWMutex
	sessions       map[string]*Session
	maxBufferBytes int
}

func NewStore(maxBufferBytes int) *Store {
	return &Store{
		sessions:       make(map[string]*Session),
		maxBufferBytes: maxBufferBytes,
	}
}

// Create registers a new session under id.
func (s *Store) Create(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		return nil, ErrDuplicateSession
	}
	sess := newSession(id, s.maxBufferBytes)
	s.sessions[id] = sess
	return sess, nil
}

// Get looks up a live session.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	return sess, nil
}

// Remove drops a session. Removing an absent id is a no-op so the
// disconnect path stays idempotent.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// IDs returns the live session ids in stable order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
