package store

import (
	"context"
	"sync"
	"time"
)

var _ TokenStore = (*MemoryStore)(nil)

// MemoryStore keeps sessions in a map, for a single mock-server process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Set stores a session.
func (s *MemoryStore) Set(_ context.Context, jti string, uid string, expiry time.Time) error {
	if jti == "" {
		return errEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[jti] = &Session{UID: uid, Expiry: expiry, Created: time.Now()}
	return nil
}

// Get returns the session, expired sessions are removed on read.
func (s *MemoryStore) Get(_ context.Context, jti string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[jti]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	if sess.IsExpired() {
		s.mu.Lock()
		delete(s.sessions, jti)
		s.mu.Unlock()
		return nil, ErrSessionExpired
	}

	cp := *sess
	return &cp, nil
}

// Delete revokes a session, deleting an unknown id is not an error.
func (s *MemoryStore) Delete(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, jti)
	return nil
}

// Count returns the number of stored sessions, expired ones included until they are read or cleaned.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

// Cleanup removes expired sessions and returns how many were removed.
func (s *MemoryStore) Cleanup(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	now := time.Now()
	for jti, sess := range s.sessions {
		if now.After(sess.Expiry) {
			delete(s.sessions, jti)
			cleaned++
		}
	}
	return cleaned
}
