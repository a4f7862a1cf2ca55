package service

import (
	"context"
	"sync"
	"time"

	"signup-service/internal/domain"
)

// SessionStore keeps the provider sessions this service issued until they are
// activated and handed to the client.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*IssuedSession // key: session ID
	ttl      time.Duration
	now      func() time.Time
}

// IssuedSession is a provider session together with its bearer token.
type IssuedSession struct {
	ID          string
	Token       string
	UserID      string
	Active      bool
	IssuedAt    time.Time
	ActivatedAt time.Time
	ExpiresAt   time.Time
}

// NewSessionStore returns a store whose entries expire after ttl. Expired
// entries are swept in the background until ctx is done.
func NewSessionStore(ctx context.Context, ttl time.Duration) *SessionStore {
	store := &SessionStore{
		sessions: make(map[string]*IssuedSession),
		ttl:      ttl,
		now:      time.Now,
	}

	go store.cleanupExpired(ctx)

	return store
}

// Issue records a session created by the provider.
func (s *SessionStore) Issue(sessionID, token, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sessions[sessionID] = &IssuedSession{
		ID:        sessionID,
		Token:     token,
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
}

// Activate marks an issued session as the active one for its client.
func (s *SessionStore) Activate(sessionID string) (IssuedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || s.now().After(sess.ExpiresAt) {
		delete(s.sessions, sessionID)
		return IssuedSession{}, domain.ErrSessionNotFound
	}
	if !sess.Active {
		sess.Active = true
		sess.ActivatedAt = s.now()
	}
	return *sess, nil
}

// Active returns an activated, unexpired session.
func (s *SessionStore) Active(sessionID string) (IssuedSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok || !sess.Active || s.now().After(sess.ExpiresAt) {
		return IssuedSession{}, false
	}
	return *sess, true
}

func (s *SessionStore) cleanupExpired(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *SessionStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}
