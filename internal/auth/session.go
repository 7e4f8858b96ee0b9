package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RememberTokenTTL is the lifetime of the long-lived remember-me cookie.
// The token itself is opaque; server-side persistence of remember tokens
// is not implemented.
const RememberTokenTTL = 30 * 24 * time.Hour

// SessionStore holds live sessions in memory, keyed by opaque token.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// StoreOption configures a SessionStore.
type StoreOption func(*SessionStore)

// WithStoreClock overrides the time source (useful for tests).
func WithStoreClock(fn func() time.Time) StoreOption {
	return func(s *SessionStore) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewSessionStore creates a store whose sessions expire after ttl of
// inactivity.
func NewSessionStore(ttl time.Duration, opts ...StoreOption) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create mints a session for the principal and returns it. Expired
// sessions are swept opportunistically while the lock is held.
func (s *SessionStore) Create(p Principal) Session {
	now := s.now()
	session := Session{
		Token:         uuid.NewString(),
		PrincipalID:   p.ID,
		Username:      p.Username,
		FullName:      p.FullName,
		Role:          p.Role,
		Authenticated: true,
		CreatedAt:     now,
		LastSeen:      now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.sessions {
		if now.Sub(sess.LastSeen) > s.ttl {
			delete(s.sessions, token)
		}
	}
	s.sessions[session.Token] = &session
	return session
}

// Get resolves a token to its session, refreshing the idle timer. Expired
// tokens behave as absent.
func (s *SessionStore) Get(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return Session{}, false
	}
	if now.Sub(sess.LastSeen) > s.ttl {
		delete(s.sessions, token)
		return Session{}, false
	}
	sess.LastSeen = now
	return *sess, true
}

// Delete destroys a session. Deleting an absent token is a no-op.
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// MintRememberToken returns an opaque random token for the long-lived
// remember-me cookie.
func MintRememberToken() string {
	return uuid.NewString()
}
