package rest

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/uwb-tracker/internal/config"
)

// Sessions keeps issued session tokens in memory.
type Sessions struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.Mutex
	expires map[string]time.Time
}

// NewSessions creates a session table with the given lifetime.
func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = config.DefaultSessionTTL
	}

	return &Sessions{
		ttl:     ttl,
		clock:   time.Now,
		expires: make(map[string]time.Time),
	}
}

// Issue creates a new token.
func (s *Sessions) Issue() string {
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	s.prune(now)
	s.expires[token] = now.Add(s.ttl)

	return token
}

// Valid reports whether token is known and not expired.
func (s *Sessions) Valid(token string) bool {
	if token == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expires, ok := s.expires[token]
	if !ok {
		return false
	}

	if !s.clock().Before(expires) {
		delete(s.expires, token)
		return false
	}

	return true
}

// Revoke forgets token.
func (s *Sessions) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.expires, token)
}

// TTL returns the session lifetime.
func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

func (s *Sessions) prune(now time.Time) {
	for token, expires := range s.expires {
		if !now.Before(expires) {
			delete(s.expires, token)
		}
	}
}
