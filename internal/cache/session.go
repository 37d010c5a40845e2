package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session identifies one reporting run.
type Session struct {
	Token     string
	ScopeID   string
	StartedAt time.Time
}

// Sessions holds the single current session. Cache entries stamped with any other
// token are treated as misses, whatever their age.
type Sessions struct {
	mu      sync.RWMutex
	current Session
	counter uint64
	now     func() time.Time
}

// NewSessions creates a registry with an initial "default" session.
func NewSessions() *Sessions {
	s := &Sessions{now: time.Now}
	s.Start("default")
	return s
}

// Start replaces the current session. The new token always differs from every
// token this registry issued before.
func (s *Sessions) Start(scopeID string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	s.current = Session{
		Token:     fmt.Sprintf("%s:%d:%s", scopeID, s.counter, uuid.NewString()),
		ScopeID:   scopeID,
		StartedAt: s.now(),
	}
	return s.current
}

// Current returns the current session.
func (s *Sessions) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// CurrentToken returns the current session token.
func (s *Sessions) CurrentToken() string {
	return s.Current().Token
}

// IsCurrent reports whether token belongs to the current session.
func (s *Sessions) IsCurrent(token string) bool {
	return token == s.CurrentToken()
}
