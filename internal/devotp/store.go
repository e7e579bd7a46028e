// Package devotp provides an in-memory store for login codes by admin email, used only when
// DEV_OTP_CAPTURE is enabled (GET /dev/otp). Codes captured here are never mailed.
package devotp

import (
	"context"
	"sync"
	"time"

	userdomain "adhoc-admin/backend/internal/user/domain"
)

// Store holds plain codes by normalized email for dev-only retrieval. Not used in production.
type Store interface {
	// Put stores code for email until expiresAt, replacing any earlier code.
	Put(ctx context.Context, email, code string, expiresAt time.Time)
	// Get returns the code for email if present and not expired. Returns ok false if missing or expired.
	Get(ctx context.Context, email string) (code string, expiresAt time.Time, ok bool)
	// Delete forgets the code for email, e.g. once it has been used.
	Delete(ctx context.Context, email string)
}

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev OTP store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores code for email until expiresAt.
func (s *MemoryStore) Put(ctx context.Context, email, code string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[userdomain.NormalizeEmail(email)] = entry{code: code, expiresAt: expiresAt}
}

// Get returns the code for email if present and not expired. Expired entries are dropped.
func (s *MemoryStore) Get(ctx context.Context, email string) (string, time.Time, bool) {
	key := userdomain.NormalizeEmail(email)
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return "", time.Time{}, false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		if cur, still := s.m[key]; still && cur == e {
			delete(s.m, key)
		}
		s.mu.Unlock()
		return "", time.Time{}, false
	}
	return e.code, e.expiresAt, true
}

// Delete forgets the code for email.
func (s *MemoryStore) Delete(ctx context.Context, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userdomain.NormalizeEmail(email))
}
