// Package session issues, resolves and revokes opaque admin session tokens. The raw
// token travels only in the admin_session cookie; the server keeps its keyed hash.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"adhoc-admin/backend/internal/security"
	"adhoc-admin/backend/internal/session/domain"
	"adhoc-admin/backend/internal/session/repository"
	userdomain "adhoc-admin/backend/internal/user/domain"
)

const tokenBytes = 32

// ErrSecretMissing is returned by Issue when AUTH_SESSION_SECRET is not configured.
var ErrSecretMissing = errors.New("session: AUTH_SESSION_SECRET is not configured")

// UserLookup is the minimal user repository needed to resolve a session's owner.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*userdomain.AdminUser, error)
}

// Meta is request context recorded on a new session.
type Meta struct {
	IP        string
	UserAgent string
}

// Issued is a freshly created session. Token is the raw bearer value and is handed to
// the client exactly once.
type Issued struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
}

// Resolved is an accepted session together with its (active) owner.
type Resolved struct {
	Session *domain.Session
	User    *userdomain.AdminUser
}

// Manager implements the session lifecycle.
type Manager struct {
	repo   repository.Repository
	users  UserLookup
	secret string
	ttl    time.Duration
	secure bool
	now    func() time.Time
	logger *zap.Logger
}

// NewManager returns a Manager. secure sets the cookie Secure flag (production).
func NewManager(repo repository.Repository, users UserLookup, secret string, ttl time.Duration, secure bool, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		repo:   repo,
		users:  users,
		secret: secret,
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
		logger: logger,
	}
}

// WithClock replaces the manager's time source. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a session for userID and returns the raw token.
func (m *Manager) Issue(ctx context.Context, userID string, meta Meta) (*Issued, error) {
	if m.secret == "" {
		return nil, ErrSecretMissing
	}
	token, err := security.RandomToken(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("session: token: %w", err)
	}
	now := m.now().UTC()
	s := &domain.Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		TokenHash:  security.KeyedHash(m.secret, token),
		ExpiresAt:  now.Add(m.ttl),
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		LastSeenAt: &now,
		CreatedAt:  now,
	}
	if err := m.repo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("session: create: %w", err)
	}
	return &Issued{Token: token, SessionID: s.ID, ExpiresAt: s.ExpiresAt}, nil
}

// Resolve maps a raw token to its session and owner. It returns (nil, nil) when the
// token is empty, unknown, revoked or expired, when the owner is missing or inactive,
// and when no secret is configured. An error means the store failed.
func (m *Manager) Resolve(ctx context.Context, token string) (*Resolved, error) {
	if m.secret == "" || token == "" {
		return nil, nil
	}
	s, err := m.repo.GetByTokenHash(ctx, security.KeyedHash(m.secret, token))
	if err != nil {
		return nil, fmt.Errorf("session: lookup: %w", err)
	}
	now := m.now().UTC()
	if !s.IsActive(now) {
		return nil, nil
	}
	u, err := m.users.GetByID(ctx, s.UserID)
	if err != nil {
		return nil, fmt.Errorf("session: owner: %w", err)
	}
	if u == nil || !u.IsActive {
		return nil, nil
	}
	if err := m.repo.UpdateLastSeen(ctx, s.ID, now); err != nil {
		m.logger.Warn("session last-seen update failed", zap.String("session_id", s.ID), zap.Error(err))
	} else {
		s.LastSeenAt = &now
	}
	return &Resolved{Session: s, User: u}, nil
}

// Revoke revokes the session for token, if any. Unknown or already revoked tokens are a no-op.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if m.secret == "" || token == "" {
		return nil
	}
	if _, err := m.repo.RevokeByTokenHash(ctx, security.KeyedHash(m.secret, token), m.now().UTC()); err != nil {
		return fmt.Errorf("session: revoke: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every open session of userID.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	n, err := m.repo.RevokeAllByUser(ctx, userID, m.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("session: revoke all: %w", err)
	}
	return n, nil
}

// PruneExpired deletes sessions that expired before the cutoff.
func (m *Manager) PruneExpired(ctx context.Context, before time.Time) (int64, error) {
	return m.repo.DeleteExpiredBefore(ctx, before)
}
