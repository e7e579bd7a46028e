package repository

import (
	"context"
	"time"

	"adhoc-admin/backend/internal/session/domain"
)

// Repository defines persistence for admin sessions.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// GetByTokenHash returns the session whose token hashes to hash, or nil.
	GetByTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
	// RevokeByTokenHash revokes the matching unrevoked session. Unknown or already revoked hashes are a no-op.
	RevokeByTokenHash(ctx context.Context, hash string, at time.Time) (int64, error)
	RevokeAllByUser(ctx context.Context, userID string, at time.Time) (int64, error)
	// DeleteExpiredBefore removes sessions that expired before the cutoff.
	DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error)
}
