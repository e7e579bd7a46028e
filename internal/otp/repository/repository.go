package repository

import (
	"context"
	"time"

	"adhoc-admin/backend/internal/otp/domain"
)

// Repository defines persistence for email OTP challenges. Every mutation that guards
// a security property is a single conditional UPDATE.
type Repository interface {
	Create(ctx context.Context, o *domain.EmailOTP) error
	// ConsumeActive marks every active code for (userID, purpose) consumed and returns how many were.
	ConsumeActive(ctx context.Context, userID, purpose string, now time.Time) (int64, error)
	// Latest returns the most recently created code for (userID, purpose) in any state, or nil.
	Latest(ctx context.Context, userID, purpose string) (*domain.EmailOTP, error)
	// FindActive returns the most recent unconsumed, unexpired code under its attempt limit, or nil.
	FindActive(ctx context.Context, userID, purpose string, now time.Time) (*domain.EmailOTP, error)
	IncrementAttempts(ctx context.Context, id string) error
	// Consume marks id consumed only if it is still active at now. Returns false when no row matched.
	Consume(ctx context.Context, id string, now time.Time) (bool, error)
	// Invalidate marks id consumed if it is not already.
	Invalidate(ctx context.Context, id string, now time.Time) error
	// DeleteExpiredBefore removes codes that expired before the cutoff.
	DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error)
}
