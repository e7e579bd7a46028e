package repository

import (
	"context"

	"adhoc-admin/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.AuditLog, error)
	// List returns entries newest first, optionally filtered by user id and action (empty means any).
	List(ctx context.Context, f Filter) ([]*domain.AuditLog, error)
	Create(ctx context.Context, a *domain.AuditLog) error
}

// Filter narrows List. Limit <= 0 uses DefaultLimit; values above MaxLimit are clamped.
type Filter struct {
	UserID string
	Action string
	Limit  int
	Offset int
}

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Normalize returns f with limit and offset inside their bounds.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
