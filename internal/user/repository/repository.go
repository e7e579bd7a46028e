package repository

import (
	"context"
	"time"

	"adhoc-admin/backend/internal/user/domain"
)

// Repository defines persistence for admin users. Lookups return (nil, nil) when the row does not exist.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.AdminUser, error)
	GetByEmail(ctx context.Context, email string) (*domain.AdminUser, error)
	List(ctx context.Context) ([]*domain.AdminUser, error)
	Create(ctx context.Context, u *domain.AdminUser) error
	// UpsertSuperAdmin creates or updates the bootstrap account by email as an active, MFA-enabled super admin.
	UpsertSuperAdmin(ctx context.Context, u *domain.AdminUser) (*domain.AdminUser, error)
	// UpsertAdmin creates or updates an account by email, keeping the existing role on update.
	UpsertAdmin(ctx context.Context, u *domain.AdminUser) (*domain.AdminUser, error)
	SetLastLogin(ctx context.Context, id string, at time.Time) error
	SetPasswordHash(ctx context.Context, id, hash string) error
	SetRole(ctx context.Context, id string, role domain.Role) error
	SetActive(ctx context.Context, id string, active bool) error
	// Delete removes the user; returns false when no row matched.
	Delete(ctx context.Context, id string) (bool, error)
}
