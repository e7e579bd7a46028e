// Package rbac gates handlers on the authenticated principal's role.
package rbac

import (
	"context"

	"adhoc-admin/backend/internal/platform/apperr"
	"adhoc-admin/backend/internal/server/middleware"
)

// RequireAdmin ensures the caller is authenticated. Any active admin passes.
// Returns the principal on success; an Authentication error (401) otherwise.
func RequireAdmin(ctx context.Context) (middleware.Principal, error) {
	p, ok := middleware.GetPrincipal(ctx)
	if !ok || p.UserID == "" {
		return middleware.Principal{}, apperr.Authentication("Unauthorized")
	}
	return p, nil
}

// RequireSuperAdmin ensures the caller is authenticated and holds SUPER_ADMIN.
// Returns Authentication (401) without a principal and Authorization (403) for a regular admin.
func RequireSuperAdmin(ctx context.Context) (middleware.Principal, error) {
	p, err := RequireAdmin(ctx)
	if err != nil {
		return p, err
	}
	if !p.IsSuperAdmin() {
		return middleware.Principal{}, apperr.Authorization("Forbidden")
	}
	return p, nil
}
