// Package middleware holds the HTTP middleware chain: request ids, client IP capture,
// session authentication, access logging and admin audit.
package middleware

import (
	"context"

	userdomain "adhoc-admin/backend/internal/user/domain"
)

type contextKey struct{ name string }

var (
	principalKey = contextKey{"principal"}
	clientIPKey  = contextKey{"client_ip"}
	requestIDKey = contextKey{"request_id"}
)

// Principal is the authenticated admin behind a request.
type Principal struct {
	UserID    string
	Email     string
	Role      userdomain.Role
	SessionID string
}

// IsSuperAdmin reports whether the principal holds the super admin role.
func (p Principal) IsSuperAdmin() bool { return p.Role == userdomain.RoleSuperAdmin }

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal returns the principal from context and true if set; otherwise the zero value, false.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// GetUserID returns the principal's user id, or "" if unauthenticated.
func GetUserID(ctx context.Context) string {
	p, _ := GetPrincipal(ctx)
	return p.UserID
}

// WithClientIP returns a context carrying the caller's IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext returns the IP stored by ClientIPCapture, or "unknown".
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// GetRequestID returns the id assigned by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}
