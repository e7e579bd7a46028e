package middleware

import (
	"context"
	"testing"

	userdomain "adhoc-admin/backend/internal/user/domain"
)

func TestPrincipalRoundTrip(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{UserID: "u1", Email: "a@example.com", Role: userdomain.RoleSuperAdmin, SessionID: "s1"})

	p, ok := GetPrincipal(ctx)
	if !ok {
		t.Fatal("GetPrincipal should find principal")
	}
	if p.UserID != "u1" || p.SessionID != "s1" {
		t.Errorf("principal = %+v", p)
	}
	if !p.IsSuperAdmin() {
		t.Error("IsSuperAdmin should be true")
	}
	if GetUserID(ctx) != "u1" {
		t.Errorf("GetUserID = %q, want u1", GetUserID(ctx))
	}
}

func TestGetPrincipal_Missing(t *testing.T) {
	if _, ok := GetPrincipal(context.Background()); ok {
		t.Error("GetPrincipal on empty context should be false")
	}
	if GetUserID(context.Background()) != "" {
		t.Error("GetUserID on empty context should be empty")
	}
}

func TestClientIPFromContext(t *testing.T) {
	if got := ClientIPFromContext(context.Background()); got != "unknown" {
		t.Errorf("ClientIPFromContext(empty) = %q, want unknown", got)
	}
	if got := ClientIPFromContext(WithClientIP(context.Background(), "10.0.0.1")); got != "10.0.0.1" {
		t.Errorf("ClientIPFromContext = %q, want 10.0.0.1", got)
	}
}
