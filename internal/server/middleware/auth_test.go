package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"adhoc-admin/backend/internal/session"
	sessiondomain "adhoc-admin/backend/internal/session/domain"
	userdomain "adhoc-admin/backend/internal/user/domain"
)

type fakeResolver struct {
	res *session.Resolved
	err error
	got string
}

func (f *fakeResolver) Resolve(ctx context.Context, token string) (*session.Resolved, error) {
	f.got = token
	return f.res, f.err
}

func serveAuth(t *testing.T, resolver SessionResolver, cookie string) (*httptest.ResponseRecorder, *Principal) {
	t.Helper()
	var seen *Principal
	h := Authenticate(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := GetPrincipal(r.Context()); ok {
			seen = &p
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	r := httptest.NewRequest(http.MethodGet, "/api/admin/me", nil)
	if cookie != "" {
		r.AddCookie(&http.Cookie{Name: session.CookieName, Value: cookie})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec, seen
}

func TestAuthenticate_NoCookie(t *testing.T) {
	resolver := &fakeResolver{}
	rec, p := serveAuth(t, resolver, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if p != nil {
		t.Error("handler should not run")
	}
	if resolver.got != "" {
		t.Error("resolver should not be called without a cookie")
	}
}

func TestAuthenticate_UnknownSession(t *testing.T) {
	rec, p := serveAuth(t, &fakeResolver{}, "never-issued")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if p != nil {
		t.Error("handler should not run")
	}
}

func TestAuthenticate_StoreError(t *testing.T) {
	rec, _ := serveAuth(t, &fakeResolver{err: errors.New("connection refused")}, "tok")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestAuthenticate_Success(t *testing.T) {
	resolver := &fakeResolver{res: &session.Resolved{
		Session: &sessiondomain.Session{ID: "s1", UserID: "u1"},
		User:    &userdomain.AdminUser{ID: "u1", Email: "a@example.com", Role: userdomain.RoleAdmin, IsActive: true},
	}}
	rec, p := serveAuth(t, resolver, "tok")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if resolver.got != "tok" {
		t.Errorf("resolver token = %q, want tok", resolver.got)
	}
	if p == nil || p.UserID != "u1" || p.SessionID != "s1" || p.Email != "a@example.com" || p.Role != userdomain.RoleAdmin {
		t.Errorf("principal = %+v", p)
	}
}

func serveOptional(t *testing.T, resolver SessionResolver, cookie string) (int, *Principal) {
	t.Helper()
	var seen *Principal
	h := OptionalAuthenticate(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := GetPrincipal(r.Context()); ok {
			seen = &p
		}
		w.WriteHeader(http.StatusOK)
	}))
	r := httptest.NewRequest(http.MethodPost, "/api/admin/logout", nil)
	if cookie != "" {
		r.AddCookie(&http.Cookie{Name: session.CookieName, Value: cookie})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec.Code, seen
}

func TestOptionalAuthenticate_PassesThrough(t *testing.T) {
	for name, resolver := range map[string]*fakeResolver{
		"no session":  {},
		"store error": {err: errors.New("connection refused")},
	} {
		t.Run(name, func(t *testing.T) {
			code, p := serveOptional(t, resolver, "tok")
			if code != http.StatusOK {
				t.Errorf("status = %d, want 200", code)
			}
			if p != nil {
				t.Error("no principal should be attached")
			}
		})
	}
}

func TestOptionalAuthenticate_AttachesPrincipal(t *testing.T) {
	resolver := &fakeResolver{res: &session.Resolved{
		Session: &sessiondomain.Session{ID: "s1", UserID: "u1"},
		User:    &userdomain.AdminUser{ID: "u1", Role: userdomain.RoleSuperAdmin},
	}}
	code, p := serveOptional(t, resolver, "tok")
	if code != http.StatusOK || p == nil || p.UserID != "u1" || p.SessionID != "s1" {
		t.Errorf("code = %d principal = %+v", code, p)
	}
}
