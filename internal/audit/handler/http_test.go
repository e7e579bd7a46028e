package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adhoc-admin/backend/internal/audit/domain"
	auditrepo "adhoc-admin/backend/internal/audit/repository"
	"adhoc-admin/backend/internal/server/middleware"
	userdomain "adhoc-admin/backend/internal/user/domain"
)

type fakeLister struct {
	entries []*domain.AuditLog
	err     error
	got     auditrepo.Filter
}

func (f *fakeLister) List(ctx context.Context, filter auditrepo.Filter) ([]*domain.AuditLog, error) {
	f.got = filter
	return f.entries, f.err
}

func request(role userdomain.Role, target string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	if role != "" {
		r = r.WithContext(middleware.WithPrincipal(r.Context(), middleware.Principal{UserID: "u1", Role: role}))
	}
	return r
}

func TestList_SuperAdmin(t *testing.T) {
	lister := &fakeLister{entries: []*domain.AuditLog{
		{ID: "a1", UserID: "u1", Action: "login", Resource: "authentication", IP: "1.2.3.4", CreatedAt: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)},
	}}
	rec := httptest.NewRecorder()
	NewHandler(lister).List(rec, request(userdomain.RoleSuperAdmin, "/api/admin/audit?limit=10&offset=5&action=login"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if lister.got.Limit != 10 || lister.got.Offset != 5 || lister.got.Action != "login" {
		t.Errorf("filter = %+v", lister.got)
	}
	var body struct {
		OK      bool        `json:"ok"`
		Entries []entryJSON `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || len(body.Entries) != 1 || body.Entries[0].ID != "a1" {
		t.Errorf("body = %+v", body)
	}
}

func TestList_Forbidden(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(&fakeLister{}).List(rec, request(userdomain.RoleAdmin, "/api/admin/audit"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestList_InvalidLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(&fakeLister{}).List(rec, request(userdomain.RoleSuperAdmin, "/api/admin/audit?limit=abc"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestList_StoreError(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(&fakeLister{err: errors.New("down")}).List(rec, request(userdomain.RoleSuperAdmin, "/api/admin/audit"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
