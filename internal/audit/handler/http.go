// Package handler serves the audit trail to super admins.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"adhoc-admin/backend/internal/audit/domain"
	auditrepo "adhoc-admin/backend/internal/audit/repository"
	"adhoc-admin/backend/internal/platform/apperr"
	"adhoc-admin/backend/internal/platform/rbac"
	"adhoc-admin/backend/internal/platform/respond"
)

// Lister is the read side of the audit repository.
type Lister interface {
	List(ctx context.Context, f auditrepo.Filter) ([]*domain.AuditLog, error)
}

// Handler serves GET /api/admin/audit.
type Handler struct {
	repo Lister
}

// NewHandler returns an audit handler backed by repo.
func NewHandler(repo Lister) *Handler {
	return &Handler{repo: repo}
}

type entryJSON struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// List returns entries newest first. Query: limit, offset, userId, action.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if _, err := rbac.RequireSuperAdmin(r.Context()); err != nil {
		respond.Error(w, err)
		return
	}
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		respond.Error(w, apperr.Validation("Invalid limit"))
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		respond.Error(w, apperr.Validation("Invalid offset"))
		return
	}
	f := auditrepo.Filter{UserID: q.Get("userId"), Action: q.Get("action"), Limit: limit, Offset: offset}.Normalize()

	list, err := h.repo.List(r.Context(), f)
	if err != nil {
		respond.Error(w, apperr.Unavailable("Database unavailable", err))
		return
	}
	out := make([]entryJSON, len(list))
	for i, a := range list {
		out[i] = entryJSON{
			ID: a.ID, UserID: a.UserID, Action: a.Action, Resource: a.Resource,
			IP: a.IP, Metadata: a.Metadata, CreatedAt: a.CreatedAt,
		}
	}
	respond.OK(w, http.StatusOK, map[string]any{"entries": out, "limit": f.Limit, "offset": f.Offset})
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
