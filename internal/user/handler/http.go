// Package handler serves admin account management over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"adhoc-admin/backend/internal/platform/apperr"
	"adhoc-admin/backend/internal/platform/rbac"
	"adhoc-admin/backend/internal/platform/respond"
	"adhoc-admin/backend/internal/user/domain"
	"adhoc-admin/backend/internal/user/service"
)

// Service is the admin management surface used by the handler.
type Service interface {
	List(ctx context.Context, actor service.Actor) ([]*domain.AdminUser, error)
	Create(ctx context.Context, actor service.Actor, email, password string) (*domain.AdminUser, error)
	ResetPassword(ctx context.Context, actor service.Actor, id, password string) error
	Delete(ctx context.Context, actor service.Actor, id string) error
}

// Handler serves /api/admin/users and /api/admin/me.
type Handler struct {
	svc Service
}

// NewHandler returns a user handler backed by svc.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type userJSON struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

func toJSON(u *domain.AdminUser) userJSON {
	out := userJSON{ID: u.ID, Email: u.Email, Role: string(u.Role), IsActive: u.IsActive, LastLoginAt: u.LastLoginAt}
	if !u.CreatedAt.IsZero() {
		t := u.CreatedAt
		out.CreatedAt = &t
	}
	return out
}

func actorOf(r *http.Request) (service.Actor, error) {
	p, err := rbac.RequireAdmin(r.Context())
	if err != nil {
		return service.Actor{}, err
	}
	return service.Actor{ID: p.UserID, Role: p.Role}, nil
}

// Me returns the signed-in admin.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequireAdmin(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{
		"user": map[string]string{"id": p.UserID, "email": p.Email, "role": string(p.Role)},
	})
}

// List handles GET /api/admin/users.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		respond.Error(w, err)
		return
	}
	users, err := h.svc.List(r.Context(), actor)
	if err != nil {
		respond.Error(w, err)
		return
	}
	out := make([]userJSON, len(users))
	for i, u := range users {
		out[i] = toJSON(u)
	}
	respond.OK(w, http.StatusOK, map[string]any{"users": out})
}

type createRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Create handles POST /api/admin/users.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		respond.Error(w, err)
		return
	}
	var req createRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, apperr.Validation("Invalid body"))
		return
	}
	u, err := h.svc.Create(r.Context(), actor, req.Email, req.Password)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, http.StatusCreated, map[string]any{
		"user": map[string]any{"id": u.ID, "email": u.Email, "role": string(u.Role), "isActive": u.IsActive},
	})
}

type resetRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

// ResetPassword handles PATCH /api/admin/users.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		respond.Error(w, err)
		return
	}
	var req resetRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, apperr.Validation("Invalid body"))
		return
	}
	if err := h.svc.ResetPassword(r.Context(), actor, req.ID, req.Password); err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, http.StatusOK, nil)
}

type deleteRequest struct {
	ID string `json:"id"`
}

// Delete handles DELETE /api/admin/users.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		respond.Error(w, err)
		return
	}
	var req deleteRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, apperr.Validation("Invalid body"))
		return
	}
	if err := h.svc.Delete(r.Context(), actor, req.ID); err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, http.StatusOK, nil)
}
