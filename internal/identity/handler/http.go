// Package handler serves the admin login, code verification and logout endpoints.
package handler

import (
	"context"
	"net/http"

	"adhoc-admin/backend/internal/identity/service"
	"adhoc-admin/backend/internal/platform/respond"
	"adhoc-admin/backend/internal/server/middleware"
	"adhoc-admin/backend/internal/session"
)

// AuthService is the login flow used by the handler.
type AuthService interface {
	Login(ctx context.Context, in service.LoginInput) (*service.LoginResult, error)
	Verify(ctx context.Context, in service.VerifyInput) (*session.Issued, error)
	Logout(ctx context.Context, userID, token string)
}

// Cookies writes and clears the session cookie.
type Cookies interface {
	SetCookie(w http.ResponseWriter, issued *session.Issued)
	ClearCookie(w http.ResponseWriter)
}

// Handler serves POST /api/admin/login, /verify and /logout.
type Handler struct {
	auth    AuthService
	cookies Cookies
}

// NewHandler returns an auth handler.
func NewHandler(auth AuthService, cookies Cookies) *Handler {
	return &Handler{auth: auth, cookies: cookies}
}

// Request fields are decoded as any so a non-string value reads as "" rather than failing the body.
type loginRequest struct {
	Email    any `json:"email"`
	Password any `json:"password"`
}

// Login handles the password step. The body is decoded after the IP throttle inside the service.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	decodeErr := respond.Decode(r, &req)
	res, err := h.auth.Login(r.Context(), service.LoginInput{
		Email:     str(req.Email),
		Password:  str(req.Password),
		IP:        middleware.ClientIPFromContext(r.Context()),
		UserAgent: r.UserAgent(),
		Malformed: decodeErr != nil,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}
	if res.Message != "" {
		respond.OK(w, http.StatusOK, map[string]any{"message": res.Message})
		return
	}
	respond.OK(w, http.StatusOK, nil)
}

type verifyRequest struct {
	Email any `json:"email"`
	OTP   any `json:"otp"`
}

// Verify handles the code step and sets the session cookie on success.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	decodeErr := respond.Decode(r, &req)
	issued, err := h.auth.Verify(r.Context(), service.VerifyInput{
		Email:     str(req.Email),
		OTP:       str(req.OTP),
		IP:        middleware.ClientIPFromContext(r.Context()),
		UserAgent: r.UserAgent(),
		Malformed: decodeErr != nil,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}
	h.cookies.SetCookie(w, issued)
	respond.OK(w, http.StatusOK, nil)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// Logout clears the cookie first, then revokes the session. Always 200.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := session.TokenFromRequest(r)
	h.cookies.ClearCookie(w)
	h.auth.Logout(r.Context(), middleware.GetUserID(r.Context()), token)
	respond.OK(w, http.StatusOK, nil)
}
