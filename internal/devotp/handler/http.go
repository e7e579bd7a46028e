// Package handler serves GET /dev/otp. Only mounted when DEV_OTP_CAPTURE is on and APP_ENV is not production.
package handler

import (
	"net/http"
	"strings"

	"adhoc-admin/backend/internal/devotp"
	"adhoc-admin/backend/internal/platform/respond"
)

const devOTPNote = "DEV MODE ONLY"

// Handler reads captured codes from a dev store.
type Handler struct {
	store devotp.Store
}

// NewHandler returns a handler that reads codes from store.
func NewHandler(store devotp.Store) *Handler {
	return &Handler{store: store}
}

// GetOTP returns the last captured code for ?email=. 400 without email, 404 if missing or expired.
func (h *Handler) GetOTP(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		respond.Fail(w, http.StatusBadRequest, "email is required")
		return
	}
	code, expiresAt, ok := h.store.Get(r.Context(), email)
	if !ok {
		respond.Fail(w, http.StatusNotFound, "OTP not found or expired")
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{
		"otp":       code,
		"expiresAt": expiresAt,
		"note":      devOTPNote,
	})
}
