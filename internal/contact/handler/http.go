// Package handler serves POST /api/contact.
package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"adhoc-admin/backend/internal/contact/service"
	"adhoc-admin/backend/internal/platform/respond"
)

// Submitter validates and relays a submission.
type Submitter interface {
	Submit(ctx context.Context, s service.Submission) error
}

// Handler serves the public contact form.
type Handler struct {
	svc Submitter
}

// NewHandler returns a contact handler backed by svc.
func NewHandler(svc Submitter) *Handler {
	return &Handler{svc: svc}
}

type request struct {
	Name    any `json:"name"`
	Email   any `json:"email"`
	Subject any `json:"subject"`
	Message any `json:"message"`
	Company any `json:"company"`
	// T is the client's form mount time in Unix milliseconds, as a number or numeric string.
	T any `json:"t"`
}

// Submit handles POST /api/contact. A malformed body is treated as an empty form.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req request
	_ = respond.Decode(r, &req)

	s := service.Submission{
		Name:      str(req.Name),
		Email:     str(req.Email),
		Subject:   str(req.Subject),
		Message:   str(req.Message),
		Company:   str(req.Company),
		StartedAt: millis(req.T),
	}
	if err := h.svc.Submit(r.Context(), s); err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, http.StatusOK, nil)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// millis parses a Unix millisecond timestamp. Empty, zero or non-numeric values yield nil.
func millis(v any) *time.Time {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	t := time.UnixMilli(int64(f))
	return &t
}
