// Package handler serves the project admin API and the public portfolio endpoints.
package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"adhoc-admin/backend/internal/blob"
	"adhoc-admin/backend/internal/platform/apperr"
	"adhoc-admin/backend/internal/platform/rbac"
	"adhoc-admin/backend/internal/platform/respond"
	"adhoc-admin/backend/internal/project/domain"
	"adhoc-admin/backend/internal/project/service"
)

// MaxUploadBytes bounds a single image upload through the API.
const MaxUploadBytes = 50 << 20

// AdminService is the project surface used by the admin handler.
type AdminService interface {
	List(ctx context.Context) ([]*domain.Project, error)
	Get(ctx context.Context, id string) (*domain.Project, error)
	Create(ctx context.Context, in service.Input) (*domain.Project, error)
	Update(ctx context.Context, id string, in service.Input) (*domain.Project, error)
	Delete(ctx context.Context, id string) error
	ListImages(ctx context.Context, projectID string) ([]*domain.Image, error)
	RegisterImage(ctx context.Context, projectID string, in service.NewImage) (*domain.Image, error)
	ReorderImages(ctx context.Context, projectID string, orderedIDs []string, coverID string) error
	OpenImage(ctx context.Context, projectID, imageID string) (*domain.Image, *blob.Object, error)
	UploadImage(ctx context.Context, projectID, imageID string, body io.Reader, size int64, contentType string) error
	DeleteImage(ctx context.Context, projectID, imageID string) error
	PresignUpload(ctx context.Context, objectKey, contentType string) (string, error)
}

// Handler serves /api/admin/projects and /api/admin/storage. Every route requires a session.
type Handler struct {
	svc AdminService
}

// NewHandler returns an admin project handler backed by svc.
func NewHandler(svc AdminService) *Handler {
	return &Handler{svc: svc}
}

type projectJSON struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Location    string    `json:"location"`
	Year        int       `json:"year"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toProjectJSON(p *domain.Project) projectJSON {
	return projectJSON{
		ID: p.ID, Slug: p.Slug, Title: p.Title, Location: p.Location, Year: p.Year,
		Category: p.Category, Description: p.Description, Published: p.Published,
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

type imageJSON struct {
	ID          string  `json:"id"`
	ObjectKey   string  `json:"objectKey"`
	SortOrder   int     `json:"sortOrder"`
	IsCover     bool    `json:"isCover"`
	ContentType *string `json:"contentType"`
	Bytes       *string `json:"bytes"`
	URL         string  `json:"url"`
}

func toImageJSON(img *domain.Image) imageJSON {
	out := imageJSON{
		ID:        img.ID,
		ObjectKey: img.ObjectKey,
		SortOrder: img.SortOrder,
		IsCover:   img.IsCover,
		URL:       domain.AdminImageURL(img.ProjectID, img.ID),
	}
	if img.ContentType != "" {
		ct := img.ContentType
		out.ContentType = &ct
	}
	if img.Bytes != nil {
		s := strconv.FormatInt(*img.Bytes, 10)
		out.Bytes = &s
	}
	return out
}

// projectRequest accepts year as a number or numeric string and published as a bool or "true".
type projectRequest struct {
	Slug        any `json:"slug"`
	Title       any `json:"title"`
	Location    any `json:"location"`
	Year        any `json:"year"`
	Category    any `json:"category"`
	Description any `json:"description"`
	Published   any `json:"published"`
}

func (req projectRequest) input() service.Input {
	in := service.Input{
		Slug:        asString(req.Slug),
		Title:       asString(req.Title),
		Location:    asString(req.Location),
		Year:        asInt(req.Year),
		Category:    asString(req.Category),
		Description: asString(req.Description),
	}
	if req.Published != nil {
		b := asBool(req.Published)
		in.Published = &b
	}
	return in
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	}
	return false
}

func asInt(v any) *int {
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
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	i := int(math.Trunc(f))
	return &i
}

func requireSession(w http.ResponseWriter, r *http.Request) bool {
	if _, err := rbac.RequireAdmin(r.Context()); err != nil {
		respond.Fail(w, http.StatusUnauthorized, "")
		return false
	}
	return true
}

// List handles GET /api/admin/projects.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w, r) {
		return
	}
	projects, err := h.svc.List(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	out := make([]projectJSON, len(projects))
	for i, p := range projects {
		out[i] = toProjectJSON(p)
	}
	respond.OK(w, http.StatusOK, map[string]any{"projects": out})
}

// Create handles POST /api/admin/projects.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w, r) {
		return
	}
	var req projectRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, apperr.Validation("Invalid body"))
		return
	}
	p, err := h.svc.Create(r.Context(), req.input())
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, http.StatusCreated, map[string]any{"project": toProjectJSON(p)})
}

// Get handles GET /api/admin/projects/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w, r) {
		return
	}
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"project": toProjectJSON(p)})
}

// Update handles PUT /api/admin/projects/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w, r) {
		return
	}
	var req projectRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, apperr.Validation("Invalid body"))
		return
	}
	p, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"project": toProjectJSON(p)})
}

// Delete handles DELETE /api/admin/projects/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w, r) {
		return
	}
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, http.StatusOK, nil)
}

// ListImages handles GET /api/admin/projects/{id}/images.
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w, r) {
		return
	}
	images, err := h.svc.ListImages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	out := make([]imageJSON, len(images))
	for i, img := range images {
		out[i] = toImageJSON(img)
	}
	respond.OK(w, http.StatusOK, map[string]any{"images": out})
}

type registerRequest struct {
	Filename    any `json:"filename"`
	ContentType any `json:"contentType"`
	Bytes       any `json:"bytes"`
}

// RegisterImage handles POST /api/admin/projects/{id}/images.
func (h *Handler) RegisterImage(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w, r) {
		return
	}
	var req registerRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, apperr.Validation("Invalid body"))
		return
	}
	in := service.NewImage{Filename: asString(req.Filename), ContentType: asString(req.ContentType)}
	if n := asInt(req.Bytes); n != nil {
		size := int64(*n)
		in.Bytes = &size
	}
	projectID := chi.URLParam(r, "id")
	img, err := h.svc.RegisterImage(r.Context(), projectID, in)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, http.StatusCreated, map[string]any{
		"image":     map[string]string{"id": img.ID, "objectKey": img.ObjectKey},
		"uploadUrl": domain.AdminImageURL(projectID, img.ID),
	})
}

type reorderRequest struct {
	OrderedIDs []any `json:"orderedIds"`
	CoverID    any   `json:"coverId"`
}

// ReorderImages handles PUT /api/admin/projects/{id}/images.
func (h *Handler) ReorderImages(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w, r) {
		return
	}
	var req reorderRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, apperr.Validation("Invalid body"))
		return
	}
	ids := make([]string, 0, len(req.OrderedIDs))
	for _, v := range req.OrderedIDs {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	if err := h.svc.ReorderImages(r.Context(), chi.URLParam(r, "id"), ids, asString(req.CoverID)); err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, http.StatusOK, nil)
}

// GetImage handles GET /api/admin/projects/{id}/images/{imageId}.
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w, r) {
		return
	}
	img, obj, err := h.svc.OpenImage(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "imageId"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	stream(w, img, obj, "no-store")
}

// UploadImage handles PUT /api/admin/projects/{id}/images/{imageId} with the raw image as body.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w, r) {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Fail(w, http.StatusRequestEntityTooLarge, "Image too large")
			return
		}
		respond.Error(w, apperr.Validation("Failed to upload image"))
		return
	}
	err = h.svc.UploadImage(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "imageId"),
		bytes.NewReader(data), int64(len(data)), r.Header.Get("Content-Type"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, http.StatusOK, nil)
}

// DeleteImage handles DELETE /api/admin/projects/{id}/images/{imageId}.
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w, r) {
		return
	}
	if err := h.svc.DeleteImage(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "imageId")); err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, http.StatusOK, nil)
}

type presignRequest struct {
	ObjectKey   any `json:"objectKey"`
	ContentType any `json:"contentType"`
}

// PresignUpload handles POST /api/admin/storage/presign-upload.
func (h *Handler) PresignUpload(w http.ResponseWriter, r *http.Request) {
	if !requireSession(w, r) {
		return
	}
	var req presignRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Fail(w, http.StatusBadRequest, "")
		return
	}
	key := asString(req.ObjectKey)
	url, err := h.svc.PresignUpload(r.Context(), key, asString(req.ContentType))
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"uploadUrl": url, "objectKey": key})
}

// stream copies obj to w with the image's content type and the given cache policy. It closes obj.Body.
func stream(w http.ResponseWriter, img *domain.Image, obj *blob.Object, cacheControl string) {
	defer obj.Body.Close()
	contentType := img.ContentType
	if contentType == "" {
		contentType = obj.ContentType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Cache-Control", cacheControl)
	if obj.ContentLength > 0 {
		h.Set("Content-Length", strconv.FormatInt(obj.ContentLength, 10))
	}
	if obj.ETag != "" {
		h.Set("ETag", obj.ETag)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, obj.Body)
}
