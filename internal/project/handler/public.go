package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"adhoc-admin/backend/internal/blob"
	"adhoc-admin/backend/internal/platform/apperr"
	"adhoc-admin/backend/internal/platform/respond"
	"adhoc-admin/backend/internal/project/domain"
	"adhoc-admin/backend/internal/project/service"
)

// publicCacheControl lets browsers and the CDN keep public images for five minutes.
const publicCacheControl = "public, max-age=300"

// PublicService is the read-only project surface used by the public site.
type PublicService interface {
	PublicProjects(ctx context.Context) ([]service.PublicProject, error)
	FolderImages(ctx context.Context, folder string) ([]string, error)
	OpenPublicImage(ctx context.Context, imageID string) (*domain.Image, *blob.Object, error)
}

// PublicHandler serves the unauthenticated portfolio endpoints.
type PublicHandler struct {
	svc PublicService
}

// NewPublicHandler returns a public handler backed by svc.
func NewPublicHandler(svc PublicService) *PublicHandler {
	return &PublicHandler{svc: svc}
}

// Projects handles GET /api/public/projects.
func (h *PublicHandler) Projects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.PublicProjects(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"projects": projects})
}

// FolderImages handles GET /api/project-images?folder=<slug>. The legacy gallery reads a bare
// {images} or {error} body without the ok flag.
func (h *PublicHandler) FolderImages(w http.ResponseWriter, r *http.Request) {
	folder := strings.TrimSpace(r.URL.Query().Get("folder"))
	if folder == "" {
		respond.JSON(w, http.StatusBadRequest, map[string]string{"error": "Missing folder param"})
		return
	}
	images, err := h.svc.FolderImages(r.Context(), folder)
	if err != nil {
		if e, ok := apperr.As(err); ok && e.Kind == apperr.KindNotFound {
			respond.JSON(w, http.StatusNotFound, map[string]string{"error": e.Message})
			return
		}
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"images": images})
}

// Image handles GET /api/public/project-images/{imageId}.
func (h *PublicHandler) Image(w http.ResponseWriter, r *http.Request) {
	img, obj, err := h.svc.OpenPublicImage(r.Context(), chi.URLParam(r, "imageId"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	stream(w, img, obj, publicCacheControl)
}
