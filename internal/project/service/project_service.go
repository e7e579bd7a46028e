// Package service implements portfolio project management and the public read paths.
package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"adhoc-admin/backend/internal/blob"
	"adhoc-admin/backend/internal/db"
	"adhoc-admin/backend/internal/logger"
	"adhoc-admin/backend/internal/platform/apperr"
	"adhoc-admin/backend/internal/project/domain"
	"adhoc-admin/backend/internal/project/repository"
	"adhoc-admin/backend/internal/security"
)

// objectNameBytes is the random part of a new image object key.
const objectNameBytes = 16

// Input is a create or update request after JSON coercion. Nil Year means missing or not a number.
type Input struct {
	Slug        string
	Title       string
	Location    string
	Year        *int
	Category    string
	Description string
	Published   *bool
}

// NewImage describes an image about to be uploaded.
type NewImage struct {
	Filename    string
	ContentType string
	Bytes       *int64
}

// PublicProject is the published view served to the site.
type PublicProject struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Client      string   `json:"client"`
	Year        int      `json:"year"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
}

// ProjectService manages projects and their image objects.
type ProjectService struct {
	repo     repository.Repository
	blobs    blob.Store
	log      *zap.Logger
	now      func() time.Time
	newToken func(n int) (string, error)
}

// NewProjectService returns a project service. blobs may be nil when MinIO is not configured;
// image operations then fail with a configuration error and project CRUD still works.
func NewProjectService(repo repository.Repository, blobs blob.Store, log *zap.Logger) *ProjectService {
	return &ProjectService{
		repo:     repo,
		blobs:    blobs,
		log:      logger.OrNop(log),
		now:      time.Now,
		newToken: security.RandomToken,
	}
}

func (s *ProjectService) requireBlobs() error {
	if s.blobs == nil {
		return apperr.Configuration(blob.ErrNotConfigured.Error())
	}
	return nil
}

// List returns every project, newest year first.
func (s *ProjectService) List(ctx context.Context) ([]*domain.Project, error) {
	projects, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, s.storeError("Failed to load projects", err)
	}
	return projects, nil
}

// Get returns one project.
func (s *ProjectService) Get(ctx context.Context, id string) (*domain.Project, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError("Failed to load project", err)
	}
	if p == nil {
		return nil, apperr.NotFound("")
	}
	return p, nil
}

// Create validates in and inserts a project. Published defaults to true.
func (s *ProjectService) Create(ctx context.Context, in Input) (*domain.Project, error) {
	p, err := fromInput(in, false)
	if err != nil {
		return nil, err
	}
	if in.Published == nil {
		p.Published = true
	}
	now := s.now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt, p.UpdatedAt = now, now
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, s.writeError("Failed to create", err)
	}
	s.log.Info("project created", zap.String("project_id", p.ID), zap.String("slug", p.Slug))
	return p, nil
}

// Update overwrites a project. An empty location becomes domain.DefaultLocation; Published defaults to false.
func (s *ProjectService) Update(ctx context.Context, id string, in Input) (*domain.Project, error) {
	p, err := fromInput(in, true)
	if err != nil {
		return nil, err
	}
	p.ID = id
	p.UpdatedAt = s.now().UTC()
	ok, err := s.repo.Update(ctx, p)
	if err != nil {
		return nil, s.writeError("Failed to update", err)
	}
	if !ok {
		return nil, apperr.NotFound("")
	}
	return p, nil
}

// Delete removes a project with its image rows, then deletes the image objects best-effort.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	images, err := s.repo.ListImages(ctx, id)
	if err != nil {
		return s.storeError("Failed to delete project", err)
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return s.storeError("Failed to delete project", err)
	}
	if !ok {
		return apperr.NotFound("")
	}
	for _, img := range images {
		s.deleteObject(ctx, img.ObjectKey)
	}
	return nil
}

// ListImages returns a project's images in display order.
func (s *ProjectService) ListImages(ctx context.Context, projectID string) ([]*domain.Image, error) {
	if err := s.requireBlobs(); err != nil {
		return nil, err
	}
	images, err := s.repo.ListImages(ctx, projectID)
	if err != nil {
		return nil, s.storeError("Failed to load images", err)
	}
	return images, nil
}

// RegisterImage records a new image row with a fresh object key at the end of the project's order.
// The object itself is written afterwards through UploadImage or a presigned URL.
func (s *ProjectService) RegisterImage(ctx context.Context, projectID string, in NewImage) (*domain.Image, error) {
	if err := s.requireBlobs(); err != nil {
		return nil, err
	}
	filename := strings.TrimSpace(in.Filename)
	if filename == "" {
		return nil, apperr.Validation("Missing filename")
	}
	name, err := s.newToken(objectNameBytes)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	img := &domain.Image{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		ObjectKey:   domain.ObjectKey(projectID, name, filename),
		ContentType: strings.TrimSpace(in.ContentType),
		Bytes:       in.Bytes,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateImage(ctx, img); err != nil {
		return nil, s.storeError("Failed to create image", err)
	}
	return img, nil
}

// ReorderImages applies the given order and optionally a new cover.
func (s *ProjectService) ReorderImages(ctx context.Context, projectID string, orderedIDs []string, coverID string) error {
	if len(orderedIDs) == 0 {
		return apperr.Validation("orderedIds is required")
	}
	if err := s.repo.Reorder(ctx, projectID, orderedIDs, coverID); err != nil {
		return s.storeError("Failed to update images", err)
	}
	return nil
}

// OpenImage returns an image of projectID and its object body. The caller closes the body.
func (s *ProjectService) OpenImage(ctx context.Context, projectID, imageID string) (*domain.Image, *blob.Object, error) {
	if err := s.requireBlobs(); err != nil {
		return nil, nil, err
	}
	img, err := s.repo.GetImage(ctx, projectID, imageID)
	if err != nil {
		return nil, nil, s.storeError("Failed to load image", err)
	}
	if img == nil {
		return nil, nil, apperr.NotFound("")
	}
	obj, err := s.blobs.Get(ctx, img.ObjectKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, nil, apperr.NotFound("")
		}
		return nil, nil, s.storeError("Failed to load image", err)
	}
	return img, obj, nil
}

// UploadImage writes body as the image's object and records its content type and size.
// An empty contentType keeps the one registered with the image.
func (s *ProjectService) UploadImage(ctx context.Context, projectID, imageID string, body io.Reader, size int64, contentType string) error {
	if err := s.requireBlobs(); err != nil {
		return err
	}
	img, err := s.repo.GetImage(ctx, projectID, imageID)
	if err != nil {
		return s.storeError("Failed to upload image", err)
	}
	if img == nil {
		return apperr.NotFound("")
	}
	if contentType == "" {
		contentType = img.ContentType
	}
	if err := s.blobs.Put(ctx, img.ObjectKey, body, size, contentType); err != nil {
		return s.storeError("Failed to upload image", err)
	}
	if err := s.repo.RecordUpload(ctx, img.ID, contentType, size); err != nil {
		return s.storeError("Failed to upload image", err)
	}
	return nil
}

// DeleteImage removes the image row, then its object best-effort.
func (s *ProjectService) DeleteImage(ctx context.Context, projectID, imageID string) error {
	if err := s.requireBlobs(); err != nil {
		return err
	}
	img, err := s.repo.GetImage(ctx, projectID, imageID)
	if err != nil {
		return s.storeError("Failed to delete image", err)
	}
	if img == nil {
		return apperr.NotFound("")
	}
	if err := s.repo.DeleteImage(ctx, img.ID); err != nil {
		return s.storeError("Failed to delete image", err)
	}
	s.deleteObject(ctx, img.ObjectKey)
	return nil
}

// PresignUpload returns a URL that accepts a PUT of objectKey for blob.PresignTTL.
func (s *ProjectService) PresignUpload(ctx context.Context, objectKey, contentType string) (string, error) {
	if err := s.requireBlobs(); err != nil {
		return "", err
	}
	if objectKey == "" {
		return "", apperr.Validation("")
	}
	url, err := s.blobs.PresignPut(ctx, objectKey, contentType, blob.PresignTTL)
	if err != nil {
		return "", apperr.Internal("", err)
	}
	return url, nil
}

// PublicProjects returns published projects with image URLs, cover first.
func (s *ProjectService) PublicProjects(ctx context.Context) ([]PublicProject, error) {
	projects, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, s.readError(err)
	}
	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	images, err := s.repo.ListImagesFor(ctx, ids)
	if err != nil {
		return nil, s.readError(err)
	}
	out := make([]PublicProject, len(projects))
	for i, p := range projects {
		out[i] = PublicProject{
			ID:          p.ID,
			Slug:        p.Slug,
			Title:       p.Title,
			Client:      p.Category,
			Year:        p.Year,
			Description: p.Description,
			Images:      publicURLs(images[p.ID]),
		}
	}
	return out, nil
}

// FolderImages returns the image URLs of the project whose slug matches folder, cover first.
// Drafts are included; the legacy gallery reads by folder name only.
func (s *ProjectService) FolderImages(ctx context.Context, folder string) ([]string, error) {
	p, err := s.repo.GetBySlug(ctx, domain.Slugify(folder))
	if err != nil {
		return nil, s.readError(err)
	}
	if p == nil {
		return nil, apperr.NotFound("Project not found")
	}
	images, err := s.repo.ListImages(ctx, p.ID)
	if err != nil {
		return nil, s.readError(err)
	}
	return publicURLs(images), nil
}

// OpenPublicImage returns an image of a published project and its object body, retrying transient reads.
func (s *ProjectService) OpenPublicImage(ctx context.Context, imageID string) (*domain.Image, *blob.Object, error) {
	if err := s.requireBlobs(); err != nil {
		return nil, nil, err
	}
	img, published, err := s.repo.GetPublicImage(ctx, imageID)
	if err != nil {
		s.log.Error("public image lookup failed", zap.String("image_id", imageID), zap.Error(err))
		return nil, nil, apperr.Internal("Failed to load", err)
	}
	if img == nil {
		return nil, nil, apperr.NotFound("Not found")
	}
	if !published {
		return nil, nil, apperr.NotFound("Not published")
	}
	obj, err := blob.GetWithRetry(ctx, s.blobs, img.ObjectKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, nil, apperr.NotFound("Object missing")
		}
		s.log.Error("public image fetch failed", zap.String("image_id", imageID), zap.Error(err))
		return nil, nil, apperr.Internal("Failed to load", err)
	}
	return img, obj, nil
}

func (s *ProjectService) deleteObject(ctx context.Context, key string) {
	if s.blobs == nil {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.log.Warn("object delete failed", zap.String("key", key), zap.Error(err))
	}
}

// storeError maps a failed admin operation: unreachable database → 503, anything else → 400 with msg.
func (s *ProjectService) storeError(msg string, err error) error {
	if db.IsUnavailable(err) {
		return apperr.Unavailable("Database unavailable", err)
	}
	s.log.Warn("project operation failed", zap.String("op", msg), zap.Error(err))
	return &apperr.Error{Kind: apperr.KindValidation, Message: msg, Err: err}
}

// writeError is storeError for inserts and updates, which also report a taken slug.
func (s *ProjectService) writeError(msg string, err error) error {
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("Slug already exists")
	}
	return s.storeError(msg, err)
}

func (s *ProjectService) readError(err error) error {
	if db.IsUnavailable(err) {
		return apperr.Unavailable("Database unavailable", err)
	}
	return apperr.Internal("Server error", err)
}

func fromInput(in Input, update bool) (*domain.Project, error) {
	p := &domain.Project{
		Slug:        domain.Slugify(in.Slug),
		Title:       strings.TrimSpace(in.Title),
		Location:    strings.TrimSpace(in.Location),
		Category:    strings.TrimSpace(in.Category),
		Description: strings.TrimSpace(in.Description),
	}
	if update && p.Location == "" {
		p.Location = domain.DefaultLocation
	}
	if in.Published != nil {
		p.Published = *in.Published
	}
	if p.Slug == "" || p.Title == "" || p.Location == "" || p.Category == "" || p.Description == "" || in.Year == nil {
		return nil, apperr.Validation("Missing required fields")
	}
	p.Year = *in.Year
	return p, nil
}

func publicURLs(images []*domain.Image) []string {
	ordered := domain.CoverFirst(images)
	out := make([]string, len(ordered))
	for i, img := range ordered {
		out[i] = domain.PublicImageURL(img.ID)
	}
	return out
}
