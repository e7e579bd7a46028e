// Package importer loads the legacy portfolio (a projects.json list plus one image folder per project)
// into the project store and the blob store.
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"adhoc-admin/backend/internal/blob"
	"adhoc-admin/backend/internal/logger"
	"adhoc-admin/backend/internal/project/domain"
)

// Location is stored on every imported project.
const Location = "Lebanon"

// Item is one entry of projects.json. Year may be a number or a numeric string.
type Item struct {
	Title       string `json:"title"`
	Client      string `json:"client"`
	Year        any    `json:"year"`
	Description string `json:"description"`
	Folder      string `json:"folder"`
	Cover       string `json:"cover"`
}

// Store is the project persistence the importer writes through.
type Store interface {
	UpsertBySlug(ctx context.Context, p *domain.Project) (*domain.Project, error)
	ListImages(ctx context.Context, projectID string) ([]*domain.Image, error)
	CreateImage(ctx context.Context, img *domain.Image) error
}

// Result counts what one Import run did.
type Result struct {
	Projects int
	Images   int
	Skipped  int
}

// Importer upserts projects by slug and uploads their images once.
type Importer struct {
	store Store
	blobs blob.Store
	log   *zap.Logger
	now   func() time.Time
}

// New returns an Importer.
func New(store Store, blobs blob.Store, log *zap.Logger) *Importer {
	return &Importer{store: store, blobs: blobs, log: logger.OrNop(log), now: time.Now}
}

// Import processes items in order. images holds one directory per item folder.
// Invalid items and missing folders are logged and skipped; store and blob errors abort the run.
func (im *Importer) Import(ctx context.Context, items []Item, images fs.FS) (Result, error) {
	var res Result
	for _, it := range items {
		title := strings.TrimSpace(it.Title)
		client := strings.TrimSpace(it.Client)
		description := strings.TrimSpace(it.Description)
		folder := strings.TrimSpace(it.Folder)
		year, ok := yearOf(it.Year)
		if title == "" || client == "" || !ok || description == "" || folder == "" {
			im.log.Warn("skipping invalid item", zap.String("title", title), zap.String("folder", folder))
			res.Skipped++
			continue
		}

		slug := domain.Slugify(folder)
		now := im.now().UTC()
		p, err := im.store.UpsertBySlug(ctx, &domain.Project{
			ID:          uuid.NewString(),
			Slug:        slug,
			Title:       title,
			Location:    Location,
			Year:        year,
			Category:    client,
			Description: description,
			Published:   true,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return res, fmt.Errorf("upsert %s: %w", slug, err)
		}
		res.Projects++

		existing, err := im.store.ListImages(ctx, p.ID)
		if err != nil {
			return res, fmt.Errorf("list images %s: %w", slug, err)
		}
		if len(existing) > 0 {
			im.log.Info("images already imported", zap.String("slug", slug), zap.Int("count", len(existing)))
			continue
		}

		files, err := imageFiles(images, folder)
		if err != nil {
			im.log.Warn("folder not found", zap.String("slug", slug), zap.String("folder", folder), zap.Error(err))
			continue
		}
		if len(files) == 0 {
			im.log.Info("no images found", zap.String("slug", slug))
			continue
		}

		ordered := coverFirst(files, path.Base(strings.TrimSpace(it.Cover)))
		for i, name := range ordered {
			if err := im.importImage(ctx, images, p.ID, folder, name, i); err != nil {
				return res, fmt.Errorf("image %s/%s: %w", slug, name, err)
			}
			res.Images++
		}
		im.log.Info("imported project", zap.String("slug", slug), zap.Int("images", len(ordered)))
	}
	return res, nil
}

func (im *Importer) importImage(ctx context.Context, images fs.FS, projectID, folder, name string, i int) error {
	key := LegacyKey(projectID, i, name)
	contentType := ContentType(name)
	filePath := path.Join(folder, name)

	info, err := fs.Stat(images, filePath)
	if err != nil {
		return err
	}
	exists, err := im.blobs.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		f, err := images.Open(filePath)
		if err != nil {
			return err
		}
		err = im.blobs.Put(ctx, key, f, info.Size(), contentType)
		_ = f.Close()
		if err != nil {
			return err
		}
	}

	size := info.Size()
	return im.store.CreateImage(ctx, &domain.Image{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		ObjectKey:   key,
		IsCover:     i == 0,
		ContentType: contentType,
		Bytes:       &size,
		CreatedAt:   im.now().UTC(),
	})
}

// LegacyKey is the object key of the i-th imported image: projects/<id>/legacy/<NNN>-<file>.
func LegacyKey(projectID string, i int, filename string) string {
	return fmt.Sprintf("projects/%s/legacy/%03d-%s", projectID, i, filename)
}

// ContentType guesses the image type from the extension. Unknown extensions give "".
func ContentType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	}
	return ""
}

func imageFiles(images fs.FS, folder string) ([]string, error) {
	entries, err := fs.ReadDir(images, folder)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && ContentType(e.Name()) != "" {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func coverFirst(files []string, cover string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if f == cover {
			out = append(out, f)
			break
		}
	}
	for _, f := range files {
		if f != cover {
			out = append(out, f)
		}
	}
	return out
}

func yearOf(v any) (int, bool) {
	switch y := v.(type) {
	case float64:
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return 0, false
		}
		return int(y), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(y))
		return n, err == nil
	}
	return 0, false
}
