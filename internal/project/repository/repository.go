package repository

import (
	"context"

	"adhoc-admin/backend/internal/project/domain"
)

// Repository defines persistence for projects and their images. Lookups return (nil, nil) when the row does not exist.
type Repository interface {
	// List returns projects ordered by year desc, title asc. publishedOnly hides drafts.
	List(ctx context.Context, publishedOnly bool) ([]*domain.Project, error)
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Project, error)
	Create(ctx context.Context, p *domain.Project) error
	// Update overwrites the editable fields; returns false when no row matched.
	Update(ctx context.Context, p *domain.Project) (bool, error)
	// UpsertBySlug inserts p or updates the row with the same slug, returning the stored project.
	UpsertBySlug(ctx context.Context, p *domain.Project) (*domain.Project, error)
	// Delete removes the project and, by cascade, its image rows; returns false when no row matched.
	Delete(ctx context.Context, id string) (bool, error)

	// ListImages returns images for one project ordered by sort order, then creation time.
	ListImages(ctx context.Context, projectID string) ([]*domain.Image, error)
	// ListImagesFor returns images for several projects keyed by project id, each slice ordered as ListImages.
	ListImagesFor(ctx context.Context, projectIDs []string) (map[string][]*domain.Image, error)
	// GetImage returns the image only when it belongs to projectID.
	GetImage(ctx context.Context, projectID, imageID string) (*domain.Image, error)
	// GetPublicImage returns the image and whether its project is published.
	GetPublicImage(ctx context.Context, imageID string) (*domain.Image, bool, error)
	// CreateImage appends img after the project's current last sort order and sets img.SortOrder.
	CreateImage(ctx context.Context, img *domain.Image) error
	// RecordUpload stores the content type and size after the object was written.
	RecordUpload(ctx context.Context, imageID, contentType string, size int64) error
	DeleteImage(ctx context.Context, imageID string) error
	// Reorder assigns sort order by position in orderedIDs and, when coverID is set, makes it the only cover.
	// Ids that do not belong to projectID are ignored. Runs in one transaction.
	Reorder(ctx context.Context, projectID string, orderedIDs []string, coverID string) error
}
