package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"adhoc-admin/backend/internal/project/domain"
)

const (
	projectColumns = `id, slug, title, location, year, category, description, published, created_at, updated_at`
	imageColumns   = `id, project_id, object_key, sort_order, is_cover, content_type, bytes, created_at`
	imageOrder     = `ORDER BY sort_order ASC, created_at ASC`
)

type projectRow struct {
	ID          string    `db:"id"`
	Slug        string    `db:"slug"`
	Title       string    `db:"title"`
	Location    string    `db:"location"`
	Year        int       `db:"year"`
	Category    string    `db:"category"`
	Description string    `db:"description"`
	Published   bool      `db:"published"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type imageRow struct {
	ID          string         `db:"id"`
	ProjectID   string         `db:"project_id"`
	ObjectKey   string         `db:"object_key"`
	SortOrder   int            `db:"sort_order"`
	IsCover     bool           `db:"is_cover"`
	ContentType sql.NullString `db:"content_type"`
	Bytes       sql.NullInt64  `db:"bytes"`
	CreatedAt   time.Time      `db:"created_at"`
}

type publicImageRow struct {
	imageRow
	Published bool `db:"published"`
}

// PostgresRepository implements Repository over projects and project_images.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a project repository that uses the given db for persistence.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// List implements Repository.
func (r *PostgresRepository) List(ctx context.Context, publishedOnly bool) ([]*domain.Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects`
	if publishedOnly {
		q += ` WHERE published = TRUE`
	}
	q += ` ORDER BY year DESC, title ASC`
	var rows []projectRow
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	out := make([]*domain.Project, len(rows))
	for i := range rows {
		out[i] = projectToDomain(&rows[i])
	}
	return out, nil
}

// GetByID implements Repository.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	return r.getOne(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
}

// GetBySlug implements Repository.
func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*domain.Project, error) {
	return r.getOne(ctx, `SELECT `+projectColumns+` FROM projects WHERE slug = $1`, slug)
}

func (r *PostgresRepository) getOne(ctx context.Context, q string, arg any) (*domain.Project, error) {
	var row projectRow
	if err := r.db.GetContext(ctx, &row, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return projectToDomain(&row), nil
}

// Create implements Repository. The caller sets ID and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Project) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (id, slug, title, location, year, category, description, published, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Slug, p.Title, p.Location, p.Year, p.Category, p.Description, p.Published, p.CreatedAt, p.UpdatedAt)
	return err
}

// Update implements Repository.
func (r *PostgresRepository) Update(ctx context.Context, p *domain.Project) (bool, error) {
	var row projectRow
	err := r.db.GetContext(ctx, &row,
		`UPDATE projects
		 SET slug = $2, title = $3, location = $4, year = $5, category = $6, description = $7, published = $8, updated_at = $9
		 WHERE id = $1
		 RETURNING `+projectColumns,
		p.ID, p.Slug, p.Title, p.Location, p.Year, p.Category, p.Description, p.Published, p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	*p = *projectToDomain(&row)
	return true, nil
}

// UpsertBySlug implements Repository.
func (r *PostgresRepository) UpsertBySlug(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	var row projectRow
	err := r.db.GetContext(ctx, &row,
		`INSERT INTO projects (id, slug, title, location, year, category, description, published, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		 ON CONFLICT (slug) DO UPDATE
		 SET title = EXCLUDED.title, location = EXCLUDED.location, year = EXCLUDED.year, category = EXCLUDED.category,
		     description = EXCLUDED.description, published = EXCLUDED.published, updated_at = EXCLUDED.updated_at
		 RETURNING `+projectColumns,
		p.ID, p.Slug, p.Title, p.Location, p.Year, p.Category, p.Description, p.Published, p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return projectToDomain(&row), nil
}

// Delete implements Repository.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListImages implements Repository.
func (r *PostgresRepository) ListImages(ctx context.Context, projectID string) ([]*domain.Image, error) {
	var rows []imageRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+imageColumns+` FROM project_images WHERE project_id = $1 `+imageOrder, projectID); err != nil {
		return nil, err
	}
	out := make([]*domain.Image, len(rows))
	for i := range rows {
		out[i] = imageToDomain(&rows[i])
	}
	return out, nil
}

// ListImagesFor implements Repository.
func (r *PostgresRepository) ListImagesFor(ctx context.Context, projectIDs []string) (map[string][]*domain.Image, error) {
	out := make(map[string][]*domain.Image, len(projectIDs))
	if len(projectIDs) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(
		`SELECT `+imageColumns+` FROM project_images WHERE project_id IN (?) ORDER BY project_id, sort_order ASC, created_at ASC`,
		projectIDs)
	if err != nil {
		return nil, fmt.Errorf("project images: build query: %w", err)
	}
	var rows []imageRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	for i := range rows {
		img := imageToDomain(&rows[i])
		out[img.ProjectID] = append(out[img.ProjectID], img)
	}
	return out, nil
}

// GetImage implements Repository.
func (r *PostgresRepository) GetImage(ctx context.Context, projectID, imageID string) (*domain.Image, error) {
	var row imageRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+imageColumns+` FROM project_images WHERE id = $1 AND project_id = $2`, imageID, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return imageToDomain(&row), nil
}

// GetPublicImage implements Repository.
func (r *PostgresRepository) GetPublicImage(ctx context.Context, imageID string) (*domain.Image, bool, error) {
	var row publicImageRow
	err := r.db.GetContext(ctx, &row,
		`SELECT i.id, i.project_id, i.object_key, i.sort_order, i.is_cover, i.content_type, i.bytes, i.created_at, p.published
		 FROM project_images i JOIN projects p ON p.id = i.project_id
		 WHERE i.id = $1`, imageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return imageToDomain(&row.imageRow), row.Published, nil
}

// CreateImage implements Repository.
func (r *PostgresRepository) CreateImage(ctx context.Context, img *domain.Image) error {
	return r.db.GetContext(ctx, &img.SortOrder,
		`INSERT INTO project_images (id, project_id, object_key, sort_order, is_cover, content_type, bytes, created_at)
		 SELECT $1, $2, $3, COALESCE(MAX(sort_order), -1) + 1, $4, $5, $6, $7
		 FROM project_images WHERE project_id = $2
		 RETURNING sort_order`,
		img.ID, img.ProjectID, img.ObjectKey, img.IsCover, nullString(img.ContentType), nullInt64(img.Bytes), img.CreatedAt)
}

// RecordUpload implements Repository.
func (r *PostgresRepository) RecordUpload(ctx context.Context, imageID, contentType string, size int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE project_images SET content_type = COALESCE($2, content_type), bytes = $3 WHERE id = $1`,
		imageID, nullString(contentType), size)
	return err
}

// DeleteImage implements Repository.
func (r *PostgresRepository) DeleteImage(ctx context.Context, imageID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM project_images WHERE id = $1`, imageID)
	return err
}

// Reorder implements Repository.
func (r *PostgresRepository) Reorder(ctx context.Context, projectID string, orderedIDs []string, coverID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for i, id := range orderedIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE project_images SET sort_order = $3 WHERE id = $1 AND project_id = $2`, id, projectID, i); err != nil {
			return err
		}
	}
	if coverID != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE project_images SET is_cover = (id = $2) WHERE project_id = $1`, projectID, coverID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func projectToDomain(row *projectRow) *domain.Project {
	return &domain.Project{
		ID:          row.ID,
		Slug:        row.Slug,
		Title:       row.Title,
		Location:    row.Location,
		Year:        row.Year,
		Category:    row.Category,
		Description: row.Description,
		Published:   row.Published,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func imageToDomain(row *imageRow) *domain.Image {
	img := &domain.Image{
		ID:        row.ID,
		ProjectID: row.ProjectID,
		ObjectKey: row.ObjectKey,
		SortOrder: row.SortOrder,
		IsCover:   row.IsCover,
		CreatedAt: row.CreatedAt,
	}
	if row.ContentType.Valid {
		img.ContentType = row.ContentType.String
	}
	if row.Bytes.Valid {
		n := row.Bytes.Int64
		img.Bytes = &n
	}
	return img
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}
