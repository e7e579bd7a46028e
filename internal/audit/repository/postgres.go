package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"adhoc-admin/backend/internal/audit/domain"
)

const auditColumns = `id, user_id, action, resource, ip, metadata, created_at`

type auditRow struct {
	ID        string         `db:"id"`
	UserID    sql.NullString `db:"user_id"`
	Action    string         `db:"action"`
	Resource  string         `db:"resource"`
	IP        string         `db:"ip"`
	Metadata  sql.NullString `db:"metadata"`
	CreatedAt time.Time      `db:"created_at"`
}

// PostgresRepository implements Repository over audit_logs.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the audit log for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	var row auditRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+auditColumns+` FROM audit_logs WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToDomain(&row), nil
}

// List returns audit logs newest first. Returns (nil, error) only on database errors.
func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]*domain.AuditLog, error) {
	f = f.Normalize()
	var rows []auditRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+auditColumns+` FROM audit_logs
		 WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR action = $2)
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		f.UserID, f.Action, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.AuditLog, len(rows))
	for i := range rows {
		out[i] = rowToDomain(&rows[i])
	}
	return out, nil
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	uid := sql.NullString{String: a.UserID, Valid: a.UserID != ""}
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, action, resource, ip, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, uid, a.Action, a.Resource, a.IP, meta, a.CreatedAt)
	return err
}

func rowToDomain(r *auditRow) *domain.AuditLog {
	if r == nil {
		return nil
	}
	return &domain.AuditLog{
		ID:        r.ID,
		UserID:    r.UserID.String,
		Action:    r.Action,
		Resource:  r.Resource,
		IP:        r.IP,
		Metadata:  r.Metadata.String,
		CreatedAt: r.CreatedAt,
	}
}
