package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"adhoc-admin/backend/internal/user/domain"
)

const userColumns = `id, email, password_hash, role, is_active, mfa_enabled, last_login_at, created_at, updated_at`

type userRow struct {
	ID           string       `db:"id"`
	Email        string       `db:"email"`
	PasswordHash string       `db:"password_hash"`
	Role         string       `db:"role"`
	IsActive     bool         `db:"is_active"`
	MFAEnabled   bool         `db:"mfa_enabled"`
	LastLoginAt  sql.NullTime `db:"last_login_at"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

// PostgresRepository implements Repository over admin_users.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AdminUser, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM admin_users WHERE id = $1`, id)
}

// GetByEmail returns the user for the normalized email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.AdminUser, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM admin_users WHERE email = $1`, domain.NormalizeEmail(email))
}

func (r *PostgresRepository) getOne(ctx context.Context, q string, arg any) (*domain.AdminUser, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToDomain(&row), nil
}

// List returns every admin, super admins first, then by email.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.AdminUser, error) {
	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+userColumns+` FROM admin_users ORDER BY role DESC, email ASC`); err != nil {
		return nil, err
	}
	out := make([]*domain.AdminUser, len(rows))
	for i := range rows {
		out[i] = rowToDomain(&rows[i])
	}
	return out, nil
}

// Create inserts u. The caller sets ID and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.AdminUser) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admin_users (id, email, password_hash, role, is_active, mfa_enabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.PasswordHash, string(u.Role), u.IsActive, u.MFAEnabled, u.CreatedAt, u.UpdatedAt)
	return err
}

// UpsertSuperAdmin implements Repository.
func (r *PostgresRepository) UpsertSuperAdmin(ctx context.Context, u *domain.AdminUser) (*domain.AdminUser, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row,
		`INSERT INTO admin_users (id, email, password_hash, role, is_active, mfa_enabled, created_at, updated_at)
		 VALUES ($1, $2, $3, 'SUPER_ADMIN', TRUE, TRUE, $4, $4)
		 ON CONFLICT (email) DO UPDATE
		 SET password_hash = EXCLUDED.password_hash, role = 'SUPER_ADMIN', is_active = TRUE, mfa_enabled = TRUE, updated_at = EXCLUDED.updated_at
		 RETURNING `+userColumns,
		u.ID, u.Email, u.PasswordHash, u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rowToDomain(&row), nil
}

// UpsertAdmin implements Repository.
func (r *PostgresRepository) UpsertAdmin(ctx context.Context, u *domain.AdminUser) (*domain.AdminUser, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row,
		`INSERT INTO admin_users (id, email, password_hash, role, is_active, mfa_enabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, TRUE, TRUE, $5, $5)
		 ON CONFLICT (email) DO UPDATE
		 SET password_hash = EXCLUDED.password_hash, is_active = TRUE, mfa_enabled = TRUE, updated_at = EXCLUDED.updated_at
		 RETURNING `+userColumns,
		u.ID, u.Email, u.PasswordHash, string(u.Role), u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rowToDomain(&row), nil
}

// SetLastLogin records a completed login.
func (r *PostgresRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE admin_users SET last_login_at = $2, updated_at = $2 WHERE id = $1`, id, at)
	return err
}

// SetPasswordHash replaces the stored password hash.
func (r *PostgresRepository) SetPasswordHash(ctx context.Context, id, hash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE admin_users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	return err
}

// SetRole changes the user's role.
func (r *PostgresRepository) SetRole(ctx context.Context, id string, role domain.Role) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE admin_users SET role = $2, updated_at = NOW() WHERE id = $1`, id, string(role))
	return err
}

// SetActive activates or deactivates the user.
func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE admin_users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	return err
}

// Delete implements Repository.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM admin_users WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func rowToDomain(row *userRow) *domain.AdminUser {
	u := &domain.AdminUser{
		ID:           row.ID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Role:         domain.Role(row.Role),
		IsActive:     row.IsActive,
		MFAEnabled:   row.MFAEnabled,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.LastLoginAt.Valid {
		t := row.LastLoginAt.Time
		u.LastLoginAt = &t
	}
	return u
}
