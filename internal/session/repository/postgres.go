package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"adhoc-admin/backend/internal/session/domain"
)

type sessionRow struct {
	ID         string         `db:"id"`
	UserID     string         `db:"user_id"`
	TokenHash  string         `db:"token_hash"`
	ExpiresAt  time.Time      `db:"expires_at"`
	RevokedAt  sql.NullTime   `db:"revoked_at"`
	IP         sql.NullString `db:"ip"`
	UserAgent  sql.NullString `db:"user_agent"`
	LastSeenAt sql.NullTime   `db:"last_seen_at"`
	CreatedAt  time.Time      `db:"created_at"`
}

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admin_sessions (id, user_id, token_hash, expires_at, ip, user_agent, last_seen_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.UserID, s.TokenHash, s.ExpiresAt,
		sql.NullString{String: s.IP, Valid: s.IP != ""},
		sql.NullString{String: s.UserAgent, Valid: s.UserAgent != ""},
		timeToNullTime(s.LastSeenAt), s.CreatedAt)
	return err
}

// GetByTokenHash returns the session for hash, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, user_id, token_hash, expires_at, revoked_at, ip, user_agent, last_seen_at, created_at
		 FROM admin_sessions WHERE token_hash = $1`, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToDomain(&row), nil
}

// UpdateLastSeen sets the session's last-seen timestamp for the given id.
func (r *PostgresRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE admin_sessions SET last_seen_at = $2 WHERE id = $1`, id, at)
	return err
}

// RevokeByTokenHash implements Repository.
func (r *PostgresRepository) RevokeByTokenHash(ctx context.Context, hash string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE admin_sessions SET revoked_at = $2 WHERE token_hash = $1 AND revoked_at IS NULL`, hash, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RevokeAllByUser revokes every open session of the user.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE admin_sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`, userID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpiredBefore implements Repository.
func (r *PostgresRepository) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}

func rowToDomain(row *sessionRow) *domain.Session {
	return &domain.Session{
		ID:         row.ID,
		UserID:     row.UserID,
		TokenHash:  row.TokenHash,
		ExpiresAt:  row.ExpiresAt,
		RevokedAt:  nullTimeToPtr(row.RevokedAt),
		IP:         row.IP.String,
		UserAgent:  row.UserAgent.String,
		LastSeenAt: nullTimeToPtr(row.LastSeenAt),
		CreatedAt:  row.CreatedAt,
	}
}
