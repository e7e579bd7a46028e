package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"adhoc-admin/backend/internal/otp/domain"
)

const otpColumns = `id, user_id, purpose, code_hash, expires_at, max_attempts, attempt_count, send_count,
	last_sent_at, consumed_at, ip, user_agent, created_at`

type otpRow struct {
	ID           string         `db:"id"`
	UserID       string         `db:"user_id"`
	Purpose      string         `db:"purpose"`
	CodeHash     string         `db:"code_hash"`
	ExpiresAt    time.Time      `db:"expires_at"`
	MaxAttempts  int            `db:"max_attempts"`
	AttemptCount int            `db:"attempt_count"`
	SendCount    int            `db:"send_count"`
	LastSentAt   sql.NullTime   `db:"last_sent_at"`
	ConsumedAt   sql.NullTime   `db:"consumed_at"`
	IP           sql.NullString `db:"ip"`
	UserAgent    sql.NullString `db:"user_agent"`
	CreatedAt    time.Time      `db:"created_at"`
}

// PostgresRepository implements Repository over email_otps.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns an OTP repository that uses the given db.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the challenge. The challenge must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, o *domain.EmailOTP) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO email_otps (id, user_id, purpose, code_hash, expires_at, max_attempts, attempt_count, send_count,
			last_sent_at, ip, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.UserID, o.Purpose, o.CodeHash, o.ExpiresAt, o.MaxAttempts, o.AttemptCount, o.SendCount,
		timeToNullTime(o.LastSentAt), stringToNull(o.IP), stringToNull(o.UserAgent), o.CreatedAt)
	return err
}

// ConsumeActive implements Repository.
func (r *PostgresRepository) ConsumeActive(ctx context.Context, userID, purpose string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE email_otps SET consumed_at = $3
		 WHERE user_id = $1 AND purpose = $2 AND consumed_at IS NULL AND expires_at > $3`,
		userID, purpose, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Latest implements Repository.
func (r *PostgresRepository) Latest(ctx context.Context, userID, purpose string) (*domain.EmailOTP, error) {
	return r.getOne(ctx,
		`SELECT `+otpColumns+` FROM email_otps
		 WHERE user_id = $1 AND purpose = $2
		 ORDER BY created_at DESC LIMIT 1`, userID, purpose)
}

// FindActive implements Repository.
func (r *PostgresRepository) FindActive(ctx context.Context, userID, purpose string, now time.Time) (*domain.EmailOTP, error) {
	return r.getOne(ctx,
		`SELECT `+otpColumns+` FROM email_otps
		 WHERE user_id = $1 AND purpose = $2 AND consumed_at IS NULL AND expires_at > $3 AND attempt_count < max_attempts
		 ORDER BY created_at DESC LIMIT 1`, userID, purpose, now)
}

func (r *PostgresRepository) getOne(ctx context.Context, q string, args ...any) (*domain.EmailOTP, error) {
	var row otpRow
	if err := r.db.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToDomain(&row), nil
}

// IncrementAttempts records one failed verification.
func (r *PostgresRepository) IncrementAttempts(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE email_otps SET attempt_count = attempt_count + 1 WHERE id = $1 AND consumed_at IS NULL`, id)
	return err
}

// Consume implements Repository.
func (r *PostgresRepository) Consume(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE email_otps SET consumed_at = $2
		 WHERE id = $1 AND consumed_at IS NULL AND expires_at > $2 AND attempt_count < max_attempts`,
		id, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Invalidate implements Repository.
func (r *PostgresRepository) Invalidate(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE email_otps SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`, id, now)
	return err
}

// DeleteExpiredBefore implements Repository.
func (r *PostgresRepository) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM email_otps WHERE expires_at < $1`, before)
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

func stringToNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func rowToDomain(row *otpRow) *domain.EmailOTP {
	return &domain.EmailOTP{
		ID:           row.ID,
		UserID:       row.UserID,
		Purpose:      row.Purpose,
		CodeHash:     row.CodeHash,
		ExpiresAt:    row.ExpiresAt,
		MaxAttempts:  row.MaxAttempts,
		AttemptCount: row.AttemptCount,
		SendCount:    row.SendCount,
		LastSentAt:   nullTimeToPtr(row.LastSentAt),
		ConsumedAt:   nullTimeToPtr(row.ConsumedAt),
		IP:           row.IP.String,
		UserAgent:    row.UserAgent.String,
		CreatedAt:    row.CreatedAt,
	}
}
