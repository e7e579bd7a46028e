package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresStore keeps counters in rate_limit_counters. Each hit runs in its own
// transaction and locks the key's row, so concurrent hits on one key are serialized.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore returns a Store backed by db.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Hit implements Store.
func (s *PostgresStore) Hit(ctx context.Context, key string, rule Rule, now time.Time) (Result, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO rate_limit_counters (key, window_start, count, blocked_until, updated_at)
		 VALUES ($1, $2, 1, NULL, $2)
		 ON CONFLICT (key) DO NOTHING`,
		key, now)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: insert: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		if err := tx.Commit(); err != nil {
			return Result{}, fmt.Errorf("ratelimit: commit: %w", err)
		}
		return Result{Allowed: true}, nil
	}

	var c Counter
	if err := tx.GetContext(ctx, &c,
		`SELECT key, window_start, count, blocked_until
		 FROM rate_limit_counters WHERE key = $1 FOR UPDATE`, key); err != nil {
		return Result{}, fmt.Errorf("ratelimit: select: %w", err)
	}

	next, result, changed := Step(c, rule, now)
	if changed {
		if _, err := tx.ExecContext(ctx,
			`UPDATE rate_limit_counters
			 SET window_start = $2, count = $3, blocked_until = $4, updated_at = $5
			 WHERE key = $1`,
			key, next.WindowStart, next.Count, next.BlockedUntil, now); err != nil {
			return Result{}, fmt.Errorf("ratelimit: update: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("ratelimit: commit: %w", err)
	}
	return result, nil
}

// PruneIdle deletes counters not touched since before whose block, if any, has ended.
// Returns the number of rows removed.
func (s *PostgresStore) PruneIdle(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM rate_limit_counters
		 WHERE updated_at < $1 AND (blocked_until IS NULL OR blocked_until < $1)`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
