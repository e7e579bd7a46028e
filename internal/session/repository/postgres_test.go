package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adhoc-admin/backend/internal/session/domain"
)

var now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewPostgresRepository(sqlx.NewDb(mockDB, "sqlmock")), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO admin_sessions")).
		WithArgs("s1", "u1", "hash", now.Add(time.Hour), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &domain.Session{
		ID: "s1", UserID: "u1", TokenHash: "hash", ExpiresAt: now.Add(time.Hour), IP: "1.2.3.4", CreatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByTokenHash(t *testing.T) {
	repo, mock := newMockRepo(t)
	cols := []string{"id", "user_id", "token_hash", "expires_at", "revoked_at", "ip", "user_agent", "last_seen_at", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM admin_sessions WHERE token_hash = $1")).
		WithArgs("hash").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("s1", "u1", "hash", now.Add(time.Hour), now, "1.2.3.4", "ua", nil, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM admin_sessions WHERE token_hash = $1")).
		WithArgs("unknown").
		WillReturnRows(sqlmock.NewRows(cols))

	s, err := repo.GetByTokenHash(context.Background(), "hash")
	require.NoError(t, err)
	require.NotNil(t, s)
	require.NotNil(t, s.RevokedAt)
	assert.Nil(t, s.LastSeenAt)
	assert.Equal(t, "ua", s.UserAgent)

	s, err = repo.GetByTokenHash(context.Background(), "unknown")
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestRevokeByTokenHash_OnlyUnrevoked(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("WHERE token_hash = $1 AND revoked_at IS NULL")).
		WithArgs("hash", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.RevokeByTokenHash(context.Background(), "hash", now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestRevokeAllByUser(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("WHERE user_id = $1 AND revoked_at IS NULL")).
		WithArgs("u1", now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAllByUser(context.Background(), "u1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestDeleteExpiredBefore(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM admin_sessions WHERE expires_at < $1")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteExpiredBefore(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
