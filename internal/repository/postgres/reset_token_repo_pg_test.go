package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*ResetTokenRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewResetTokenRepo(sqlx.NewDb(db, "sqlmock")), mock
}

var resetTokenColumns = []string{"id", "identity", "token_hash", "expires_at", "used", "used_at", "created_at"}

func TestReplaceForIdentityDeletesThenInserts(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	expires := now.Add(30 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM password_reset_tokens").
		WithArgs("a@x.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO password_reset_tokens").
		WithArgs("a@x.com", "digest", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(resetTokenColumns).
			AddRow(7, "a@x.com", "digest", expires, false, nil, now))
	mock.ExpectCommit()

	token, err := repo.ReplaceForIdentity(context.Background(), "a@x.com", "digest", expires)
	require.NoError(t, err)
	require.Equal(t, int64(7), token.ID)
	require.Equal(t, "a@x.com", token.Identity)
	require.False(t, token.Used)
	require.Nil(t, token.UsedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceForIdentityRollsBackOnFailure(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM password_reset_tokens").
		WithArgs("a@x.com").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.ReplaceForIdentity(context.Background(), "a@x.com", "digest", time.Now())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkUsedIsConditional(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(`UPDATE password_reset_tokens\s+SET used = TRUE`).
		WithArgs("digest", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"identity"}).AddRow("a@x.com"))
	mock.ExpectQuery(`WHERE token_hash = \$1 AND used = FALSE AND expires_at > \$2`).
		WithArgs("digest", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"identity"}))

	identity, err := repo.MarkUsed(context.Background(), "digest", now)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", identity)

	_, err = repo.MarkUsed(context.Background(), "digest", now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByHashNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT id, identity, token_hash").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(resetTokenColumns))

	_, err := repo.FindByHash(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpiredReportsCount(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM password_reset_tokens\s+WHERE expires_at <= \$1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
