package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/karmakanban/karmakanban-backend/internal/domain"
)

type ResetTokenRepository struct {
	db *sqlx.DB
}

func NewResetTokenRepo(db *sqlx.DB) *ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

func (r *ResetTokenRepository) ReplaceForIdentity(ctx context.Context, identity, tokenHash string, expiresAt time.Time) (*domain.ResetToken, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	const deleteQuery = `
        DELETE FROM password_reset_tokens
        WHERE identity = $1
    `
	if _, err := tx.ExecContext(ctx, deleteQuery, identity); err != nil {
		return nil, err
	}

	const insertQuery = `
        INSERT INTO password_reset_tokens (identity, token_hash, expires_at)
        VALUES ($1, $2, $3)
        RETURNING id, identity, token_hash, expires_at, used, used_at, created_at
    `
	var token domain.ResetToken
	if err := tx.QueryRowxContext(ctx, insertQuery, identity, tokenHash, expiresAt).StructScan(&token); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *ResetTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*domain.ResetToken, error) {
	const query = `
        SELECT id, identity, token_hash, expires_at, used, used_at, created_at
        FROM password_reset_tokens
        WHERE token_hash = $1
    `
	var token domain.ResetToken
	if err := r.db.GetContext(ctx, &token, query, tokenHash); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *ResetTokenRepository) MarkUsed(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	const query = `
        UPDATE password_reset_tokens
        SET used = TRUE,
            used_at = $2
        WHERE token_hash = $1 AND used = FALSE AND expires_at > $2
        RETURNING identity
    `
	var identity string
	if err := r.db.QueryRowxContext(ctx, query, tokenHash, now).Scan(&identity); err != nil {
		return "", err
	}
	return identity, nil
}

func (r *ResetTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `
        DELETE FROM password_reset_tokens
        WHERE expires_at <= $1
    `
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
