package ports

import (
	"context"
	"time"

	"github.com/karmakanban/karmakanban-backend/internal/domain"
)

type ResetTokenRepository interface {
	// ReplaceForIdentity removes every token row for identity and inserts a new one atomically.
	ReplaceForIdentity(ctx context.Context, identity, tokenHash string, expiresAt time.Time) (*domain.ResetToken, error)
	FindByHash(ctx context.Context, tokenHash string) (*domain.ResetToken, error)
	// MarkUsed flips used=false to used=true for a live token and returns the owning identity.
	// It returns sql.ErrNoRows when no row was updated.
	MarkUsed(ctx context.Context, tokenHash string, now time.Time) (string, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
