package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/karmakanban/karmakanban-backend/internal/domain"
	"github.com/karmakanban/karmakanban-backend/internal/repository/ports"
	"github.com/karmakanban/karmakanban-backend/internal/util"
)

var (
	ErrResetTokenNotFound = errors.New("reset token not found")
	ErrResetTokenExpired  = errors.New("reset token expired")
	ErrResetTokenUsed     = errors.New("reset token already used")
	ErrStorageFailure     = errors.New("storage unavailable")
)

const DefaultResetTokenTTL = 30 * time.Minute

// ResetTokenLedger issues and redeems the durable single-use tokens that
// authorize the final password change. Plaintext tokens never reach storage.
type ResetTokenLedger struct {
	tokens ports.ResetTokenRepository
	ttl    time.Duration
	now    func() time.Time
	mint   func(length int) (string, error)
}

func NewResetTokenLedger(tokens ports.ResetTokenRepository, ttl time.Duration) *ResetTokenLedger {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &ResetTokenLedger{
		tokens: tokens,
		ttl:    ttl,
		now:    time.Now,
		mint:   util.GenerateResetToken,
	}
}

// Mint replaces every token held by identity with a fresh one and returns
// the plaintext value together with the stored row.
func (l *ResetTokenLedger) Mint(ctx context.Context, identity string) (string, *domain.ResetToken, error) {
	token, err := l.mint(0)
	if err != nil {
		return "", nil, err
	}
	row, err := l.tokens.ReplaceForIdentity(ctx, identity, util.HashToken(token), l.now().Add(l.ttl))
	if err != nil {
		return "", nil, fmt.Errorf("%w: mint reset token: %v", ErrStorageFailure, err)
	}
	return token, row, nil
}

// Validate reports the identity owning token without changing its state.
func (l *ResetTokenLedger) Validate(ctx context.Context, token string) (string, error) {
	row, err := l.lookup(ctx, token)
	if err != nil {
		return "", err
	}
	if err := l.checkUsable(row); err != nil {
		return "", err
	}
	return row.Identity, nil
}

// Consume marks token as used exactly once. Concurrent callers race on a
// single conditional update; losers get ErrResetTokenUsed.
func (l *ResetTokenLedger) Consume(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrResetTokenNotFound
	}
	hash := util.HashToken(token)
	identity, err := l.tokens.MarkUsed(ctx, hash, l.now())
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: consume reset token: %v", ErrStorageFailure, err)
	}

	row, err := l.lookup(ctx, token)
	if err != nil {
		return "", err
	}
	if err := l.checkUsable(row); err != nil {
		return "", err
	}
	// The row exists, is unused and unexpired, yet the update missed it:
	// it expired between the two statements.
	return "", ErrResetTokenExpired
}

func (l *ResetTokenLedger) SweepExpired(ctx context.Context) (int64, error) {
	n, err := l.tokens.DeleteExpired(ctx, l.now())
	if err != nil {
		return 0, fmt.Errorf("%w: sweep reset tokens: %v", ErrStorageFailure, err)
	}
	return n, nil
}

func (l *ResetTokenLedger) lookup(ctx context.Context, token string) (*domain.ResetToken, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrResetTokenNotFound
	}
	row, err := l.tokens.FindByHash(ctx, util.HashToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResetTokenNotFound
		}
		return nil, fmt.Errorf("%w: lookup reset token: %v", ErrStorageFailure, err)
	}
	return row, nil
}

func (l *ResetTokenLedger) checkUsable(row *domain.ResetToken) error {
	if row.Used {
		return ErrResetTokenUsed
	}
	if row.ExpiredAt(l.now()) {
		return ErrResetTokenExpired
	}
	return nil
}
