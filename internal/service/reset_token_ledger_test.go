package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/karmakanban/karmakanban-backend/internal/domain"
	"github.com/karmakanban/karmakanban-backend/internal/util"
)

// memResetTokenRepo mirrors the conditional semantics of the postgres
// repository under a mutex.
type memResetTokenRepo struct {
	mu     sync.Mutex
	rows   map[string]*domain.ResetToken
	nextID int64

	replaceErr error
	markErr    error
	findErr    error
	deleteErr  error
}

func newMemResetTokenRepo() *memResetTokenRepo {
	return &memResetTokenRepo{rows: make(map[string]*domain.ResetToken)}
}

func (m *memResetTokenRepo) ReplaceForIdentity(ctx context.Context, identity, tokenHash string, expiresAt time.Time) (*domain.ResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return nil, m.replaceErr
	}
	for hash, row := range m.rows {
		if row.Identity == identity {
			delete(m.rows, hash)
		}
	}
	m.nextID++
	row := &domain.ResetToken{ID: m.nextID, Identity: identity, TokenHash: tokenHash, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	m.rows[tokenHash] = row
	clone := *row
	return &clone, nil
}

func (m *memResetTokenRepo) FindByHash(ctx context.Context, tokenHash string) (*domain.ResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	row, ok := m.rows[tokenHash]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *row
	return &clone, nil
}

func (m *memResetTokenRepo) MarkUsed(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return "", m.markErr
	}
	row, ok := m.rows[tokenHash]
	if !ok || row.Used || !row.ExpiresAt.After(now) {
		return "", sql.ErrNoRows
	}
	row.Used = true
	row.UsedAt = &now
	return row.Identity, nil
}

func (m *memResetTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	var n int64
	for hash, row := range m.rows {
		if !row.ExpiresAt.After(now) {
			delete(m.rows, hash)
			n++
		}
	}
	return n, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newLedgerForTests(repo *memResetTokenRepo) (*ResetTokenLedger, *testClock) {
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	ledger := NewResetTokenLedger(repo, 0)
	ledger.now = clock.Now
	return ledger, clock
}

func TestLedgerMintStoresDigestOnly(t *testing.T) {
	repo := newMemResetTokenRepo()
	ledger, clock := newLedgerForTests(repo)

	token, row, err := ledger.Mint(context.Background(), "a@example.com")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if len(token) != 32 {
		t.Fatalf("expected 32 character token, got %d", len(token))
	}
	if row.TokenHash != util.HashToken(token) {
		t.Fatal("expected the stored hash to be the digest of the token")
	}
	if _, ok := repo.rows[token]; ok {
		t.Fatal("plaintext token must not be used as a storage key")
	}
	if !row.ExpiresAt.Equal(clock.Now().Add(DefaultResetTokenTTL)) {
		t.Fatalf("unexpected expiry %v", row.ExpiresAt)
	}
}

func TestLedgerMintReplacesEarlierTokens(t *testing.T) {
	repo := newMemResetTokenRepo()
	ledger, _ := newLedgerForTests(repo)
	ctx := context.Background()

	first, _, err := ledger.Mint(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	second, _, err := ledger.Mint(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := ledger.Validate(ctx, first); !errors.Is(err, ErrResetTokenNotFound) {
		t.Fatalf("expected first token to be gone, got %v", err)
	}
	email, err := ledger.Validate(ctx, second)
	if err != nil || email != "a@example.com" {
		t.Fatalf("expected second token valid, got %q %v", email, err)
	}
}

func TestLedgerConsumeIsSingleUse(t *testing.T) {
	repo := newMemResetTokenRepo()
	ledger, _ := newLedgerForTests(repo)
	ctx := context.Background()

	token, _, _ := ledger.Mint(ctx, "a@example.com")

	email, err := ledger.Consume(ctx, token)
	if err != nil || email != "a@example.com" {
		t.Fatalf("expected first consume to succeed, got %q %v", email, err)
	}
	if _, err := ledger.Consume(ctx, token); !errors.Is(err, ErrResetTokenUsed) {
		t.Fatalf("expected ErrResetTokenUsed, got %v", err)
	}
	if _, err := ledger.Validate(ctx, token); !errors.Is(err, ErrResetTokenUsed) {
		t.Fatalf("expected validate to report used, got %v", err)
	}
}

func TestLedgerExpiry(t *testing.T) {
	repo := newMemResetTokenRepo()
	ledger, clock := newLedgerForTests(repo)
	ctx := context.Background()

	token, _, _ := ledger.Mint(ctx, "a@example.com")
	clock.Advance(DefaultResetTokenTTL + time.Second)

	if _, err := ledger.Validate(ctx, token); !errors.Is(err, ErrResetTokenExpired) {
		t.Fatalf("expected ErrResetTokenExpired from validate, got %v", err)
	}
	if _, err := ledger.Consume(ctx, token); !errors.Is(err, ErrResetTokenExpired) {
		t.Fatalf("expected ErrResetTokenExpired from consume, got %v", err)
	}
	if repo.rows[util.HashToken(token)].Used {
		t.Fatal("expired token must not be marked used")
	}
}

func TestLedgerUnknownAndEmptyTokens(t *testing.T) {
	ledger, _ := newLedgerForTests(newMemResetTokenRepo())
	ctx := context.Background()

	for _, token := range []string{"", "   ", "doesnotexist"} {
		if _, err := ledger.Consume(ctx, token); !errors.Is(err, ErrResetTokenNotFound) {
			t.Fatalf("consume %q: expected ErrResetTokenNotFound, got %v", token, err)
		}
		if _, err := ledger.Validate(ctx, token); !errors.Is(err, ErrResetTokenNotFound) {
			t.Fatalf("validate %q: expected ErrResetTokenNotFound, got %v", token, err)
		}
	}
}

func TestLedgerStorageFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")

	repo := newMemResetTokenRepo()
	ledger, _ := newLedgerForTests(repo)
	token, _, _ := ledger.Mint(ctx, "a@example.com")

	repo.markErr = boom
	if _, err := ledger.Consume(ctx, token); !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("expected ErrStorageFailure from consume, got %v", err)
	}
	repo.findErr = boom
	if _, err := ledger.Validate(ctx, token); !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("expected ErrStorageFailure from validate, got %v", err)
	}
	repo.replaceErr = boom
	if _, _, err := ledger.Mint(ctx, "a@example.com"); !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("expected ErrStorageFailure from mint, got %v", err)
	}
	repo.deleteErr = boom
	if _, err := ledger.SweepExpired(ctx); !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("expected ErrStorageFailure from sweep, got %v", err)
	}
}

func TestLedgerConcurrentConsumeHasOneWinner(t *testing.T) {
	repo := newMemResetTokenRepo()
	ledger, _ := newLedgerForTests(repo)
	ctx := context.Background()
	token, _, _ := ledger.Mint(ctx, "race@example.com")

	var wins, used int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Consume(ctx, token)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, ErrResetTokenUsed):
				atomic.AddInt32(&used, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 || used != 31 {
		t.Fatalf("expected 1 winner and 31 used, got %d and %d", wins, used)
	}
}

func TestLedgerSweepExpired(t *testing.T) {
	repo := newMemResetTokenRepo()
	ledger, clock := newLedgerForTests(repo)
	ctx := context.Background()

	_, _, _ = ledger.Mint(ctx, "old@example.com")
	clock.Advance(DefaultResetTokenTTL + time.Minute)
	fresh, _, _ := ledger.Mint(ctx, "new@example.com")

	n, err := ledger.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one expired row removed, got %d", n)
	}
	if _, err := ledger.Validate(ctx, fresh); err != nil {
		t.Fatalf("fresh token should survive sweep: %v", err)
	}
}
