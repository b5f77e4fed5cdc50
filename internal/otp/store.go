// Package otp holds the in-process challenge store used by the password reset
// flow. A Store keeps at most one live challenge per identity; entries expire,
// count verification attempts and are purged shortly after their lifetime.
//
// The store is local to a single process. Deployments running several API
// instances need sticky routing for /password-reset or a shared store.
package otp

import (
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/karmakanban/karmakanban-backend/internal/util"
)

const (
	DefaultTTL         = 10 * time.Minute
	DefaultPurgeAfter  = 15 * time.Minute
	DefaultMaxAttempts = 5
	DefaultCodeLength  = 6
)

// ErrStoreClosed is returned by Issue after Close.
var ErrStoreClosed = errors.New("otp: store closed")

// Reason explains why a verification did not succeed.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonNotFound        Reason = "not_found"
	ReasonExpired         Reason = "expired"
	ReasonTooManyAttempts Reason = "too_many_attempts"
	ReasonMismatch        Reason = "mismatch"
)

// Challenge is a snapshot of an issued code.
type Challenge struct {
	Identity  string
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
	Attempts  int
}

// VerifyResult is the outcome of Store.Verify. Remaining is only meaningful
// for ReasonMismatch.
type VerifyResult struct {
	Valid     bool
	Reason    Reason
	Remaining int
}

type entry struct {
	challenge  Challenge
	generation uint64
	purge      *time.Timer
}

// Store is safe for concurrent use. Every operation runs under one mutex.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextGen uint64
	closed  bool

	ttl         time.Duration
	purgeAfter  time.Duration
	maxAttempts int
	codeLength  int
	now         func() time.Time
	generate    func(digits int) (string, error)
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides how long a code can be verified. Defaults to 10 minutes.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithPurgeAfter overrides the delay before an issued entry is dropped
// regardless of its state. Defaults to 15 minutes.
func WithPurgeAfter(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.purgeAfter = d
		}
	}
}

// WithMaxAttempts overrides the number of verification attempts allowed per
// challenge. Defaults to 5.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithCodeLength overrides the number of digits per code. Defaults to 6.
func WithCodeLength(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.codeLength = n
		}
	}
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCodeGenerator replaces the numeric code generator.
func WithCodeGenerator(fn func(digits int) (string, error)) Option {
	return func(s *Store) {
		if fn != nil {
			s.generate = fn
		}
	}
}

// NewStore returns an empty store. Callers own its lifetime and should Close
// it on shutdown to release pending purge timers.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries:     make(map[string]*entry),
		ttl:         DefaultTTL,
		purgeAfter:  DefaultPurgeAfter,
		maxAttempts: DefaultMaxAttempts,
		codeLength:  DefaultCodeLength,
		now:         time.Now,
		generate:    util.GenerateNumericOTP,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates a fresh challenge for identity, replacing any previous one.
// Only the most recently issued code can ever verify.
func (s *Store) Issue(identity string) (Challenge, error) {
	code, err := s.generate(s.codeLength)
	if err != nil {
		return Challenge{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Challenge{}, ErrStoreClosed
	}

	if prev, ok := s.entries[identity]; ok {
		prev.purge.Stop()
	}

	now := s.now()
	s.nextGen++
	gen := s.nextGen
	e := &entry{
		challenge: Challenge{
			Identity:  identity,
			Code:      code,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		},
		generation: gen,
	}
	e.purge = time.AfterFunc(s.purgeAfter, func() { s.purge(identity, gen) })
	s.entries[identity] = e

	return e.challenge, nil
}

// Verify checks code against the live challenge for identity. Every call that
// finds an unexpired entry counts as an attempt, whatever the outcome.
func (s *Store) Verify(identity, code string) VerifyResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[identity]
	if !ok {
		return VerifyResult{Reason: ReasonNotFound}
	}
	if s.now().After(e.challenge.ExpiresAt) {
		s.deleteLocked(identity, e)
		return VerifyResult{Reason: ReasonExpired}
	}

	e.challenge.Attempts++
	if e.challenge.Attempts > s.maxAttempts {
		s.deleteLocked(identity, e)
		return VerifyResult{Reason: ReasonTooManyAttempts}
	}

	if subtle.ConstantTimeCompare([]byte(e.challenge.Code), []byte(code)) == 1 {
		s.deleteLocked(identity, e)
		return VerifyResult{Valid: true}
	}

	return VerifyResult{Reason: ReasonMismatch, Remaining: s.maxAttempts - e.challenge.Attempts}
}

// Remove drops the challenge for identity and reports whether one existed.
func (s *Store) Remove(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[identity]
	if !ok {
		return false
	}
	s.deleteLocked(identity, e)
	return true
}

// Exists reports whether identity has an unexpired challenge.
func (s *Store) Exists(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.liveLocked(identity)
	return ok
}

// TimeRemaining returns the whole seconds left before the challenge for
// identity expires, or 0 when there is none.
func (s *Store) TimeRemaining(identity string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.liveLocked(identity)
	if !ok {
		return 0
	}
	return int(e.challenge.ExpiresAt.Sub(s.now()) / time.Second)
}

// Len returns the number of entries currently held, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops all pending purges and drops every entry. Issue fails afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for identity, e := range s.entries {
		s.deleteLocked(identity, e)
	}
	s.closed = true
}

func (s *Store) liveLocked(identity string) (*entry, bool) {
	e, ok := s.entries[identity]
	if !ok {
		return nil, false
	}
	if s.now().After(e.challenge.ExpiresAt) {
		s.deleteLocked(identity, e)
		return nil, false
	}
	return e, true
}

func (s *Store) deleteLocked(identity string, e *entry) {
	e.purge.Stop()
	delete(s.entries, identity)
}

// purge runs from the timer goroutine. A newer challenge for the same identity
// carries a different generation and is left alone.
func (s *Store) purge(identity string, generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[identity]
	if !ok || e.generation != generation {
		return
	}
	delete(s.entries, identity)
}
