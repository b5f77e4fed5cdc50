package domain

import "time"

// ResetToken is the persisted half of a password reset. Only the SHA-256
// digest of the token handed to the client is stored.
type ResetToken struct {
	ID        int64      `db:"id" json:"id"`
	Identity  string     `db:"identity" json:"identity"`
	TokenHash string     `db:"token_hash" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	Used      bool       `db:"used" json:"used"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

func (t *ResetToken) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// ResetGrant is returned to a client that proved control of its identity.
type ResetGrant struct {
	Token     string    `json:"reset_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChallengeStatus is the administrative view of an in-memory challenge.
type ChallengeStatus struct {
	Identity         string `json:"email"`
	Active           bool   `json:"active"`
	SecondsRemaining int    `json:"seconds_remaining"`
}
