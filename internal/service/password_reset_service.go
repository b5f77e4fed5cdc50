package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/karmakanban/karmakanban-backend/internal/domain"
	"github.com/karmakanban/karmakanban-backend/internal/logging"
	"github.com/karmakanban/karmakanban-backend/internal/otp"
	"github.com/karmakanban/karmakanban-backend/internal/repository/ports"
	"github.com/karmakanban/karmakanban-backend/internal/util"
)

var (
	ErrChallengeNotFound    = errors.New("no active verification code")
	ErrChallengeExpired     = errors.New("verification code expired")
	ErrChallengeExhausted   = errors.New("too many verification attempts")
	ErrChallengeMismatch    = errors.New("verification code does not match")
	ErrPasswordUpdateFailed = errors.New("password could not be updated")
)

// ChallengeError describes a failed code verification. It unwraps to one of
// the ErrChallenge* sentinels.
type ChallengeError struct {
	Reason    otp.Reason
	Remaining int
}

func (e *ChallengeError) Error() string {
	if e.Reason == otp.ReasonMismatch {
		return fmt.Sprintf("%s (%d attempts remaining)", e.Unwrap(), e.Remaining)
	}
	return e.Unwrap().Error()
}

func (e *ChallengeError) Unwrap() error {
	switch e.Reason {
	case otp.ReasonExpired:
		return ErrChallengeExpired
	case otp.ReasonTooManyAttempts:
		return ErrChallengeExhausted
	case otp.ReasonMismatch:
		return ErrChallengeMismatch
	default:
		return ErrChallengeNotFound
	}
}

// ChallengeStore is the subset of *otp.Store used by the reset flow.
type ChallengeStore interface {
	Issue(identity string) (otp.Challenge, error)
	Verify(identity, code string) otp.VerifyResult
	Remove(identity string) bool
	Exists(identity string) bool
	TimeRemaining(identity string) int
}

type PasswordResetSender interface {
	SendPasswordReset(ctx context.Context, email, otp string) error
}

type PasswordResetServiceConfig struct {
	Challenges ChallengeStore
	Ledger     *ResetTokenLedger
	Mailer     PasswordResetSender
	Logger     logrus.FieldLogger
}

// PasswordResetService drives the three steps of a reset: send a code,
// exchange a correct code for a reset token, then spend the token on a new
// password.
type PasswordResetService struct {
	users      ports.UserRepository
	sessions   ports.SessionRepository
	challenges ChallengeStore
	ledger     *ResetTokenLedger
	mailer     PasswordResetSender
	log        logrus.FieldLogger
}

func NewPasswordResetService(users ports.UserRepository, sessions ports.SessionRepository, cfg PasswordResetServiceConfig) *PasswordResetService {
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &PasswordResetService{
		users:      users,
		sessions:   sessions,
		challenges: cfg.Challenges,
		ledger:     cfg.Ledger,
		mailer:     cfg.Mailer,
		log:        log,
	}
}

// RequestChallenge issues a code for email and mails it. The outcome is the
// same whether or not the account exists. Delivery and lookup failures are
// logged, never returned.
func (s *PasswordResetService) RequestChallenge(ctx context.Context, email string) error {
	email = util.NormalizeEmail(email)
	logger := s.log.WithField("email", email)
	if !validEmail(email) {
		logger.Info("password reset requested for malformed address")
		return nil
	}

	if _, err := s.users.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Info("password reset requested for unknown account")
		} else {
			logger.WithError(err).Error("password reset lookup failed")
		}
		return nil
	}

	ch, err := s.challenges.Issue(email)
	if err != nil {
		logger.WithError(err).Error("failed to issue password reset code")
		return nil
	}
	if s.mailer == nil {
		return nil
	}
	if err := s.mailer.SendPasswordReset(ctx, email, ch.Code); err != nil {
		// the code stays valid so a later resend can reach the user
		logger.WithError(err).Error("failed to deliver password reset code")
	}
	return nil
}

// ResendChallenge replaces any outstanding code with a fresh one.
func (s *PasswordResetService) ResendChallenge(ctx context.Context, email string) error {
	return s.RequestChallenge(ctx, email)
}

// ConfirmChallenge verifies code and, on success, mints a reset token that
// replaces every earlier token for the same email.
func (s *PasswordResetService) ConfirmChallenge(ctx context.Context, email, code string) (*domain.ResetGrant, error) {
	email = util.NormalizeEmail(email)
	res := s.challenges.Verify(email, code)
	if !res.Valid {
		return nil, &ChallengeError{Reason: res.Reason, Remaining: res.Remaining}
	}

	token, row, err := s.ledger.Mint(ctx, email)
	if err != nil {
		s.log.WithError(err).WithField("email", email).Error("failed to persist reset token")
		return nil, err
	}
	s.log.WithField("email", email).Info("password reset code verified")
	return &domain.ResetGrant{Token: token, ExpiresAt: row.ExpiresAt}, nil
}

// ValidateResetToken reports the email a token was issued to.
func (s *PasswordResetService) ValidateResetToken(ctx context.Context, token string) (string, error) {
	return s.ledger.Validate(ctx, token)
}

// ResetPassword spends token and stores newPassword for the owning account.
// Every session of that account is revoked afterwards.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := util.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordTooWeak, err)
	}

	email, err := s.ledger.Consume(ctx, token)
	if err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		s.log.WithError(err).WithField("email", email).Error("reset token consumed for missing account")
		return fmt.Errorf("%w: %v", ErrPasswordUpdateFailed, err)
	}
	hash, salt, err := util.DerivePassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordUpdateFailed, err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash, salt); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Error("failed to store new password")
		return fmt.Errorf("%w: %v", ErrPasswordUpdateFailed, err)
	}

	revoked, err := s.sessions.DeactivateUserSessions(ctx, user.ID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("failed to revoke sessions after password reset")
	}
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "sessions_revoked": revoked}).Info("password reset completed")
	return nil
}

func (s *PasswordResetService) ChallengeStatus(email string) domain.ChallengeStatus {
	email = util.NormalizeEmail(email)
	remaining := s.challenges.TimeRemaining(email)
	return domain.ChallengeStatus{
		Identity:         email,
		Active:           s.challenges.Exists(email),
		SecondsRemaining: remaining,
	}
}

// RevokeChallenge drops the outstanding code for email, if any.
func (s *PasswordResetService) RevokeChallenge(email string) bool {
	return s.challenges.Remove(util.NormalizeEmail(email))
}

// SweepExpiredTokens deletes expired reset tokens from storage.
func (s *PasswordResetService) SweepExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.ledger.SweepExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.WithField("deleted", n).Info("swept expired reset tokens")
	}
	return n, nil
}
