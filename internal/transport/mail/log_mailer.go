package mail

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogMailer is used when no delivery provider is configured. It only records
// that a code was produced, never the code itself.
type LogMailer struct {
	log logrus.FieldLogger
}

func NewLogMailer(log logrus.FieldLogger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, email, otp string) error {
	m.log.WithField("email", email).Warn("password reset code generated but no mail provider is configured")
	return nil
}
