package mail

import (
	"context"
	"errors"
	"fmt"
	stdhtml "html"
	"net/http"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendgridClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

type SendGridMailer struct {
	client    sendgridClient
	fromEmail string
	fromName  string
	sandbox   bool
	validFor  time.Duration
}

func NewSendGridMailer(apiKey, fromEmail, fromName string, sandbox bool, validFor time.Duration) *SendGridMailer {
	return &SendGridMailer{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		sandbox:   sandbox,
		validFor:  validFor,
	}
}

func (m *SendGridMailer) SendPasswordReset(ctx context.Context, email, otp string) error {
	if m == nil || m.client == nil {
		return errors.New("sendgrid mailer not configured")
	}
	if m.fromEmail == "" {
		return errors.New("sendgrid mailer missing sender address")
	}

	from := sgmail.NewEmail(m.fromName, m.fromEmail)
	to := sgmail.NewEmail("", email)
	body := resetBody(otp, m.validFor)
	html := strings.ReplaceAll(stdhtml.EscapeString(body), "\n", "<br>")
	message := sgmail.NewSingleEmail(from, resetSubject, to, body, html)
	if m.sandbox {
		settings := sgmail.NewMailSettings()
		settings.SetSandboxMode(sgmail.NewSetting(true))
		message.SetMailSettings(settings)
	}

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d", resp.StatusCode)
	}
	return nil
}
