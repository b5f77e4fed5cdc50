package mail

import (
	"context"
	"errors"
	"net"
	"net/smtp"
	"strings"
	"time"
)

type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
	validFor time.Duration
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(host, port, username, password, from string, validFor time.Duration) *SMTPMailer {
	return &SMTPMailer{
		host:     strings.TrimSpace(host),
		port:     strings.TrimSpace(port),
		username: username,
		password: password,
		from:     strings.TrimSpace(from),
		validFor: validFor,
		send:     smtp.SendMail,
	}
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, email, otp string) error {
	if m == nil {
		return errors.New("mailer not configured")
	}
	if m.host == "" || m.port == "" || m.from == "" {
		return errors.New("mailer missing configuration")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.username != "" || m.password != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	msg := buildMIMEMessage(m.from, email, resetSubject, resetBody(otp, m.validFor))
	return m.send(net.JoinHostPort(m.host, m.port), auth, m.from, []string{email}, msg)
}
