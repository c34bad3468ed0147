package messaging

import (
	"context"
	"fmt"
	"realestate-platform/internal/config"

	"gopkg.in/gomail.v2"
)

// EmailSender delivers a plain-text e-mail
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends e-mail through an SMTP relay
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// SendEmail dials the relay and sends one message. gomail has no context
// support, so a cancelled ctx only stops the wait, not the SMTP session.
func (m *SMTPMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
