// Package mailer delivers transactional emails. Delivery failures are the
// caller's concern to report; nothing here blocks or reverses a settled
// payment.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"eshop-backend/internal/util"

	"go.uber.org/zap"
)

// Mailer sends a single message to one recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
}

func NewSMTPMailer(host, port, username, password, from string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%s", host, port),
		from: from,
		auth: auth,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

// LogMailer logs instead of sending; used in development and tests.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, _ string) error {
	util.GetLogger().Info("Email suppressed (mail disabled)",
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}
