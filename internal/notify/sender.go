// Package notify delivers one-time codes through an external channel.
// Delivery failures are logged by callers and never block the security
// state mutation that generated the code.
package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

// Sender is the narrow collaborator interface for outbound notifications.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes notifications to the log instead of delivering them.
// Used in development and as the default when SMTP is not configured.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(_ context.Context, to, subject, body string) error {
	s.Log.Info("notification", zap.String("to", to), zap.String("subject", subject), zap.String("body", body))
	return nil
}

// SMTPSender delivers notifications over plain SMTP.
type SMTPSender struct {
	Host string
	Port int
	From string
}

func (s SMTPSender) Send(_ context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", s.From, to, subject, body)
	return smtp.SendMail(addr, nil, s.From, []string{to}, []byte(msg))
}
