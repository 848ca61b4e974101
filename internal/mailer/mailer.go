// Package mailer is the out-of-band delivery boundary for password-reset
// codes. Content templating is deliberately minimal; the session core
// only depends on the Sender interface.
package mailer

import (
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// Sender delivers a reset code to an address.
type Sender interface {
	SendResetCode(to, code string) error
}

// SMTPSender delivers reset codes over SMTP.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender creates a Sender over the given SMTP endpoint.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (s *SMTPSender) SendResetCode(to, code string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your password reset code")
	msg.SetBody("text/plain", fmt.Sprintf(
		"Use this code to reset your password: %s\n\nIf you did not request a reset, ignore this message.\n", code))

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending reset code: %w", err)
	}
	return nil
}

// LogSender writes reset codes to the log instead of delivering them.
// Development use only.
type LogSender struct {
	Logger *slog.Logger
}

var _ Sender = (*LogSender)(nil)

func (l *LogSender) SendResetCode(to, code string) error {
	l.Logger.Info("password reset code issued", "to", to, "code", code)
	return nil
}
