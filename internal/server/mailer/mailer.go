// Package mailer sends transactional email (verification and password reset
// links) over SMTP, or logs it when no SMTP host is configured.
package mailer

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/petmarket/internal/logging"
	"gopkg.in/gomail.v2"
)

// Sender delivers one HTML message.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// dialAndSend is a seam for tests.
var dialAndSend = func(d *gomail.Dialer, m ...*gomail.Message) error {
	return d.DialAndSend(m...)
}

// SMTPSender implements Sender with gomail.
type SMTPSender struct {
	from   string
	dialer *gomail.Dialer
}

// NewSMTPSender builds a sender for host:port. Username may be empty for
// relays that do not authenticate.
func NewSMTPSender(host string, port int, username, password, from string) (*SMTPSender, error) {
	if host == "" || port == 0 || from == "" {
		return nil, fmt.Errorf("SMTP host, port and sender address must be configured")
	}
	return &SMTPSender{
		from:   from,
		dialer: gomail.NewDialer(host, port, username, password),
	}, nil
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, html string) error {
	if to == "" {
		return fmt.Errorf("no recipient provided for email")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	if err := dialAndSend(s.dialer, m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(log logging.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, to, subject, html string) error {
	s.log.Info(ctx, "email not sent, SMTP disabled", "to", to, "subject", subject)
	s.log.Debug(ctx, "email body", "to", to, "body", html)
	return nil
}
