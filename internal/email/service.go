// Package email delivers outgoing mail. Senders are called by the outbox
// processor, never from a request path.
package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/pkg/logger"
)

type Sender interface {
	Send(ctx context.Context, msg model.EmailNotification) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg model.EmailNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	contentType := "text/plain"
	if msg.HTML {
		contentType = "text/html"
	}
	m.SetBody(contentType, msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	return nil
}

// LogSender writes mail to the log. Used when no SMTP host is configured.
type LogSender struct {
	logger *logger.Logger
}

func NewLogSender(l *logger.Logger) *LogSender {
	return &LogSender{logger: l}
}

func (s *LogSender) Send(_ context.Context, msg model.EmailNotification) error {
	s.logger.Info("Email not sent, SMTP disabled",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body)
	return nil
}

// New picks the SMTP sender when a host is configured.
func New(cfg SMTPConfig, l *logger.Logger) Sender {
	if cfg.Host == "" {
		return NewLogSender(l)
	}
	return NewSMTPSender(cfg)
}
