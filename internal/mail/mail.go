// Package mail renders and delivers the transactional emails sent to members.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bookswap/internal/config"
)

// Kind selects a template from the catalog.
type Kind string

const (
	KindRequestReceived Kind = "request_received"
	KindRequestApproved Kind = "request_approved"
	KindRequestRejected Kind = "request_rejected"
	KindBookReturned    Kind = "book_returned"
	KindDueReminder     Kind = "due_reminder"
)

// Message is one rendered email.
type Message struct {
	To      string
	Subject string
	Body    string
	Kind    Kind
}

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ErrNoRecipient is returned for a message without a To address.
var ErrNoRecipient = errors.New("mail: message has no recipient")

// Compose renders kind with data and addresses it to to.
func Compose(to string, kind Kind, data Data) (Message, error) {
	if strings.TrimSpace(to) == "" {
		return Message{}, ErrNoRecipient
	}
	subject, body, err := Render(kind, data)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: subject, Body: body, Kind: kind}, nil
}

// LogMailer writes messages to the structured log instead of delivering them.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer returns a LogMailer that logs through l, or slog.Default when l is nil.
func NewLogMailer(l *slog.Logger) *LogMailer {
	if l == nil {
		l = slog.Default()
	}
	return &LogMailer{logger: l}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	m.logger.InfoContext(ctx, "email (log driver)",
		slog.String("to", msg.To),
		slog.String("kind", string(msg.Kind)),
		slog.String("subject", msg.Subject),
		slog.Int("body_bytes", len(msg.Body)),
	)
	return nil
}

// New builds the configured mailer wrapped in the shared rate limiter.
func New(cfg *config.Config, logger *slog.Logger) (Mailer, error) {
	var base Mailer
	switch cfg.MailDriver {
	case "", "log":
		base = NewLogMailer(logger)
	case "smtp":
		base = NewSMTPMailer(SMTPConfig{
			Host:     cfg.MailHost,
			Port:     cfg.MailPort,
			Username: cfg.MailUsername,
			Password: cfg.MailPassword,
			From:     cfg.MailFrom,
			Timeout:  cfg.MailTimeout(),
		})
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.MailDriver)
	}
	return NewRateLimitedMailer(base, cfg.MailRatePerMinute, cfg.MailBurst, cfg.MailTimeout()), nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format("January 02, 2006")
}
