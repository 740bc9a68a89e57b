// Package service holds the business logic behind the HTTP handlers and CLIs.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"bookswap/internal/mail"
	"bookswap/internal/middleware"
	"bookswap/internal/models"
	"bookswap/internal/observability"
	"bookswap/internal/repository"
)

// EmailSpec asks the dispatcher to email the recipient alongside the notification.
type EmailSpec struct {
	To   string
	Kind mail.Kind
	Data mail.Data
}

// Event is one user-facing notification.
type Event struct {
	UserID  uint
	Type    models.NotificationType
	Title   string
	Message string
	Target  models.NotificationTarget
	Email   *EmailSpec
}

// EventSink records and delivers notifications.
type EventSink interface {
	Notify(ctx context.Context, ev Event) (*models.Notification, error)
}

// Publisher pushes a stored notification to the real-time channel.
type Publisher interface {
	Publish(ctx context.Context, n *models.Notification) error
}

// Dispatcher stores a notification, publishes it, then optionally emails it.
// Only the insert can fail the call; publish and email failures are logged.
type Dispatcher struct {
	notifications repository.NotificationRepository
	publisher     Publisher
	mailer        mail.Mailer
}

// NewDispatcher wires the notification sink. publisher and mailer may be nil.
func NewDispatcher(notifications repository.NotificationRepository, publisher Publisher, mailer mail.Mailer) *Dispatcher {
	return &Dispatcher{notifications: notifications, publisher: publisher, mailer: mailer}
}

func (d *Dispatcher) Notify(ctx context.Context, ev Event) (*models.Notification, error) {
	n := &models.Notification{
		UserID:  ev.UserID,
		Type:    ev.Type,
		Title:   ev.Title,
		Message: ev.Message,
		Target:  ev.Target,
	}
	if err := d.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create %s notification: %w", ev.Type, err)
	}

	d.publish(ctx, n)

	if ev.Email != nil && d.mailer == nil {
		observability.RecordEmail(string(ev.Email.Kind), observability.OutcomeSkipped)
	}
	if ev.Email != nil && d.mailer != nil {
		if err := d.email(ctx, *ev.Email); err != nil {
			middleware.Logger.WarnContext(ctx, "notification email failed",
				slog.Uint64("notification_id", uint64(n.ID)),
				slog.String("kind", string(ev.Email.Kind)),
				slog.String("error", err.Error()))
			return n, nil
		}
		if err := d.notifications.MarkEmailSent(ctx, n.ID); err != nil {
			middleware.Logger.WarnContext(ctx, "mark email sent failed",
				slog.Uint64("notification_id", uint64(n.ID)), slog.String("error", err.Error()))
			return n, nil
		}
		n.EmailSent = true
	}
	return n, nil
}

func (d *Dispatcher) publish(ctx context.Context, n *models.Notification) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, n); err != nil {
		middleware.Logger.WarnContext(ctx, "notification publish failed",
			slog.Uint64("notification_id", uint64(n.ID)), slog.String("error", err.Error()))
	}
}

func (d *Dispatcher) email(ctx context.Context, spec EmailSpec) error {
	msg, err := mail.Compose(spec.To, spec.Kind, spec.Data)
	if err != nil {
		observability.RecordEmail(string(spec.Kind), observability.OutcomeFailed)
		return err
	}
	return d.mailer.Send(ctx, msg)
}

// notifyAfterCommit runs a best-effort notification and logs any failure.
func notifyAfterCommit(ctx context.Context, sink EventSink, ev Event) {
	if sink == nil {
		return
	}
	if _, err := sink.Notify(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "notification dispatch failed",
			slog.String("type", string(ev.Type)),
			slog.Uint64("user_id", uint64(ev.UserID)),
			slog.String("error", err.Error()))
	}
}
