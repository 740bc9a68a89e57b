package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bookswap/internal/mail"
	"bookswap/internal/middleware"
	"bookswap/internal/models"
	"bookswap/internal/observability"
	"bookswap/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	DefaultReminderWindowDays = 3
	DefaultReminderCooldown   = 24 * time.Hour
)

// DaysBetween returns the signed number of UTC calendar days from from to to.
func DaysBetween(from, to time.Time) int {
	f := from.UTC()
	t := to.UTC()
	fd := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, time.UTC)
	td := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(td.Sub(fd).Hours() / 24)
}

// ReminderEligible reports whether a loan daysRemaining from its due date is
// due soon (0..window) or overdue (negative).
func ReminderEligible(daysRemaining, window int) bool {
	return daysRemaining < 0 || daysRemaining <= window
}

// ShouldSend applies the cooldown: the first reminder always goes out, later
// ones only once cooldown has passed since the previous one.
func ShouldSend(loan *models.LoanRequest, now time.Time, cooldown time.Duration) bool {
	if !loan.ReminderSent {
		return true
	}
	if loan.LastReminderAt == nil {
		return false
	}
	return now.Sub(*loan.LastReminderAt) >= cooldown
}

// ReminderCopy returns the notification title and message for a reminder.
func ReminderCopy(title string, daysRemaining int) (string, string) {
	if daysRemaining < 0 {
		return "Book Return Overdue", fmt.Sprintf("The book '%s' is %d day(s) overdue", title, -daysRemaining)
	}
	return "Book Return Due Soon", fmt.Sprintf("The book '%s' is due in %d day(s)", title, daysRemaining)
}

func reminderKind(daysRemaining int) string {
	if daysRemaining < 0 {
		return "overdue"
	}
	return "due_soon"
}

// SweepResult summarizes one sweep. Sent is the number of reminders delivered.
type SweepResult struct {
	Scanned  int `json:"scanned"`
	Eligible int `json:"eligible"`
	Sent     int `json:"sent"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// ReminderCandidate is an eligible loan and whether the cooldown allows a send now.
type ReminderCandidate struct {
	Loan          models.LoanRequest
	DaysRemaining int
	SendNow       bool
}

// ReminderService emails borrowers whose loans are due soon or overdue.
type ReminderService struct {
	db            *gorm.DB
	loans         repository.LoanRepository
	notifications repository.NotificationRepository
	publisher     Publisher
	mailer        mail.Mailer
	window        int
	cooldown      time.Duration
	now           func() time.Time
}

// NewReminderService wires the sweep. A negative window or non-positive cooldown takes the default.
func NewReminderService(
	db *gorm.DB,
	loans repository.LoanRepository,
	notifications repository.NotificationRepository,
	publisher Publisher,
	mailer mail.Mailer,
	window int,
	cooldown time.Duration,
) *ReminderService {
	if window < 0 {
		window = DefaultReminderWindowDays
	}
	if cooldown <= 0 {
		cooldown = DefaultReminderCooldown
	}
	return &ReminderService{
		db:            db,
		loans:         loans,
		notifications: notifications,
		publisher:     publisher,
		mailer:        mailer,
		window:        window,
		cooldown:      cooldown,
		now:           utcNow,
	}
}

// Eligible lists loans inside the reminder window without sending anything.
func (s *ReminderService) Eligible(ctx context.Context) ([]ReminderCandidate, error) {
	loans, err := s.loans.ListDueForReminder(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var out []ReminderCandidate
	for i := range loans {
		loan := &loans[i]
		if loan.Book == nil || loan.DueDate == nil {
			continue
		}
		d := DaysBetween(now, *loan.DueDate)
		if !ReminderEligible(d, s.window) {
			continue
		}
		out = append(out, ReminderCandidate{Loan: *loan, DaysRemaining: d, SendNow: ShouldSend(loan, now, s.cooldown)})
	}
	return out, nil
}

// Sweep sends every reminder that is due. A failed email leaves the loan
// untouched so the next run retries it; only a failure to list loans or a
// cancelled context is returned as an error.
func (s *ReminderService) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	defer observability.ObserveSweep()()
	span, ctx := observability.NewSpan(ctx, "reminders.sweep")
	defer span.End()
	job := observability.StartJob(ctx, "reminder_sweep")

	loans, err := s.loans.ListDueForReminder(ctx)
	if err != nil {
		span.SetError(err)
		job.Fail(ctx, err)
		return res, err
	}

	now := s.now()
	for i := range loans {
		if err := ctx.Err(); err != nil {
			job.Fail(ctx, err, slog.Int("sent", res.Sent))
			return res, err
		}
		loan := &loans[i]
		res.Scanned++
		if loan.Book == nil || loan.DueDate == nil {
			continue
		}

		d := DaysBetween(now, *loan.DueDate)
		if !ReminderEligible(d, s.window) {
			continue
		}
		res.Eligible++
		if !ShouldSend(loan, now, s.cooldown) {
			res.Skipped++
			continue
		}

		if err := s.remind(ctx, loan, d, now); err != nil {
			res.Failed++
			middleware.Logger.WarnContext(ctx, "reminder failed",
				slog.Uint64("request_id", uint64(loan.ID)),
				slog.Int("days_remaining", d),
				slog.String("error", err.Error()))
			continue
		}
		res.Sent++
	}

	span.AddAttributes(
		attribute.Int("scanned", res.Scanned),
		attribute.Int("sent", res.Sent),
		attribute.Int("failed", res.Failed),
	)
	job.Done(ctx,
		slog.Int("scanned", res.Scanned),
		slog.Int("eligible", res.Eligible),
		slog.Int("sent", res.Sent),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed))
	return res, nil
}

// remind emails first and records the reminder only once the email is out.
func (s *ReminderService) remind(ctx context.Context, loan *models.LoanRequest, daysRemaining int, now time.Time) error {
	if loan.Borrower == nil || loan.Borrower.Email == "" {
		return fmt.Errorf("borrower %d has no email address", loan.BorrowerID)
	}
	if s.mailer == nil {
		return fmt.Errorf("no mailer configured")
	}

	data := mail.Data{BorrowerName: loan.Borrower.Name, BookTitle: loan.Book.Title, BookAuthor: loan.Book.Author}
	if loan.Owner != nil {
		data.OwnerName = loan.Owner.Name
	}
	msg, err := mail.Compose(loan.Borrower.Email, mail.KindDueReminder, data.WithDueDate(*loan.DueDate, daysRemaining))
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send reminder email: %w", err)
	}

	title, message := ReminderCopy(loan.Book.Title, daysRemaining)
	n := &models.Notification{
		UserID:    loan.BorrowerID,
		Type:      models.NotificationDueReminder,
		Title:     title,
		Message:   message,
		Target:    models.LoanRequestTarget(loan.ID),
		EmailSent: true,
	}
	err = inTx(ctx, s.db, func(ctx context.Context) error {
		if err := s.loans.RecordReminder(ctx, loan.ID, now); err != nil {
			return err
		}
		return s.notifications.Create(ctx, n)
	})
	if err != nil {
		return fmt.Errorf("record reminder: %w", err)
	}
	loan.RecordReminder(now)
	observability.RemindersSent.WithLabelValues(reminderKind(daysRemaining)).Inc()

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, n); err != nil {
			middleware.Logger.WarnContext(ctx, "reminder publish failed",
				slog.Uint64("notification_id", uint64(n.ID)), slog.String("error", err.Error()))
		}
	}
	return nil
}
