package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"bookswap/internal/models"
	"bookswap/internal/observability"
	"bookswap/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// OpenDisputeInput is a party's complaint about a request.
type OpenDisputeInput struct {
	RequestID   uint
	Title       string
	Description string
}

// UpdateDisputeInput is an admin's moderation decision.
type UpdateDisputeInput struct {
	Status     models.DisputeStatus
	AdminNotes string
}

type DisputeService struct {
	db       *gorm.DB
	loans    repository.LoanRepository
	disputes repository.DisputeRepository
	events   EventSink
	now      func() time.Time
}

func NewDisputeService(db *gorm.DB, loans repository.LoanRepository, disputes repository.DisputeRepository, events EventSink) *DisputeService {
	return &DisputeService{db: db, loans: loans, disputes: disputes, events: events, now: utcNow}
}

// Open files a dispute against the other party. The request itself is not changed.
func (s *DisputeService) Open(ctx context.Context, actorID uint, in OpenDisputeInput) (*models.Dispute, error) {
	if actorID == 0 {
		return nil, models.NewUnauthorizedError("You must be logged in to report a dispute")
	}
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	switch {
	case title == "":
		return nil, models.NewValidationError("Title is required")
	case utf8.RuneCountInString(title) > models.MaxDisputeTitleLength:
		return nil, models.NewValidationError(fmt.Sprintf("Title must be at most %d characters", models.MaxDisputeTitleLength))
	case description == "":
		return nil, models.NewValidationError("Description is required")
	case utf8.RuneCountInString(description) > models.MaxDisputeDescriptionLength:
		return nil, models.NewValidationError(fmt.Sprintf("Description must be at most %d characters", models.MaxDisputeDescriptionLength))
	}

	req, err := s.loans.GetByID(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if !req.IsParty(actorID) {
		return nil, models.NewForbiddenError("You are not a party to this request")
	}

	d := &models.Dispute{
		BookRequestID:  req.ID,
		ReporterID:     actorID,
		ReportedUserID: req.CounterpartyOf(actorID),
		Title:          title,
		Description:    description,
		Status:         models.DisputeStatusOpen,
	}
	if err := s.disputes.Create(ctx, d); err != nil {
		return nil, err
	}

	notifyAfterCommit(ctx, s.events, Event{
		UserID:  d.ReportedUserID,
		Type:    models.NotificationDisputeOpened,
		Title:   "Dispute Reported",
		Message: fmt.Sprintf("A dispute has been reported on your request for '%s': %s", bookTitle(req), d.Title),
		Target:  models.DisputeTarget(d.ID),
	})
	return d, nil
}

// UpdateStatus moves a dispute along its moderation workflow and tells the reporter.
func (s *DisputeService) UpdateStatus(ctx context.Context, adminID, disputeID uint, in UpdateDisputeInput) (*models.Dispute, error) {
	if !in.Status.Valid() {
		return nil, models.NewValidationError("Unknown dispute status")
	}
	span, ctx := observability.NewSpan(ctx, "dispute.update",
		attribute.Int64("dispute_id", int64(disputeID)), attribute.String("status", string(in.Status)))
	defer span.End()

	var d *models.Dispute
	err := inTx(ctx, s.db, func(ctx context.Context) error {
		var err error
		d, err = s.disputes.GetForUpdate(ctx, disputeID)
		if err != nil {
			return err
		}
		if !d.Status.CanTransitionTo(in.Status) {
			return models.NewValidationError(fmt.Sprintf("Dispute is %s and cannot become %s", d.Status, in.Status))
		}
		d.Status = in.Status
		if notes := strings.TrimSpace(in.AdminNotes); notes != "" {
			d.AdminNotes = notes
		}
		if in.Status.Terminal() {
			now := s.now()
			by := adminID
			d.ResolvedAt = &now
			d.ResolvedBy = &by
		}
		return s.disputes.Save(ctx, d)
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	notifyAfterCommit(ctx, s.events, Event{
		UserID:  d.ReporterID,
		Type:    models.NotificationDisputeUpdated,
		Title:   "Dispute Updated",
		Message: fmt.Sprintf("Your dispute '%s' is now %s.", d.Title, strings.ReplaceAll(string(d.Status), "_", " ")),
		Target:  models.DisputeTarget(d.ID),
	})
	return d, nil
}

// ListMine returns disputes actorID reported or is named in.
func (s *DisputeService) ListMine(ctx context.Context, actorID uint) ([]models.Dispute, error) {
	return s.disputes.ListForUser(ctx, actorID)
}

// List is the admin view, optionally filtered by status.
func (s *DisputeService) List(ctx context.Context, status models.DisputeStatus, limit, offset int) ([]models.Dispute, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, models.NewValidationError("Unknown dispute status")
	}
	return s.disputes.List(ctx, status, limit, offset)
}
