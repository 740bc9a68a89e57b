package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"bookswap/internal/models"
	"bookswap/internal/repository"
)

type MessageService struct {
	loans    repository.LoanRepository
	messages repository.MessageRepository
	users    repository.UserRepository
	events   EventSink
}

func NewMessageService(loans repository.LoanRepository, messages repository.MessageRepository, users repository.UserRepository, events EventSink) *MessageService {
	return &MessageService{loans: loans, messages: messages, users: users, events: events}
}

// Send posts body to the request thread from actorID to the other party.
func (s *MessageService) Send(ctx context.Context, actorID, requestID uint, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, models.NewValidationError("Message cannot be empty")
	}
	if utf8.RuneCountInString(body) > models.MaxMessageBodyLength {
		return nil, models.NewValidationError(fmt.Sprintf("Message must be at most %d characters", models.MaxMessageBodyLength))
	}

	req, err := s.loans.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsParty(actorID) {
		return nil, models.NewForbiddenError("You are not a party to this request")
	}

	m := &models.Message{
		BookRequestID: req.ID,
		SenderID:      actorID,
		ReceiverID:    req.CounterpartyOf(actorID),
		Body:          body,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}

	senderName := "Someone"
	if s.users != nil {
		if u, err := s.users.GetByID(ctx, actorID); err == nil {
			senderName = u.Name
			m.Sender = u
		}
	}
	notifyAfterCommit(ctx, s.events, Event{
		UserID:  m.ReceiverID,
		Type:    models.NotificationMessageReceived,
		Title:   "New Message",
		Message: fmt.Sprintf("%s sent you a message about '%s'", senderName, bookTitle(req)),
		Target:  models.LoanRequestTarget(req.ID),
	})
	return m, nil
}

// List returns the thread oldest first; only the two parties may read it.
func (s *MessageService) List(ctx context.Context, actorID, requestID uint) ([]models.Message, error) {
	req, err := s.loans.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsParty(actorID) {
		return nil, models.NewForbiddenError("You are not a party to this request")
	}
	return s.messages.ListForRequest(ctx, req.ID)
}
