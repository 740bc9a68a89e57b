package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bookswap/internal/featureflags"
	"bookswap/internal/mail"
	"bookswap/internal/models"
	"bookswap/internal/repository"
	"bookswap/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fixedNow is a Tuesday noon, far from any day boundary.
var fixedNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type harness struct {
	db            *gorm.DB
	users         repository.UserRepository
	books         repository.BookRepository
	loans         repository.LoanRepository
	notifications repository.NotificationRepository
	ratings       repository.RatingRepository
	disputes      repository.DisputeRepository
	messages      repository.MessageRepository
	mailer        *mail.Recorder
	publisher     *publisherStub
	dispatcher    *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewTestDB(t)
	h := &harness{
		db:            db,
		users:         repository.NewUserRepository(db),
		books:         repository.NewBookRepository(db),
		loans:         repository.NewLoanRepository(db),
		notifications: repository.NewNotificationRepository(db),
		ratings:       repository.NewRatingRepository(db),
		disputes:      repository.NewDisputeRepository(db),
		messages:      repository.NewMessageRepository(db),
		mailer:        &mail.Recorder{},
		publisher:     &publisherStub{},
	}
	h.dispatcher = NewDispatcher(h.notifications, h.publisher, h.mailer)
	return h
}

func (h *harness) loanService(flags *featureflags.Manager) *LoanService {
	svc := NewLoanService(h.db, h.books, h.loans, h.users, h.dispatcher, flags, 0)
	svc.now = clock
	return svc
}

func (h *harness) reminderService() *ReminderService {
	svc := NewReminderService(h.db, h.loans, h.notifications, h.publisher, h.mailer, DefaultReminderWindowDays, DefaultReminderCooldown)
	svc.now = clock
	return svc
}

func (h *harness) notificationsFor(t *testing.T, userID uint) []models.Notification {
	t.Helper()
	var out []models.Notification
	require.NoError(t, h.db.Where("user_id = ?", userID).Order("id ASC").Find(&out).Error)
	return out
}

func (h *harness) reload(t *testing.T, id uint) *models.LoanRequest {
	t.Helper()
	var req models.LoanRequest
	require.NoError(t, h.db.First(&req, id).Error)
	return &req
}

type publisherStub struct {
	mu        sync.Mutex
	published []*models.Notification
	err       error
}

func (p *publisherStub) Publish(_ context.Context, n *models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, n)
	return nil
}

func (p *publisherStub) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

// sinkStub records events instead of storing them.
type sinkStub struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *sinkStub) Notify(_ context.Context, ev Event) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.events = append(s.events, ev)
	return &models.Notification{UserID: ev.UserID, Type: ev.Type, Title: ev.Title, Message: ev.Message, Target: ev.Target}, nil
}

// loanRepoStub is a LoanRepository whose methods are swapped per test.
type loanRepoStub struct {
	getByIDFn         func(context.Context, uint) (*models.LoanRequest, error)
	getForUpdateFn    func(context.Context, uint) (*models.LoanRequest, error)
	saveFn            func(context.Context, *models.LoanRequest) error
	approvedForBookFn func(context.Context, uint, uint) (bool, error)
	listDueFn         func(context.Context) ([]models.LoanRequest, error)
	recordReminderFn  func(context.Context, uint, time.Time) error
}

var errStubUnset = errors.New("stub method not set")

func (s *loanRepoStub) GetByID(ctx context.Context, id uint) (*models.LoanRequest, error) {
	if s.getByIDFn == nil {
		return nil, errStubUnset
	}
	return s.getByIDFn(ctx, id)
}
func (s *loanRepoStub) GetForUpdate(ctx context.Context, id uint) (*models.LoanRequest, error) {
	if s.getForUpdateFn == nil {
		return s.GetByID(ctx, id)
	}
	return s.getForUpdateFn(ctx, id)
}
func (s *loanRepoStub) Create(context.Context, *models.LoanRequest) error { return nil }
func (s *loanRepoStub) Save(ctx context.Context, req *models.LoanRequest) error {
	if s.saveFn == nil {
		return nil
	}
	return s.saveFn(ctx, req)
}
func (s *loanRepoStub) HasActive(context.Context, uint, uint) (bool, error) { return false, nil }
func (s *loanRepoStub) ApprovedForBook(ctx context.Context, bookID, excludeID uint) (bool, error) {
	if s.approvedForBookFn == nil {
		return false, nil
	}
	return s.approvedForBookFn(ctx, bookID, excludeID)
}
func (s *loanRepoStub) ListIncoming(context.Context, uint) ([]models.LoanRequest, error) {
	return nil, nil
}
func (s *loanRepoStub) ListOutgoing(context.Context, uint) ([]models.LoanRequest, error) {
	return nil, nil
}
func (s *loanRepoStub) ListDueForReminder(ctx context.Context) ([]models.LoanRequest, error) {
	if s.listDueFn == nil {
		return nil, nil
	}
	return s.listDueFn(ctx)
}
func (s *loanRepoStub) RecordReminder(ctx context.Context, id uint, at time.Time) error {
	if s.recordReminderFn == nil {
		return nil
	}
	return s.recordReminderFn(ctx, id, at)
}
func (s *loanRepoStub) Count(context.Context) (int64, error) { return 0, nil }
func (s *loanRepoStub) CountByStatus(context.Context, models.LoanStatus) (int64, error) {
	return 0, nil
}

// bookRepoStub records row locks and status changes.
type bookRepoStub struct {
	repository.BookRepository
	locked   []uint
	statuses map[uint]models.BookStatus
}

func (s *bookRepoStub) GetForUpdate(_ context.Context, id uint) (*models.Book, error) {
	s.locked = append(s.locked, id)
	return &models.Book{ID: id, Status: models.BookStatusAvailable}, nil
}

func (s *bookRepoStub) SetStatus(_ context.Context, id uint, status models.BookStatus) error {
	if s.statuses == nil {
		s.statuses = make(map[uint]models.BookStatus)
	}
	s.statuses[id] = status
	return nil
}

// ratingRepoStub captures the last upsert.
type ratingRepoStub struct {
	last *models.Rating
}

func (s *ratingRepoStub) Upsert(_ context.Context, r *models.Rating) error {
	cp := *r
	s.last = &cp
	return nil
}
func (s *ratingRepoStub) ListForUser(context.Context, uint, int, int) ([]models.Rating, int64, error) {
	return nil, 0, nil
}
func (s *ratingRepoStub) Summary(_ context.Context, id uint) (*models.RatingSummary, error) {
	return &models.RatingSummary{UserID: id}, nil
}
