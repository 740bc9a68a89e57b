package repository

import (
	"context"
	"time"

	"bookswap/internal/cache"
	"bookswap/internal/models"

	"gorm.io/gorm"
)

// LoanRepository defines persistence operations for borrow and swap requests.
type LoanRepository interface {
	GetByID(ctx context.Context, id uint) (*models.LoanRequest, error)
	GetForUpdate(ctx context.Context, id uint) (*models.LoanRequest, error)
	Create(ctx context.Context, req *models.LoanRequest) error
	Save(ctx context.Context, req *models.LoanRequest) error
	HasActive(ctx context.Context, bookID, borrowerID uint) (bool, error)
	ApprovedForBook(ctx context.Context, bookID uint, excludeID uint) (bool, error)
	ListIncoming(ctx context.Context, ownerID uint) ([]models.LoanRequest, error)
	ListOutgoing(ctx context.Context, borrowerID uint) ([]models.LoanRequest, error)
	ListDueForReminder(ctx context.Context) ([]models.LoanRequest, error)
	RecordReminder(ctx context.Context, id uint, at time.Time) error
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status models.LoanStatus) (int64, error)
}

type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository returns a new LoanRepository implementation.
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func withParties(db *gorm.DB) *gorm.DB {
	return db.Preload("Book").Preload("SwapBook").Preload("Borrower").Preload("Owner")
}

func (r *loanRepository) GetByID(ctx context.Context, id uint) (*models.LoanRequest, error) {
	var req models.LoanRequest
	if err := withParties(conn(ctx, r.db)).First(&req, id).Error; err != nil {
		return nil, notFoundOr(err, "Book request", id)
	}
	return &req, nil
}

// GetForUpdate locks the request row until the surrounding transaction ends.
// Only Book is preloaded; associations are read without the lock.
func (r *loanRepository) GetForUpdate(ctx context.Context, id uint) (*models.LoanRequest, error) {
	var req models.LoanRequest
	if err := forUpdate(conn(ctx, r.db)).First(&req, id).Error; err != nil {
		return nil, notFoundOr(err, "Book request", id)
	}
	var book models.Book
	if err := conn(ctx, r.db).First(&book, req.BookID).Error; err == nil {
		req.Book = &book
	}
	return &req, nil
}

func (r *loanRepository) Create(ctx context.Context, req *models.LoanRequest) error {
	if err := conn(ctx, r.db).Omit(clauseAssociations...).Create(req).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Save writes the scalar columns of req.
func (r *loanRepository) Save(ctx context.Context, req *models.LoanRequest) error {
	if err := conn(ctx, r.db).Omit(clauseAssociations...).Save(req).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewValidationError("This book is already lent out")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateDashboard(ctx)
	return nil
}

var clauseAssociations = []string{"Book", "SwapBook", "Borrower", "Owner"}

// HasActive reports whether borrowerID already has a pending or approved request for bookID.
func (r *loanRepository) HasActive(ctx context.Context, bookID, borrowerID uint) (bool, error) {
	var n int64
	err := conn(ctx, r.db).Model(&models.LoanRequest{}).
		Where("book_id = ? AND borrower_id = ? AND status IN ?", bookID, borrowerID,
			[]models.LoanStatus{models.LoanStatusPending, models.LoanStatusApproved}).
		Count(&n).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

// ApprovedForBook reports whether a request other than excludeID holds bookID.
func (r *loanRepository) ApprovedForBook(ctx context.Context, bookID uint, excludeID uint) (bool, error) {
	var n int64
	err := conn(ctx, r.db).Model(&models.LoanRequest{}).
		Where("book_id = ? AND status = ? AND id <> ?", bookID, models.LoanStatusApproved, excludeID).
		Count(&n).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *loanRepository) ListIncoming(ctx context.Context, ownerID uint) ([]models.LoanRequest, error) {
	var reqs []models.LoanRequest
	if err := withParties(conn(ctx, r.db)).Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

func (r *loanRepository) ListOutgoing(ctx context.Context, borrowerID uint) ([]models.LoanRequest, error) {
	var reqs []models.LoanRequest
	if err := withParties(conn(ctx, r.db)).Where("borrower_id = ?", borrowerID).
		Order("created_at DESC, id DESC").Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

// ListDueForReminder returns every approved loan with a due date, earliest due first.
func (r *loanRepository) ListDueForReminder(ctx context.Context) ([]models.LoanRequest, error) {
	var reqs []models.LoanRequest
	err := conn(ctx, r.db).Preload("Book").Preload("Borrower").Preload("Owner").
		Where("status = ? AND due_date IS NOT NULL", models.LoanStatusApproved).
		Order("due_date ASC, id ASC").
		Find(&reqs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

// RecordReminder stores reminder bookkeeping only while the loan is still approved.
func (r *loanRepository) RecordReminder(ctx context.Context, id uint, at time.Time) error {
	res := conn(ctx, r.db).Model(&models.LoanRequest{}).
		Where("id = ? AND status = ?", id, models.LoanStatusApproved).
		Updates(map[string]any{"reminder_sent": true, "last_reminder_at": at})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewValidationError("Book request is no longer approved")
	}
	return nil
}

func (r *loanRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := conn(ctx, r.db).Model(&models.LoanRequest{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *loanRepository) CountByStatus(ctx context.Context, status models.LoanStatus) (int64, error) {
	var n int64
	if err := conn(ctx, r.db).Model(&models.LoanRequest{}).Where("status = ?", status).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
