package repository

import (
	"context"

	"bookswap/internal/cache"
	"bookswap/internal/models"

	"gorm.io/gorm"
)

// DisputeRepository defines persistence operations for disputes.
type DisputeRepository interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, id uint) (*models.Dispute, error)
	GetForUpdate(ctx context.Context, id uint) (*models.Dispute, error)
	Save(ctx context.Context, d *models.Dispute) error
	ListForUser(ctx context.Context, userID uint) ([]models.Dispute, error)
	List(ctx context.Context, status models.DisputeStatus, limit, offset int) ([]models.Dispute, int64, error)
	CountByStatus(ctx context.Context, status models.DisputeStatus) (int64, error)
}

type disputeRepository struct {
	db *gorm.DB
}

// NewDisputeRepository returns a new DisputeRepository implementation.
func NewDisputeRepository(db *gorm.DB) DisputeRepository {
	return &disputeRepository{db: db}
}

func withDisputeRefs(db *gorm.DB) *gorm.DB {
	return db.Preload("BookRequest").Preload("BookRequest.Book").Preload("Reporter").Preload("ReportedUser")
}

var disputeAssociations = []string{"BookRequest", "Reporter", "ReportedUser"}

func (r *disputeRepository) Create(ctx context.Context, d *models.Dispute) error {
	if err := conn(ctx, r.db).Omit(disputeAssociations...).Create(d).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateDashboard(ctx)
	return nil
}

func (r *disputeRepository) GetByID(ctx context.Context, id uint) (*models.Dispute, error) {
	var d models.Dispute
	if err := withDisputeRefs(conn(ctx, r.db)).First(&d, id).Error; err != nil {
		return nil, notFoundOr(err, "Dispute", id)
	}
	return &d, nil
}

func (r *disputeRepository) GetForUpdate(ctx context.Context, id uint) (*models.Dispute, error) {
	var d models.Dispute
	if err := forUpdate(conn(ctx, r.db)).First(&d, id).Error; err != nil {
		return nil, notFoundOr(err, "Dispute", id)
	}
	return &d, nil
}

func (r *disputeRepository) Save(ctx context.Context, d *models.Dispute) error {
	if err := conn(ctx, r.db).Omit(disputeAssociations...).Save(d).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateDashboard(ctx)
	return nil
}

// ListForUser returns disputes the user reported or is named in.
func (r *disputeRepository) ListForUser(ctx context.Context, userID uint) ([]models.Dispute, error) {
	var list []models.Dispute
	if err := withDisputeRefs(conn(ctx, r.db)).
		Where("reporter_id = ? OR reported_user_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&list).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return list, nil
}

func (r *disputeRepository) List(ctx context.Context, status models.DisputeStatus, limit, offset int) ([]models.Dispute, int64, error) {
	limit, offset = Page(limit, offset)
	q := conn(ctx, r.db).Model(&models.Dispute{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var list []models.Dispute
	if err := withDisputeRefs(q).Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return list, total, nil
}

func (r *disputeRepository) CountByStatus(ctx context.Context, status models.DisputeStatus) (int64, error) {
	var n int64
	if err := conn(ctx, r.db).Model(&models.Dispute{}).Where("status = ?", status).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
