package repository

import (
	"context"

	"bookswap/internal/cache"
	"bookswap/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RatingRepository defines persistence operations for ratings.
type RatingRepository interface {
	Upsert(ctx context.Context, rating *models.Rating) error
	ListForUser(ctx context.Context, ratedUserID uint, limit, offset int) ([]models.Rating, int64, error)
	Summary(ctx context.Context, ratedUserID uint) (*models.RatingSummary, error)
}

type ratingRepository struct {
	db *gorm.DB
}

// NewRatingRepository returns a new RatingRepository implementation.
func NewRatingRepository(db *gorm.DB) RatingRepository {
	return &ratingRepository{db: db}
}

// Upsert inserts the rating or, when the rater already rated this request in
// this role, replaces its score and review.
func (r *ratingRepository) Upsert(ctx context.Context, rating *models.Rating) error {
	err := conn(ctx, r.db).Omit("BookRequest", "Rater", "RatedUser").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "book_request_id"}, {Name: "rater_id"}, {Name: "type"}},
			DoUpdates: clause.AssignmentColumns([]string{"rating", "review", "updated_at"}),
		}).
		Create(rating).Error
	if err != nil {
		return models.NewInternalError(err)
	}

	// The returned ID is unreliable after an update on some drivers.
	var stored models.Rating
	if err := conn(ctx, r.db).
		Where("book_request_id = ? AND rater_id = ? AND type = ?", rating.BookRequestID, rating.RaterID, rating.Type).
		First(&stored).Error; err != nil {
		return notFoundOr(err, "Rating", rating.BookRequestID)
	}
	*rating = stored
	cache.Invalidate(ctx, cache.RatingSummaryKey(rating.RatedUserID))
	return nil
}

func (r *ratingRepository) ListForUser(ctx context.Context, ratedUserID uint, limit, offset int) ([]models.Rating, int64, error) {
	limit, offset = Page(limit, offset)
	q := conn(ctx, r.db).Model(&models.Rating{}).Where("rated_user_id = ?", ratedUserID).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var list []models.Rating
	if err := q.Preload("Rater").Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return list, total, nil
}

// Summary is cached per user and dropped on every upsert.
func (r *ratingRepository) Summary(ctx context.Context, ratedUserID uint) (*models.RatingSummary, error) {
	summary := models.RatingSummary{UserID: ratedUserID}
	err := cache.Aside(ctx, cache.RatingSummaryKey(ratedUserID), &summary, cache.RatingSummaryTTL, func() error {
		var row struct {
			Count   int64
			Average *float64
		}
		if err := conn(ctx, r.db).Model(&models.Rating{}).
			Select("COUNT(*) AS count, AVG(rating) AS average").
			Where("rated_user_id = ?", ratedUserID).
			Scan(&row).Error; err != nil {
			return models.NewInternalError(err)
		}
		summary.Count = row.Count
		if row.Average != nil {
			summary.Average = *row.Average
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
