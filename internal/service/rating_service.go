package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"bookswap/internal/models"
	"bookswap/internal/repository"
)

// RateInput is one party's feedback on a returned request.
type RateInput struct {
	RequestID uint
	Rating    int
	Review    string
}

type RatingService struct {
	loans   repository.LoanRepository
	ratings repository.RatingRepository
}

func NewRatingService(loans repository.LoanRepository, ratings repository.RatingRepository) *RatingService {
	return &RatingService{loans: loans, ratings: ratings}
}

// Upsert records actorID's rating of the other party. Rating the same request
// again replaces the earlier score and review.
func (s *RatingService) Upsert(ctx context.Context, actorID uint, in RateInput) (*models.Rating, error) {
	if actorID == 0 {
		return nil, models.NewUnauthorizedError("You must be logged in to rate")
	}
	if in.Rating < models.MinRatingScore || in.Rating > models.MaxRatingScore {
		return nil, models.NewValidationError(fmt.Sprintf("Rating must be between %d and %d", models.MinRatingScore, models.MaxRatingScore))
	}
	review := strings.TrimSpace(in.Review)
	if utf8.RuneCountInString(review) > models.MaxRatingReviewLength {
		return nil, models.NewValidationError(fmt.Sprintf("Review must be at most %d characters", models.MaxRatingReviewLength))
	}

	req, err := s.loans.GetByID(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if !req.IsParty(actorID) {
		return nil, models.NewForbiddenError("You are not a party to this request")
	}
	if req.Status != models.LoanStatusReturned {
		return nil, models.NewValidationError("You can only rate a request after the book has been returned")
	}

	rating := &models.Rating{
		BookRequestID: req.ID,
		RaterID:       actorID,
		Rating:        in.Rating,
		Review:        review,
	}
	if actorID == req.BorrowerID {
		rating.Type = models.RatingTypeLender
		rating.RatedUserID = req.OwnerID
	} else {
		rating.Type = models.RatingTypeBorrower
		rating.RatedUserID = req.BorrowerID
	}

	if err := s.ratings.Upsert(ctx, rating); err != nil {
		return nil, err
	}
	return rating, nil
}

// ListForUser returns ratings userID has received, newest first.
func (s *RatingService) ListForUser(ctx context.Context, userID uint, limit, offset int) ([]models.Rating, int64, error) {
	return s.ratings.ListForUser(ctx, userID, limit, offset)
}

// AverageForUser returns the count and mean score userID has received.
func (s *RatingService) AverageForUser(ctx context.Context, userID uint) (*models.RatingSummary, error) {
	return s.ratings.Summary(ctx, userID)
}
