package models

import "time"

// RatingType says which role of the counterparty is being rated.
type RatingType string

const (
	// RatingTypeLender is a borrower's rating of the book owner.
	RatingTypeLender RatingType = "lender"
	// RatingTypeBorrower is an owner's rating of the borrower.
	RatingTypeBorrower RatingType = "borrower"
)

const (
	MinRatingScore        = 1
	MaxRatingScore        = 5
	MaxRatingReviewLength = 1000
)

// Rating is feedback left by one party of a returned request about the other.
type Rating struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	BookRequestID uint         `gorm:"not null;uniqueIndex:idx_ratings_request_rater_type,priority:1" json:"book_request_id"`
	BookRequest   *LoanRequest `gorm:"foreignKey:BookRequestID;constraint:OnDelete:CASCADE" json:"-"`
	RaterID       uint         `gorm:"not null;uniqueIndex:idx_ratings_request_rater_type,priority:2" json:"rater_id"`
	Rater         *User        `gorm:"foreignKey:RaterID;constraint:OnDelete:CASCADE" json:"rater,omitempty"`
	RatedUserID   uint         `gorm:"not null;index" json:"rated_user_id"`
	RatedUser     *User        `gorm:"foreignKey:RatedUserID;constraint:OnDelete:CASCADE" json:"-"`
	Rating        int          `gorm:"not null" json:"rating"`
	Review        string       `gorm:"type:text" json:"review,omitempty"`
	Type          RatingType   `gorm:"type:varchar(10);not null;uniqueIndex:idx_ratings_request_rater_type,priority:3" json:"type"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// TableName returns the database table name for Rating.
func (Rating) TableName() string {
	return "ratings"
}

// RatingSummary aggregates the ratings a user has received.
type RatingSummary struct {
	UserID  uint    `json:"user_id"`
	Count   int64   `json:"count"`
	Average float64 `json:"average"`
}
