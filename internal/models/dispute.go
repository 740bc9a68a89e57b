package models

import "time"

// DisputeStatus is the moderation state of a dispute, independent of the loan.
type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusInReview DisputeStatus = "in_review"
	DisputeStatusResolved DisputeStatus = "resolved"
	DisputeStatusClosed   DisputeStatus = "closed"
)

const (
	MaxDisputeTitleLength       = 255
	MaxDisputeDescriptionLength = 1000
)

// Valid reports whether s is a known dispute status.
func (s DisputeStatus) Valid() bool {
	switch s {
	case DisputeStatusOpen, DisputeStatusInReview, DisputeStatusResolved, DisputeStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether the dispute has been settled.
func (s DisputeStatus) Terminal() bool {
	return s == DisputeStatusResolved || s == DisputeStatusClosed
}

// CanTransitionTo reports whether an admin may move a dispute from s to next.
func (s DisputeStatus) CanTransitionTo(next DisputeStatus) bool {
	switch s {
	case DisputeStatusOpen:
		return next == DisputeStatusInReview || next == DisputeStatusResolved || next == DisputeStatusClosed
	case DisputeStatusInReview:
		return next == DisputeStatusResolved || next == DisputeStatusClosed
	}
	return false
}

// Dispute is a complaint one party raises about the other on a book request.
type Dispute struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	BookRequestID  uint          `gorm:"not null;index" json:"book_request_id"`
	BookRequest    *LoanRequest  `gorm:"foreignKey:BookRequestID;constraint:OnDelete:CASCADE" json:"book_request,omitempty"`
	ReporterID     uint          `gorm:"not null;index" json:"reporter_id"`
	Reporter       *User         `gorm:"foreignKey:ReporterID;constraint:OnDelete:CASCADE" json:"reporter,omitempty"`
	ReportedUserID uint          `gorm:"not null;index" json:"reported_user_id"`
	ReportedUser   *User         `gorm:"foreignKey:ReportedUserID;constraint:OnDelete:CASCADE" json:"reported_user,omitempty"`
	Title          string        `gorm:"size:255;not null" json:"title"`
	Description    string        `gorm:"type:text;not null" json:"description"`
	Status         DisputeStatus `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	AdminNotes     string        `gorm:"type:text" json:"admin_notes,omitempty"`
	ResolvedBy     *uint         `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// TableName returns the database table name for Dispute.
func (Dispute) TableName() string {
	return "disputes"
}
