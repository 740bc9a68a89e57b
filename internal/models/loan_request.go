package models

import (
	"fmt"
	"time"
)

// LoanStatus is the lifecycle state of a borrow or swap request.
type LoanStatus string

const (
	// LoanStatusPending is the initial state; the owner has not decided yet.
	LoanStatusPending LoanStatus = "Pending"
	// LoanStatusApproved means the book is out with the borrower.
	LoanStatusApproved LoanStatus = "Approved"
	// LoanStatusRejected is terminal; the owner declined.
	LoanStatusRejected LoanStatus = "Rejected"
	// LoanStatusReturned is terminal; the owner confirmed the book came back.
	LoanStatusReturned LoanStatus = "Returned"
)

// Valid reports whether s is a known loan status.
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusPending, LoanStatusApproved, LoanStatusRejected, LoanStatusReturned:
		return true
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s LoanStatus) Terminal() bool {
	switch s {
	case LoanStatusRejected, LoanStatusReturned:
		return true
	}
	return false
}

// Active reports whether the request still blocks a duplicate request for the same book.
func (s LoanStatus) Active() bool {
	return s == LoanStatusPending || s == LoanStatusApproved
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	switch s {
	case LoanStatusPending:
		return next == LoanStatusApproved || next == LoanStatusRejected
	case LoanStatusApproved:
		return next == LoanStatusReturned
	case LoanStatusRejected, LoanStatusReturned:
		return false
	}
	return false
}

// RequestType distinguishes a plain borrow from a swap offer.
type RequestType string

const (
	RequestTypeBorrow RequestType = "borrow"
	RequestTypeSwap   RequestType = "swap"
)

// Valid reports whether t is a known request type.
func (t RequestType) Valid() bool {
	return t == RequestTypeBorrow || t == RequestTypeSwap
}

// DefaultLoanPeriod is how long an approved loan runs before it is due.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// MaxRequestMessageLength bounds the optional note a borrower attaches.
const MaxRequestMessageLength = 500

// LoanRequest is a borrow or swap request between a borrower and a book owner.
type LoanRequest struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	BookID         uint        `gorm:"not null;index" json:"book_id"`
	Book           *Book       `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE" json:"book,omitempty"`
	BorrowerID     uint        `gorm:"not null;index" json:"borrower_id"`
	Borrower       *User       `gorm:"foreignKey:BorrowerID;constraint:OnDelete:CASCADE" json:"borrower,omitempty"`
	OwnerID        uint        `gorm:"not null;index" json:"owner_id"`
	Owner          *User       `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"owner,omitempty"`
	RequestType    RequestType `gorm:"type:varchar(10);not null;default:'borrow'" json:"request_type"`
	SwapBookID     *uint       `gorm:"index" json:"swap_book_id,omitempty"`
	SwapBook       *Book       `gorm:"foreignKey:SwapBookID;constraint:OnDelete:CASCADE" json:"swap_book,omitempty"`
	Status         LoanStatus  `gorm:"type:varchar(20);not null;default:'Pending';index" json:"status"`
	Message        string      `gorm:"type:text" json:"message,omitempty"`
	BorrowedAt     *time.Time  `json:"borrowed_at,omitempty"`
	DueDate        *time.Time  `gorm:"index" json:"due_date,omitempty"`
	ReturnedAt     *time.Time  `json:"returned_at,omitempty"`
	ReminderSent   bool        `gorm:"not null;default:false" json:"reminder_sent"`
	LastReminderAt *time.Time  `json:"last_reminder_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// TableName returns the database table name for LoanRequest.
func (LoanRequest) TableName() string {
	return "book_requests"
}

// IsParty reports whether userID is the borrower or the owner.
func (r *LoanRequest) IsParty(userID uint) bool {
	return userID != 0 && (r.BorrowerID == userID || r.OwnerID == userID)
}

// CounterpartyOf returns the other party of the request, or 0 if userID is not a party.
func (r *LoanRequest) CounterpartyOf(userID uint) uint {
	switch userID {
	case r.BorrowerID:
		return r.OwnerID
	case r.OwnerID:
		return r.BorrowerID
	}
	return 0
}

func (r *LoanRequest) transition(next LoanStatus) error {
	if !r.Status.CanTransitionTo(next) {
		return NewValidationError(fmt.Sprintf("Book request is %s and cannot become %s", r.Status, next))
	}
	r.Status = next
	return nil
}

// Approve moves a pending request to approved and starts the loan clock.
func (r *LoanRequest) Approve(now time.Time, period time.Duration) error {
	if err := r.transition(LoanStatusApproved); err != nil {
		return err
	}
	borrowed := now
	due := now.Add(period)
	r.BorrowedAt = &borrowed
	r.DueDate = &due
	return nil
}

// Reject moves a pending request to rejected.
func (r *LoanRequest) Reject() error {
	return r.transition(LoanStatusRejected)
}

// MarkReturned closes an approved loan.
func (r *LoanRequest) MarkReturned(now time.Time) error {
	if err := r.transition(LoanStatusReturned); err != nil {
		return err
	}
	returned := now
	r.ReturnedAt = &returned
	return nil
}

// RecordReminder stores the reminder bookkeeping after a successful send.
func (r *LoanRequest) RecordReminder(now time.Time) {
	sent := now
	r.ReminderSent = true
	r.LastReminderAt = &sent
}
