package models

import (
	"encoding/json"
	"time"
)

// NotificationType tags what happened.
type NotificationType string

const (
	NotificationRequestReceived NotificationType = "request_received"
	NotificationRequestApproved NotificationType = "request_approved"
	NotificationRequestRejected NotificationType = "request_rejected"
	NotificationBookReturned    NotificationType = "book_returned"
	NotificationDueReminder     NotificationType = "due_reminder"
	NotificationDisputeOpened   NotificationType = "dispute_opened"
	NotificationDisputeUpdated  NotificationType = "dispute_updated"
	NotificationMessageReceived NotificationType = "message_received"
)

// TargetKind is the closed set of entities a notification can point at.
type TargetKind string

const (
	TargetNone        TargetKind = ""
	TargetLoanRequest TargetKind = "book_request"
	TargetBook        TargetKind = "book"
	TargetDispute     TargetKind = "dispute"
)

// NotificationTarget references the entity that triggered a notification.
// It is stored as two columns on the notifications table.
type NotificationTarget struct {
	Kind TargetKind `gorm:"column:target_type;type:varchar(32)" json:"type,omitempty"`
	ID   uint       `gorm:"column:target_id" json:"id,omitempty"`
}

// LoanRequestTarget points a notification at a book request.
func LoanRequestTarget(id uint) NotificationTarget {
	return NotificationTarget{Kind: TargetLoanRequest, ID: id}
}

// BookTarget points a notification at a book.
func BookTarget(id uint) NotificationTarget {
	return NotificationTarget{Kind: TargetBook, ID: id}
}

// DisputeTarget points a notification at a dispute.
func DisputeTarget(id uint) NotificationTarget {
	return NotificationTarget{Kind: TargetDispute, ID: id}
}

// IsZero reports whether the target is unset.
func (t NotificationTarget) IsZero() bool {
	return t.Kind == TargetNone
}

// Notification is a denormalized record of an event delivered to one user.
type Notification struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	UserID    uint               `gorm:"not null;index:idx_notifications_user_read,priority:1" json:"user_id"`
	User      *User              `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Type      NotificationType   `gorm:"type:varchar(40);not null" json:"type"`
	Title     string             `gorm:"size:255;not null" json:"title"`
	Message   string             `gorm:"type:text;not null" json:"message"`
	Target    NotificationTarget `gorm:"embedded" json:"target"`
	Read      bool               `gorm:"not null;default:false;index:idx_notifications_user_read,priority:2" json:"read"`
	ReadAt    *time.Time         `json:"read_at,omitempty"`
	EmailSent bool               `gorm:"not null;default:false" json:"email_sent"`
	SMSSent   bool               `gorm:"column:sms_sent;not null;default:false" json:"sms_sent"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string {
	return "notifications"
}

// NotificationEvent is the real-time payload published for a new notification.
type NotificationEvent struct {
	Type         string        `json:"type"`
	Notification *Notification `json:"notification"`
}

// Payload encodes the event for the pub/sub channel.
func (n *Notification) Payload() (string, error) {
	b, err := json.Marshal(NotificationEvent{Type: "notification", Notification: n})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
