package models

import "time"

// MaxMessageBodyLength bounds a single message in a request thread.
const MaxMessageBodyLength = 1000

// Message is a note exchanged between the two parties of a book request.
type Message struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	BookRequestID uint         `gorm:"not null;index" json:"book_request_id"`
	BookRequest   *LoanRequest `gorm:"foreignKey:BookRequestID;constraint:OnDelete:CASCADE" json:"-"`
	SenderID      uint         `gorm:"not null;index" json:"sender_id"`
	Sender        *User        `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"sender,omitempty"`
	ReceiverID    uint         `gorm:"not null;index" json:"receiver_id"`
	Receiver      *User        `gorm:"foreignKey:ReceiverID;constraint:OnDelete:CASCADE" json:"-"`
	Body          string       `gorm:"type:text;not null" json:"body"`
	ReadAt        *time.Time   `json:"read_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string {
	return "messages"
}
