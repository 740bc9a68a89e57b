package models

import "time"

// BookStatus mirrors whether a book is currently held by an approved loan.
type BookStatus string

const (
	// BookStatusAvailable means the book may be requested.
	BookStatusAvailable BookStatus = "Available"
	// BookStatusLentOut means an approved loan currently holds the book.
	BookStatusLentOut BookStatus = "Lent Out"
)

// Valid reports whether s is a known book status.
func (s BookStatus) Valid() bool {
	return s == BookStatusAvailable || s == BookStatusLentOut
}

// BookCondition describes the physical state of a listed book.
type BookCondition string

const (
	BookConditionExcellent BookCondition = "Excellent"
	BookConditionGood      BookCondition = "Good"
	BookConditionFair      BookCondition = "Fair"
	BookConditionPoor      BookCondition = "Poor"
)

// Valid reports whether c is a known condition.
func (c BookCondition) Valid() bool {
	switch c {
	case BookConditionExcellent, BookConditionGood, BookConditionFair, BookConditionPoor:
		return true
	}
	return false
}

// Book is a listing owned by a member.
type Book struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Title       string        `gorm:"size:255;not null;index" json:"title"`
	Author      string        `gorm:"size:255;not null;index" json:"author"`
	Genre       string        `gorm:"size:100" json:"genre,omitempty"`
	Condition   BookCondition `gorm:"type:varchar(20);not null;default:'Good'" json:"condition"`
	Status      BookStatus    `gorm:"type:varchar(20);not null;default:'Available';index" json:"status"`
	Description string        `gorm:"type:text" json:"description,omitempty"`
	Location    string        `gorm:"size:255;index" json:"location,omitempty"`
	Image       string        `gorm:"size:512" json:"image,omitempty"`
	UserID      uint          `gorm:"not null;index" json:"user_id"`
	User        *User         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TableName returns the database table name for Book.
func (Book) TableName() string {
	return "books"
}
