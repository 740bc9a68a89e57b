package repository

import (
	"context"

	"bookswap/internal/models"

	"gorm.io/gorm"
)

// MessageRepository defines persistence operations for request threads.
type MessageRepository interface {
	Create(ctx context.Context, m *models.Message) error
	ListForRequest(ctx context.Context, requestID uint) ([]models.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository returns a new MessageRepository implementation.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, m *models.Message) error {
	if err := conn(ctx, r.db).Omit("BookRequest", "Sender", "Receiver").Create(m).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListForRequest returns the thread oldest first.
func (r *messageRepository) ListForRequest(ctx context.Context, requestID uint) ([]models.Message, error) {
	var list []models.Message
	if err := conn(ctx, r.db).Preload("Sender").
		Where("book_request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&list).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return list, nil
}
