package service

import (
	"context"
	"time"

	"bookswap/internal/models"
	"bookswap/internal/repository"
)

// NotificationService is the read side of a user's inbox.
type NotificationService struct {
	notifications repository.NotificationRepository
	now           func() time.Time
}

func NewNotificationService(notifications repository.NotificationRepository) *NotificationService {
	return &NotificationService{notifications: notifications, now: utcNow}
}

func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, int64, error) {
	return s.notifications.ListForUser(ctx, userID, limit, offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.notifications.UnreadCount(ctx, userID)
}

// MarkAsRead marks one of userID's notifications read. Another user's id is not found.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id uint) error {
	return s.notifications.MarkRead(ctx, id, userID, s.now())
}

// MarkAllAsRead returns how many notifications changed.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) (int64, error) {
	return s.notifications.MarkAllRead(ctx, userID, s.now())
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	return s.notifications.Delete(ctx, id, userID)
}
