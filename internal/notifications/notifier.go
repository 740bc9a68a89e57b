// Package notifications provides real-time notification delivery over Redis pub/sub and websockets.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"

	"bookswap/internal/middleware"
	"bookswap/internal/models"
	"bookswap/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix = "notifications:user:"
	userChannelGlob   = userChannelPrefix + "*"
)

// Notifier publishes notification events into per-user Redis channels.
// A nil client turns every publish into a no-op.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a raw payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// Publish encodes a stored notification as a NotificationEvent and publishes it
// to its recipient. The result is counted whether or not Redis is configured.
func (n *Notifier) Publish(ctx context.Context, notification *models.Notification) error {
	if n == nil || n.rdb == nil {
		observability.NotificationsPublished.WithLabelValues(observability.OutcomeSkipped).Inc()
		return nil
	}
	payload, err := notification.Payload()
	if err != nil {
		observability.NotificationsPublished.WithLabelValues(observability.OutcomeFailed).Inc()
		return fmt.Errorf("encode notification %d: %w", notification.ID, err)
	}
	if err := n.PublishUser(ctx, notification.UserID, payload); err != nil {
		observability.NotificationsPublished.WithLabelValues(observability.OutcomeFailed).Inc()
		return fmt.Errorf("publish notification %d: %w", notification.ID, err)
	}
	observability.NotificationsPublished.WithLabelValues(observability.OutcomeSent).Inc()
	return nil
}

// StartPatternSubscriber subscribes to every user channel and calls onMessage
// for each incoming message until ctx is cancelled.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelGlob)
	// Wait for the subscription to be confirmed so publishes right after return are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", userChannelGlob, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in notification subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// ParseUserChannel extracts the user id from a channel produced by UserChannel.
func ParseUserChannel(channel string) (uint, bool) {
	rest, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
