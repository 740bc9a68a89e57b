package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix       = "user:%d"
	RatingSummaryPrefix = "user:%d:rating"
	DashboardStatsKey   = "admin:dashboard:stats"
)

const (
	UserTTL           = 5 * time.Minute
	RatingSummaryTTL  = 10 * time.Minute
	DashboardStatsTTL = 60 * time.Second
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func RatingSummaryKey(userID uint) string {
	return fmt.Sprintf(RatingSummaryPrefix, userID)
}

// Invalidate deletes keys, ignoring a missing client.
func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID), RatingSummaryKey(userID))
}

// InvalidateDashboard drops the cached admin counters after a write that changes them.
func InvalidateDashboard(ctx context.Context) {
	Invalidate(ctx, DashboardStatsKey)
}
