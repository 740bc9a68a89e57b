package mail

import (
	"context"
	"fmt"
	"time"

	"bookswap/internal/observability"

	"golang.org/x/time/rate"
)

// RateLimitedMailer serializes deliveries through a token bucket and bounds
// every send, including the wait for a token, by a timeout.
type RateLimitedMailer struct {
	next    Mailer
	limiter *rate.Limiter
	timeout time.Duration
}

// NewRateLimitedMailer allows perMinute sends per minute with the given burst.
// A non-positive perMinute disables the limit.
func NewRateLimitedMailer(next Mailer, perMinute float64, burst int, timeout time.Duration) *RateLimitedMailer {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(perMinute / 60)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedMailer{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
	}
}

func (m *RateLimitedMailer) Send(ctx context.Context, msg Message) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	if err := m.limiter.Wait(ctx); err != nil {
		observability.RecordEmail(string(msg.Kind), observability.OutcomeSkipped)
		return fmt.Errorf("mail rate limit: %w", err)
	}
	if err := m.next.Send(ctx, msg); err != nil {
		observability.RecordEmail(string(msg.Kind), observability.OutcomeFailed)
		return err
	}
	observability.RecordEmail(string(msg.Kind), observability.OutcomeSent)
	return nil
}
