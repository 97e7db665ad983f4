package genesis

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"
)

// RetryPolicy decides whether a failed request is attempted again and how
// long to wait before doing so.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	JitterFactor   float64

	RetryableStatusCodes map[int]bool
}

func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:     2,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		BackoffFactor:  2.0,
		JitterFactor:   0.2,
		RetryableStatusCodes: map[int]bool{
			408: true,
			429: true,
			500: true,
			502: true,
			503: true,
			504: true,
		},
	}
}

// NoRetry performs every request exactly once.
func NoRetry() *RetryPolicy {
	return &RetryPolicy{}
}

// ShouldRetry reports whether attempt (1-based) may be followed by another.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if p == nil || attempt > p.MaxRetries || err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return p.RetryableStatusCodes[httpErr.StatusCode]
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Backoff returns the wait before attempt+1, with jitter.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= p.BackoffFactor
	}
	if p.MaxBackoff > 0 && backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}
	jitter := rand.Float64() * p.JitterFactor * backoff
	return time.Duration(backoff + jitter)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
