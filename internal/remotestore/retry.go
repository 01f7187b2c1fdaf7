package remotestore

import (
	"context"
	"errors"
	"math"
	"time"
)

// RetryPolicy is an exponential backoff for transient remote failures.
// Attempts counts the total number of tries; values below one mean a single try.
type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy retries twice with a short backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:     3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2,
	}
}

// NextDelay returns the wait before retry number attempt (0-based) and whether to retry.
func (p RetryPolicy) NextDelay(attempt int) (time.Duration, bool) {
	if attempt+1 >= p.Attempts {
		return 0, false
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay), true
}

func (p RetryPolicy) do(ctx context.Context, call func() error) error {
	for attempt := 0; ; attempt++ {
		err := call()
		if err == nil || !retryable(err) {
			return err
		}
		delay, ok := p.NextDelay(attempt)
		if !ok {
			return err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.retryable()
	}
	var decodeErr *decodeError
	return !errors.As(err, &decodeErr)
}
