// Package resilience provides the retry policy for transient network
// failures. Auth failures and API errors are never retried here; only errors
// the caller marks retryable are.
package resilience

import (
	"context"
	"time"
)

// RetryConfig configures exponential backoff between attempts.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, including the first.
	// Default: 3
	MaxAttempts int

	// InitialDelay is the wait before the second attempt.
	// Default: 250ms
	InitialDelay time.Duration

	// MaxDelay caps the backoff.
	// Default: 2s
	MaxDelay time.Duration

	// Multiplier grows the delay after each failed attempt.
	// Default: 2
	Multiplier float64
}

// DefaultRetryConfig returns the defaults used by the REST client.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier <= 1 {
		c.Multiplier = d.Multiplier
	}
	return c
}

// Retry runs fn up to MaxAttempts times, sleeping with exponential backoff
// between attempts. It stops early when fn succeeds, when retryable reports
// the error as permanent, or when ctx is done. The last error is returned.
func Retry(ctx context.Context, cfg RetryConfig, retryable func(error) bool, fn func() error) error {
	cfg = cfg.withDefaults()

	var err error
	delay := cfg.InitialDelay
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt >= cfg.MaxAttempts || retryable == nil || !retryable(err) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}
