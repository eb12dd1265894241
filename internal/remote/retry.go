package remote

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig configures the transport retry policy.
type RetryConfig struct {
	// MaxAttempts counts the first attempt. Default: 4
	MaxAttempts int
	// InitialBackoff is the delay before the first retry. Default: 250ms
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries. Default: 8s
	MaxBackoff time.Duration
	// Multiplier grows the backoff after each retry. Default: 2
	Multiplier float64
	// Jitter is the fraction of randomness applied to each delay, 0..1. Default: 0.1
	Jitter float64
	// RetryIf decides whether an error earns another attempt. Default: IsRetryable
	RetryIf func(error) bool
	// OnRetry observes every failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the backoff used for remote document calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
		RetryIf:        IsRetryable,
	}
}

// Retryer runs an operation with exponential backoff on retryable failures only.
type Retryer struct {
	config RetryConfig
}

// NewRetryer fills zero fields with defaults.
func NewRetryer(config RetryConfig) *Retryer {
	defaults := DefaultRetryConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.Multiplier <= 0 {
		config.Multiplier = defaults.Multiplier
	}
	if config.Jitter < 0 || config.Jitter > 1 {
		config.Jitter = defaults.Jitter
	}
	if config.RetryIf == nil {
		config.RetryIf = defaults.RetryIf
	}
	return &Retryer{config: config}
}

// Do executes op until it succeeds, fails terminally, or attempts run out.
// The returned error is the last failure, or the context error if cancelled while waiting.
func (r *Retryer) Do(ctx context.Context, op func() error) error {
	backoff := r.config.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !r.config.RetryIf(lastErr) || attempt == r.config.MaxAttempts {
			return lastErr
		}
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, lastErr)
		}

		timer := time.NewTimer(r.jitter(backoff))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * r.config.Multiplier)
		if backoff > r.config.MaxBackoff {
			backoff = r.config.MaxBackoff
		}
	}
	return lastErr
}

func (r *Retryer) jitter(delay time.Duration) time.Duration {
	if r.config.Jitter == 0 {
		return delay
	}
	spread := float64(delay) * r.config.Jitter
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*spread)
}

// doWithResult is Do for operations that produce a value.
func doWithResult[T any](ctx context.Context, retryer *Retryer, op func() (T, error)) (T, error) {
	var result T
	err := retryer.Do(ctx, func() error {
		value, err := op()
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	return result, err
}
