package guard

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig configures the retry executor.
type RetryConfig struct {
	// MaxAttempts is the maximum number of invocations, including the
	// first.
	// Default: 3
	MaxAttempts int

	// BaseDelay is the delay before the first retry. Attempt 1 runs with
	// no delay.
	// Default: 100ms
	BaseDelay time.Duration

	// MaxDelay caps the delay between attempts, jitter included.
	// Default: 30 seconds
	MaxDelay time.Duration

	// RetryIf determines whether an error is worth another attempt.
	// Default: Retryable (terminal categories short-circuit).
	RetryIf func(err error) bool

	// OnRetry is called after a failed attempt, before the backoff delay.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Name labels emitted events.
	Name string

	// Sink receives retry_attempt and retry_exhausted events.
	Sink EventSink
}

// Retry runs an operation with bounded attempts and exponential backoff
// with additive jitter.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry executor.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.RetryIf == nil {
		config.RetryIf = Retryable
	}
	return &Retry{config: config}
}

// Execute runs op until it succeeds, returns a terminal error, exhausts
// MaxAttempts, or the context expires. A terminal error is returned as-is
// after a single attempt; exhaustion is reported as a RetryExhaustedError
// wrapping the last attempt's error.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	start := time.Now()
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		attempts = attempt
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.config.RetryIf(err) {
			return err
		}
		if attempt >= r.config.MaxAttempts {
			break
		}

		delay := r.Delay(attempt)
		emit(ctx, r.config.Sink, Event{
			Name:    EventRetryAttempt,
			Source:  r.config.Name,
			Attempt: attempt,
			Delay:   delay,
			Err:     err,
		})
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	rex := &RetryExhaustedError{
		Attempts: attempts,
		Elapsed:  time.Since(start),
		Err:      lastErr,
	}
	emit(ctx, r.config.Sink, Event{
		Name:    EventRetryExhausted,
		Source:  r.config.Name,
		Attempt: attempts,
		Err:     lastErr,
	})
	return rex
}

// Delay returns the backoff delay scheduled after the given 1-based
// attempt: min(BaseDelay * 2^(attempt-1) + jitter, MaxDelay), with jitter
// uniform in [0, BaseDelay) so simultaneous callers do not retry in
// lockstep.
func (r *Retry) Delay(attempt int) time.Duration {
	base := float64(r.config.BaseDelay) * math.Pow(2, float64(attempt-1))
	delay := time.Duration(base)
	if delay <= 0 || delay > r.config.MaxDelay {
		// Also catches overflow for very large attempt numbers.
		return r.config.MaxDelay
	}

	// #nosec G404 -- jitter is non-cryptographic timing variance.
	delay += time.Duration(rand.Int64N(int64(r.config.BaseDelay)))
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	return delay
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
