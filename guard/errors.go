package guard

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for protected calls.
var (
	// ErrPoolExhausted is returned when no slot becomes free within the
	// pool timeout. The operation was never invoked.
	ErrPoolExhausted = errors.New("guard: connection pool exhausted")

	// ErrCircuitOpen is returned when the circuit breaker rejects a call.
	// The operation was never invoked.
	ErrCircuitOpen = errors.New("guard: circuit breaker is open")

	// ErrOperationTimeout is returned when a call exceeds its overall
	// deadline, across all of its attempts.
	ErrOperationTimeout = errors.New("guard: operation timed out")
)

// RetryExhaustedError reports that all retryable attempts failed. It wraps
// the error from the last attempt.
type RetryExhaustedError struct {
	// Attempts is the number of times the operation was invoked.
	Attempts int

	// Elapsed is the total wall-clock time across all attempts and delays.
	Elapsed time.Duration

	// Err is the error returned by the final attempt.
	Err error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("guard: retries exhausted after %d attempts in %s: %v",
		e.Attempts, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}
