package guard

import (
	"context"
	"time"
)

// Event names published through the EventSink.
const (
	EventPoolAcquired    = "pool_acquired"
	EventPoolQueued      = "pool_queued"
	EventPoolExhausted   = "pool_exhausted"
	EventPoolReleased    = "pool_released"
	EventCircuitOpened   = "circuit_opened"
	EventCircuitHalfOpen = "circuit_half_open"
	EventCircuitClosed   = "circuit_closed"
	EventRetryAttempt    = "retry_attempt"
	EventRetryExhausted  = "retry_exhausted"
	EventHealthAlert     = "health_alert"
)

// Event is a single named occurrence inside a protected call. Only the
// fields relevant to the event are populated.
type Event struct {
	// Name is one of the Event* constants.
	Name string

	// Timestamp is when the event occurred.
	Timestamp time.Time

	// Source names the executor or dependency the event belongs to.
	Source string

	// Pool is the pool state at the time of a pool_* event.
	Pool *PoolSnapshot

	// Circuit is the breaker state at the time of a circuit_* event.
	Circuit *CircuitSnapshot

	// Attempt is the 1-based attempt number for retry_* events.
	Attempt int

	// Delay is the backoff delay scheduled after a retry_attempt event.
	Delay time.Duration

	// Err is the error that triggered the event, if any.
	Err error

	// Detail carries additional event-specific payload, such as health
	// alert thresholds.
	Detail map[string]any
}

// EventSink receives the event stream of one or more protected executors.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: emitting must be best-effort and must not panic.
// - Latency: Emit is called on the hot path and should return quickly.
type EventSink interface {
	Emit(ctx context.Context, ev Event)
}

// SinkFunc adapts an ordinary function to an EventSink.
type SinkFunc func(ctx context.Context, ev Event)

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, ev Event) { f(ctx, ev) }

// emit publishes ev to sink if one is configured, stamping the timestamp.
func emit(ctx context.Context, sink EventSink, ev Event) {
	if sink == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	sink.Emit(ctx, ev)
}
