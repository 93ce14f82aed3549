package guard

import (
	"context"
	"errors"
	"time"
)

// Operation is an asynchronous unit of work supplied by the caller. The
// executor is agnostic to what it does.
type Operation func(ctx context.Context) error

// Config parameterizes one protected executor. An executor is built once
// per logical external dependency and shared by all of its call sites.
type Config struct {
	// Name identifies the dependency in events and health reports.
	Name string

	// MaxConnections is the pool size.
	// Default: 10
	MaxConnections int

	// PoolTimeout is the maximum wait for a slot.
	// Default: 5 seconds
	PoolTimeout time.Duration

	// OperationTimeout bounds the total wall-clock time of one logical
	// call, across all retry attempts and backoff delays.
	// Default: 30 seconds
	OperationTimeout time.Duration

	// MaxAttempts, BaseDelay and MaxDelay configure the retry layer. See
	// RetryConfig.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// FailureThreshold, RecoveryTimeout and MonitoringPeriod configure
	// the circuit breaker. See CircuitConfig.
	FailureThreshold int
	RecoveryTimeout  time.Duration
	MonitoringPeriod time.Duration

	// RetryIf overrides the default error classification.
	RetryIf func(err error) bool

	// OnStateChange is called on circuit state transitions.
	OnStateChange func(from, to State)

	// Sink receives the executor's full event stream.
	Sink EventSink
}

// Executor guards calls to one external dependency with a connection pool,
// a circuit breaker and a retry loop.
//
// Per call: circuit check, slot acquire, retry loop under one deadline,
// slot release, single outcome report to the breaker. ErrCircuitOpen and
// ErrPoolExhausted are returned without ever invoking the operation, and
// pool contention is never counted as a dependency failure.
type Executor struct {
	config  Config
	pool    *Pool
	circuit *Circuit
	retry   *Retry
}

// NewExecutor creates a protected executor for one dependency.
func NewExecutor(config Config) *Executor {
	if config.PoolTimeout <= 0 {
		config.PoolTimeout = 5 * time.Second
	}
	if config.OperationTimeout <= 0 {
		config.OperationTimeout = 30 * time.Second
	}

	return &Executor{
		config: config,
		pool: NewPool(PoolConfig{
			MaxConnections: config.MaxConnections,
			Name:           config.Name,
			Sink:           config.Sink,
		}),
		circuit: NewCircuit(CircuitConfig{
			FailureThreshold: config.FailureThreshold,
			RecoveryTimeout:  config.RecoveryTimeout,
			MonitoringPeriod: config.MonitoringPeriod,
			Name:             config.Name,
			Sink:             config.Sink,
			OnStateChange:    config.OnStateChange,
		}),
		retry: NewRetry(RetryConfig{
			MaxAttempts: config.MaxAttempts,
			BaseDelay:   config.BaseDelay,
			MaxDelay:    config.MaxDelay,
			RetryIf:     config.RetryIf,
			Name:        config.Name,
			Sink:        config.Sink,
		}),
	}
}

// Name returns the dependency name this executor guards.
func (e *Executor) Name() string { return e.config.Name }

// Execute runs op under the full protection chain.
//
// Once an attempt begins the operation itself is never interrupted; when
// the deadline fires the executor stops waiting and returns
// ErrOperationTimeout, and the abandoned attempt runs to its own
// completion. Operations should therefore honor ctx if they can.
func (e *Executor) Execute(ctx context.Context, op Operation) error {
	ok, probe := e.circuit.allow()
	if !ok {
		return ErrCircuitOpen
	}

	slot, err := e.pool.Acquire(ctx, e.config.PoolTimeout)
	if err != nil {
		// The operation never ran; a claimed probe must be handed back
		// and pool contention is not a dependency failure.
		if probe {
			e.circuit.cancelProbe()
		}
		return err
	}
	defer e.pool.Release(slot)

	opCtx, cancel := context.WithTimeout(ctx, e.config.OperationTimeout)
	defer cancel()

	err = e.retry.Execute(opCtx, func(ctx context.Context) error {
		return waitAttempt(ctx, op)
	})
	// Report an overall timeout only when this call's deadline actually
	// fired. Attempts routinely fail with errors that wrap a deadline (a
	// per-request HTTP client timeout, say) while the call's own budget is
	// still live; those outcomes keep their retry-exhaustion shape.
	if errors.Is(opCtx.Err(), context.DeadlineExceeded) &&
		(errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrOperationTimeout)) {
		err = ErrOperationTimeout
	}

	if err != nil {
		e.circuit.RecordFailure()
	} else {
		e.circuit.RecordSuccess()
	}
	return err
}

// waitAttempt runs one attempt, abandoning it if the overall deadline
// fires first so a hung attempt cannot exceed the caller's time budget.
func waitAttempt(ctx context.Context, op Operation) error {
	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrOperationTimeout
		}
		return ctx.Err()
	}
}

// Run executes a result-returning operation through the executor.
func Run[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := e.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

// Stats is a point-in-time projection of an executor's pool and breaker.
type Stats struct {
	Name    string
	Pool    PoolSnapshot
	Circuit CircuitSnapshot
}

// Stats returns the executor's current pool and breaker state.
func (e *Executor) Stats() Stats {
	return Stats{
		Name:    e.config.Name,
		Pool:    e.pool.Snapshot(),
		Circuit: e.circuit.Snapshot(),
	}
}

// Pool returns the executor's connection pool.
func (e *Executor) Pool() *Pool { return e.pool }

// Circuit returns the executor's circuit breaker.
func (e *Executor) Circuit() *Circuit { return e.circuit }
