// Package guard protects calls to slow or unreliable external dependencies.
//
// The package combines four cooperating pieces into a single protected-call
// executor. Each piece can also be used on its own:
//
//   - Pool: a bounded set of connection slots with a FIFO wait queue, so a
//     dependency never sees more than a fixed number of concurrent calls.
//
//   - Circuit: a three-state circuit breaker (closed / open / half-open)
//     driven by a sliding window of recent failures, so a failing dependency
//     is not hammered while it recovers.
//
//   - Retry: bounded retries with exponential backoff and additive jitter,
//     classifying errors as retryable or terminal.
//
//   - Executor: the composition root. It consults the breaker, acquires a
//     pool slot, drives the retry loop under a single wall-clock deadline,
//     releases the slot on every exit path, and reports the final outcome to
//     the breaker exactly once per logical call.
//
// # Usage
//
//	exec := guard.NewExecutor(guard.Config{
//	    Name:             "payments",
//	    MaxConnections:   10,
//	    PoolTimeout:      2 * time.Second,
//	    OperationTimeout: 30 * time.Second,
//	    MaxAttempts:      3,
//	    BaseDelay:        100 * time.Millisecond,
//	    FailureThreshold: 5,
//	    RecoveryTimeout:  time.Minute,
//	})
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return chargeCard(ctx, order)
//	})
//
// Every state change and call outcome is published as a named Event through
// the configured EventSink. The package only emits events; formatting and
// shipping them is the sink implementation's job (see the telemetry
// package).
package guard
