package guard

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls flow through normally.
	StateClosed State = iota
	// StateOpen means all calls are rejected without being attempted.
	StateOpen
	// StateHalfOpen means a single probe call is testing recovery.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitConfig configures the circuit breaker.
type CircuitConfig struct {
	// FailureThreshold is the number of failures within MonitoringPeriod
	// that opens the circuit.
	// Default: 5
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before allowing
	// a probe.
	// Default: 60 seconds
	RecoveryTimeout time.Duration

	// MonitoringPeriod is the width of the sliding failure window. Older
	// failures are pruned before every threshold check.
	// Default: 60 seconds
	MonitoringPeriod time.Duration

	// Name labels emitted events.
	Name string

	// Sink receives circuit_* events on state transitions.
	Sink EventSink

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)
}

// Circuit is a three-state circuit breaker. Failures are tracked in a
// sliding time window; once the window holds FailureThreshold failures the
// circuit opens and rejects calls until RecoveryTimeout elapses, after
// which a single half-open probe decides whether to close or reopen.
type Circuit struct {
	config CircuitConfig

	mu            sync.Mutex
	state         State
	failures      []time.Time
	openedAt      time.Time
	nextAttempt   time.Time // valid only while open
	probeInFlight bool
}

// NewCircuit creates a new circuit breaker in the closed state.
func NewCircuit(config CircuitConfig) *Circuit {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.MonitoringPeriod <= 0 {
		config.MonitoringPeriod = 60 * time.Second
	}
	return &Circuit{
		config: config,
		state:  StateClosed,
	}
}

// Allow reports whether a call may proceed. While open, the first call at
// or after the recovery deadline transitions the circuit to half-open and
// is admitted as the probe; while half-open, all calls beyond the in-flight
// probe are rejected.
func (c *Circuit) Allow() bool {
	ok, _ := c.allow()
	return ok
}

// allow additionally reports whether the admitted call is the half-open
// probe, so the executor can relinquish a probe it never got to attempt.
func (c *Circuit) allow() (ok, probe bool) {
	c.mu.Lock()

	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return true, false

	case StateOpen:
		if time.Now().Before(c.nextAttempt) {
			c.mu.Unlock()
			return false, false
		}
		c.state = StateHalfOpen
		c.probeInFlight = true
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(StateOpen, StateHalfOpen, snap)
		return true, true

	default: // StateHalfOpen
		if c.probeInFlight {
			c.mu.Unlock()
			return false, false
		}
		c.probeInFlight = true
		c.mu.Unlock()
		return true, true
	}
}

// RecordSuccess records that a logical call ultimately succeeded. A
// successful half-open probe closes the circuit and clears the failure
// window.
func (c *Circuit) RecordSuccess() {
	c.mu.Lock()
	if c.state == StateHalfOpen {
		c.probeInFlight = false
		c.failures = c.failures[:0]
		c.state = StateClosed
		c.openedAt = time.Time{}
		c.nextAttempt = time.Time{}
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(StateHalfOpen, StateClosed, snap)
		return
	}
	c.pruneLocked(time.Now())
	c.mu.Unlock()
}

// RecordFailure records that a logical call ultimately failed, across all
// of its internal retries. Individual retry attempts must not be recorded
// separately.
func (c *Circuit) RecordFailure() {
	now := time.Now()

	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.pruneLocked(now)
		c.failures = append(c.failures, now)
		if len(c.failures) >= c.config.FailureThreshold {
			c.openLocked(now)
			snap := c.snapshotLocked()
			c.mu.Unlock()
			c.notify(StateClosed, StateOpen, snap)
			return
		}

	case StateHalfOpen:
		// Failed probe: back to open with a fresh recovery deadline.
		c.probeInFlight = false
		c.openLocked(now)
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(StateHalfOpen, StateOpen, snap)
		return
	}
	c.mu.Unlock()
}

// cancelProbe relinquishes a half-open probe that was admitted but never
// attempted (for example because the pool was exhausted). The circuit
// returns to open without extending the recovery deadline, so the next
// call may probe immediately.
func (c *Circuit) cancelProbe() {
	c.mu.Lock()
	if c.state != StateHalfOpen || !c.probeInFlight {
		c.mu.Unlock()
		return
	}
	c.probeInFlight = false
	c.state = StateOpen
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(StateHalfOpen, StateOpen, snap)
}

// Execute runs op through the circuit breaker alone, recording its outcome
// as one logical call.
func (c *Circuit) Execute(ctx context.Context, op func(context.Context) error) error {
	if !c.Allow() {
		return ErrCircuitOpen
	}
	err := op(ctx)
	if err != nil {
		c.RecordFailure()
	} else {
		c.RecordSuccess()
	}
	return err
}

// State returns the current circuit state. The open to half-open
// transition happens on the next admitted call, not on observation.
func (c *Circuit) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// openLocked transitions to open. Caller holds c.mu.
func (c *Circuit) openLocked(now time.Time) {
	c.state = StateOpen
	c.openedAt = now
	c.nextAttempt = now.Add(c.config.RecoveryTimeout)
}

// pruneLocked drops failures older than MonitoringPeriod. Caller holds
// c.mu.
func (c *Circuit) pruneLocked(now time.Time) {
	cutoff := now.Add(-c.config.MonitoringPeriod)
	i := 0
	for i < len(c.failures) && !c.failures[i].After(cutoff) {
		i++
	}
	if i > 0 {
		c.failures = append(c.failures[:0], c.failures[i:]...)
	}
}

func (c *Circuit) notify(from, to State, snap CircuitSnapshot) {
	if c.config.OnStateChange != nil {
		c.config.OnStateChange(from, to)
	}
	var name string
	switch to {
	case StateOpen:
		name = EventCircuitOpened
	case StateHalfOpen:
		name = EventCircuitHalfOpen
	case StateClosed:
		name = EventCircuitClosed
	}
	emit(context.Background(), c.config.Sink, Event{Name: name, Source: c.config.Name, Circuit: &snap})
}

// CircuitSnapshot is a read-only projection of breaker state.
type CircuitSnapshot struct {
	// State is the breaker state at snapshot time.
	State State

	// Failures is the number of failures currently inside the sliding
	// window.
	Failures int

	// OpenedAt is when the circuit last opened; zero if it never has.
	OpenedAt time.Time

	// NextAttempt is when the next probe may run; zero unless open.
	NextAttempt time.Time
}

// Snapshot returns the current breaker state.
func (c *Circuit) Snapshot() CircuitSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(time.Now())
	return c.snapshotLocked()
}

func (c *Circuit) snapshotLocked() CircuitSnapshot {
	snap := CircuitSnapshot{
		State:    c.state,
		Failures: len(c.failures),
		OpenedAt: c.openedAt,
	}
	if c.state == StateOpen {
		snap.NextAttempt = c.nextAttempt
	}
	return snap
}
