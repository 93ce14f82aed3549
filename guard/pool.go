package guard

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// PoolConfig configures the connection pool.
type PoolConfig struct {
	// MaxConnections is the number of slots, i.e. the maximum number of
	// concurrent operations against the dependency.
	// Default: 10
	MaxConnections int

	// Name labels emitted events.
	Name string

	// Sink receives pool_* events.
	Sink EventSink
}

// Slot is permission to run one operation against the dependency. A slot is
// owned by exactly one in-flight operation at a time and must be returned
// with Release.
type Slot struct {
	id         uint64
	acquiredAt time.Time
	lastActive time.Time
}

// ID returns the slot's identifier. IDs are stable across reuse.
func (s *Slot) ID() uint64 { return s.id }

// AcquiredAt returns when the current owner acquired the slot.
func (s *Slot) AcquiredAt() time.Time { return s.acquiredAt }

// waiter is a queued acquire call. A waiter is granted a slot exactly once
// or removed from the queue exactly once, never both.
type waiter struct {
	ready      chan *Slot // buffered; the granting release sends the slot
	enqueuedAt time.Time
	granted    bool
}

// Pool is a bounded set of slots with a FIFO wait queue. Callers that find
// the pool full wait in arrival order; each release hands the freed slot to
// the oldest waiter before the pool is allowed to go idle.
type Pool struct {
	config PoolConfig

	mu      sync.Mutex
	active  int
	idle    []*Slot
	waiters *list.List // of *waiter
	nextID  uint64
}

// NewPool creates a new connection pool.
func NewPool(config PoolConfig) *Pool {
	if config.MaxConnections <= 0 {
		config.MaxConnections = 10
	}
	return &Pool{
		config:  config,
		waiters: list.New(),
	}
}

// Acquire obtains a slot, waiting up to timeout if the pool is full.
// Returns ErrPoolExhausted if no slot becomes free in time. Waiters are
// served strictly FIFO relative to Release calls.
func (p *Pool) Acquire(ctx context.Context, timeout time.Duration) (*Slot, error) {
	p.mu.Lock()
	if p.active < p.config.MaxConnections {
		slot := p.takeLocked()
		snap := p.snapshotLocked()
		p.mu.Unlock()
		emit(ctx, p.config.Sink, Event{Name: EventPoolAcquired, Source: p.config.Name, Pool: &snap})
		return slot, nil
	}

	w := &waiter{ready: make(chan *Slot, 1), enqueuedAt: time.Now()}
	elem := p.waiters.PushBack(w)
	snap := p.snapshotLocked()
	p.mu.Unlock()
	emit(ctx, p.config.Sink, Event{Name: EventPoolQueued, Source: p.config.Name, Pool: &snap})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case slot := <-w.ready:
		snap := p.Snapshot()
		emit(ctx, p.config.Sink, Event{Name: EventPoolAcquired, Source: p.config.Name, Pool: &snap})
		return slot, nil

	case <-timer.C:
		p.mu.Lock()
		if !w.granted {
			p.waiters.Remove(elem)
			snap := p.snapshotLocked()
			p.mu.Unlock()
			emit(ctx, p.config.Sink, Event{Name: EventPoolExhausted, Source: p.config.Name, Pool: &snap, Err: ErrPoolExhausted})
			return nil, ErrPoolExhausted
		}
		// A release granted us the slot before the timeout was observed;
		// the grant wins.
		p.mu.Unlock()
		slot := <-w.ready
		snap := p.Snapshot()
		emit(ctx, p.config.Sink, Event{Name: EventPoolAcquired, Source: p.config.Name, Pool: &snap})
		return slot, nil

	case <-ctx.Done():
		p.mu.Lock()
		if !w.granted {
			p.waiters.Remove(elem)
			p.mu.Unlock()
			return nil, ctx.Err()
		}
		p.mu.Unlock()
		// Granted concurrently with cancellation; hand the slot back so it
		// is not leaked.
		p.Release(<-w.ready)
		return nil, ctx.Err()
	}
}

// Release returns a slot to the pool. If callers are waiting, the slot is
// handed directly to the oldest waiter and never goes idle.
func (p *Pool) Release(slot *Slot) {
	if slot == nil {
		return
	}
	now := time.Now()

	p.mu.Lock()
	slot.lastActive = now

	if elem := p.waiters.Front(); elem != nil {
		w := elem.Value.(*waiter)
		p.waiters.Remove(elem)
		w.granted = true
		slot.acquiredAt = now
		w.ready <- slot
		snap := p.snapshotLocked()
		p.mu.Unlock()
		emit(context.Background(), p.config.Sink, Event{Name: EventPoolReleased, Source: p.config.Name, Pool: &snap})
		return
	}

	p.active--
	p.idle = append(p.idle, slot)
	snap := p.snapshotLocked()
	p.mu.Unlock()
	emit(context.Background(), p.config.Sink, Event{Name: EventPoolReleased, Source: p.config.Name, Pool: &snap})
}

// takeLocked claims a slot for a new owner, reusing an idle slot if one
// exists. Caller holds p.mu.
func (p *Pool) takeLocked() *Slot {
	p.active++
	now := time.Now()

	var slot *Slot
	if n := len(p.idle); n > 0 {
		slot = p.idle[n-1]
		p.idle = p.idle[:n-1]
	} else {
		p.nextID++
		slot = &Slot{id: p.nextID}
	}
	slot.acquiredAt = now
	slot.lastActive = now
	return slot
}

// PoolSnapshot is a read-only projection of pool state, recomputed on
// demand.
type PoolSnapshot struct {
	// Active is the number of slots currently owned by in-flight
	// operations.
	Active int

	// Idle is the number of free slots.
	Idle int

	// Queued is the number of callers waiting for a slot.
	Queued int

	// Max is the configured pool size.
	Max int

	// Utilization is Active as a percentage of Max.
	Utilization float64
}

// Snapshot returns the current pool state.
func (p *Pool) Snapshot() PoolSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Pool) snapshotLocked() PoolSnapshot {
	return PoolSnapshot{
		Active:      p.active,
		Idle:        p.config.MaxConnections - p.active,
		Queued:      p.waiters.Len(),
		Max:         p.config.MaxConnections,
		Utilization: float64(p.active) / float64(p.config.MaxConnections) * 100,
	}
}
