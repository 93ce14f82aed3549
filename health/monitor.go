package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clubops/guardrail/guard"
)

// AlertLevel grades a dependency's condition.
type AlertLevel int

const (
	// LevelOK means the dependency is within thresholds.
	LevelOK AlertLevel = iota
	// LevelWarning means the warning threshold is exceeded.
	LevelWarning
	// LevelCritical means the critical threshold is exceeded or the
	// circuit is open.
	LevelCritical
)

// String returns the string representation of the level.
func (l AlertLevel) String() string {
	switch l {
	case LevelOK:
		return "ok"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MonitorConfig configures the health monitor.
type MonitorConfig struct {
	// Interval is how often registered executors are sampled.
	// Default: 10 seconds
	Interval time.Duration

	// WarningUtilization is the pool utilization percentage that raises
	// a warning alert.
	// Default: 75
	WarningUtilization float64

	// CriticalUtilization is the pool utilization percentage that raises
	// a critical alert.
	// Default: 90
	CriticalUtilization float64

	// Sink receives health_alert events.
	Sink guard.EventSink
}

// Monitor samples registered executors on a fixed interval and raises
// edge-triggered alerts through the event sink.
type Monitor struct {
	config MonitorConfig

	mu        sync.Mutex
	executors map[string]*guard.Executor
	order     []string
	lastLevel map[string]AlertLevel
	lastState map[string]guard.State

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewMonitor creates a new health monitor.
func NewMonitor(config MonitorConfig) *Monitor {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Second
	}
	if config.WarningUtilization <= 0 {
		config.WarningUtilization = 75
	}
	if config.CriticalUtilization <= 0 {
		config.CriticalUtilization = 90
	}

	return &Monitor{
		config:    config,
		executors: make(map[string]*guard.Executor),
		lastLevel: make(map[string]AlertLevel),
		lastState: make(map[string]guard.State),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Register adds an executor to the monitor, keyed by its name.
func (m *Monitor) Register(exec *guard.Executor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := exec.Name()
	if _, exists := m.executors[name]; !exists {
		m.order = append(m.order, name)
	}
	m.executors[name] = exec
	m.lastLevel[name] = LevelOK
	m.lastState[name] = guard.StateClosed
}

// Unregister removes an executor by name.
func (m *Monitor) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.executors, name)
	delete(m.lastLevel, name)
	delete(m.lastState, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Start begins periodic sampling. Stop ends it.
func (m *Monitor) Start() {
	go m.run()
}

// Stop ends periodic sampling. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		<-m.done
	})
}

func (m *Monitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.tick(context.Background())
		case <-m.stop:
			return
		}
	}
}

// tick samples every executor once and raises alerts for conditions that
// changed since the previous tick.
func (m *Monitor) tick(ctx context.Context) {
	report := m.Snapshot(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, dep := range report.Dependencies {
		level := m.utilizationLevel(dep.Pool.Utilization)
		if last, ok := m.lastLevel[dep.Name]; ok && level != last {
			m.lastLevel[dep.Name] = level
			m.alert(ctx, dep.Name, map[string]any{
				"kind":        "pool_utilization",
				"level":       level.String(),
				"utilization": dep.Pool.Utilization,
				"warning":     m.config.WarningUtilization,
				"critical":    m.config.CriticalUtilization,
			})
		}

		state := dep.Circuit.State
		if last, ok := m.lastState[dep.Name]; ok && state != last {
			m.lastState[dep.Name] = state
			m.alert(ctx, dep.Name, map[string]any{
				"kind": "circuit_state",
				"from": last.String(),
				"to":   state.String(),
			})
		}
	}
}

func (m *Monitor) alert(ctx context.Context, source string, detail map[string]any) {
	if m.config.Sink == nil {
		return
	}
	m.config.Sink.Emit(ctx, guard.Event{
		Name:      guard.EventHealthAlert,
		Timestamp: time.Now(),
		Source:    source,
		Detail:    detail,
	})
}

func (m *Monitor) utilizationLevel(utilization float64) AlertLevel {
	switch {
	case utilization >= m.config.CriticalUtilization:
		return LevelCritical
	case utilization >= m.config.WarningUtilization:
		return LevelWarning
	default:
		return LevelOK
	}
}

// DependencyHealth is the sampled condition of one protected dependency.
type DependencyHealth struct {
	Name    string
	Pool    guard.PoolSnapshot
	Circuit guard.CircuitSnapshot
	Level   AlertLevel
}

// Report is a point-in-time view over all registered executors.
type Report struct {
	Timestamp    time.Time
	Level        AlertLevel
	Dependencies []DependencyHealth
}

// Snapshot samples all registered executors and returns a report. The
// per-dependency level combines pool utilization with circuit state: an
// open circuit is critical, a half-open one at least a warning.
func (m *Monitor) Snapshot(ctx context.Context) Report {
	m.mu.Lock()
	names := make([]string, len(m.order))
	copy(names, m.order)
	execs := make([]*guard.Executor, len(names))
	for i, name := range names {
		execs[i] = m.executors[name]
	}
	m.mu.Unlock()

	deps := make([]DependencyHealth, len(execs))
	g, _ := errgroup.WithContext(ctx)
	for i, exec := range execs {
		g.Go(func() error {
			stats := exec.Stats()
			deps[i] = DependencyHealth{
				Name:    stats.Name,
				Pool:    stats.Pool,
				Circuit: stats.Circuit,
				Level:   m.dependencyLevel(stats),
			}
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Timestamp: time.Now(), Dependencies: deps}
	for _, dep := range deps {
		if dep.Level > report.Level {
			report.Level = dep.Level
		}
	}
	return report
}

func (m *Monitor) dependencyLevel(stats guard.Stats) AlertLevel {
	level := m.utilizationLevel(stats.Pool.Utilization)
	switch stats.Circuit.State {
	case guard.StateOpen:
		level = LevelCritical
	case guard.StateHalfOpen:
		if level < LevelWarning {
			level = LevelWarning
		}
	}
	return level
}
