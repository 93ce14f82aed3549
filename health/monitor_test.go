package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/clubops/guardrail/guard"
)

type captureSink struct {
	mu     sync.Mutex
	events []guard.Event
}

func (s *captureSink) Emit(_ context.Context, ev guard.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *captureSink) alerts() []guard.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]guard.Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestNewMonitor_Defaults(t *testing.T) {
	m := NewMonitor(MonitorConfig{})

	if m.config.Interval != 10*time.Second {
		t.Errorf("Interval = %v, want 10s", m.config.Interval)
	}
	if m.config.WarningUtilization != 75 {
		t.Errorf("WarningUtilization = %v, want 75", m.config.WarningUtilization)
	}
	if m.config.CriticalUtilization != 90 {
		t.Errorf("CriticalUtilization = %v, want 90", m.config.CriticalUtilization)
	}
}

func TestMonitor_UtilizationAlertEdgeTriggered(t *testing.T) {
	sink := &captureSink{}
	m := NewMonitor(MonitorConfig{WarningUtilization: 50, CriticalUtilization: 90, Sink: sink})

	exec := guard.NewExecutor(guard.Config{Name: "payments", MaxConnections: 2})
	m.Register(exec)

	slot, err := exec.Pool().Acquire(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// 50% utilization crosses the warning threshold once; repeated ticks
	// in the same condition must not re-alert.
	ctx := context.Background()
	m.tick(ctx)
	m.tick(ctx)
	m.tick(ctx)

	alerts := sink.alerts()
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1 (edge-triggered)", len(alerts))
	}
	if alerts[0].Name != guard.EventHealthAlert {
		t.Errorf("event name = %q, want health_alert", alerts[0].Name)
	}
	if alerts[0].Detail["level"] != "warning" {
		t.Errorf("level = %v, want warning", alerts[0].Detail["level"])
	}

	// Recovery is an edge too.
	exec.Pool().Release(slot)
	m.tick(ctx)
	alerts = sink.alerts()
	if len(alerts) != 2 {
		t.Fatalf("alerts after recovery = %d, want 2", len(alerts))
	}
	if alerts[1].Detail["level"] != "ok" {
		t.Errorf("recovery level = %v, want ok", alerts[1].Detail["level"])
	}
}

func TestMonitor_CircuitTransitionReported(t *testing.T) {
	sink := &captureSink{}
	m := NewMonitor(MonitorConfig{Sink: sink})

	exec := guard.NewExecutor(guard.Config{
		Name:             "memberdb",
		MaxConnections:   1,
		FailureThreshold: 1,
		RecoveryTimeout:  time.Hour,
		MaxAttempts:      1,
	})
	m.Register(exec)

	_ = exec.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("db down")
	})

	ctx := context.Background()
	m.tick(ctx)
	m.tick(ctx)

	var circuitAlerts []guard.Event
	for _, ev := range sink.alerts() {
		if ev.Detail["kind"] == "circuit_state" {
			circuitAlerts = append(circuitAlerts, ev)
		}
	}
	if len(circuitAlerts) != 1 {
		t.Fatalf("circuit alerts = %d, want 1 (edge-triggered)", len(circuitAlerts))
	}
	if circuitAlerts[0].Detail["to"] != "open" {
		t.Errorf("to = %v, want open", circuitAlerts[0].Detail["to"])
	}
	if circuitAlerts[0].Source != "memberdb" {
		t.Errorf("source = %q, want memberdb", circuitAlerts[0].Source)
	}
}

func TestMonitor_SnapshotLevels(t *testing.T) {
	m := NewMonitor(MonitorConfig{})

	healthy := guard.NewExecutor(guard.Config{Name: "payments", MaxConnections: 4})
	broken := guard.NewExecutor(guard.Config{
		Name:             "memberdb",
		MaxConnections:   4,
		FailureThreshold: 1,
		RecoveryTimeout:  time.Hour,
		MaxAttempts:      1,
	})
	m.Register(healthy)
	m.Register(broken)

	_ = broken.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("db down")
	})

	report := m.Snapshot(context.Background())
	if len(report.Dependencies) != 2 {
		t.Fatalf("dependencies = %d, want 2", len(report.Dependencies))
	}

	byName := make(map[string]DependencyHealth)
	for _, dep := range report.Dependencies {
		byName[dep.Name] = dep
	}
	if byName["payments"].Level != LevelOK {
		t.Errorf("payments level = %v, want ok", byName["payments"].Level)
	}
	// An open circuit is critical regardless of utilization.
	if byName["memberdb"].Level != LevelCritical {
		t.Errorf("memberdb level = %v, want critical", byName["memberdb"].Level)
	}
	if report.Level != LevelCritical {
		t.Errorf("overall level = %v, want critical", report.Level)
	}
}

func TestMonitor_Unregister(t *testing.T) {
	m := NewMonitor(MonitorConfig{})
	m.Register(guard.NewExecutor(guard.Config{Name: "payments", MaxConnections: 1}))
	m.Unregister("payments")

	report := m.Snapshot(context.Background())
	if len(report.Dependencies) != 0 {
		t.Errorf("dependencies = %d, want 0", len(report.Dependencies))
	}
}

func TestMonitor_StartStop(t *testing.T) {
	sink := &captureSink{}
	m := NewMonitor(MonitorConfig{Interval: 5 * time.Millisecond, WarningUtilization: 50, Sink: sink})

	exec := guard.NewExecutor(guard.Config{Name: "payments", MaxConnections: 1})
	m.Register(exec)

	slot, err := exec.Pool().Acquire(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	m.Start()
	time.Sleep(30 * time.Millisecond)
	m.Stop()
	m.Stop() // idempotent

	if len(sink.alerts()) == 0 {
		t.Error("no alerts raised while running")
	}

	exec.Pool().Release(slot)
}

func TestReportHandler(t *testing.T) {
	m := NewMonitor(MonitorConfig{})
	m.Register(guard.NewExecutor(guard.Config{Name: "payments", MaxConnections: 2}))

	rec := httptest.NewRecorder()
	ReportHandler(m)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp ReportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.Level != "ok" {
		t.Errorf("level = %q, want ok", resp.Level)
	}
	dep, ok := resp.Dependencies["payments"]
	if !ok {
		t.Fatal("payments missing from report")
	}
	if dep.Max != 2 {
		t.Errorf("max = %d, want 2", dep.Max)
	}
}

func TestReportHandler_CriticalIs503(t *testing.T) {
	m := NewMonitor(MonitorConfig{})
	broken := guard.NewExecutor(guard.Config{
		Name:             "memberdb",
		MaxConnections:   1,
		FailureThreshold: 1,
		RecoveryTimeout:  time.Hour,
		MaxAttempts:      1,
	})
	m.Register(broken)
	_ = broken.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("db down")
	})

	rec := httptest.NewRecorder()
	ReportHandler(m)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestAlertLevel_String(t *testing.T) {
	tests := []struct {
		level AlertLevel
		want  string
	}{
		{LevelOK, "ok"},
		{LevelWarning, "warning"},
		{LevelCritical, "critical"},
		{AlertLevel(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}
