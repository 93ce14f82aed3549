package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/clubops/guardrail/guard"
)

// LogSink writes events as JSON lines. Safe for concurrent use.
type LogSink struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewLogSink creates a sink writing to stderr.
func NewLogSink() *LogSink {
	return NewLogSinkWithWriter(os.Stderr)
}

// NewLogSinkWithWriter creates a sink writing to w.
func NewLogSinkWithWriter(w io.Writer) *LogSink {
	return &LogSink{writer: w}
}

// Emit writes ev as a single JSON line.
func (s *LogSink) Emit(_ context.Context, ev guard.Event) {
	entry := make(map[string]any, 8)
	entry["timestamp"] = ev.Timestamp.UTC().Format(time.RFC3339Nano)
	entry["event"] = ev.Name
	if ev.Source != "" {
		entry["source"] = ev.Source
	}

	if ev.Pool != nil {
		entry["pool"] = map[string]any{
			"active":      ev.Pool.Active,
			"idle":        ev.Pool.Idle,
			"queued":      ev.Pool.Queued,
			"max":         ev.Pool.Max,
			"utilization": ev.Pool.Utilization,
		}
	}
	if ev.Circuit != nil {
		circuit := map[string]any{
			"state":    ev.Circuit.State.String(),
			"failures": ev.Circuit.Failures,
		}
		if !ev.Circuit.NextAttempt.IsZero() {
			circuit["next_attempt"] = ev.Circuit.NextAttempt.UTC().Format(time.RFC3339Nano)
		}
		entry["circuit"] = circuit
	}
	if ev.Attempt > 0 {
		entry["attempt"] = ev.Attempt
	}
	if ev.Delay > 0 {
		entry["delay_ms"] = ev.Delay.Milliseconds()
	}
	if ev.Err != nil {
		entry["error"] = ev.Err.Error()
	}
	for k, v := range ev.Detail {
		entry[k] = v
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return // Silently drop malformed entries
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
