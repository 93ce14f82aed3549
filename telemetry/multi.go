package telemetry

import (
	"context"

	"github.com/clubops/guardrail/guard"
)

// Multi fans one event stream out to several sinks, in order.
func Multi(sinks ...guard.EventSink) guard.EventSink {
	return multiSink(sinks)
}

type multiSink []guard.EventSink

func (m multiSink) Emit(ctx context.Context, ev guard.Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, ev)
		}
	}
}

// Noop returns a sink that discards every event.
func Noop() guard.EventSink {
	return noopSink{}
}

type noopSink struct{}

func (noopSink) Emit(context.Context, guard.Event) {}
