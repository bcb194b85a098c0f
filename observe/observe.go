// Package observe provides a minimal event recorder used for operational
// visibility: every routed request and every component registration outcome
// is recorded with a uniform tag set regardless of whether the outcome was a
// failure or a clean result.
package observe

import (
	"context"
	"log/slog"
	"time"
)

// Event is a single observability record.
type Event struct {
	// Name is the event identifier, e.g. "mcp.request" or
	// "mcp.component.registration".
	Name string
	// Tags carry dimensions such as method, transport, component_type, and
	// status (success|error|failed).
	Tags map[string]string
	// Duration is the elapsed time for timed events; zero when not timed.
	Duration time.Duration
}

// Recorder consumes events. Implementations must be safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// Nop discards all events. It is the default for registration events, which
// are high-volume during boot.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}

// Log records events through a slog.Logger at info level.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Record(ctx context.Context, ev Event) {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}
	attrs := make([]any, 0, len(ev.Tags)+1)
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	if ev.Duration > 0 {
		attrs = append(attrs, slog.Int64("duration_ms", ev.Duration.Milliseconds()))
	}
	log.InfoContext(ctx, ev.Name, attrs...)
}
