package observability

import (
	"log/slog"

	"merkledrop/core/events"
)

// EventSink bridges core distributor events into structured logs and
// prometheus counters. It is the emitter the daemon wires into the engine.
type EventSink struct {
	logger *slog.Logger
}

// NewEventSink builds a sink writing to the supplied logger. A nil logger
// falls back to the process default.
func NewEventSink(logger *slog.Logger) *EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventSink{logger: logger}
}

// Emit implements events.Emitter.
func (s *EventSink) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}

	switch typed := evt.(type) {
	case events.RewardsClaimed:
		Metrics().RecordClaim(typed.Token)
	case events.RootCommitted:
		Metrics().RecordRootCommit()
	}

	attrs := []any{slog.String("event", evt.EventType())}
	if renderer, ok := evt.(events.Renderer); ok {
		if rendered := renderer.Event(); rendered != nil {
			for key, value := range rendered.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	s.logger.Info("distributor event", attrs...)
}
