package events

import "merkledrop/core/types"

// Event represents a structured state change emitted by the distributor core.
type Event interface {
	EventType() string
}

// Renderer is implemented by events that can express themselves in the
// generic attribute form consumed by indexers.
type Renderer interface {
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
// Engines fall back to it so event emission is always optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
