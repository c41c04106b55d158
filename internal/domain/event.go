package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event published on the bus.
type EventType string

const (
	EventStreamStarted   EventType = "stream.started"
	EventStreamDelta     EventType = "stream.delta"
	EventStreamCompleted EventType = "stream.completed"
	EventStreamError     EventType = "stream.error"
	EventCacheHit        EventType = "cache.hit"
	EventCacheCleared    EventType = "cache.cleared"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Target    string          `json:"target,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for stream lifecycle events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close prevents new publishes. Handlers run synchronously on the
	// publisher's goroutine, so there is nothing to drain.
	Close()
}

// StreamStartedPayload is published once when a session begins streaming.
type StreamStartedPayload struct {
	Key ContentKey `json:"key"`
}

// StreamDeltaPayload is published after each accepted content delta.
// Snapshot is the full accumulated text so far, enabling incremental display.
type StreamDeltaPayload struct {
	Delta    string `json:"delta"`
	Snapshot string `json:"snapshot"`
}

// StreamCompletedPayload is published once the sanitized result is final.
type StreamCompletedPayload struct {
	Content  string   `json:"content"`
	Diagrams []string `json:"diagrams,omitempty"` // recovered diagram sources
	Tokens   int      `json:"tokens,omitempty"`
	CostUSD  float64  `json:"cost_usd,omitempty"`
}

// StreamErrorPayload is published when a session terminates with an error.
type StreamErrorPayload struct {
	Error string `json:"error"`
}
