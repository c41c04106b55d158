package domain

// StreamFrame is one discrete transport record reconstructed by the frame
// reader. A record is a group of "field: value" lines terminated by a blank
// line; the data field may span multiple lines, joined with "\n".
type StreamFrame struct {
	Event string // optional event-name field
	Data  string // joined data payload, empty for the synthetic done frame
	ID    string // optional record id
	Retry int    // retry hint in milliseconds, 0 when absent
	Done  bool   // set for the synthetic frame emitted on the termination literal
}

// EventKind classifies a frame into one of the pipeline's event types.
type EventKind string

const (
	EventContent   EventKind = "content"
	EventConnected EventKind = "connected"
	EventComplete  EventKind = "complete"
	EventError     EventKind = "error"
)

// ContentEvent is the classified form of a StreamFrame.
type ContentEvent struct {
	Kind    EventKind
	Text    string // incremental text, only for content events
	Message string // optional error message, only for error events
}

// SessionState is the accumulator lifecycle. Transitions are forward-only:
// idle -> streaming -> {complete | error}. Restarting requires a new session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateStreaming
	StateComplete
	StateError
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
