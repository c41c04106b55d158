package usecase

import (
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"mentorstream/internal/domain"
)

// Session accumulates content deltas for one generation request. It is
// single-writer: only the owning pipeline goroutine calls Apply, Complete,
// and Fail. Cancel is the one cross-goroutine entry point, used by the
// registry when a newer session replaces this one.
type Session struct {
	ID  string
	Key domain.ContentKey

	state       domain.SessionState
	buf         strings.Builder
	lastPayload string
	cancelled   atomic.Bool
}

// NewSession creates an idle session for the given key.
func NewSession(key domain.ContentKey) *Session {
	return &Session{ID: newSessionID(), Key: key}
}

func newSessionID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Apply merges one classified event into the session. For content events it
// returns the grown snapshot and whether the delta was actually applied;
// a payload byte-identical to the immediately preceding one is skipped,
// guarding against transport-level redelivery.
func (s *Session) Apply(ev domain.ContentEvent) (snapshot string, applied bool, err error) {
	if s.cancelled.Load() {
		return "", false, domain.ErrSessionCancelled
	}
	if s.state == domain.StateComplete || s.state == domain.StateError {
		return "", false, fmt.Errorf("%w: state %s", domain.ErrSessionTerminal, s.state)
	}

	switch ev.Kind {
	case domain.EventConnected:
		// Informational handshake: starts the stream, contributes no text.
		s.state = domain.StateStreaming
		return s.buf.String(), false, nil
	case domain.EventContent:
		s.state = domain.StateStreaming
		if ev.Text == "" || ev.Text == s.lastPayload {
			return s.buf.String(), false, nil
		}
		s.buf.WriteString(ev.Text)
		s.lastPayload = ev.Text
		return s.buf.String(), true, nil
	default:
		return "", false, fmt.Errorf("%w: terminal event %q passed to Apply", domain.ErrInvalidInput, ev.Kind)
	}
}

// Complete freezes the buffer and moves the session to its success terminal
// state. Transitions are forward-only; completing twice is an error.
func (s *Session) Complete() (string, error) {
	if s.state == domain.StateComplete || s.state == domain.StateError {
		return "", fmt.Errorf("%w: state %s", domain.ErrSessionTerminal, s.state)
	}
	s.state = domain.StateComplete
	return s.buf.String(), nil
}

// Fail moves the session to its error terminal state.
func (s *Session) Fail() {
	if s.state != domain.StateComplete {
		s.state = domain.StateError
	}
}

// Cancel signals cooperative cancellation. Later deltas are refused and the
// terminal cache write is suppressed. Safe to call from any goroutine.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (s *Session) Cancelled() bool { return s.cancelled.Load() }

// State returns the current lifecycle state.
func (s *Session) State() domain.SessionState { return s.state }

// Snapshot returns the accumulated text so far.
func (s *Session) Snapshot() string { return s.buf.String() }
