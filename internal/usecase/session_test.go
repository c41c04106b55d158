package usecase

import (
	"errors"
	"testing"

	"mentorstream/internal/domain"
)

func sessionKey() domain.ContentKey {
	return domain.ContentKey{
		SubjectID: "math",
		ContentID: "algebra-1",
		Mode:      domain.ModeExplanation,
		Version:   "3",
	}
}

func content(text string) domain.ContentEvent {
	return domain.ContentEvent{Kind: domain.EventContent, Text: text}
}

func TestSession_AccumulatesDeltas(t *testing.T) {
	s := NewSession(sessionKey())

	for _, text := range []string{"Hello ", "world", "!"} {
		if _, applied, err := s.Apply(content(text)); err != nil || !applied {
			t.Fatalf("Apply(%q): applied=%v err=%v", text, applied, err)
		}
	}
	if got := s.Snapshot(); got != "Hello world!" {
		t.Errorf("Snapshot = %q", got)
	}
	if s.State() != domain.StateStreaming {
		t.Errorf("State = %v, want streaming", s.State())
	}
}

func TestSession_SkipsConsecutiveDuplicates(t *testing.T) {
	s := NewSession(sessionKey())

	if _, applied, _ := s.Apply(content("abc")); !applied {
		t.Fatal("first payload not applied")
	}
	if _, applied, _ := s.Apply(content("abc")); applied {
		t.Error("consecutive duplicate applied")
	}
	if _, applied, _ := s.Apply(content("def")); !applied {
		t.Error("new payload not applied")
	}
	// Non-consecutive repetition is legitimate content.
	if _, applied, _ := s.Apply(content("abc")); !applied {
		t.Error("non-consecutive repeat rejected")
	}
	if got := s.Snapshot(); got != "abcdefabc" {
		t.Errorf("Snapshot = %q, want abcdefabc", got)
	}
}

func TestSession_SkipsEmptyPayloads(t *testing.T) {
	s := NewSession(sessionKey())
	if _, applied, err := s.Apply(content("")); applied || err != nil {
		t.Errorf("empty payload: applied=%v err=%v", applied, err)
	}
}

func TestSession_ConnectedStartsWithoutText(t *testing.T) {
	s := NewSession(sessionKey())
	snapshot, applied, err := s.Apply(domain.ContentEvent{Kind: domain.EventConnected})
	if err != nil || applied || snapshot != "" {
		t.Errorf("connected: snapshot=%q applied=%v err=%v", snapshot, applied, err)
	}
	if s.State() != domain.StateStreaming {
		t.Errorf("State = %v, want streaming", s.State())
	}
}

func TestSession_TerminalRefusesDeltas(t *testing.T) {
	s := NewSession(sessionKey())
	s.Apply(content("done"))

	final, err := s.Complete()
	if err != nil || final != "done" {
		t.Fatalf("Complete: %q, %v", final, err)
	}
	if _, _, err := s.Apply(content("late")); !errors.Is(err, domain.ErrSessionTerminal) {
		t.Errorf("Apply after complete: err = %v, want ErrSessionTerminal", err)
	}
	if _, err := s.Complete(); !errors.Is(err, domain.ErrSessionTerminal) {
		t.Errorf("double Complete: err = %v, want ErrSessionTerminal", err)
	}
}

func TestSession_FailNeverDowngradesComplete(t *testing.T) {
	s := NewSession(sessionKey())
	s.Apply(content("x"))
	if _, err := s.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	s.Fail()
	if s.State() != domain.StateComplete {
		t.Errorf("State = %v, want complete", s.State())
	}
}

func TestSession_CancelRefusesDeltas(t *testing.T) {
	s := NewSession(sessionKey())
	s.Apply(content("x"))
	s.Cancel()

	if !s.Cancelled() {
		t.Fatal("Cancelled = false after Cancel")
	}
	if _, _, err := s.Apply(content("y")); !errors.Is(err, domain.ErrSessionCancelled) {
		t.Errorf("Apply after cancel: err = %v, want ErrSessionCancelled", err)
	}
}

func TestSession_UniqueIDs(t *testing.T) {
	a, b := NewSession(sessionKey()), NewSession(sessionKey())
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("session IDs not unique: %q %q", a.ID, b.ID)
	}
}
