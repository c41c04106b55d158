package cache

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) Sweep(context.Context) (int, error) {
	s.calls.Add(1)
	return 1, nil
}

func TestJanitorRejectsBadSchedule(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := NewJanitor("not a schedule", &countingSweeper{}, logger); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestJanitorRunsSweeps(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := &countingSweeper{}

	j, err := NewJanitor("@every 10ms", sweeper, logger)
	if err != nil {
		t.Fatalf("NewJanitor: %v", err)
	}
	j.Start()
	defer j.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for sweeper.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no sweep ran within 2s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestJanitorStopWaits(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	j, err := NewJanitor("@every 1h", &countingSweeper{}, logger)
	if err != nil {
		t.Fatalf("NewJanitor: %v", err)
	}
	j.Start()
	j.Stop() // must not hang with no sweep in flight
}
