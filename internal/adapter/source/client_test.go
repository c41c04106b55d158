package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"mentorstream/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRequest() domain.GenerationRequest {
	return domain.GenerationRequest{
		Key: domain.ContentKey{
			SubjectID: "math",
			ContentID: "algebra-1",
			Mode:      domain.ModeExplanation,
			Version:   "3",
		},
		Prompt: "explain",
	}
}

func sseHandler(records ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		for _, rec := range records {
			fmt.Fprintf(w, "data: %s\n\n", rec)
			fl.Flush()
		}
	}
}

func TestClient_StreamFullSession(t *testing.T) {
	srv := httptest.NewServer(sseHandler(
		`{"type":"connected"}`,
		`{"type":"content","data":"Hello "}`,
		`{"type":"content","data":"world"}`,
		"[DONE]",
	))

	c := NewClient(Options{BaseURL: srv.URL}, testLogger())
	events, err := c.Stream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var got []domain.ContentEvent
	for ev := range events {
		got = append(got, ev)
	}

	want := []domain.ContentEvent{
		{Kind: domain.EventConnected},
		{Kind: domain.EventContent, Text: "Hello "},
		{Kind: domain.EventContent, Text: "world"},
		{Kind: domain.EventComplete},
	}
	if len(got) != len(want) {
		t.Fatalf("events = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	srv.Close()
	c.httpClient.CloseIdleConnections()
	goleak.VerifyNone(t)
}

func TestClient_StreamErrorEvent(t *testing.T) {
	srv := httptest.NewServer(sseHandler(
		`{"type":"content","data":"partial"}`,
		`{"type":"error","data":{"message":"model overloaded"}}`,
	))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL}, testLogger())
	events, err := c.Stream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var last domain.ContentEvent
	for ev := range events {
		last = ev
	}
	if last.Kind != domain.EventError || last.Message != "model overloaded" {
		t.Errorf("last event = %+v, want error event", last)
	}
}

func TestClient_StreamCutOffMidway(t *testing.T) {
	// The server dies without a terminal event: the channel just closes.
	srv := httptest.NewServer(sseHandler(`{"type":"content","data":"partial"}`))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL}, testLogger())
	events, err := c.Stream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var got []domain.ContentEvent
	for ev := range events {
		got = append(got, ev)
	}
	if len(got) != 1 || got[0].Kind != domain.EventContent {
		t.Errorf("events = %+v, want single content event", got)
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"content\",\"data\":\"first\"}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(Options{BaseURL: srv.URL}, testLogger())
	events, err := c.Stream(ctx, testRequest())
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if ev, ok := <-events; !ok || ev.Text != "first" {
		t.Fatalf("first event = %+v (ok=%v)", ev, ok)
	}
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			// One buffered event may still slip out; the close must follow.
			if _, ok := <-events; ok {
				t.Error("channel still open after cancellation")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancellation")
	}

	srv.Close()
	c.httpClient.CloseIdleConnections()
	goleak.VerifyNone(t)
}

func TestClient_SourceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL}, testLogger())
	if _, err := c.Stream(context.Background(), testRequest()); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestClient_BreakerFailsFast(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Options{
		BaseURL:            srv.URL,
		BreakerMaxFailures: 2,
		BreakerTimeout:     time.Minute,
	}, testLogger())

	for i := 0; i < 2; i++ {
		if _, err := c.Stream(context.Background(), testRequest()); err == nil {
			t.Fatalf("call %d unexpectedly succeeded", i)
		}
	}
	if _, err := c.Stream(context.Background(), testRequest()); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
	if hits.Load() != 2 {
		t.Errorf("upstream hit %d times, want 2 (third call should fail fast)", hits.Load())
	}
}
