package queue

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentorstream/internal/adapter/cache"
	"mentorstream/internal/diagram"
	"mentorstream/internal/domain"
	"mentorstream/internal/sanitize"
	"mentorstream/internal/usecase"
	"mentorstream/internal/usecase/eventbus"
)

type stubSource struct {
	text string
}

func (s *stubSource) Stream(_ context.Context, _ domain.GenerationRequest) (<-chan domain.ContentEvent, error) {
	ch := make(chan domain.ContentEvent, 2)
	ch <- domain.ContentEvent{Kind: domain.EventContent, Text: s.text}
	ch <- domain.ContentEvent{Kind: domain.EventComplete}
	close(ch)
	return ch, nil
}

func testConsumer(t *testing.T, text string) (*Consumer, *cache.Memory) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := cache.NewMemory(0)
	pipeline := usecase.NewPipeline(
		&stubSource{text: text},
		store,
		sanitize.NewSanitizer(sanitize.DefaultPolicy(), diagram.Recoverable),
		diagram.NewRecoverer(diagram.DefaultConfig()),
		usecase.NewRegistry(),
		eventbus.New(logger),
		nil,
		logger,
	)
	return NewConsumer(pipeline, "nats://127.0.0.1:4222", "content.generate", "contentd", logger), store
}

func jobKey() domain.ContentKey {
	return domain.ContentKey{
		SubjectID: "math",
		ContentID: "algebra-1",
		Mode:      domain.ModeExplanation,
		Version:   "3",
	}
}

func TestConsumer_HandleRunsJob(t *testing.T) {
	c, store := testConsumer(t, "Queued result")

	msg := &nats.Msg{
		Subject: "content.generate",
		Data:    []byte(`{"key":{"subject_id":"math","content_id":"algebra-1","mode":"explanation","version":"3"},"prompt":"explain"}`),
	}
	c.handle(context.Background(), msg)

	doc, ok, err := store.Get(context.Background(), jobKey())
	require.NoError(t, err)
	require.True(t, ok, "job result should be cached")
	assert.Contains(t, doc, "Queued result")
}

func TestConsumer_HandleRegenerateJob(t *testing.T) {
	c, store := testConsumer(t, "Fresh result")
	require.NoError(t, store.Set(context.Background(), jobKey(), "stale"))

	msg := &nats.Msg{
		Subject: "content.generate",
		Data:    []byte(`{"key":{"subject_id":"math","content_id":"algebra-1","mode":"explanation","version":"3"},"regenerate":true}`),
	}
	c.handle(context.Background(), msg)

	doc, ok, err := store.Get(context.Background(), jobKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, doc, "Fresh result")
}

func TestConsumer_DropsMalformedJobs(t *testing.T) {
	c, store := testConsumer(t, "never used")

	for _, data := range []string{"not json at all", `{"key":{"subject_id":"math"}}`, `{}`} {
		c.handle(context.Background(), &nats.Msg{Subject: "content.generate", Data: []byte(data)})
	}
	assert.Equal(t, 0, store.Len(), "malformed jobs must not reach the pipeline")
}
