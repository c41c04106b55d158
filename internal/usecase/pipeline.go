package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"mentorstream/internal/diagram"
	"mentorstream/internal/domain"
	"mentorstream/internal/infra/tracer"
	"mentorstream/internal/sanitize"
)

// SourceStreamer is the upstream generation-service surface the pipeline
// consumes. The returned channel closes when the stream ends or ctx is
// cancelled; terminal events (complete/error) arrive on the channel itself.
type SourceStreamer interface {
	Stream(ctx context.Context, req domain.GenerationRequest) (<-chan domain.ContentEvent, error)
}

// Result is the finished output of one pipeline run.
type Result struct {
	Content  string   // sanitized document
	Diagrams []string // recovered diagram sources, in document order
	Cached   bool     // served from the result cache without streaming
	Tokens   int
	CostUSD  float64
}

// Pipeline drives a generation stream end to end: frame events in,
// sanitized cached markup out. One pipeline serves many concurrent
// requests; per-target exclusivity is the registry's job.
type Pipeline struct {
	source    SourceStreamer
	cache     domain.ResultCache
	sanitizer *sanitize.Sanitizer
	recoverer *diagram.Recoverer
	registry  *Registry
	bus       domain.EventBus
	cost      *CostEstimator
	logger    *slog.Logger
}

// NewPipeline wires a pipeline. cost may be nil to disable estimation.
func NewPipeline(
	source SourceStreamer,
	cache domain.ResultCache,
	sanitizer *sanitize.Sanitizer,
	recoverer *diagram.Recoverer,
	registry *Registry,
	bus domain.EventBus,
	cost *CostEstimator,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		source:    source,
		cache:     cache,
		sanitizer: sanitizer,
		recoverer: recoverer,
		registry:  registry,
		bus:       bus,
		cost:      cost,
		logger:    logger,
	}
}

// Generate returns cached content when present, otherwise streams a fresh
// session to completion.
func (p *Pipeline) Generate(ctx context.Context, req domain.GenerationRequest) (*Result, error) {
	ctx, span := tracer.StartSpan(ctx, "pipeline.generate")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("content.target", req.Key.Target()),
		tracer.StringAttr("content.mode", string(req.Key.Mode)),
	)

	if cached, ok, err := p.cache.Get(ctx, req.Key); err != nil {
		p.logger.Warn("cache lookup failed", "target", req.Key.Target(), "error", err)
	} else if ok {
		p.publish(ctx, domain.EventCacheHit, "", req.Key.Target(), nil)
		return &Result{Content: cached, Cached: true}, nil
	}

	res, err := p.run(ctx, req)
	if err != nil {
		tracer.RecordError(span, err)
	}
	return res, err
}

// Regenerate invalidates the cache entry for the key, then streams a wholly
// new session from empty state. Partial content is never resumed.
func (p *Pipeline) Regenerate(ctx context.Context, req domain.GenerationRequest) (*Result, error) {
	ctx, span := tracer.StartSpan(ctx, "pipeline.regenerate")
	defer span.End()

	if err := p.cache.Clear(ctx, req.Key); err != nil {
		err = domain.WrapOp("regenerate: clear cache", err)
		tracer.RecordError(span, err)
		return nil, err
	}
	p.publish(ctx, domain.EventCacheCleared, "", req.Key.Target(), nil)
	res, err := p.run(ctx, req)
	if err != nil {
		tracer.RecordError(span, err)
	}
	return res, err
}

// CancelTarget cancels any in-flight session for the target.
func (p *Pipeline) CancelTarget(target string) bool {
	return p.registry.Cancel(target)
}

// Streaming reports whether a session is in flight for the target.
func (p *Pipeline) Streaming(target string) bool {
	return p.registry.Active(target) != nil
}

func (p *Pipeline) run(ctx context.Context, req domain.GenerationRequest) (*Result, error) {
	sess := NewSession(req.Key)
	p.registry.Register(sess)
	defer p.registry.Release(sess)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := p.source.Stream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}

	p.publishPayload(ctx, domain.EventStreamStarted, sess, domain.StreamStartedPayload{Key: req.Key})

	for ev := range events {
		// Cooperative cancellation: checked before every apply.
		if sess.Cancelled() {
			cancel()
			break
		}
		switch ev.Kind {
		case domain.EventConnected, domain.EventContent:
			snapshot, applied, err := sess.Apply(ev)
			if err != nil {
				p.logger.Debug("delta refused", "session", sess.ID, "error", err)
				continue
			}
			if applied {
				p.publishPayload(ctx, domain.EventStreamDelta, sess, domain.StreamDeltaPayload{
					Delta:    ev.Text,
					Snapshot: snapshot,
				})
			}
		case domain.EventComplete:
			return p.finalize(ctx, sess)
		case domain.EventError:
			sess.Fail()
			msg := ev.Message
			if msg == "" {
				msg = "content generation failed"
			}
			p.publishPayload(ctx, domain.EventStreamError, sess, domain.StreamErrorPayload{Error: msg})
			return nil, fmt.Errorf("%w: %s", domain.ErrStreamError, msg)
		}
	}

	if sess.Cancelled() {
		return nil, domain.ErrSessionCancelled
	}
	// Channel closed without a terminal event: the transport died mid-stream.
	sess.Fail()
	p.publishPayload(ctx, domain.EventStreamError, sess, domain.StreamErrorPayload{Error: "stream closed before completion"})
	return nil, fmt.Errorf("%w: stream closed before completion", domain.ErrStreamError)
}

// finalize freezes the buffer, sanitizes exactly once, recovers diagrams,
// runs the advisory safety scan, and writes the cache entry unless the
// session was cancelled or the result is empty.
func (p *Pipeline) finalize(ctx context.Context, sess *Session) (*Result, error) {
	ctx, span := tracer.StartSpan(ctx, "pipeline.finalize")
	defer span.End()

	raw, err := sess.Complete()
	if err != nil {
		return nil, err
	}

	doc := p.sanitizer.Sanitize(raw)
	doc, sources := p.recoverer.Process(doc)

	for _, f := range sanitize.Validate(doc) {
		p.logger.Warn("safety finding in sanitized output",
			"session", sess.ID,
			"kind", string(f.Kind),
			"detail", f.Detail,
		)
	}

	tokens, usd := p.cost.Estimate(doc)
	span.SetAttributes(
		tracer.IntAttr("content.bytes", len(doc)),
		tracer.IntAttr("content.diagrams", len(sources)),
		tracer.IntAttr("content.tokens", tokens),
	)

	if !sess.Cancelled() && doc != "" {
		if err := p.cache.Set(ctx, sess.Key, doc); err != nil {
			// A failed cache write degrades later latency, not correctness.
			p.logger.Warn("cache write failed", "target", sess.Key.Target(), "error", err)
		}
	}

	p.publishPayload(ctx, domain.EventStreamCompleted, sess, domain.StreamCompletedPayload{
		Content:  doc,
		Diagrams: sources,
		Tokens:   tokens,
		CostUSD:  usd,
	})
	p.logger.Info("generation complete",
		"session", sess.ID,
		"target", sess.Key.Target(),
		"bytes", len(doc),
		"diagrams", len(sources),
		"tokens", tokens,
	)

	return &Result{Content: doc, Diagrams: sources, Tokens: tokens, CostUSD: usd}, nil
}

func (p *Pipeline) publishPayload(ctx context.Context, t domain.EventType, sess *Session, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	p.publish(ctx, t, sess.ID, sess.Key.Target(), raw)
}

func (p *Pipeline) publish(ctx context.Context, t domain.EventType, sessionID, target string, payload json.RawMessage) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(ctx, domain.Event{
		Type:      t,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Target:    target,
		Payload:   payload,
	})
}
