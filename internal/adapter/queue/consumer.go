package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"mentorstream/internal/domain"
	"mentorstream/internal/usecase"
)

// Job is the generation request shape published to the queue subject.
type Job struct {
	domain.GenerationRequest
	Regenerate bool `json:"regenerate,omitempty"`
}

// Consumer pulls generation jobs from a NATS queue group and runs them
// through the pipeline. Multiple consumer instances on the same group share
// the subject; each job is delivered to exactly one of them.
type Consumer struct {
	pipeline *usecase.Pipeline
	logger   *slog.Logger
	url      string
	subject  string
	group    string

	conn *nats.Conn
	sub  *nats.Subscription
}

// NewConsumer builds a consumer for the given subject and queue group.
func NewConsumer(pipeline *usecase.Pipeline, url, subject, group string, logger *slog.Logger) *Consumer {
	return &Consumer{
		pipeline: pipeline,
		logger:   logger,
		url:      url,
		subject:  subject,
		group:    group,
	}
}

// Start connects and subscribes. It returns once the subscription is live;
// job handling happens on NATS callback goroutines until Stop.
func (c *Consumer) Start(ctx context.Context) error {
	conn, err := nats.Connect(c.url,
		nats.Name("mentorstream-consumer"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.logger.Warn("queue disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info("queue reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: connect %s: %v", domain.ErrQueueConsume, c.url, err)
	}
	c.conn = conn

	sub, err := conn.QueueSubscribe(c.subject, c.group, func(msg *nats.Msg) {
		c.handle(ctx, msg)
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: subscribe %s: %v", domain.ErrQueueConsume, c.subject, err)
	}
	c.sub = sub

	c.logger.Info("queue consumer started", "subject", c.subject, "group", c.group)
	return nil
}

// handle decodes and runs one job. Malformed jobs are logged and dropped so
// a bad publisher can never wedge the group.
func (c *Consumer) handle(ctx context.Context, msg *nats.Msg) {
	var job Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		c.logger.Warn("dropping malformed job", "subject", msg.Subject, "error", err)
		return
	}
	key := job.Key
	if key.SubjectID == "" || key.ContentID == "" || key.Mode == "" {
		c.logger.Warn("dropping job with incomplete key", "subject", msg.Subject)
		return
	}

	var err error
	if job.Regenerate {
		_, err = c.pipeline.Regenerate(ctx, job.GenerationRequest)
	} else {
		_, err = c.pipeline.Generate(ctx, job.GenerationRequest)
	}
	if err != nil && !domain.IsTerminal(err) {
		c.logger.Error("queued generation failed", "target", key.Target(), "error", err)
	}
}

// Stop drains the subscription so in-flight jobs finish, then closes the
// connection.
func (c *Consumer) Stop() {
	if c.sub != nil {
		if err := c.sub.Drain(); err != nil {
			c.logger.Warn("queue drain failed", "error", err)
		}
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.logger.Info("queue consumer stopped")
}
