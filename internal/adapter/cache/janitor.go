package cache

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Sweeper removes expired entries. Both cache backends implement it.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Janitor runs periodic expiry sweeps on a cron schedule.
type Janitor struct {
	c      *cron.Cron
	logger *slog.Logger
}

// NewJanitor schedules sweeps of s according to spec (standard cron syntax,
// "@every 10m" style descriptors included).
func NewJanitor(spec string, s Sweeper, logger *slog.Logger) (*Janitor, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := s.Sweep(context.Background())
		if err != nil {
			logger.Warn("cache sweep failed", "error", err)
			return
		}
		if n > 0 {
			logger.Info("cache sweep", "expired", n)
		}
	})
	if err != nil {
		return nil, err
	}
	return &Janitor{c: c, logger: logger}, nil
}

// Start begins running scheduled sweeps in the janitor's own goroutine.
func (j *Janitor) Start() { j.c.Start() }

// Stop halts scheduling and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.c.Stop()
	<-ctx.Done()
}
