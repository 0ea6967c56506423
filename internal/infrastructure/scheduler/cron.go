package scheduler

import (
	"context"
	"time"

	"ContentForge/internal/ports"
)

// TickScheduler fires the job once per interval. The pipeline's time-window
// table decides per tick which stages actually run, so the driver stays
// deliberately dumb: a missed or doubled tick is safe because stages are
// idempotent for a given date key.
type TickScheduler struct {
	interval time.Duration
	stop     chan struct{}
}

var _ ports.Scheduler = (*TickScheduler)(nil)

// NewTickScheduler builds a scheduler with the given interval; an hour is
// the intended cadence.
func NewTickScheduler(interval time.Duration) *TickScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &TickScheduler{interval: interval}
}

// Start begins ticking. The job runs once immediately, then per tick.
func (c *TickScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	if c.stop != nil {
		return nil
	}

	c.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		job(time.Now())
		for {
			select {
			case t := <-ticker.C:
				job(t)
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine.
func (c *TickScheduler) Stop(ctx context.Context) error {
	if c.stop == nil {
		return nil
	}
	close(c.stop)
	c.stop = nil
	return nil
}
