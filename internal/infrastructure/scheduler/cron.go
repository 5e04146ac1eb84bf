package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"paperdigest/internal/ports"
)

// CronScheduler drives recurring pipeline runs from a cron expression
// evaluated in the configured civil timezone.
type CronScheduler struct {
	spec string
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler configured via cron expression string.
func NewCronScheduler(spec string, loc *time.Location) *CronScheduler {
	opts := []cron.Option{}
	if loc != nil {
		opts = append(opts, cron.WithLocation(loc))
	}
	return &CronScheduler{spec: spec, cron: cron.New(opts...)}
}

// Start registers the job and begins the cron loop.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.spec, func() { job(time.Now()) }); err != nil {
		return fmt.Errorf("register cron job %q: %w", c.spec, err)
	}

	c.cron.Start()

	go func() {
		<-ctx.Done()
		c.cron.Stop()
	}()

	return nil
}

// Stop halts the cron loop; a running job finishes on its own.
func (c *CronScheduler) Stop(ctx context.Context) error {
	stopCtx := c.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
