package simulator

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the recurring tick of a run. Implementations must never run two ticks at once.
type Scheduler interface {
	Start(tick func()) error
	Stop()
}

// CronScheduler fires the tick on a fixed interval. Overlapping ticks are skipped and panics are
// recovered by the cron job chain.
type CronScheduler struct {
	interval time.Duration
	mu       sync.Mutex
	cron     *cron.Cron
}

func NewCronScheduler(interval time.Duration) *CronScheduler {
	return &CronScheduler{interval: interval}
}

func (s *CronScheduler) Start(tick func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.cron.Stop()
	}

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := c.AddFunc("@every "+s.interval.String(), tick); err != nil {
		return fmt.Errorf("failed to schedule simulation tick every %s: %w", s.interval, err)
	}

	c.Start()
	s.cron = c

	return nil
}

// Stop cancels future ticks. A tick already in flight is allowed to finish.
func (s *CronScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}

	s.cron.Stop()
	s.cron = nil
}
