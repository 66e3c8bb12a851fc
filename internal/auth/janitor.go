package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultSweepSchedule runs the expired-session sweep once an hour.
const DefaultSweepSchedule = "@hourly"

type sessionSweeper interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// Janitor periodically removes expired sessions.
type Janitor struct {
	cron    *cron.Cron
	sweeper sessionSweeper
	log     logrus.FieldLogger

	mu      sync.Mutex
	started bool
}

// NewJanitor schedules sweeps of svc on schedule (standard cron syntax or a
// descriptor such as "@every 30m").
func NewJanitor(svc sessionSweeper, schedule string, log logrus.FieldLogger) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "session_janitor")
	cronLog := cron.PrintfLogger(log)
	j := &Janitor{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLog),
			cron.SkipIfStillRunning(cronLog),
		)),
		sweeper: svc,
		log:     log,
	}
	if _, err := j.cron.AddFunc(schedule, func() { j.Sweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule session sweep %q: %w", schedule, err)
	}
	return j, nil
}

// Sweep runs one cleanup pass. Failures are logged; the next run retries.
func (j *Janitor) Sweep(ctx context.Context) int64 {
	n, err := j.sweeper.CleanupExpiredSessions(ctx)
	if err != nil {
		j.log.WithError(err).Error("expired session sweep failed")
		return 0
	}
	if n > 0 {
		j.log.WithField("deleted", n).Info("expired sessions removed")
	}
	return n
}

// Start begins the schedule in the background.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started {
		return
	}
	j.started = true
	j.cron.Start()
}

// Stop halts the schedule and waits for a running sweep or ctx, whichever ends first.
func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.started {
		j.mu.Unlock()
		return nil
	}
	j.started = false
	j.mu.Unlock()

	done := j.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
