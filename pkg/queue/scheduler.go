package queue

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"marketplace/pkg/log"
)

// EnqueueFunc places a named task on its queue.
type EnqueueFunc func(ctx context.Context, taskName string, payload interface{}) error

// Scheduler drives periodic task production from cron expressions.
// It only enqueues; the worker pool does the actual work, so running
// several schedulers by mistake duplicates jobs but never crashes.
type Scheduler struct {
	cron    *cron.Cron
	enqueue EnqueueFunc
}

// NewScheduler creates a scheduler that enqueues through fn.
// Schedules use standard 5-field cron specs evaluated in UTC.
func NewScheduler(fn EnqueueFunc) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		enqueue: fn,
	}
}

// Add registers a periodic task.
func (s *Scheduler) Add(spec, taskName string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.enqueue(ctx, taskName, nil); err != nil {
			log.WithError(err).WithField("task", taskName).Error("Scheduled task enqueue failed")
			return
		}
		log.WithField("task", taskName).Debug("Scheduled task enqueued")
	})
	return err
}

// Start begins firing schedules in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.WithField("entries", len(s.cron.Entries())).Info("Scheduler started")
}

// Stop halts scheduling and waits for running enqueues to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
