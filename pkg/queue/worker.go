package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"marketplace/pkg/log"
)

// Handler processes one job. A nil return acknowledges the job; an
// error triggers the retry policy.
type Handler func(ctx context.Context, job *Job) error

// ErrNoHandler returned when a job names a task nobody registered.
var ErrNoHandler = errors.New("queue: no handler registered")

// WorkerPool consumes jobs from the broker with a fixed number of
// goroutines per queue. Failed jobs are re-enqueued with exponential
// backoff until the retry budget is spent, then dropped with a log.
// Jobs are acknowledged only after the handler returns, so a crashed
// worker loses nothing: the visibility timeout redelivers.
type WorkerPool struct {
	broker      Broker
	retry       RetryPolicy
	concurrency map[string]int
	softLimit   time.Duration
	hardLimit   time.Duration
	maxTasks    int

	mu       sync.RWMutex
	handlers map[string]Handler

	// OnResult, when set, observes every finished job (metrics hook).
	OnResult func(job *Job, err error, elapsed time.Duration)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WorkerOptions configures a pool.
type WorkerOptions struct {
	Retry       RetryPolicy
	Concurrency map[string]int // workers per queue, default 1
	SoftLimit   time.Duration  // log a warning when exceeded
	HardLimit   time.Duration  // handler context deadline
	MaxTasks    int            // recycle a worker after this many jobs
}

// NewWorkerPool creates a pool over the broker.
func NewWorkerPool(broker Broker, opts WorkerOptions) *WorkerPool {
	if opts.HardLimit <= 0 {
		opts.HardLimit = 10 * time.Minute
	}
	if opts.SoftLimit <= 0 || opts.SoftLimit > opts.HardLimit {
		opts.SoftLimit = opts.HardLimit / 2
	}
	if opts.MaxTasks <= 0 {
		opts.MaxTasks = 1000
	}

	return &WorkerPool{
		broker:      broker,
		retry:       opts.Retry,
		concurrency: opts.Concurrency,
		softLimit:   opts.SoftLimit,
		hardLimit:   opts.HardLimit,
		maxTasks:    opts.MaxTasks,
		handlers:    make(map[string]Handler),
	}
}

// Register binds a handler to a task name.
func (p *WorkerPool) Register(name string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[name] = h
}

func (p *WorkerPool) handler(name string) (Handler, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.handlers[name]
	return h, ok
}

// Start launches the consumer goroutines. It returns immediately;
// call Stop to drain.
func (p *WorkerPool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for _, queueName := range Queues() {
		n := p.concurrency[queueName]
		if n <= 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			p.wg.Add(1)
			go p.runWorker(ctx, queueName, i)
		}
		log.WithFields(map[string]interface{}{
			"queue":   queueName,
			"workers": n,
		}).Info("Queue consumers started")
	}
}

// Stop cancels all consumers and waits for in-flight jobs to settle.
func (p *WorkerPool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *WorkerPool) runWorker(ctx context.Context, queueName string, id int) {
	defer p.wg.Done()

	processed := 0
	for {
		delivery, err := p.broker.Dequeue(ctx, queueName)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) {
				return
			}
			log.WithError(err).WithField("queue", queueName).Error("Dequeue failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		p.process(ctx, delivery)

		processed++
		if processed >= p.maxTasks {
			// fresh goroutine bounds the damage of slow state leaks in
			// handlers; the replacement keeps draining the same queue
			log.WithFields(map[string]interface{}{
				"queue":  queueName,
				"worker": id,
				"tasks":  processed,
			}).Info("Worker recycled after task budget")
			p.wg.Add(1)
			go p.runWorker(ctx, queueName, id)
			return
		}
	}
}

func (p *WorkerPool) process(ctx context.Context, d *Delivery) {
	job := d.Job
	start := time.Now()

	err := p.invoke(ctx, job)
	elapsed := time.Since(start)

	if p.OnResult != nil {
		p.OnResult(job, err, elapsed)
	}

	fields := map[string]interface{}{
		"job":     job.Name,
		"queue":   job.Queue,
		"id":      job.ID,
		"attempt": job.Attempt,
		"took":    elapsed.String(),
	}

	if err == nil {
		if ackErr := d.Ack(ctx); ackErr != nil {
			log.WithError(ackErr).WithFields(fields).Warn("Job ack failed")
		}
		log.WithFields(fields).Info("Job processed")
		return
	}

	fields["error"] = err.Error()

	if errors.Is(err, ErrNoHandler) {
		// retrying cannot help; settle and drop
		_ = d.Ack(ctx)
		log.WithFields(fields).Error("Job dropped, no handler")
		return
	}

	if p.retry.ShouldRetry(job.Attempt) {
		delay := p.retry.Delay(job.Attempt)
		retry := *job
		retry.Attempt++
		retry.NotBefore = time.Now().Add(delay)

		if enqErr := p.broker.Enqueue(ctx, &retry); enqErr != nil {
			// keep the original delivery unsettled so the visibility
			// timeout redelivers it
			log.WithError(enqErr).WithFields(fields).Error("Retry enqueue failed")
			_ = d.Nack(ctx)
			return
		}

		_ = d.Ack(ctx)
		fields["retry_in"] = delay.String()
		log.WithFields(fields).Warn("Job failed, retry scheduled")
		return
	}

	_ = d.Ack(ctx)
	log.WithFields(fields).Error("Job failed permanently, dropped")
}

// invoke runs the handler under the hard deadline, with a soft-limit
// warning and panic recovery.
func (p *WorkerPool) invoke(ctx context.Context, job *Job) (err error) {
	h, ok := p.handler(job.Name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, job.Name)
	}

	ctx, cancel := context.WithTimeout(ctx, p.hardLimit)
	defer cancel()

	soft := time.AfterFunc(p.softLimit, func() {
		log.WithFields(map[string]interface{}{
			"job":   job.Name,
			"id":    job.ID,
			"limit": p.softLimit.String(),
		}).Warn("Job exceeded soft time limit")
	})
	defer soft.Stop()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: handler panic: %v\n%s", r, debug.Stack())
		}
	}()

	return h(ctx, job)
}
