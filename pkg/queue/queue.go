package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Queue names. Every job is routed to exactly one of these.
const (
	QueueDefault       = "default"
	QueueHighPriority  = "high_priority"
	QueueLowPriority   = "low_priority"
	QueueEmail         = "email"
	QueueNotifications = "notifications"
)

// Queues returns all known queue names.
func Queues() []string {
	return []string{
		QueueDefault,
		QueueHighPriority,
		QueueLowPriority,
		QueueEmail,
		QueueNotifications,
	}
}

// Priority bounds. Higher runs first within a queue.
const (
	MinPriority = 0
	MaxPriority = 10
)

var (
	// ErrClosed returned by broker operations after Close
	ErrClosed = errors.New("queue: broker closed")

	// ErrUnknownQueue returned when a job names a queue the broker does not serve
	ErrUnknownQueue = errors.New("queue: unknown queue")
)

// Job is a unit of asynchronous work. Payload is an opaque JSON document
// interpreted by the registered handler for Name.
type Job struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Queue      string          `json:"queue"`
	Priority   int             `json:"priority"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	NotBefore  time.Time       `json:"not_before,omitempty"`
}

// NewJob builds a job with a fresh ID and a marshaled payload.
func NewJob(name, queueName string, priority int, payload interface{}) (*Job, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("queue: marshal payload for %s: %w", name, err)
		}
		raw = data
	}

	if priority < MinPriority {
		priority = MinPriority
	}
	if priority > MaxPriority {
		priority = MaxPriority
	}

	return &Job{
		ID:         uuid.NewString(),
		Name:       name,
		Queue:      queueName,
		Priority:   priority,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Ready reports whether the job is eligible to run at the given time.
func (j *Job) Ready(now time.Time) bool {
	return j.NotBefore.IsZero() || !now.Before(j.NotBefore)
}

// Delivery is a job handed to a consumer. The job stays invisible to
// other consumers until Ack, Nack, or the visibility timeout. Ack after
// the timeout is a no-op: the broker has already requeued the job.
type Delivery struct {
	Job *Job

	ack  func(ctx context.Context) error
	nack func(ctx context.Context) error
}

// NewDelivery wraps a job with broker-specific settle callbacks.
func NewDelivery(job *Job, ack, nack func(ctx context.Context) error) *Delivery {
	return &Delivery{Job: job, ack: ack, nack: nack}
}

// Ack settles the delivery as processed.
func (d *Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// Nack returns the job to its queue for immediate redelivery.
func (d *Delivery) Nack(ctx context.Context) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(ctx)
}

// Broker moves jobs between producers and consumers. Dequeue blocks
// until a job is ready on the queue or ctx is done.
type Broker interface {
	Enqueue(ctx context.Context, job *Job) error
	Dequeue(ctx context.Context, queueName string) (*Delivery, error)
	Len(ctx context.Context, queueName string) (int64, error)
	Health(ctx context.Context) error
	Close() error
}

// RetryPolicy computes redelivery delays: exponential backoff with
// full jitter, capped at Max.
type RetryPolicy struct {
	MaxRetries int
	Base       time.Duration
	Max        time.Duration
}

// Delay returns how long to wait before attempt n+1 (n is the attempt
// that just failed, counted from 0).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.Base <= 0 {
		p.Base = time.Second
	}
	if p.Max <= 0 {
		p.Max = 10 * time.Minute
	}

	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			d = p.Max
			break
		}
	}

	// full jitter keeps retry bursts from synchronizing
	if d > 0 {
		d = time.Duration(rand.Int63n(int64(d))) + d/2
	}
	if d > p.Max {
		d = p.Max
	}
	return d
}

// ShouldRetry reports whether a job that failed on the given attempt
// has retries left.
func (p RetryPolicy) ShouldRetry(attempt int) bool {
	return attempt < p.MaxRetries
}
