package task

import (
	"context"
	"fmt"

	"marketplace/pkg/log"
	"marketplace/pkg/queue"
)

// Dispatcher routes named tasks onto their queues.
type Dispatcher struct {
	broker queue.Broker
}

// NewDispatcher creates a dispatcher over the broker.
func NewDispatcher(broker queue.Broker) *Dispatcher {
	return &Dispatcher{broker: broker}
}

// Enqueue places a task on the queue the routing table assigns it.
func (d *Dispatcher) Enqueue(ctx context.Context, taskName string, payload interface{}) error {
	route, ok := RouteFor(taskName)
	if !ok {
		return fmt.Errorf("task: no route for %q", taskName)
	}

	job, err := queue.NewJob(taskName, route.Queue, route.Priority, payload)
	if err != nil {
		return err
	}

	if err := d.broker.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("task: enqueue %s: %w", taskName, err)
	}

	log.WithFields(map[string]interface{}{
		"task":     taskName,
		"queue":    route.Queue,
		"priority": route.Priority,
		"id":       job.ID,
	}).Debug("Task enqueued")
	return nil
}

// TryEnqueue enqueues best-effort: failures are logged, never
// propagated. Producers on the request path use this so a broker
// outage cannot fail an already-committed business operation.
func (d *Dispatcher) TryEnqueue(ctx context.Context, taskName string, payload interface{}) {
	if err := d.Enqueue(ctx, taskName, payload); err != nil {
		log.WithError(err).WithField("task", taskName).Error("Task enqueue failed, continuing without it")
	}
}
