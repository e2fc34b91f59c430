package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"marketplace/pkg/log"
)

// MemoryBroker is an in-process Broker used by tests and single-node
// deployments. Delivery semantics mirror the redis broker: per-queue
// priority ordering, delayed jobs, and at-least-once redelivery after
// the visibility timeout.
type MemoryBroker struct {
	visibility time.Duration

	mu     sync.Mutex
	queues map[string]*memQueue
	closed bool

	stop chan struct{}
	wg   sync.WaitGroup
}

type memQueue struct {
	ready    readyHeap
	delayed  delayedHeap
	inflight map[string]*inflightJob
	notify   chan struct{}
	seq      uint64
}

type inflightJob struct {
	job      *Job
	deadline time.Time
}

// NewMemoryBroker creates a broker serving the standard queues.
func NewMemoryBroker(visibility time.Duration) *MemoryBroker {
	if visibility <= 0 {
		visibility = 15 * time.Minute
	}

	b := &MemoryBroker{
		visibility: visibility,
		queues:     make(map[string]*memQueue),
		stop:       make(chan struct{}),
	}
	for _, name := range Queues() {
		b.queues[name] = &memQueue{
			inflight: make(map[string]*inflightJob),
			notify:   make(chan struct{}, 1),
		}
	}

	b.wg.Add(1)
	go b.reaper()

	return b
}

// Enqueue adds a job to its queue, honoring NotBefore.
func (b *MemoryBroker) Enqueue(ctx context.Context, job *Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	q, ok := b.queues[job.Queue]
	if !ok {
		return ErrUnknownQueue
	}

	b.push(q, job)
	return nil
}

// push appends to ready or delayed; caller holds b.mu.
func (b *MemoryBroker) push(q *memQueue, job *Job) {
	if !job.Ready(time.Now()) {
		heap.Push(&q.delayed, job)
		return
	}

	q.seq++
	heap.Push(&q.ready, &readyItem{job: job, seq: q.seq})
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Dequeue blocks until a job is ready on the queue or ctx is done.
func (b *MemoryBroker) Dequeue(ctx context.Context, queueName string) (*Delivery, error) {
	b.mu.Lock()
	q, ok := b.queues[queueName]
	if !ok {
		b.mu.Unlock()
		return nil, ErrUnknownQueue
	}
	b.mu.Unlock()

	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, ErrClosed
		}
		b.promoteDue(q)
		if q.ready.Len() > 0 {
			item := heap.Pop(&q.ready).(*readyItem)
			q.inflight[item.job.ID] = &inflightJob{
				job:      item.job,
				deadline: time.Now().Add(b.visibility),
			}
			b.mu.Unlock()
			return b.newDelivery(q, item.job), nil
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.stop:
			return nil, ErrClosed
		case <-q.notify:
		case <-time.After(250 * time.Millisecond):
			// periodic wake to promote delayed jobs
		}
	}
}

func (b *MemoryBroker) newDelivery(q *memQueue, job *Job) *Delivery {
	ack := func(ctx context.Context) error {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(q.inflight, job.ID)
		return nil
	}
	nack := func(ctx context.Context) error {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := q.inflight[job.ID]; !ok {
			return nil
		}
		delete(q.inflight, job.ID)
		b.push(q, job)
		return nil
	}
	return NewDelivery(job, ack, nack)
}

// promoteDue moves due delayed jobs to ready; caller holds b.mu.
func (b *MemoryBroker) promoteDue(q *memQueue) {
	now := time.Now()
	for q.delayed.Len() > 0 && q.delayed[0].Ready(now) {
		job := heap.Pop(&q.delayed).(*Job)
		q.seq++
		heap.Push(&q.ready, &readyItem{job: job, seq: q.seq})
	}
}

// reaper requeues inflight jobs whose visibility timeout expired and
// promotes due delayed jobs so idle queues still wake consumers.
func (b *MemoryBroker) reaper() {
	defer b.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
		}

		b.mu.Lock()
		now := time.Now()
		for name, q := range b.queues {
			b.promoteDue(q)
			for id, inf := range q.inflight {
				if now.After(inf.deadline) {
					delete(q.inflight, id)
					b.push(q, inf.job)
					log.WithFields(map[string]interface{}{
						"queue": name,
						"job":   inf.job.Name,
						"id":    id,
					}).Warn("Job visibility timeout expired, requeued")
				}
			}
			if q.ready.Len() > 0 {
				select {
				case q.notify <- struct{}{}:
				default:
				}
			}
		}
		b.mu.Unlock()
	}
}

// Len reports ready + delayed jobs on the queue.
func (b *MemoryBroker) Len(ctx context.Context, queueName string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[queueName]
	if !ok {
		return 0, ErrUnknownQueue
	}
	return int64(q.ready.Len() + q.delayed.Len()), nil
}

// Health reports broker liveness.
func (b *MemoryBroker) Health(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close stops the reaper and fails pending operations.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.stop)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// readyHeap orders by priority desc, then FIFO within a priority.
type readyItem struct {
	job *Job
	seq uint64
}

type readyHeap []*readyItem

func (h readyHeap) Len() int { return len(h) }

func (h readyHeap) Less(i, j int) bool {
	if h[i].job.Priority != h[j].job.Priority {
		return h[i].job.Priority > h[j].job.Priority
	}
	return h[i].seq < h[j].seq
}

func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *readyHeap) Push(x interface{}) { *h = append(*h, x.(*readyItem)) }

func (h *readyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// delayedHeap orders by NotBefore asc.
type delayedHeap []*Job

func (h delayedHeap) Len() int           { return len(h) }
func (h delayedHeap) Less(i, j int) bool { return h[i].NotBefore.Before(h[j].NotBefore) }
func (h delayedHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *delayedHeap) Push(x interface{}) { *h = append(*h, x.(*Job)) }

func (h *delayedHeap) Pop() interface{} {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}
