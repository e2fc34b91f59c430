package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"marketplace/pkg/log"
)

// RedisBroker is the production Broker. Per queue it keeps three sorted
// sets: ready (scored so higher priority pops first, FIFO within a
// priority), delayed (scored by the time the job becomes due), and
// inflight (scored by the visibility deadline). Job bodies live in
// plain keys so every set member is just the job ID.
type RedisBroker struct {
	rdb        *redis.Client
	ns         string
	visibility time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// jobBodyTTL bounds orphaned bodies if a job is lost mid-settle.
const jobBodyTTL = 7 * 24 * time.Hour

// popScript atomically moves the best ready job to inflight.
// KEYS[1] ready, KEYS[2] inflight; ARGV[1] visibility deadline.
var popScript = redis.NewScript(`
local popped = redis.call('ZPOPMIN', KEYS[1])
if #popped == 0 then
	return false
end
redis.call('ZADD', KEYS[2], ARGV[1], popped[1])
return popped[1]
`)

// NewRedisBroker creates a broker on the given client and namespace.
func NewRedisBroker(rdb *redis.Client, namespace string, visibility time.Duration) *RedisBroker {
	if visibility <= 0 {
		visibility = 15 * time.Minute
	}

	b := &RedisBroker{
		rdb:        rdb,
		ns:         namespace,
		visibility: visibility,
		stop:       make(chan struct{}),
	}

	b.wg.Add(1)
	go b.reaper()

	return b
}

func (b *RedisBroker) readyKey(q string) string    { return fmt.Sprintf("%s:queue:%s:ready", b.ns, q) }
func (b *RedisBroker) delayedKey(q string) string  { return fmt.Sprintf("%s:queue:%s:delayed", b.ns, q) }
func (b *RedisBroker) inflightKey(q string) string { return fmt.Sprintf("%s:queue:%s:inflight", b.ns, q) }
func (b *RedisBroker) jobKey(id string) string     { return fmt.Sprintf("%s:job:%s", b.ns, id) }
func (b *RedisBroker) seqKey() string              { return fmt.Sprintf("%s:seq", b.ns) }

// readyScore orders ready members: lowest score pops first, so higher
// priority maps to a lower score band and the sequence breaks ties FIFO.
func readyScore(priority int, seq int64) float64 {
	return float64(MaxPriority-priority)*1e12 + float64(seq)
}

func knownQueue(name string) bool {
	for _, q := range Queues() {
		if q == name {
			return true
		}
	}
	return false
}

// Enqueue stores the job body and places its ID on ready or delayed.
func (b *RedisBroker) Enqueue(ctx context.Context, job *Job) error {
	if !knownQueue(job.Queue) {
		return ErrUnknownQueue
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job %s: %w", job.Name, err)
	}

	if err := b.rdb.Set(ctx, b.jobKey(job.ID), body, jobBodyTTL).Err(); err != nil {
		return fmt.Errorf("queue: store job body: %w", err)
	}

	if !job.Ready(time.Now()) {
		return b.rdb.ZAdd(ctx, b.delayedKey(job.Queue), redis.Z{
			Score:  float64(job.NotBefore.Unix()),
			Member: job.ID,
		}).Err()
	}

	seq, err := b.rdb.Incr(ctx, b.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("queue: allocate sequence: %w", err)
	}

	return b.rdb.ZAdd(ctx, b.readyKey(job.Queue), redis.Z{
		Score:  readyScore(job.Priority, seq),
		Member: job.ID,
	}).Err()
}

// Dequeue polls the queue until a job is ready or ctx is done.
func (b *RedisBroker) Dequeue(ctx context.Context, queueName string) (*Delivery, error) {
	if !knownQueue(queueName) {
		return nil, ErrUnknownQueue
	}

	for {
		select {
		case <-b.stop:
			return nil, ErrClosed
		default:
		}

		if err := b.promoteDue(ctx, queueName); err != nil && ctx.Err() == nil {
			log.WithError(err).WithField("queue", queueName).Warn("Delayed job promotion failed")
		}

		deadline := float64(time.Now().Add(b.visibility).Unix())
		res, err := popScript.Run(ctx, b.rdb,
			[]string{b.readyKey(queueName), b.inflightKey(queueName)},
			deadline,
		).Result()

		if err == nil {
			id, _ := res.(string)
			if id != "" {
				job, err := b.loadJob(ctx, queueName, id)
				if err != nil {
					// stale member without a body; drop it and keep polling
					log.WithError(err).WithField("job_id", id).Warn("Dropped job with missing body")
					b.rdb.ZRem(ctx, b.inflightKey(queueName), id)
					continue
				}
				return b.newDelivery(queueName, job), nil
			}
		} else if err != redis.Nil && ctx.Err() == nil {
			log.WithError(err).WithField("queue", queueName).Warn("Queue pop failed")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.stop:
			return nil, ErrClosed
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (b *RedisBroker) loadJob(ctx context.Context, queueName, id string) (*Job, error) {
	body, err := b.rdb.Get(ctx, b.jobKey(id)).Bytes()
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, err
	}
	job.Queue = queueName
	return &job, nil
}

func (b *RedisBroker) newDelivery(queueName string, job *Job) *Delivery {
	ack := func(ctx context.Context) error {
		removed, err := b.rdb.ZRem(ctx, b.inflightKey(queueName), job.ID).Result()
		if err != nil {
			return err
		}
		// only the holder of the inflight claim may delete the body
		if removed == 1 {
			return b.rdb.Del(ctx, b.jobKey(job.ID)).Err()
		}
		return nil
	}
	nack := func(ctx context.Context) error {
		removed, err := b.rdb.ZRem(ctx, b.inflightKey(queueName), job.ID).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			return nil
		}
		return b.requeue(ctx, queueName, job)
	}
	return NewDelivery(job, ack, nack)
}

func (b *RedisBroker) requeue(ctx context.Context, queueName string, job *Job) error {
	seq, err := b.rdb.Incr(ctx, b.seqKey()).Result()
	if err != nil {
		return err
	}
	return b.rdb.ZAdd(ctx, b.readyKey(queueName), redis.Z{
		Score:  readyScore(job.Priority, seq),
		Member: job.ID,
	}).Err()
}

// promoteDue moves due delayed jobs onto the ready set. Each member is
// claimed with ZREM before insertion so concurrent consumers never
// promote the same job twice.
func (b *RedisBroker) promoteDue(ctx context.Context, queueName string) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	ids, err := b.rdb.ZRangeByScore(ctx, b.delayedKey(queueName), &redis.ZRangeBy{
		Min: "-inf", Max: now, Count: 100,
	}).Result()
	if err != nil || len(ids) == 0 {
		return err
	}

	for _, id := range ids {
		claimed, err := b.rdb.ZRem(ctx, b.delayedKey(queueName), id).Result()
		if err != nil {
			return err
		}
		if claimed == 0 {
			continue
		}
		job, err := b.loadJob(ctx, queueName, id)
		if err != nil {
			log.WithError(err).WithField("job_id", id).Warn("Dropped delayed job with missing body")
			continue
		}
		if err := b.requeue(ctx, queueName, job); err != nil {
			return err
		}
	}
	return nil
}

// reaper requeues inflight jobs whose visibility deadline passed.
func (b *RedisBroker) reaper() {
	defer b.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		for _, q := range Queues() {
			b.reapQueue(ctx, q)
		}
		cancel()
	}
}

func (b *RedisBroker) reapQueue(ctx context.Context, queueName string) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	ids, err := b.rdb.ZRangeByScore(ctx, b.inflightKey(queueName), &redis.ZRangeBy{
		Min: "-inf", Max: now, Count: 100,
	}).Result()
	if err != nil {
		log.WithError(err).WithField("queue", queueName).Warn("Inflight reap scan failed")
		return
	}

	for _, id := range ids {
		claimed, err := b.rdb.ZRem(ctx, b.inflightKey(queueName), id).Result()
		if err != nil || claimed == 0 {
			continue
		}
		job, err := b.loadJob(ctx, queueName, id)
		if err != nil {
			log.WithError(err).WithField("job_id", id).Warn("Dropped expired job with missing body")
			continue
		}
		if err := b.requeue(ctx, queueName, job); err != nil {
			log.WithError(err).WithField("job_id", id).Error("Failed to requeue expired job")
			continue
		}
		log.WithFields(map[string]interface{}{
			"queue": queueName,
			"job":   job.Name,
			"id":    id,
		}).Warn("Job visibility timeout expired, requeued")
	}
}

// Len reports ready + delayed jobs on the queue.
func (b *RedisBroker) Len(ctx context.Context, queueName string) (int64, error) {
	if !knownQueue(queueName) {
		return 0, ErrUnknownQueue
	}

	ready, err := b.rdb.ZCard(ctx, b.readyKey(queueName)).Result()
	if err != nil {
		return 0, err
	}
	delayed, err := b.rdb.ZCard(ctx, b.delayedKey(queueName)).Result()
	if err != nil {
		return 0, err
	}
	return ready + delayed, nil
}

// Health pings the backing redis.
func (b *RedisBroker) Health(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Close stops the reaper. The redis client is owned by the caller.
func (b *RedisBroker) Close() error {
	b.stopOnce.Do(func() {
		close(b.stop)
	})
	b.wg.Wait()
	return nil
}
