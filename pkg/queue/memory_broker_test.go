package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustJob(t *testing.T, name, queueName string, priority int) *Job {
	t.Helper()
	job, err := NewJob(name, queueName, priority, map[string]interface{}{"k": name})
	require.NoError(t, err)
	return job
}

func TestMemoryBroker_PriorityOrder(t *testing.T) {
	b := NewMemoryBroker(time.Minute)
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, mustJob(t, "low", QueueDefault, 1)))
	require.NoError(t, b.Enqueue(ctx, mustJob(t, "high", QueueDefault, 9)))
	require.NoError(t, b.Enqueue(ctx, mustJob(t, "mid", QueueDefault, 5)))

	var order []string
	for i := 0; i < 3; i++ {
		d, err := b.Dequeue(ctx, QueueDefault)
		require.NoError(t, err)
		order = append(order, d.Job.Name)
		require.NoError(t, d.Ack(ctx))
	}

	assert.Equal(t, []string{"high", "mid", "low"}, order)
}

func TestMemoryBroker_FIFOWithinPriority(t *testing.T) {
	b := NewMemoryBroker(time.Minute)
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, mustJob(t, "first", QueueEmail, 5)))
	require.NoError(t, b.Enqueue(ctx, mustJob(t, "second", QueueEmail, 5)))

	d1, err := b.Dequeue(ctx, QueueEmail)
	require.NoError(t, err)
	d2, err := b.Dequeue(ctx, QueueEmail)
	require.NoError(t, err)

	assert.Equal(t, "first", d1.Job.Name)
	assert.Equal(t, "second", d2.Job.Name)
}

func TestMemoryBroker_DelayedJob(t *testing.T) {
	b := NewMemoryBroker(time.Minute)
	defer b.Close()
	ctx := context.Background()

	job := mustJob(t, "later", QueueDefault, 5)
	job.NotBefore = time.Now().Add(400 * time.Millisecond)
	require.NoError(t, b.Enqueue(ctx, job))

	start := time.Now()
	dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	d, err := b.Dequeue(dctx, QueueDefault)
	require.NoError(t, err)
	assert.Equal(t, "later", d.Job.Name)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestMemoryBroker_NackRedelivers(t *testing.T) {
	b := NewMemoryBroker(time.Minute)
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, mustJob(t, "flaky", QueueDefault, 5)))

	d, err := b.Dequeue(ctx, QueueDefault)
	require.NoError(t, err)
	require.NoError(t, d.Nack(ctx))

	d2, err := b.Dequeue(ctx, QueueDefault)
	require.NoError(t, err)
	assert.Equal(t, d.Job.ID, d2.Job.ID)
}

func TestMemoryBroker_VisibilityTimeout(t *testing.T) {
	b := NewMemoryBroker(300 * time.Millisecond)
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, mustJob(t, "lost", QueueDefault, 5)))

	d, err := b.Dequeue(ctx, QueueDefault)
	require.NoError(t, err)

	// never acked, the reaper must put it back
	dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	d2, err := b.Dequeue(dctx, QueueDefault)
	require.NoError(t, err)
	assert.Equal(t, d.Job.ID, d2.Job.ID)

	// the late ack from the first consumer must not resurrect anything
	require.NoError(t, d.Ack(ctx))
	require.NoError(t, d2.Ack(ctx))

	n, err := b.Len(ctx, QueueDefault)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMemoryBroker_UnknownQueue(t *testing.T) {
	b := NewMemoryBroker(time.Minute)
	defer b.Close()
	ctx := context.Background()

	err := b.Enqueue(ctx, mustJob(t, "x", "nope", 5))
	assert.ErrorIs(t, err, ErrUnknownQueue)

	_, err = b.Dequeue(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownQueue)
}

func TestMemoryBroker_Close(t *testing.T) {
	b := NewMemoryBroker(time.Minute)
	require.NoError(t, b.Close())

	err := b.Enqueue(context.Background(), mustJob(t, "x", QueueDefault, 5))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, Base: time.Second, Max: 10 * time.Minute}

	for attempt := 0; attempt < 10; attempt++ {
		d := p.Delay(attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 10*time.Minute)
	}

	assert.True(t, p.ShouldRetry(0))
	assert.True(t, p.ShouldRetry(2))
	assert.False(t, p.ShouldRetry(3))
}
