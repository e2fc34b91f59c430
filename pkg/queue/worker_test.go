package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(b Broker, retries int) *WorkerPool {
	return NewWorkerPool(b, WorkerOptions{
		Retry:     RetryPolicy{MaxRetries: retries, Base: 10 * time.Millisecond, Max: 50 * time.Millisecond},
		SoftLimit: time.Second,
		HardLimit: 2 * time.Second,
	})
}

func TestWorkerPool_ProcessesJob(t *testing.T) {
	b := NewMemoryBroker(time.Minute)
	defer b.Close()

	done := make(chan *Job, 1)
	p := newTestPool(b, 0)
	p.Register("ping", func(ctx context.Context, job *Job) error {
		done <- job
		return nil
	})

	p.Start(context.Background())
	defer p.Stop()

	job, err := NewJob("ping", QueueDefault, 5, nil)
	require.NoError(t, err)
	require.NoError(t, b.Enqueue(context.Background(), job))

	select {
	case got := <-done:
		assert.Equal(t, job.ID, got.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("job was not processed")
	}
}

func TestWorkerPool_RetriesUntilSuccess(t *testing.T) {
	b := NewMemoryBroker(time.Minute)
	defer b.Close()

	var mu sync.Mutex
	var attempts []int
	done := make(chan struct{})

	p := newTestPool(b, 3)
	p.Register("flaky", func(ctx context.Context, job *Job) error {
		mu.Lock()
		attempts = append(attempts, job.Attempt)
		mu.Unlock()

		if job.Attempt < 2 {
			return errors.New("transient failure")
		}
		close(done)
		return nil
	})

	p.Start(context.Background())
	defer p.Stop()

	job, err := NewJob("flaky", QueueDefault, 5, nil)
	require.NoError(t, err)
	require.NoError(t, b.Enqueue(context.Background(), job))

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("job never succeeded")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, attempts)
}

func TestWorkerPool_DropsAfterRetryBudget(t *testing.T) {
	b := NewMemoryBroker(time.Minute)
	defer b.Close()

	var mu sync.Mutex
	results := 0
	settled := make(chan struct{})

	p := newTestPool(b, 2)
	p.Register("doomed", func(ctx context.Context, job *Job) error {
		return errors.New("permanent failure")
	})
	p.OnResult = func(job *Job, err error, elapsed time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		results++
		// attempts 0, 1, 2 then drop
		if results == 3 {
			close(settled)
		}
	}

	p.Start(context.Background())
	defer p.Stop()

	job, err := NewJob("doomed", QueueDefault, 5, nil)
	require.NoError(t, err)
	require.NoError(t, b.Enqueue(context.Background(), job))

	select {
	case <-settled:
	case <-time.After(10 * time.Second):
		t.Fatal("retry budget was not exhausted")
	}

	// give the final ack a moment, then the queue must be empty
	assert.Eventually(t, func() bool {
		n, err := b.Len(context.Background(), QueueDefault)
		return err == nil && n == 0
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWorkerPool_PanicIsRetried(t *testing.T) {
	b := NewMemoryBroker(time.Minute)
	defer b.Close()

	done := make(chan struct{})

	p := newTestPool(b, 1)
	p.Register("panicky", func(ctx context.Context, job *Job) error {
		if job.Attempt == 0 {
			panic("boom")
		}
		close(done)
		return nil
	})

	p.Start(context.Background())
	defer p.Stop()

	job, err := NewJob("panicky", QueueDefault, 5, nil)
	require.NoError(t, err)
	require.NoError(t, b.Enqueue(context.Background(), job))

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("panicking job was not retried")
	}
}

func TestWorkerPool_NoHandlerDropsJob(t *testing.T) {
	b := NewMemoryBroker(time.Minute)
	defer b.Close()

	dropped := make(chan error, 1)

	p := newTestPool(b, 3)
	p.OnResult = func(job *Job, err error, elapsed time.Duration) {
		dropped <- err
	}

	p.Start(context.Background())
	defer p.Stop()

	job, err := NewJob("unregistered", QueueDefault, 5, nil)
	require.NoError(t, err)
	require.NoError(t, b.Enqueue(context.Background(), job))

	select {
	case err := <-dropped:
		assert.ErrorIs(t, err, ErrNoHandler)
	case <-time.After(5 * time.Second):
		t.Fatal("job was not observed")
	}

	// no retries for unroutable jobs
	assert.Eventually(t, func() bool {
		n, err := b.Len(context.Background(), QueueDefault)
		return err == nil && n == 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestWorkerPool_RecycleKeepsConsuming(t *testing.T) {
	b := NewMemoryBroker(time.Minute)
	defer b.Close()

	const jobs = 5

	var mu sync.Mutex
	seen := 0
	done := make(chan struct{})

	p := NewWorkerPool(b, WorkerOptions{
		Retry:     RetryPolicy{MaxRetries: 0},
		SoftLimit: time.Second,
		HardLimit: 2 * time.Second,
		MaxTasks:  2,
	})
	p.Register("counted", func(ctx context.Context, job *Job) error {
		mu.Lock()
		defer mu.Unlock()
		seen++
		if seen == jobs {
			close(done)
		}
		return nil
	})

	p.Start(context.Background())
	defer p.Stop()

	for i := 0; i < jobs; i++ {
		job, err := NewJob("counted", QueueDefault, 5, nil)
		require.NoError(t, err)
		require.NoError(t, b.Enqueue(context.Background(), job))
	}

	// the task budget forces two recycles along the way; every job
	// must still be processed
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		mu.Lock()
		defer mu.Unlock()
		t.Fatalf("only %d of %d jobs processed across recycles", seen, jobs)
	}
}

func TestWorkerPool_HardLimitCancelsContext(t *testing.T) {
	b := NewMemoryBroker(time.Minute)
	defer b.Close()

	done := make(chan error, 1)

	p := NewWorkerPool(b, WorkerOptions{
		Retry:     RetryPolicy{MaxRetries: 0},
		SoftLimit: 50 * time.Millisecond,
		HardLimit: 100 * time.Millisecond,
	})
	p.Register("slow", func(ctx context.Context, job *Job) error {
		<-ctx.Done()
		return ctx.Err()
	})
	p.OnResult = func(job *Job, err error, elapsed time.Duration) {
		done <- err
	}

	p.Start(context.Background())
	defer p.Stop()

	job, err := NewJob("slow", QueueDefault, 5, nil)
	require.NoError(t, err)
	require.NoError(t, b.Enqueue(context.Background(), job))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("slow job was not cancelled")
	}
}

func TestScheduler_EnqueuesOnSchedule(t *testing.T) {
	fired := make(chan string, 4)

	s := NewScheduler(func(ctx context.Context, taskName string, payload interface{}) error {
		fired <- taskName
		return nil
	})
	require.NoError(t, s.Add("@every 1s", "system_health_check"))

	s.Start()
	defer s.Stop()

	select {
	case name := <-fired:
		assert.Equal(t, "system_health_check", name)
	case <-time.After(5 * time.Second):
		t.Fatal("schedule never fired")
	}
}

func TestScheduler_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(func(ctx context.Context, taskName string, payload interface{}) error {
		return nil
	})
	assert.Error(t, s.Add("not a cron spec", "whatever"))
}
