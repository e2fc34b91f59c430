package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/pkg/queue"
)

func TestRouteFor(t *testing.T) {
	tests := []struct {
		task     string
		queue    string
		priority int
	}{
		{TaskProcessNewOrder, queue.QueueHighPriority, 10},
		{TaskSendOrderConfirmation, queue.QueueEmail, 9},
		{TaskSendOrderCancelled, queue.QueueEmail, 8},
		{TaskSendWelcomeEmail, queue.QueueEmail, 7},
		{TaskNotifyShopOwner, queue.QueueNotifications, 9},
		{TaskSendSMS, queue.QueueNotifications, 8},
		{TaskSendTelegramMessage, queue.QueueNotifications, 8},
		{TaskCancelUnpaidOrders, queue.QueueLowPriority, 3},
		{TaskCleanupOldCarts, queue.QueueLowPriority, 2},
		{TaskGenerateSalesReport, queue.QueueLowPriority, 4},
		{TaskBackupDatabase, queue.QueueLowPriority, 1},
	}

	for _, tt := range tests {
		r, ok := RouteFor(tt.task)
		require.True(t, ok, "missing route for %s", tt.task)
		assert.Equal(t, tt.queue, r.Queue, tt.task)
		assert.Equal(t, tt.priority, r.Priority, tt.task)
	}
}

func TestRouteFor_Unknown(t *testing.T) {
	_, ok := RouteFor("made_up_task")
	assert.False(t, ok)
}

func TestRoutes_OnlyKnownQueues(t *testing.T) {
	known := map[string]bool{}
	for _, q := range queue.Queues() {
		known[q] = true
	}

	for name, r := range routes {
		assert.True(t, known[r.Queue], "task %s routed to unknown queue %s", name, r.Queue)
		assert.GreaterOrEqual(t, r.Priority, queue.MinPriority, name)
		assert.LessOrEqual(t, r.Priority, queue.MaxPriority, name)
	}
}

func TestSchedule_AllTasksRouted(t *testing.T) {
	for _, entry := range Schedule() {
		_, ok := RouteFor(entry.Task)
		assert.True(t, ok, "scheduled task %s has no route", entry.Task)
	}
}

func TestDispatcher_EnqueueRoutesCorrectly(t *testing.T) {
	b := queue.NewMemoryBroker(time.Minute)
	defer b.Close()

	d := NewDispatcher(b)
	ctx := context.Background()

	require.NoError(t, d.Enqueue(ctx, TaskProcessNewOrder, OrderPayload{OrderID: 7}))

	n, err := b.Len(ctx, queue.QueueHighPriority)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	delivery, err := b.Dequeue(ctx, queue.QueueHighPriority)
	require.NoError(t, err)
	assert.Equal(t, TaskProcessNewOrder, delivery.Job.Name)
	assert.Equal(t, 10, delivery.Job.Priority)
}

func TestDispatcher_UnroutedTask(t *testing.T) {
	b := queue.NewMemoryBroker(time.Minute)
	defer b.Close()

	d := NewDispatcher(b)
	assert.Error(t, d.Enqueue(context.Background(), "nope", nil))
}
