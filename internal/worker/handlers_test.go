package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"marketplace/internal/model"
	"marketplace/internal/repository"
	"marketplace/internal/task"
	"marketplace/pkg/queue"
)

type fakeOrderRepo struct {
	repository.OrderRepository
	byID map[uint]*model.Order
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, id uint) (*model.Order, error) {
	o, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return o, nil
}

type fakeTenantRepo struct {
	repository.TenantRepository
	byID map[uint]*model.Tenant
}

func (f *fakeTenantRepo) GetByID(ctx context.Context, id uint) (*model.Tenant, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return t, nil
}

type fakeProductRepo struct {
	repository.ProductRepository
	lowStock []model.Product
}

func (f *fakeProductRepo) ListLowStock(ctx context.Context, tenantID uint) ([]model.Product, error) {
	return f.lowStock, nil
}

type recordingTelegram struct {
	chats    []int64
	messages []string
}

func (r *recordingTelegram) Send(ctx context.Context, chatID int64, message string) error {
	r.chats = append(r.chats, chatID)
	r.messages = append(r.messages, message)
	return nil
}

func orderJob(t *testing.T, orderID uint) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(task.TaskNotifyShopOwner, queue.QueueDefault, 5, task.OrderPayload{OrderID: orderID})
	require.NoError(t, err)
	return job
}

func notifyFixture(lowStock []model.Product) (*Handlers, *recordingTelegram) {
	tg := &recordingTelegram{}
	h := &Handlers{
		orderRepo: &fakeOrderRepo{byID: map[uint]*model.Order{
			11: {
				ID: 11, TenantID: 1, OrderNumber: "ORD-CAFE0011",
				Total: 110, PaymentStatus: model.PaymentStatusPaid,
			},
		}},
		tenants: &fakeTenantRepo{byID: map[uint]*model.Tenant{
			1: {
				ID: 1, Name: "Blue Shop",
				Settings: model.JSONMap{"telegram_chat_id": float64(555)},
			},
		}},
		products: &fakeProductRepo{lowStock: lowStock},
		telegram: tg,
	}
	return h, tg
}

func TestHandlers_NotifyShopOwner(t *testing.T) {
	h, tg := notifyFixture(nil)

	err := h.notifyShopOwner(context.Background(), orderJob(t, 11))
	require.NoError(t, err)

	require.Len(t, tg.messages, 1)
	assert.Equal(t, []int64{555}, tg.chats)
	assert.Contains(t, tg.messages[0], "ORD-CAFE0011")
	assert.NotContains(t, tg.messages[0], "Low stock")
}

func TestHandlers_NotifyShopOwner_LowStockWarning(t *testing.T) {
	h, tg := notifyFixture([]model.Product{
		{ID: 3, Name: "Blue Shirt", StockQuantity: 2},
	})

	err := h.notifyShopOwner(context.Background(), orderJob(t, 11))
	require.NoError(t, err)

	require.Len(t, tg.messages, 1)
	assert.Contains(t, tg.messages[0], "Low stock: Blue Shirt (2 left)")
}

func TestHandlers_NotifyShopOwner_NoChatConfigured(t *testing.T) {
	h, tg := notifyFixture(nil)
	h.tenants = &fakeTenantRepo{byID: map[uint]*model.Tenant{
		1: {ID: 1, Name: "Blue Shop"},
	}}

	err := h.notifyShopOwner(context.Background(), orderJob(t, 11))
	require.NoError(t, err)
	assert.Empty(t, tg.messages)
}
