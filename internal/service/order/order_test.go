package order

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"marketplace/internal/model"
	"marketplace/internal/repository"
	"marketplace/internal/service/pricing"
	"marketplace/internal/task"
	"marketplace/pkg/utils"
)

type fakeDispatcher struct {
	tasks []string
}

func (f *fakeDispatcher) TryEnqueue(ctx context.Context, taskName string, payload interface{}) {
	f.tasks = append(f.tasks, taskName)
}

type fakeProducts struct {
	repository.ProductRepository
	byID map[uint]*model.Product
}

func (f *fakeProducts) GetByID(ctx context.Context, id uint) (*model.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

type fakeDiscounts struct {
	repository.DiscountRepository
}

func (f *fakeDiscounts) GetByCode(ctx context.Context, tenantID uint, code string) (*model.Discount, error) {
	return nil, gorm.ErrRecordNotFound
}

type fakeOrders struct {
	repository.OrderRepository

	byID       map[uint]*model.Order
	byNumber   map[string]*model.Order
	createErrs []error
	attempts   []string
	updated    *model.Order
	cancelled  []uint
	unpaid     []model.Order
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		byID:     make(map[uint]*model.Order),
		byNumber: make(map[string]*model.Order),
	}
}

func (f *fakeOrders) CreateCheckout(ctx context.Context, order *model.Order, adjustments []repository.StockAdjustment, discountID *uint, customerID uint) error {
	f.attempts = append(f.attempts, order.OrderNumber)
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	order.ID = uint(len(f.byID) + 11)
	f.byID[order.ID] = order
	f.byNumber[order.OrderNumber] = order
	return nil
}

func (f *fakeOrders) GetByID(ctx context.Context, id uint) (*model.Order, error) {
	o, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return o, nil
}

func (f *fakeOrders) GetByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	o, ok := f.byNumber[orderNumber]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return o, nil
}

func (f *fakeOrders) Update(ctx context.Context, order *model.Order) error {
	f.updated = order
	f.byID[order.ID] = order
	return nil
}

func (f *fakeOrders) CancelRestock(ctx context.Context, order *model.Order) error {
	if order.Status != model.OrderStatusPending {
		return gorm.ErrRecordNotFound
	}
	order.Status = model.OrderStatusCancelled
	f.cancelled = append(f.cancelled, order.ID)
	return nil
}

func (f *fakeOrders) ListUnpaidBefore(ctx context.Context, cutoff time.Time) ([]model.Order, error) {
	return f.unpaid, nil
}

func uintPtr(v uint) *uint { return &v }

var (
	customer = &model.User{ID: 7, Role: model.RoleCustomer}
	stranger = &model.User{ID: 8, Role: model.RoleCustomer}
	owner    = &model.User{ID: 2, Role: model.RoleTenantOwner, TenantID: uintPtr(1)}
	admin    = &model.User{ID: 1, Role: model.RoleSuperAdmin}
)

func newTestService(orders *fakeOrders) (*Service, *fakeDispatcher) {
	products := &fakeProducts{byID: map[uint]*model.Product{
		3: {
			ID: 3, TenantID: 1, Name: "Blue Shirt", Status: model.ProductStatusActive,
			BasePrice: 50, StockQuantity: 10, TrackInventory: true,
		},
	}}
	calc := pricing.NewCalculator(products, &fakeDiscounts{})
	d := &fakeDispatcher{}
	return NewService(orders, calc, d), d
}

func validRequest() CreateOrderRequest {
	return CreateOrderRequest{
		Items:           []pricing.RequestItem{{ProductID: 3, Quantity: 2}},
		ShippingAddress: model.JSONMap{"city": "Riga"},
	}
}

func TestService_Create(t *testing.T) {
	orders := newFakeOrders()
	svc, d := newTestService(orders)

	order, err := svc.Create(context.Background(), customer, 1, validRequest())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(order.OrderNumber, utils.OrderNumberPrefix))
	assert.Len(t, order.OrderNumber, len(utils.OrderNumberPrefix)+8)
	assert.InDelta(t, 100.0, order.Subtotal, 0.001)
	assert.InDelta(t, 10.0, order.TaxAmount, 0.001)
	assert.InDelta(t, 110.0, order.Total, 0.001)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, model.PaymentStatusPending, order.PaymentStatus)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Blue Shirt", order.Items[0].ProductName)

	assert.Equal(t, []string{task.TaskProcessNewOrder}, d.tasks)
}

func TestService_Create_SnapshotsVariantSelection(t *testing.T) {
	orders := newFakeOrders()
	svc, _ := newTestService(orders)

	req := validRequest()
	req.Items[0].VariantID = uintPtr(42)
	req.Items[0].SelectedAttributes = model.JSONMap{"size": "M", "color": "blue"}

	order, err := svc.Create(context.Background(), customer, 1, req)
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	require.NotNil(t, order.Items[0].VariantID)
	assert.Equal(t, uint(42), *order.Items[0].VariantID)
	assert.Equal(t, model.JSONMap{"size": "M", "color": "blue"}, order.Items[0].ProductAttributes)
}

func TestService_Create_BillingDefaultsToShipping(t *testing.T) {
	orders := newFakeOrders()
	svc, _ := newTestService(orders)

	order, err := svc.Create(context.Background(), customer, 1, validRequest())
	require.NoError(t, err)
	assert.Equal(t, order.ShippingAddress, order.BillingAddress)

	req := validRequest()
	req.BillingAddress = model.JSONMap{"city": "Tallinn"}
	order, err = svc.Create(context.Background(), customer, 1, req)
	require.NoError(t, err)
	assert.Equal(t, model.JSONMap{"city": "Tallinn"}, order.BillingAddress)
}

func TestService_Create_StockConflict(t *testing.T) {
	orders := newFakeOrders()
	orders.createErrs = []error{repository.ErrStockConflict}
	svc, d := newTestService(orders)

	_, err := svc.Create(context.Background(), customer, 1, validRequest())
	require.Error(t, err)
	assert.Equal(t, utils.CodeInsufficientStock, utils.GetErrorCode(err))
	assert.Empty(t, d.tasks)
}

func TestService_Create_OrderNumberCollisionRetried(t *testing.T) {
	orders := newFakeOrders()
	orders.createErrs = []error{gorm.ErrDuplicatedKey, nil}
	svc, _ := newTestService(orders)

	order, err := svc.Create(context.Background(), customer, 1, validRequest())
	require.NoError(t, err)

	require.Len(t, orders.attempts, 2)
	assert.NotEqual(t, orders.attempts[0], orders.attempts[1])
	assert.Equal(t, orders.attempts[1], order.OrderNumber)
}

func TestService_Create_CollisionBudgetExhausted(t *testing.T) {
	orders := newFakeOrders()
	orders.createErrs = []error{gorm.ErrDuplicatedKey, gorm.ErrDuplicatedKey, gorm.ErrDuplicatedKey}
	svc, _ := newTestService(orders)

	_, err := svc.Create(context.Background(), customer, 1, validRequest())
	require.Error(t, err)
	assert.Equal(t, utils.CodeInternalError, utils.GetErrorCode(err))
	assert.Len(t, orders.attempts, 3)
}

func TestService_Get_AccessControl(t *testing.T) {
	orders := newFakeOrders()
	svc, _ := newTestService(orders)

	created, err := svc.Create(context.Background(), customer, 1, validRequest())
	require.NoError(t, err)

	for _, user := range []*model.User{customer, owner, admin} {
		got, err := svc.Get(context.Background(), user, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	}

	_, err = svc.Get(context.Background(), stranger, created.ID)
	require.Error(t, err)
	assert.Equal(t, utils.CodeNotFound, utils.GetErrorCode(err))
}

func TestService_Cancel(t *testing.T) {
	orders := newFakeOrders()
	svc, d := newTestService(orders)

	created, err := svc.Create(context.Background(), customer, 1, validRequest())
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), customer, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.Contains(t, d.tasks, task.TaskSendOrderCancelled)
}

func TestService_Cancel_NotPending(t *testing.T) {
	orders := newFakeOrders()
	svc, _ := newTestService(orders)

	created, err := svc.Create(context.Background(), customer, 1, validRequest())
	require.NoError(t, err)
	created.Status = model.OrderStatusShipped

	_, err = svc.Cancel(context.Background(), customer, created.ID)
	require.Error(t, err)
	assert.Equal(t, utils.CodeOrderState, utils.GetErrorCode(err))
}

func TestService_UpdateStatus(t *testing.T) {
	orders := newFakeOrders()
	svc, d := newTestService(orders)

	created, err := svc.Create(context.Background(), customer, 1, validRequest())
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), owner, created.ID, model.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, updated.Status)
	assert.Contains(t, d.tasks, task.TaskSendOrderStatusUpdate)
}

func TestService_UpdateStatus_ConfirmMarksPaid(t *testing.T) {
	orders := newFakeOrders()
	svc, _ := newTestService(orders)

	created, err := svc.Create(context.Background(), customer, 1, validRequest())
	require.NoError(t, err)
	require.Equal(t, model.PaymentStatusPending, created.PaymentStatus)

	updated, err := svc.UpdateStatus(context.Background(), owner, created.ID, model.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, updated.PaymentStatus)
}

func TestService_UpdateStatus_Forbidden(t *testing.T) {
	orders := newFakeOrders()
	svc, _ := newTestService(orders)

	created, err := svc.Create(context.Background(), customer, 1, validRequest())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), customer, created.ID, model.OrderStatusConfirmed)
	require.Error(t, err)
	assert.Equal(t, utils.CodeForbidden, utils.GetErrorCode(err))
}

func TestService_UpdateStatus_NoBackwardMoves(t *testing.T) {
	orders := newFakeOrders()
	svc, _ := newTestService(orders)

	created, err := svc.Create(context.Background(), customer, 1, validRequest())
	require.NoError(t, err)
	created.Status = model.OrderStatusShipped

	_, err = svc.UpdateStatus(context.Background(), owner, created.ID, model.OrderStatusProcessing)
	require.Error(t, err)
	assert.Equal(t, utils.CodeOrderState, utils.GetErrorCode(err))
}

func TestService_HandlePaymentWebhook(t *testing.T) {
	orders := newFakeOrders()
	svc, d := newTestService(orders)

	created, err := svc.Create(context.Background(), customer, 1, validRequest())
	require.NoError(t, err)
	d.tasks = nil

	paid, err := svc.HandlePaymentWebhook(context.Background(), created.OrderNumber, model.PaymentStatusPaid, "card")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, paid.Status)
	assert.Equal(t, model.PaymentStatusPaid, paid.PaymentStatus)
	assert.Equal(t, "card", paid.PaymentMethod)
	assert.Equal(t, []string{task.TaskSendOrderConfirmation, task.TaskNotifyShopOwner}, d.tasks)
}

func TestService_HandlePaymentWebhook_Failed(t *testing.T) {
	orders := newFakeOrders()
	svc, d := newTestService(orders)

	created, err := svc.Create(context.Background(), customer, 1, validRequest())
	require.NoError(t, err)
	d.tasks = nil

	failed, err := svc.HandlePaymentWebhook(context.Background(), created.OrderNumber, model.PaymentStatusFailed, "card")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, failed.Status)
	assert.Equal(t, model.PaymentStatusFailed, failed.PaymentStatus)
	assert.Empty(t, d.tasks)
}

func TestService_HandlePaymentWebhook_Idempotent(t *testing.T) {
	orders := newFakeOrders()
	svc, d := newTestService(orders)

	created, err := svc.Create(context.Background(), customer, 1, validRequest())
	require.NoError(t, err)

	_, err = svc.HandlePaymentWebhook(context.Background(), created.OrderNumber, model.PaymentStatusPaid, "card")
	require.NoError(t, err)
	d.tasks = nil
	orders.updated = nil

	// replayed webhook: acknowledged, nothing changes
	again, err := svc.HandlePaymentWebhook(context.Background(), created.OrderNumber, model.PaymentStatusPaid, "card")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, again.PaymentStatus)
	assert.Nil(t, orders.updated)
	assert.Empty(t, d.tasks)
}

func TestService_HandlePaymentWebhook_UnknownOrder(t *testing.T) {
	orders := newFakeOrders()
	svc, _ := newTestService(orders)

	_, err := svc.HandlePaymentWebhook(context.Background(), "ORD-DEADBEEF", model.PaymentStatusPaid, "")
	require.Error(t, err)
	assert.Equal(t, utils.CodeNotFound, utils.GetErrorCode(err))
}

func TestService_CancelUnpaidOrders(t *testing.T) {
	orders := newFakeOrders()
	svc, d := newTestService(orders)

	orders.unpaid = []model.Order{
		{ID: 31, Status: model.OrderStatusPending, PaymentStatus: model.PaymentStatusPending},
		{ID: 32, Status: model.OrderStatusPending, PaymentStatus: model.PaymentStatusPending},
	}

	n, err := svc.CancelUnpaidOrders(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uint{31, 32}, orders.cancelled)
	assert.Equal(t, []string{task.TaskSendOrderCancelled, task.TaskSendOrderCancelled}, d.tasks)
}
