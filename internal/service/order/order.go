package order

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"marketplace/internal/model"
	"marketplace/internal/repository"
	"marketplace/internal/service/pricing"
	"marketplace/internal/task"
	"marketplace/pkg/log"
	"marketplace/pkg/utils"
)

// orderNumberAttempts bounds retries when a generated order number
// collides with an existing one.
const orderNumberAttempts = 3

// TaskDispatcher is the slice of the task pipeline the service needs.
type TaskDispatcher interface {
	TryEnqueue(ctx context.Context, taskName string, payload interface{})
}

// CreateOrderRequest checkout input.
type CreateOrderRequest struct {
	Items           []pricing.RequestItem `json:"items" binding:"required,min=1,dive"`
	DiscountCode    string                `json:"discount_code"`
	ShippingAddress model.JSONMap         `json:"shipping_address" binding:"required"`
	BillingAddress  model.JSONMap         `json:"billing_address"`
	PaymentMethod   string                `json:"payment_method"`
	Notes           string                `json:"notes"`
}

// Service implements the order lifecycle.
type Service struct {
	orders     repository.OrderRepository
	calculator *pricing.Calculator
	dispatcher TaskDispatcher
}

// NewService creates an order service.
func NewService(orders repository.OrderRepository, calculator *pricing.Calculator, dispatcher TaskDispatcher) *Service {
	return &Service{
		orders:     orders,
		calculator: calculator,
		dispatcher: dispatcher,
	}
}

// Create prices the request, commits the checkout transaction, and
// hands post-order work to the task pipeline. The enqueue is
// best-effort: a broker outage never rolls back a committed order.
func (s *Service) Create(ctx context.Context, customer *model.User, tenantID uint, req CreateOrderRequest) (*model.Order, error) {
	quote, err := s.calculator.Price(ctx, tenantID, req.Items, req.DiscountCode, time.Now())
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		TenantID:        tenantID,
		CustomerID:      customer.ID,
		Subtotal:        quote.Subtotal,
		DiscountAmount:  quote.DiscountAmount,
		ShippingCost:    quote.ShippingCost,
		TaxAmount:       quote.TaxAmount,
		Total:           quote.Total,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billingOrShipping(req),
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	}
	if quote.Discount != nil {
		code := quote.Discount.Code
		order.DiscountCode = &code
	}
	for _, line := range quote.Lines {
		order.Items = append(order.Items, model.OrderItem{
			ProductID:         line.Product.ID,
			VariantID:         line.VariantID,
			ProductName:       line.Product.Name,
			ProductAttributes: line.SelectedAttributes,
			Quantity:          line.Quantity,
			UnitPrice:         line.UnitPrice,
			TotalPrice:        line.TotalPrice,
		})
	}

	var discountID *uint
	if quote.Discount != nil {
		discountID = &quote.Discount.ID
	}

	for attempt := 0; ; attempt++ {
		order.OrderNumber = utils.NewOrderNumber()

		err = s.orders.CreateCheckout(ctx, order, quote.Adjustments, discountID, customer.ID)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrStockConflict) {
			return nil, utils.ErrInsufficientStock
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt < orderNumberAttempts-1 {
			log.WithField("order_number", order.OrderNumber).Warn("Order number collision, regenerating")
			continue
		}
		return nil, utils.WrapError(err, utils.CodeInternalError, "failed to create order")
	}

	s.dispatcher.TryEnqueue(ctx, task.TaskProcessNewOrder, task.OrderPayload{OrderID: order.ID})

	log.WithFields(map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"tenant_id":    tenantID,
		"customer_id":  customer.ID,
		"total":        order.Total,
	}).Info("Order created")

	return order, nil
}

// Get loads an order the user is allowed to see.
func (s *Service) Get(ctx context.Context, user *model.User, orderID uint) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrOrderNotFound
		}
		return nil, err
	}
	if !canViewOrder(user, order) {
		// hide existence from strangers
		return nil, utils.ErrOrderNotFound
	}
	return order, nil
}

// ListForCustomer lists the customer's own orders.
func (s *Service) ListForCustomer(ctx context.Context, customerID uint, status model.OrderStatus, offset, limit int) ([]model.Order, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, utils.NewErrorf(utils.CodeInvalidParam, "unknown status %q", status)
	}
	return s.orders.List(ctx, repository.OrderFilter{
		CustomerID: customerID,
		Status:     status,
		Offset:     offset,
		Limit:      limit,
	})
}

// ListForTenant lists a shop's orders for its managers.
func (s *Service) ListForTenant(ctx context.Context, user *model.User, tenantID uint, status model.OrderStatus, offset, limit int) ([]model.Order, int64, error) {
	if !user.CanManageTenant(tenantID) {
		return nil, 0, utils.ErrForbidden
	}
	if status != "" && !status.Valid() {
		return nil, 0, utils.NewErrorf(utils.CodeInvalidParam, "unknown status %q", status)
	}
	return s.orders.List(ctx, repository.OrderFilter{
		TenantID: tenantID,
		Status:   status,
		Offset:   offset,
		Limit:    limit,
	})
}

// ListAll lists orders across all tenants; super admin only.
func (s *Service) ListAll(ctx context.Context, user *model.User, status model.OrderStatus, offset, limit int) ([]model.Order, int64, error) {
	if !user.IsSuperAdmin() {
		return nil, 0, utils.ErrForbidden
	}
	if status != "" && !status.Valid() {
		return nil, 0, utils.NewErrorf(utils.CodeInvalidParam, "unknown status %q", status)
	}
	return s.orders.List(ctx, repository.OrderFilter{
		Status: status,
		Offset: offset,
		Limit:  limit,
	})
}

// Cancel cancels a pending order and restocks its items.
func (s *Service) Cancel(ctx context.Context, user *model.User, orderID uint) (*model.Order, error) {
	order, err := s.Get(ctx, user, orderID)
	if err != nil {
		return nil, err
	}
	if !order.CanCancel() {
		return nil, utils.NewErrorf(utils.CodeOrderState,
			"order in status %q cannot be cancelled", order.Status)
	}

	if err := s.orders.CancelRestock(ctx, order); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// lost the race with a concurrent status change
			return nil, utils.NewError(utils.CodeOrderState, "order can no longer be cancelled")
		}
		return nil, err
	}

	s.dispatcher.TryEnqueue(ctx, task.TaskSendOrderCancelled, task.OrderPayload{OrderID: order.ID})

	log.WithFields(map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	}).Info("Order cancelled")

	return order, nil
}

// UpdateStatus advances an order along the fulfillment flow. Only the
// shop's managers may do this and transitions must move forward.
// Confirming an order marks it paid; confirmation is the manual
// counterpart of a successful payment webhook.
func (s *Service) UpdateStatus(ctx context.Context, user *model.User, orderID uint, next model.OrderStatus) (*model.Order, error) {
	if !next.Valid() {
		return nil, utils.NewErrorf(utils.CodeInvalidParam, "unknown status %q", next)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrOrderNotFound
		}
		return nil, err
	}
	if !user.CanManageTenant(order.TenantID) {
		return nil, utils.ErrForbidden
	}

	if next == model.OrderStatusCancelled {
		return s.Cancel(ctx, user, orderID)
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, utils.NewErrorf(utils.CodeOrderState,
			"cannot move order from %q to %q", order.Status, next)
	}
	old := order.Status
	order.Status = next
	if next == model.OrderStatusConfirmed {
		order.PaymentStatus = model.PaymentStatusPaid
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	s.dispatcher.TryEnqueue(ctx, task.TaskSendOrderStatusUpdate, task.OrderStatusPayload{
		OrderID:   order.ID,
		OldStatus: string(old),
		NewStatus: string(next),
	})

	return order, nil
}

// HandlePaymentWebhook records a payment provider callback. Replayed
// webhooks for an already-paid order are acknowledged without side
// effects.
func (s *Service) HandlePaymentWebhook(ctx context.Context, orderNumber string, status model.PaymentStatus, method string) (*model.Order, error) {
	if !status.Valid() {
		return nil, utils.NewErrorf(utils.CodeInvalidParam, "unknown payment status %q", status)
	}

	order, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrOrderNotFound
		}
		return nil, err
	}

	if order.PaymentStatus == model.PaymentStatusPaid {
		log.WithField("order_number", orderNumber).Info("Duplicate payment webhook ignored")
		return order, nil
	}

	order.PaymentStatus = status
	if method != "" {
		order.PaymentMethod = method
	}
	if status == model.PaymentStatusPaid && order.Status.CanTransitionTo(model.OrderStatusConfirmed) {
		order.Status = model.OrderStatusConfirmed
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	if status == model.PaymentStatusPaid {
		s.dispatcher.TryEnqueue(ctx, task.TaskSendOrderConfirmation, task.OrderPayload{OrderID: order.ID})
		s.dispatcher.TryEnqueue(ctx, task.TaskNotifyShopOwner, task.OrderPayload{OrderID: order.ID})
	}

	log.WithFields(map[string]interface{}{
		"order_number":   orderNumber,
		"payment_status": status,
	}).Info("Payment webhook processed")

	return order, nil
}

// CancelUnpaidOrders cancels pending orders that were never paid
// within the grace window. Run by the scheduler.
func (s *Service) CancelUnpaidOrders(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	orders, err := s.orders.ListUnpaidBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for i := range orders {
		if err := s.orders.CancelRestock(ctx, &orders[i]); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			log.WithError(err).WithField("order_id", orders[i].ID).Error("Failed to cancel unpaid order")
			continue
		}
		cancelled++
		s.dispatcher.TryEnqueue(ctx, task.TaskSendOrderCancelled, task.OrderPayload{OrderID: orders[i].ID})
	}

	if cancelled > 0 {
		log.WithField("cancelled", cancelled).Info("Unpaid orders cancelled")
	}
	return cancelled, nil
}

// billingOrShipping falls back to the shipping address when the buyer
// gave no separate billing address.
func billingOrShipping(req CreateOrderRequest) model.JSONMap {
	if len(req.BillingAddress) == 0 {
		return req.ShippingAddress
	}
	return req.BillingAddress
}

func canViewOrder(user *model.User, order *model.Order) bool {
	if user.IsSuperAdmin() {
		return true
	}
	if order.CustomerID == user.ID {
		return true
	}
	return user.CanManageTenant(order.TenantID)
}
