package handler

import (
	"github.com/gin-gonic/gin"

	"marketplace/internal/middleware"
	"marketplace/internal/model"
	"marketplace/internal/monitor"
	"marketplace/internal/service/order"
	"marketplace/pkg/utils"
)

// OrderHandler HTTP surface of the order lifecycle.
type OrderHandler struct {
	orders *order.Service
}

// NewOrderHandler creates an order handler.
func NewOrderHandler(orders *order.Service) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Create handles POST /api/v1/tenants/:tenant_id/orders
func (h *OrderHandler) Create(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}
	tenantID, ok := parseIDParam(c, "tenant_id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid tenant id")
		return
	}

	var req order.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, utils.CodeInvalidParam, err.Error())
		return
	}

	created, err := h.orders.Create(c.Request.Context(), user, tenantID, req)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	monitor.ObserveOrderCreated(tenantID)
	utils.Created(c, created)
}

// List handles GET /api/v1/orders (the caller's own orders)
func (h *OrderHandler) List(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}

	page, size, offset := pagination(c)
	status := model.OrderStatus(c.Query("status"))

	orders, total, err := h.orders.ListForCustomer(c.Request.Context(), user.ID, status, offset, size)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.SuccessPage(c, orders, total, page, size)
}

// Get handles GET /api/v1/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid order id")
		return
	}

	o, err := h.orders.Get(c.Request.Context(), user, id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, o)
}

// Cancel handles PATCH /api/v1/orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid order id")
		return
	}

	o, err := h.orders.Cancel(c.Request.Context(), user, id)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	monitor.ObserveOrderCancelled(o.TenantID)
	utils.Success(c, o)
}

type updateStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required"`
}

// UpdateStatus handles PATCH /api/v1/orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid order id")
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, utils.CodeInvalidParam, err.Error())
		return
	}

	o, err := h.orders.UpdateStatus(c.Request.Context(), user, id, req.Status)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, o)
}

type paymentWebhookRequest struct {
	OrderNumber   string              `json:"order_number" binding:"required"`
	PaymentStatus model.PaymentStatus `json:"payment_status" binding:"required"`
	PaymentMethod string              `json:"payment_method"`
}

// PaymentWebhook handles POST /api/v1/payments/webhook
func (h *OrderHandler) PaymentWebhook(c *gin.Context) {
	var req paymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, utils.CodeInvalidParam, err.Error())
		return
	}

	o, err := h.orders.HandlePaymentWebhook(c.Request.Context(), req.OrderNumber, req.PaymentStatus, req.PaymentMethod)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, gin.H{
		"order_number":   o.OrderNumber,
		"payment_status": o.PaymentStatus,
	})
}

// ListForTenant handles GET /api/v1/tenants/:tenant_id/orders
func (h *OrderHandler) ListForTenant(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}
	tenantID, ok := parseIDParam(c, "tenant_id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid tenant id")
		return
	}

	page, size, offset := pagination(c)
	status := model.OrderStatus(c.Query("status"))

	orders, total, err := h.orders.ListForTenant(c.Request.Context(), user, tenantID, status, offset, size)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.SuccessPage(c, orders, total, page, size)
}

// ListAll handles GET /api/v1/admin/orders
func (h *OrderHandler) ListAll(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}

	page, size, offset := pagination(c)
	status := model.OrderStatus(c.Query("status"))

	orders, total, err := h.orders.ListAll(c.Request.Context(), user, status, offset, size)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.SuccessPage(c, orders, total, page, size)
}
