package model

import (
	"time"
)

// OrderStatus order status enum
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// orderStatusRank fulfillment progression order. Transitions must move
// forward; the only backward edge is pending -> cancelled.
var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusConfirmed:  1,
	OrderStatusProcessing: 2,
	OrderStatusShipped:    3,
	OrderStatusDelivered:  4,
	OrderStatusRefunded:   5,
	OrderStatusCancelled:  6,
}

// Valid check the status is a known value
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusRank[s]
	return ok
}

// CanTransitionTo check a status change is allowed
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !s.Valid() || !next.Valid() || s == next {
		return false
	}
	if next == OrderStatusCancelled {
		return s == OrderStatusPending
	}
	if s == OrderStatusCancelled {
		return false
	}
	return orderStatusRank[next] > orderStatusRank[s]
}

// PaymentStatus payment status enum
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Valid check the payment status is a known value
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}

// Order order model, aggregate root of the checkout flow.
// Invariant: Total == Subtotal - DiscountAmount + ShippingCost + TaxAmount
// at creation time.
type Order struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID    uint   `gorm:"not null;index" json:"tenant_id"`
	CustomerID  uint   `gorm:"not null;index" json:"customer_id"`
	OrderNumber string `gorm:"type:varchar(50);uniqueIndex;not null" json:"order_number"`

	// Pricing
	Subtotal       float64 `gorm:"not null" json:"subtotal"`
	DiscountAmount float64 `gorm:"default:0" json:"discount_amount"`
	ShippingCost   float64 `gorm:"default:0" json:"shipping_cost"`
	TaxAmount      float64 `gorm:"default:0" json:"tax_amount"`
	Total          float64 `gorm:"not null" json:"total"`

	DiscountCode *string `gorm:"type:varchar(100)" json:"discount_code,omitempty"`

	// Addresses
	ShippingAddress JSONMap `gorm:"type:json" json:"shipping_address,omitempty"`
	BillingAddress  JSONMap `gorm:"type:json" json:"billing_address,omitempty"`

	// Status
	Status        OrderStatus   `gorm:"type:varchar(20);default:pending;index" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);default:pending;index" json:"payment_status"`
	PaymentMethod string        `gorm:"type:varchar(50)" json:"payment_method,omitempty"`

	// Tracking
	TrackingNumber string `gorm:"type:varchar(100)" json:"tracking_number,omitempty"`
	Notes          string `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Customer *User       `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Tenant   *Tenant     `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
	Items    []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// TableName set name
func (Order) TableName() string {
	return "orders"
}

// IsPending check order is pending
func (o *Order) IsPending() bool {
	return o.Status == OrderStatusPending
}

// IsPaid check order has been paid
func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

// CanCancel cancellation is only allowed before confirmation
func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusPending
}

// OrderItem order line item. ProductName and ProductAttributes are
// snapshots taken at checkout and never updated afterwards, so the order
// history stays accurate when the product changes.
type OrderItem struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID           uint      `gorm:"not null;index" json:"order_id"`
	ProductID         uint      `gorm:"not null;index" json:"product_id"`
	VariantID         *uint     `json:"variant_id,omitempty"`
	ProductName       string    `gorm:"type:varchar(500)" json:"product_name"`
	ProductAttributes JSONMap   `gorm:"type:json" json:"product_attributes,omitempty"`
	Quantity          int       `gorm:"not null" json:"quantity"`
	UnitPrice         float64   `gorm:"not null" json:"unit_price"`
	TotalPrice        float64   `gorm:"not null" json:"total_price"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName set name
func (OrderItem) TableName() string {
	return "order_items"
}
