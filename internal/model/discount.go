package model

import (
	"time"
)

// DiscountType discount type enum
type DiscountType string

const (
	DiscountTypePercentage   DiscountType = "percentage"
	DiscountTypeFixed        DiscountType = "fixed"
	DiscountTypeFreeShipping DiscountType = "free_shipping"
)

// Discount discount code model
type Discount struct {
	ID                uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID          uint         `gorm:"not null;index" json:"tenant_id"`
	Code              string       `gorm:"type:varchar(100);uniqueIndex" json:"code"`
	Name              string       `gorm:"type:varchar(255);not null" json:"name"`
	Description       string       `gorm:"type:text" json:"description,omitempty"`
	DiscountType      DiscountType `gorm:"type:varchar(20);not null" json:"discount_type"`
	Value             float64      `gorm:"not null" json:"value"`
	MinPurchaseAmount float64      `gorm:"default:0" json:"min_purchase_amount"`
	MaxDiscountAmount *float64     `json:"max_discount_amount,omitempty"`
	UsageLimit        *int         `json:"usage_limit,omitempty"`
	UsageCount        int          `gorm:"default:0" json:"usage_count"`
	ValidFrom         time.Time    `gorm:"not null" json:"valid_from"`
	ValidTo           time.Time    `gorm:"not null" json:"valid_to"`
	IsActive          bool         `gorm:"default:true" json:"is_active"`
	CreatedAt         time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName set name
func (Discount) TableName() string {
	return "discounts"
}

// IsValidAt check the code can be redeemed at the given time
func (d *Discount) IsValidAt(now time.Time) bool {
	if !d.IsActive {
		return false
	}
	if now.Before(d.ValidFrom) || now.After(d.ValidTo) {
		return false
	}
	if d.UsageLimit != nil && d.UsageCount >= *d.UsageLimit {
		return false
	}
	return true
}

// AmountFor discount amount for the given subtotal. Returns 0 when the
// minimum purchase requirement is not met.
func (d *Discount) AmountFor(subtotal float64) float64 {
	if subtotal < d.MinPurchaseAmount {
		return 0
	}

	var amount float64
	switch d.DiscountType {
	case DiscountTypePercentage:
		amount = subtotal * d.Value / 100
	case DiscountTypeFixed:
		amount = d.Value
	case DiscountTypeFreeShipping:
		// shipping is charged separately; nothing off the subtotal
		amount = 0
	}

	if d.MaxDiscountAmount != nil && amount > *d.MaxDiscountAmount {
		amount = *d.MaxDiscountAmount
	}
	if amount > subtotal {
		amount = subtotal
	}
	return amount
}
