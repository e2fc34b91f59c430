package model

import (
	"time"
)

// CartItem cart item model. CustomerID is nullable so guest carts can be
// keyed by session.
type CartItem struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerID         *uint     `gorm:"index" json:"customer_id,omitempty"`
	SessionID          string    `gorm:"type:varchar(255);index" json:"session_id,omitempty"`
	ProductID          uint      `gorm:"not null;index" json:"product_id"`
	VariantID          *uint     `json:"variant_id,omitempty"`
	Quantity           int       `gorm:"default:1" json:"quantity"`
	SelectedAttributes JSONMap   `gorm:"type:json" json:"selected_attributes,omitempty"`
	AddedAt            time.Time `gorm:"autoCreateTime" json:"added_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime;index" json:"updated_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// TableName set name
func (CartItem) TableName() string {
	return "cart_items"
}

// Wishlist wishlist entry model
type Wishlist struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerID uint      `gorm:"not null;index:idx_wishlist_customer_product,unique" json:"customer_id"`
	ProductID  uint      `gorm:"not null;index:idx_wishlist_customer_product,unique" json:"product_id"`
	AddedAt    time.Time `gorm:"autoCreateTime" json:"added_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// TableName set name
func (Wishlist) TableName() string {
	return "wishlists"
}
