package model

import (
	"time"
)

// ProductStatus product status enum
type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "draft"
	ProductStatusActive   ProductStatus = "active"
	ProductStatusArchived ProductStatus = "archived"
)

// Category product category model
type Category struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID    uint      `gorm:"not null;index" json:"tenant_id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Slug        string    `gorm:"type:varchar(255);not null;index" json:"slug"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	ImageURL    string    `gorm:"type:varchar(500)" json:"image_url,omitempty"`
	ParentID    *uint     `gorm:"index" json:"parent_id,omitempty"`
	SortOrder   int       `gorm:"default:0" json:"sort_order"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName set name
func (Category) TableName() string {
	return "categories"
}

// Product product model. StockQuantity and SalesCount form the inventory
// ledger; they are only ever adjusted through atomic conditional updates.
type Product struct {
	ID               uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID         uint          `gorm:"not null;index" json:"tenant_id"`
	CategoryID       uint          `gorm:"not null;index" json:"category_id"`
	Name             string        `gorm:"type:varchar(500);not null" json:"name"`
	Slug             string        `gorm:"type:varchar(500);not null;index" json:"slug"`
	Description      string        `gorm:"type:text" json:"description,omitempty"`
	ShortDescription string        `gorm:"type:varchar(500)" json:"short_description,omitempty"`
	SKU              string        `gorm:"type:varchar(100);uniqueIndex" json:"sku"`
	Barcode          string        `gorm:"type:varchar(100)" json:"barcode,omitempty"`
	Images           JSONArray     `gorm:"type:json" json:"images,omitempty"`

	// Pricing
	BasePrice     float64  `gorm:"not null" json:"base_price"`
	DiscountPrice *float64 `json:"discount_price,omitempty"`
	CostPrice     float64  `json:"cost_price,omitempty"`

	// Inventory
	StockQuantity     int  `gorm:"default:0" json:"stock_quantity"`
	LowStockThreshold int  `gorm:"default:10" json:"low_stock_threshold"`
	TrackInventory    bool `gorm:"default:true" json:"track_inventory"`

	// Status
	Status     ProductStatus `gorm:"type:varchar(20);default:draft;index" json:"status"`
	IsFeatured bool          `gorm:"default:false" json:"is_featured"`

	// Stats
	ViewsCount    int `gorm:"default:0" json:"views_count"`
	SalesCount    int `gorm:"default:0" json:"sales_count"`
	WishlistCount int `gorm:"default:0" json:"wishlist_count"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Variants []ProductVariant `gorm:"foreignKey:ProductID" json:"variants,omitempty"`
}

// TableName set name
func (Product) TableName() string {
	return "products"
}

// IsActive check product is purchasable
func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// UnitPrice effective unit price: the discount price wins when present
// and lower than the base price
func (p *Product) UnitPrice() float64 {
	if p.DiscountPrice != nil && *p.DiscountPrice < p.BasePrice {
		return *p.DiscountPrice
	}
	return p.BasePrice
}

// HasStock check the requested quantity is available. Untracked products
// never run out.
func (p *Product) HasStock(quantity int) bool {
	if !p.TrackInventory {
		return true
	}
	return p.StockQuantity >= quantity
}

// IsLowStock check stock dropped below the alert threshold
func (p *Product) IsLowStock() bool {
	return p.TrackInventory && p.StockQuantity <= p.LowStockThreshold
}

// ProductVariant product variant model
type ProductVariant struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID         uint      `gorm:"not null;index" json:"product_id"`
	SKU               string    `gorm:"type:varchar(100);uniqueIndex" json:"sku"`
	VariantAttributes JSONMap   `gorm:"type:json" json:"variant_attributes,omitempty"`
	Price             float64   `gorm:"not null" json:"price"`
	StockQuantity     int       `gorm:"default:0" json:"stock_quantity"`
	ImageURL          string    `gorm:"type:varchar(500)" json:"image_url,omitempty"`
	IsActive          bool      `gorm:"default:true" json:"is_active"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName set name
func (ProductVariant) TableName() string {
	return "product_variants"
}
