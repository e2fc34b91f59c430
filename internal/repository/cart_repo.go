package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"marketplace/internal/model"
)

// CartRepository data access for cart items
type CartRepository interface {
	ListByCustomer(ctx context.Context, customerID uint) ([]model.CartItem, error)
	Get(ctx context.Context, id uint) (*model.CartItem, error)
	// Upsert adds the product to the cart, merging quantity into an
	// existing line for the same product and variant.
	Upsert(ctx context.Context, item *model.CartItem) error
	UpdateQuantity(ctx context.Context, id uint, quantity int) error
	Delete(ctx context.Context, id uint) error
	ClearByCustomer(ctx context.Context, customerID uint) error
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type cartRepository struct {
	db *gorm.DB
}

// NewCartRepository creates a cart repository
func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) ListByCustomer(ctx context.Context, customerID uint) ([]model.CartItem, error) {
	var items []model.CartItem
	err := r.db.WithContext(ctx).Preload("Product").
		Where("customer_id = ?", customerID).
		Order("added_at").
		Find(&items).Error
	return items, err
}

func (r *cartRepository) Get(ctx context.Context, id uint) (*model.CartItem, error) {
	var item model.CartItem
	if err := r.db.WithContext(ctx).Preload("Product").First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) Upsert(ctx context.Context, item *model.CartItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("customer_id = ? AND product_id = ?", item.CustomerID, item.ProductID)
		if item.VariantID != nil {
			query = query.Where("variant_id = ?", *item.VariantID)
		} else {
			query = query.Where("variant_id IS NULL")
		}

		var existing model.CartItem
		err := query.First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(item).Error
		}
		if err != nil {
			return err
		}

		existing.Quantity += item.Quantity
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		*item = existing
		return nil
	})
}

func (r *cartRepository) UpdateQuantity(ctx context.Context, id uint, quantity int) error {
	return r.db.WithContext(ctx).Model(&model.CartItem{}).
		Where("id = ?", id).
		Update("quantity", quantity).Error
}

func (r *cartRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&model.CartItem{}, id).Error
}

func (r *cartRepository) ClearByCustomer(ctx context.Context, customerID uint) error {
	return r.db.WithContext(ctx).Where("customer_id = ?", customerID).Delete(&model.CartItem{}).Error
}

func (r *cartRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("updated_at < ?", cutoff).
		Delete(&model.CartItem{})
	return result.RowsAffected, result.Error
}
