package repository

import (
	"context"

	"gorm.io/gorm"

	"marketplace/internal/model"
)

// WishlistRepository data access for wishlists
type WishlistRepository interface {
	ListByCustomer(ctx context.Context, customerID uint) ([]model.Wishlist, error)
	Add(ctx context.Context, entry *model.Wishlist) error
	Remove(ctx context.Context, customerID, productID uint) (bool, error)
	Exists(ctx context.Context, customerID, productID uint) (bool, error)
}

type wishlistRepository struct {
	db *gorm.DB
}

// NewWishlistRepository creates a wishlist repository
func NewWishlistRepository(db *gorm.DB) WishlistRepository {
	return &wishlistRepository{db: db}
}

func (r *wishlistRepository) ListByCustomer(ctx context.Context, customerID uint) ([]model.Wishlist, error) {
	var entries []model.Wishlist
	err := r.db.WithContext(ctx).Preload("Product").
		Where("customer_id = ?", customerID).
		Order("added_at DESC").
		Find(&entries).Error
	return entries, err
}

func (r *wishlistRepository) Add(ctx context.Context, entry *model.Wishlist) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *wishlistRepository) Remove(ctx context.Context, customerID, productID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("customer_id = ? AND product_id = ?", customerID, productID).
		Delete(&model.Wishlist{})
	return result.RowsAffected > 0, result.Error
}

func (r *wishlistRepository) Exists(ctx context.Context, customerID, productID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Wishlist{}).
		Where("customer_id = ? AND product_id = ?", customerID, productID).
		Count(&count).Error
	return count > 0, err
}
