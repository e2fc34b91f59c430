package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"marketplace/internal/model"
)

// ErrStockConflict returned when a conditional stock update matches no
// row: either the product vanished or the remaining stock is short.
var ErrStockConflict = errors.New("repository: stock conflict")

// ProductFilter narrows product listings.
type ProductFilter struct {
	TenantID   uint
	CategoryID uint
	Status     model.ProductStatus
	Featured   *bool
	Search     string
	Offset     int
	Limit      int
}

// ProductRepository data access for products and categories
type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id uint) (*model.Product, error)
	GetBySKU(ctx context.Context, sku string) (*model.Product, error)
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error)
	ListAll(ctx context.Context, batch int, fn func([]model.Product) error) error
	ListLowStock(ctx context.Context, tenantID uint) ([]model.Product, error)

	AddViews(ctx context.Context, id uint, n int) error
	AdjustWishlistCount(ctx context.Context, id uint, delta int) error

	CreateCategory(ctx context.Context, category *model.Category) error
	GetCategory(ctx context.Context, id uint) (*model.Category, error)
	ListCategories(ctx context.Context, tenantID uint) ([]model.Category, error)
	UpdateCategory(ctx context.Context, category *model.Category) error
	DeleteCategory(ctx context.Context, id uint) error
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a product repository
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepository) GetByID(ctx context.Context, id uint) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).Preload("Variants").First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) GetBySKU(ctx context.Context, sku string) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) Update(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

func (r *productRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&model.Product{}, id).Error
}

func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Product{})
	if filter.TenantID > 0 {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.CategoryID > 0 {
		query = query.Where("category_id = ?", filter.CategoryID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Featured != nil {
		query = query.Where("is_featured = ?", *filter.Featured)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if err := query.Order("created_at DESC").Offset(filter.Offset).Limit(filter.Limit).Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// ListAll streams every product in batches, for bulk reindexing.
func (r *productRepository) ListAll(ctx context.Context, batch int, fn func([]model.Product) error) error {
	if batch <= 0 {
		batch = 500
	}

	var products []model.Product
	result := r.db.WithContext(ctx).FindInBatches(&products, batch, func(tx *gorm.DB, _ int) error {
		return fn(products)
	})
	return result.Error
}

func (r *productRepository) ListLowStock(ctx context.Context, tenantID uint) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND track_inventory = ? AND stock_quantity <= low_stock_threshold", tenantID, true).
		Find(&products).Error
	return products, err
}

func (r *productRepository) AddViews(ctx context.Context, id uint, n int) error {
	return r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).
		UpdateColumn("views_count", gorm.Expr("views_count + ?", n)).Error
}

func (r *productRepository) AdjustWishlistCount(ctx context.Context, id uint, delta int) error {
	return r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).
		UpdateColumn("wishlist_count", gorm.Expr("wishlist_count + ?", delta)).Error
}

// decrementStock takes quantity off a tracked product only when enough
// stock remains, in a single conditional UPDATE. Zero rows affected
// means another checkout won the race.
func decrementStock(tx *gorm.DB, productID uint, quantity int) error {
	result := tx.Model(&model.Product{}).
		Where("id = ? AND stock_quantity >= ?", productID, quantity).
		Updates(map[string]interface{}{
			"stock_quantity": gorm.Expr("stock_quantity - ?", quantity),
			"sales_count":    gorm.Expr("sales_count + ?", quantity),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStockConflict
	}
	return nil
}

// incrementStock returns quantity to a tracked product; untracked
// products are left alone, matching the checkout decrement.
func incrementStock(tx *gorm.DB, productID uint, quantity int) error {
	return tx.Model(&model.Product{}).
		Where("id = ? AND track_inventory = ?", productID, true).
		Updates(map[string]interface{}{
			"stock_quantity": gorm.Expr("stock_quantity + ?", quantity),
			"sales_count":    gorm.Expr("sales_count - ?", quantity),
		}).Error
}

func (r *productRepository) CreateCategory(ctx context.Context, category *model.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *productRepository) GetCategory(ctx context.Context, id uint) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *productRepository) ListCategories(ctx context.Context, tenantID uint) ([]model.Category, error) {
	var categories []model.Category
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("sort_order, id").
		Find(&categories).Error
	return categories, err
}

func (r *productRepository) UpdateCategory(ctx context.Context, category *model.Category) error {
	return r.db.WithContext(ctx).Save(category).Error
}

func (r *productRepository) DeleteCategory(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&model.Category{}, id).Error
}
