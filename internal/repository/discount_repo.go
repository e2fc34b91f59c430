package repository

import (
	"context"

	"gorm.io/gorm"

	"marketplace/internal/model"
)

// DiscountRepository data access for discount codes
type DiscountRepository interface {
	Create(ctx context.Context, discount *model.Discount) error
	GetByID(ctx context.Context, id uint) (*model.Discount, error)
	GetByCode(ctx context.Context, tenantID uint, code string) (*model.Discount, error)
	Update(ctx context.Context, discount *model.Discount) error
	ListByTenant(ctx context.Context, tenantID uint, offset, limit int) ([]model.Discount, int64, error)
}

type discountRepository struct {
	db *gorm.DB
}

// NewDiscountRepository creates a discount repository
func NewDiscountRepository(db *gorm.DB) DiscountRepository {
	return &discountRepository{db: db}
}

func (r *discountRepository) Create(ctx context.Context, discount *model.Discount) error {
	return r.db.WithContext(ctx).Create(discount).Error
}

func (r *discountRepository) GetByID(ctx context.Context, id uint) (*model.Discount, error) {
	var discount model.Discount
	if err := r.db.WithContext(ctx).First(&discount, id).Error; err != nil {
		return nil, err
	}
	return &discount, nil
}

func (r *discountRepository) GetByCode(ctx context.Context, tenantID uint, code string) (*model.Discount, error) {
	var discount model.Discount
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND code = ?", tenantID, code).
		First(&discount).Error; err != nil {
		return nil, err
	}
	return &discount, nil
}

func (r *discountRepository) Update(ctx context.Context, discount *model.Discount) error {
	return r.db.WithContext(ctx).Save(discount).Error
}

func (r *discountRepository) ListByTenant(ctx context.Context, tenantID uint, offset, limit int) ([]model.Discount, int64, error) {
	var discounts []model.Discount
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Discount{}).Where("tenant_id = ?", tenantID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&discounts).Error; err != nil {
		return nil, 0, err
	}
	return discounts, total, nil
}
