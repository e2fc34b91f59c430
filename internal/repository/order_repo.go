package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"marketplace/internal/model"
)

// StockAdjustment is one product's inventory movement inside a
// checkout. Untracked products carry no adjustment at all.
type StockAdjustment struct {
	ProductID uint
	Quantity  int
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	TenantID   uint
	CustomerID uint
	Status     model.OrderStatus
	Offset     int
	Limit      int
}

// SalesSummary aggregates paid orders for reporting.
type SalesSummary struct {
	Orders  int64
	Revenue float64
}

// OrderRepository data access for orders
type OrderRepository interface {
	// CreateCheckout commits an entire checkout atomically: conditional
	// stock decrements, the order with its items, the discount usage
	// bump, and the cart wipe. Any failed stock condition aborts the
	// whole transaction with ErrStockConflict.
	CreateCheckout(ctx context.Context, order *model.Order, adjustments []StockAdjustment, discountID *uint, customerID uint) error

	GetByID(ctx context.Context, id uint) (*model.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	Update(ctx context.Context, order *model.Order) error
	List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error)

	// CancelRestock marks the order cancelled and returns its items to
	// stock in one transaction. Untracked products are left alone.
	CancelRestock(ctx context.Context, order *model.Order) error

	ListUnpaidBefore(ctx context.Context, cutoff time.Time) ([]model.Order, error)
	Summarize(ctx context.Context, tenantID uint, from, to time.Time) (*SalesSummary, error)
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates an order repository
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateCheckout(ctx context.Context, order *model.Order, adjustments []StockAdjustment, discountID *uint, customerID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, adj := range adjustments {
			if err := decrementStock(tx, adj.ProductID, adj.Quantity); err != nil {
				return err
			}
		}

		if err := tx.Create(order).Error; err != nil {
			return err
		}

		if discountID != nil {
			if err := tx.Model(&model.Discount{}).
				Where("id = ?", *discountID).
				UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error; err != nil {
				return err
			}
		}

		return tx.Where("customer_id = ?", customerID).Delete(&model.CartItem{}).Error
	})
}

func (r *orderRepository) GetByID(ctx context.Context, id uint) (*model.Order, error) {
	var order model.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	var order model.Order
	if err := r.db.WithContext(ctx).Preload("Items").
		Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) Update(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Order{})
	if filter.TenantID > 0 {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.CustomerID > 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if err := query.Preload("Items").Order("created_at DESC").
		Offset(filter.Offset).Limit(filter.Limit).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepository) CancelRestock(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", order.ID, model.OrderStatusPending).
			Update("status", model.OrderStatusCancelled)
		if result.Error != nil {
			return result.Error
		}
		// status moved on under us; nothing to undo
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		for _, item := range order.Items {
			if err := incrementStock(tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		order.Status = model.OrderStatusCancelled
		return nil
	})
}

func (r *orderRepository) ListUnpaidBefore(ctx context.Context, cutoff time.Time) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).Preload("Items").
		Where("status = ? AND payment_status = ? AND created_at < ?",
			model.OrderStatusPending, model.PaymentStatusPending, cutoff).
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) Summarize(ctx context.Context, tenantID uint, from, to time.Time) (*SalesSummary, error) {
	var summary SalesSummary

	query := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("payment_status = ? AND created_at >= ? AND created_at < ?",
			model.PaymentStatusPaid, from, to)
	if tenantID > 0 {
		query = query.Where("tenant_id = ?", tenantID)
	}

	row := query.Select("COUNT(*), COALESCE(SUM(total), 0)").Row()
	if err := row.Scan(&summary.Orders, &summary.Revenue); err != nil {
		return nil, err
	}
	return &summary, nil
}
