package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"marketplace/internal/model"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return gdb, mock
}

func checkoutOrder() *model.Order {
	return &model.Order{
		TenantID:    1,
		CustomerID:  7,
		OrderNumber: "ORD-1A2B3C4D",
		Subtotal:    100,
		TaxAmount:   10,
		Total:       110,
		Status:      model.OrderStatusPending,
		Items: []model.OrderItem{
			{ProductID: 3, ProductName: "Blue Shirt", Quantity: 2, UnitPrice: 50, TotalPrice: 100},
		},
	}
}

func TestOrderRepository_CreateCheckout(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewOrderRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `products` SET .* WHERE id = .* AND stock_quantity >= .*").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `orders`").
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec("INSERT INTO `order_items`").
		WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectExec("DELETE FROM `cart_items` WHERE customer_id = .*").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	order := checkoutOrder()
	err := repo.CreateCheckout(context.Background(), order,
		[]StockAdjustment{{ProductID: 3, Quantity: 2}}, nil, 7)

	require.NoError(t, err)
	assert.Equal(t, uint(11), order.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CreateCheckout_StockConflict(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewOrderRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `products` SET .* WHERE id = .* AND stock_quantity >= .*").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.CreateCheckout(context.Background(), checkoutOrder(),
		[]StockAdjustment{{ProductID: 3, Quantity: 2}}, nil, 7)

	assert.ErrorIs(t, err, ErrStockConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CreateCheckout_DiscountUsage(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewOrderRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `products` SET .* WHERE id = .* AND stock_quantity >= .*").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `orders`").
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectExec("INSERT INTO `order_items`").
		WillReturnResult(sqlmock.NewResult(22, 1))
	mock.ExpectExec("UPDATE `discounts` SET `usage_count`=usage_count \\+ 1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM `cart_items` WHERE customer_id = .*").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	discountID := uint(5)
	err := repo.CreateCheckout(context.Background(), checkoutOrder(),
		[]StockAdjustment{{ProductID: 3, Quantity: 2}}, &discountID, 7)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CancelRestock(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewOrderRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `orders` SET .* WHERE id = .* AND status = .*").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `products` SET .* WHERE id = .* AND track_inventory = .*").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order := checkoutOrder()
	order.ID = 11

	err := repo.CancelRestock(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, order.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CancelRestock_AlreadyMoved(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewOrderRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `orders` SET .* WHERE id = .* AND status = .*").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	order := checkoutOrder()
	order.ID = 11

	err := repo.CancelRestock(context.Background(), order)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ListUnpaidBefore(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewOrderRepository(gdb)

	cutoff := time.Now().Add(-24 * time.Hour)

	mock.ExpectQuery("SELECT .* FROM `orders` WHERE status = .* AND payment_status = .* AND created_at < .*").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_number", "status", "payment_status"}).
			AddRow(1, "ORD-AAAA1111", "pending", "pending").
			AddRow(2, "ORD-BBBB2222", "pending", "pending"))
	mock.ExpectQuery("SELECT .* FROM `order_items` WHERE `order_items`.`order_id` IN .*").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "quantity"}).
			AddRow(1, 1, 3, 2))

	orders, err := repo.ListUnpaidBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Summarize(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewOrderRepository(gdb)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\), COALESCE\\(SUM\\(total\\), 0\\) FROM `orders`").
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(3, 330.5))

	summary, err := repo.Summarize(context.Background(), 1,
		time.Now().Add(-24*time.Hour), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Orders)
	assert.InDelta(t, 330.5, summary.Revenue, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}
