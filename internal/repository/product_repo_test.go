package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRepository_AddViews(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewProductRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `products` SET `views_count`=views_count \\+ .* WHERE id = .*").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.AddViews(context.Background(), 3, 17)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_ListLowStock(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewProductRepository(gdb)

	mock.ExpectQuery("SELECT .* FROM `products` WHERE tenant_id = .* AND track_inventory = .* AND stock_quantity <= low_stock_threshold").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "stock_quantity", "low_stock_threshold"}).
			AddRow(3, "Blue Shirt", 2, 10))

	products, err := repo.ListLowStock(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Blue Shirt", products[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_List_Filters(t *testing.T) {
	gdb, mock := setupMockDB(t)
	repo := NewProductRepository(gdb)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `products` WHERE tenant_id = .* AND category_id = .* AND status = .*").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT .* FROM `products` WHERE tenant_id = .* AND category_id = .* AND status = .* ORDER BY created_at DESC").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status"}).
			AddRow(3, "Blue Shirt", "active"))

	products, total, err := repo.List(context.Background(), ProductFilter{
		TenantID:   1,
		CategoryID: 2,
		Status:     "active",
		Limit:      20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, products, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
