package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/model"
	"marketplace/internal/repository"
)

type fakeProducts struct {
	repository.ProductRepository
	products   []model.Product
	lastFilter repository.ProductFilter
}

func (f *fakeProducts) List(ctx context.Context, filter repository.ProductFilter) ([]model.Product, int64, error) {
	f.lastFilter = filter
	return f.products, int64(len(f.products)), nil
}

func TestService_Suggest_DatabaseFallback(t *testing.T) {
	products := &fakeProducts{products: []model.Product{
		{ID: 3, TenantID: 1, Name: "Blue Shirt", BasePrice: 50},
		{ID: 4, TenantID: 1, Name: "Blue Jeans", BasePrice: 80},
	}}
	svc := NewService(products, nil, nil)

	result, err := svc.Suggest(context.Background(), 1, "blu", 5)
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Total)
	require.Len(t, result.Products, 2)
	assert.Equal(t, "Blue Shirt", result.Products[0]["name"])

	// only active products complete, scoped to the shop
	assert.Equal(t, uint(1), products.lastFilter.TenantID)
	assert.Equal(t, model.ProductStatusActive, products.lastFilter.Status)
	assert.Equal(t, "blu", products.lastFilter.Search)
	assert.Equal(t, 5, products.lastFilter.Limit)
}

func TestService_Suggest_ClampsSize(t *testing.T) {
	products := &fakeProducts{}
	svc := NewService(products, nil, nil)

	_, err := svc.Suggest(context.Background(), 1, "b", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, products.lastFilter.Limit)

	_, err = svc.Suggest(context.Background(), 1, "b", 100)
	require.NoError(t, err)
	assert.Equal(t, 5, products.lastFilter.Limit)
}
