package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"marketplace/internal/model"
	"marketplace/internal/repository"
	"marketplace/pkg/utils"
)

type fakeProducts struct {
	repository.ProductRepository
	byID map[uint]*model.Product
}

func (f *fakeProducts) GetByID(ctx context.Context, id uint) (*model.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

type fakeDiscounts struct {
	repository.DiscountRepository
	byCode map[string]*model.Discount
}

func (f *fakeDiscounts) GetByCode(ctx context.Context, tenantID uint, code string) (*model.Discount, error) {
	d, ok := f.byCode[code]
	if !ok || d.TenantID != tenantID {
		return nil, gorm.ErrRecordNotFound
	}
	return d, nil
}

func floatPtr(v float64) *float64 { return &v }

func testProducts() *fakeProducts {
	return &fakeProducts{byID: map[uint]*model.Product{
		1: {
			ID: 1, TenantID: 1, Name: "Blue Shirt", Status: model.ProductStatusActive,
			BasePrice: 50, StockQuantity: 10, TrackInventory: true,
		},
		2: {
			ID: 2, TenantID: 1, Name: "Gift Card", Status: model.ProductStatusActive,
			BasePrice: 25, DiscountPrice: floatPtr(20), TrackInventory: false,
		},
		3: {
			ID: 3, TenantID: 1, Name: "Rare Item", Status: model.ProductStatusActive,
			BasePrice: 100, StockQuantity: 1, TrackInventory: true,
		},
		4: {
			ID: 4, TenantID: 2, Name: "Other Shop Item", Status: model.ProductStatusActive,
			BasePrice: 10, StockQuantity: 5, TrackInventory: true,
		},
	}}
}

func testCalculator(discounts map[string]*model.Discount) *Calculator {
	return NewCalculator(testProducts(), &fakeDiscounts{byCode: discounts})
}

func TestPrice_TotalsIdentity(t *testing.T) {
	c := testCalculator(nil)

	quote, err := c.Price(context.Background(), 1, []RequestItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	}, "", time.Now())
	require.NoError(t, err)

	// 2*50 + 1*20 (discount price wins)
	assert.InDelta(t, 120.0, quote.Subtotal, 0.001)
	assert.InDelta(t, 12.0, quote.TaxAmount, 0.001)
	assert.InDelta(t, 0.0, quote.ShippingCost, 0.001)
	assert.InDelta(t, quote.Subtotal-quote.DiscountAmount+quote.ShippingCost+quote.TaxAmount,
		quote.Total, 0.001)

	// only the tracked product moves stock
	require.Len(t, quote.Adjustments, 1)
	assert.Equal(t, uint(1), quote.Adjustments[0].ProductID)
	assert.Equal(t, 2, quote.Adjustments[0].Quantity)
}

func TestPrice_InsufficientStock(t *testing.T) {
	c := testCalculator(nil)

	_, err := c.Price(context.Background(), 1, []RequestItem{
		{ProductID: 3, Quantity: 2},
	}, "", time.Now())
	require.Error(t, err)
	assert.Equal(t, utils.CodeInsufficientStock, utils.GetErrorCode(err))
}

func TestPrice_UntrackedNeverRunsOut(t *testing.T) {
	c := testCalculator(nil)

	quote, err := c.Price(context.Background(), 1, []RequestItem{
		{ProductID: 2, Quantity: 10000},
	}, "", time.Now())
	require.NoError(t, err)
	assert.Empty(t, quote.Adjustments)
}

func TestPrice_ProductNotFound(t *testing.T) {
	c := testCalculator(nil)

	_, err := c.Price(context.Background(), 1, []RequestItem{
		{ProductID: 99, Quantity: 1},
	}, "", time.Now())
	require.Error(t, err)
	assert.Equal(t, utils.CodeNotFound, utils.GetErrorCode(err))
}

func TestPrice_CrossTenantProductHidden(t *testing.T) {
	c := testCalculator(nil)

	_, err := c.Price(context.Background(), 1, []RequestItem{
		{ProductID: 4, Quantity: 1},
	}, "", time.Now())
	require.Error(t, err)
	assert.Equal(t, utils.CodeNotFound, utils.GetErrorCode(err))
}

func TestPrice_EmptyOrder(t *testing.T) {
	c := testCalculator(nil)

	_, err := c.Price(context.Background(), 1, nil, "", time.Now())
	require.Error(t, err)
	assert.Equal(t, utils.CodeInvalidParam, utils.GetErrorCode(err))
}

func TestPrice_PercentageDiscount(t *testing.T) {
	now := time.Now()
	c := testCalculator(map[string]*model.Discount{
		"SAVE10": {
			ID: 5, TenantID: 1, Code: "SAVE10", IsActive: true,
			DiscountType: model.DiscountTypePercentage, Value: 10,
			ValidFrom: now.Add(-time.Hour), ValidTo: now.Add(time.Hour),
		},
	})

	quote, err := c.Price(context.Background(), 1, []RequestItem{
		{ProductID: 1, Quantity: 2},
	}, "SAVE10", now)
	require.NoError(t, err)

	assert.InDelta(t, 100.0, quote.Subtotal, 0.001)
	assert.InDelta(t, 10.0, quote.DiscountAmount, 0.001)
	// tax is charged on the gross subtotal, unaffected by the discount
	assert.InDelta(t, 10.0, quote.TaxAmount, 0.001)
	assert.InDelta(t, 100.0, quote.Total, 0.001)
	require.NotNil(t, quote.Discount)
	assert.Equal(t, uint(5), quote.Discount.ID)
}

func TestPrice_ExpiredDiscount(t *testing.T) {
	now := time.Now()
	c := testCalculator(map[string]*model.Discount{
		"OLD": {
			ID: 6, TenantID: 1, Code: "OLD", IsActive: true,
			DiscountType: model.DiscountTypePercentage, Value: 10,
			ValidFrom: now.Add(-48 * time.Hour), ValidTo: now.Add(-24 * time.Hour),
		},
	})

	_, err := c.Price(context.Background(), 1, []RequestItem{
		{ProductID: 1, Quantity: 1},
	}, "OLD", now)
	require.Error(t, err)
	assert.Equal(t, utils.CodeInvalidDiscount, utils.GetErrorCode(err))
}

func TestPrice_MinPurchaseNotMet(t *testing.T) {
	now := time.Now()
	c := testCalculator(map[string]*model.Discount{
		"BIG": {
			ID: 7, TenantID: 1, Code: "BIG", IsActive: true,
			DiscountType: model.DiscountTypeFixed, Value: 20, MinPurchaseAmount: 500,
			ValidFrom: now.Add(-time.Hour), ValidTo: now.Add(time.Hour),
		},
	})

	_, err := c.Price(context.Background(), 1, []RequestItem{
		{ProductID: 1, Quantity: 1},
	}, "BIG", now)
	require.Error(t, err)
	assert.Equal(t, utils.CodeInvalidDiscount, utils.GetErrorCode(err))
}

func TestPrice_UnknownDiscountCode(t *testing.T) {
	c := testCalculator(nil)

	_, err := c.Price(context.Background(), 1, []RequestItem{
		{ProductID: 1, Quantity: 1},
	}, "NOPE", time.Now())
	require.Error(t, err)
	assert.Equal(t, utils.CodeInvalidDiscount, utils.GetErrorCode(err))
}
