package pricing

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"marketplace/internal/model"
	"marketplace/internal/repository"
	"marketplace/pkg/utils"
)

// TaxRate flat tax applied to the order subtotal, before discounts.
const TaxRate = 0.10

// FlatShippingCost shipping charge before any free-shipping discount.
const FlatShippingCost = 0.0

// RequestItem one requested order line. The variant and attribute
// selection is carried through verbatim into the order item snapshot.
type RequestItem struct {
	ProductID          uint          `json:"product_id" binding:"required"`
	VariantID          *uint         `json:"variant_id"`
	Quantity           int           `json:"quantity" binding:"required,gt=0"`
	SelectedAttributes model.JSONMap `json:"selected_attributes"`
}

// Line a priced order line with product snapshots.
type Line struct {
	Product            *model.Product
	VariantID          *uint
	SelectedAttributes model.JSONMap
	Quantity           int
	UnitPrice          float64
	TotalPrice         float64
}

// Quote the full pricing of a prospective order.
// Total = Subtotal - DiscountAmount + ShippingCost + TaxAmount.
type Quote struct {
	Lines          []Line
	Subtotal       float64
	DiscountAmount float64
	ShippingCost   float64
	TaxAmount      float64
	Total          float64

	// Discount is set when a code was applied.
	Discount *model.Discount

	// Adjustments are the stock movements the checkout must commit;
	// untracked products do not appear here.
	Adjustments []repository.StockAdjustment
}

// Calculator prices prospective orders.
type Calculator struct {
	products  repository.ProductRepository
	discounts repository.DiscountRepository
}

// NewCalculator creates a pricing calculator.
func NewCalculator(products repository.ProductRepository, discounts repository.DiscountRepository) *Calculator {
	return &Calculator{products: products, discounts: discounts}
}

// Price validates the requested items against live products and builds
// a quote. The quote reflects a point-in-time stock read; the checkout
// transaction re-verifies stock with conditional updates.
func (c *Calculator) Price(ctx context.Context, tenantID uint, items []RequestItem, discountCode string, now time.Time) (*Quote, error) {
	if len(items) == 0 {
		return nil, utils.NewError(utils.CodeInvalidParam, "order must contain at least one item")
	}

	quote := &Quote{ShippingCost: FlatShippingCost}

	for _, item := range items {
		product, err := c.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, utils.NewErrorf(utils.CodeNotFound, "product %d not found", item.ProductID)
			}
			return nil, err
		}

		if product.TenantID != tenantID || !product.IsActive() {
			return nil, utils.NewErrorf(utils.CodeNotFound, "product %d not found", item.ProductID)
		}
		if !product.HasStock(item.Quantity) {
			return nil, utils.NewErrorf(utils.CodeInsufficientStock,
				"insufficient stock for %s: %d available", product.Name, product.StockQuantity)
		}

		unit := product.UnitPrice()
		total := unit * float64(item.Quantity)

		quote.Lines = append(quote.Lines, Line{
			Product:            product,
			VariantID:          item.VariantID,
			SelectedAttributes: item.SelectedAttributes,
			Quantity:           item.Quantity,
			UnitPrice:          unit,
			TotalPrice:         total,
		})
		quote.Subtotal += total

		if product.TrackInventory {
			quote.Adjustments = append(quote.Adjustments, repository.StockAdjustment{
				ProductID: product.ID,
				Quantity:  item.Quantity,
			})
		}
	}

	if code := strings.TrimSpace(discountCode); code != "" {
		if err := c.applyDiscount(ctx, quote, tenantID, code, now); err != nil {
			return nil, err
		}
	}

	quote.TaxAmount = round2(quote.Subtotal * TaxRate)
	quote.Total = round2(quote.Subtotal - quote.DiscountAmount + quote.ShippingCost + quote.TaxAmount)
	quote.Subtotal = round2(quote.Subtotal)
	quote.DiscountAmount = round2(quote.DiscountAmount)

	return quote, nil
}

func (c *Calculator) applyDiscount(ctx context.Context, quote *Quote, tenantID uint, code string, now time.Time) error {
	discount, err := c.discounts.GetByCode(ctx, tenantID, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewErrorf(utils.CodeInvalidDiscount, "discount code %q not found", code)
		}
		return err
	}

	if !discount.IsValidAt(now) {
		return utils.NewErrorf(utils.CodeInvalidDiscount, "discount code %q is not active", code)
	}
	if quote.Subtotal < discount.MinPurchaseAmount {
		return utils.NewErrorf(utils.CodeInvalidDiscount,
			"discount code %q requires a minimum purchase of %.2f", code, discount.MinPurchaseAmount)
	}

	quote.Discount = discount
	quote.DiscountAmount = discount.AmountFor(quote.Subtotal)
	if discount.DiscountType == model.DiscountTypeFreeShipping {
		quote.ShippingCost = 0
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
