package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"marketplace/internal/middleware"
	"marketplace/internal/model"
	"marketplace/internal/repository"
	"marketplace/pkg/utils"
)

// CartHandler HTTP surface of the shopping cart.
type CartHandler struct {
	carts    repository.CartRepository
	products repository.ProductRepository
}

// NewCartHandler creates a cart handler.
func NewCartHandler(carts repository.CartRepository, products repository.ProductRepository) *CartHandler {
	return &CartHandler{carts: carts, products: products}
}

// List handles GET /api/v1/cart
func (h *CartHandler) List(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}

	items, err := h.carts.ListByCustomer(c.Request.Context(), user.ID)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	var total float64
	for i := range items {
		if items[i].Product != nil {
			total += items[i].Product.UnitPrice() * float64(items[i].Quantity)
		}
	}
	utils.Success(c, gin.H{
		"items": items,
		"total": total,
	})
}

type addCartItemRequest struct {
	ProductID          uint          `json:"product_id" binding:"required"`
	VariantID          *uint         `json:"variant_id"`
	Quantity           int           `json:"quantity" binding:"required,gt=0"`
	SelectedAttributes model.JSONMap `json:"selected_attributes"`
}

// Add handles POST /api/v1/cart/items
func (h *CartHandler) Add(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}

	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, utils.CodeInvalidParam, err.Error())
		return
	}

	product, err := h.products.GetByID(c.Request.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Fail(c, utils.ErrProductNotFound)
			return
		}
		utils.Fail(c, err)
		return
	}
	if !product.IsActive() {
		utils.Fail(c, utils.ErrProductNotFound)
		return
	}
	if !product.HasStock(req.Quantity) {
		utils.Fail(c, utils.ErrInsufficientStock)
		return
	}

	item := &model.CartItem{
		CustomerID:         &user.ID,
		ProductID:          req.ProductID,
		VariantID:          req.VariantID,
		Quantity:           req.Quantity,
		SelectedAttributes: req.SelectedAttributes,
	}
	if err := h.carts.Upsert(c.Request.Context(), item); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, item)
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// Update handles PATCH /api/v1/cart/items/:id
func (h *CartHandler) Update(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid cart item id")
		return
	}

	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, utils.CodeInvalidParam, err.Error())
		return
	}

	item, err := h.carts.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(c, utils.CodeNotFound, "cart item not found")
			return
		}
		utils.Fail(c, err)
		return
	}
	if item.CustomerID == nil || *item.CustomerID != user.ID {
		utils.Error(c, utils.CodeNotFound, "cart item not found")
		return
	}
	if item.Product != nil && !item.Product.HasStock(req.Quantity) {
		utils.Fail(c, utils.ErrInsufficientStock)
		return
	}

	if err := h.carts.UpdateQuantity(c.Request.Context(), id, req.Quantity); err != nil {
		utils.Fail(c, err)
		return
	}
	item.Quantity = req.Quantity
	utils.Success(c, item)
}

// Delete handles DELETE /api/v1/cart/items/:id
func (h *CartHandler) Delete(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid cart item id")
		return
	}

	item, err := h.carts.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(c, utils.CodeNotFound, "cart item not found")
			return
		}
		utils.Fail(c, err)
		return
	}
	if item.CustomerID == nil || *item.CustomerID != user.ID {
		utils.Error(c, utils.CodeNotFound, "cart item not found")
		return
	}

	if err := h.carts.Delete(c.Request.Context(), id); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.NoContent(c)
}

// Clear handles DELETE /api/v1/cart
func (h *CartHandler) Clear(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}

	if err := h.carts.ClearByCustomer(c.Request.Context(), user.ID); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.NoContent(c)
}
