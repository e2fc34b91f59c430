package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"marketplace/internal/middleware"
	"marketplace/internal/model"
	"marketplace/internal/repository"
	"marketplace/pkg/log"
	"marketplace/pkg/utils"
)

// WishlistHandler HTTP surface of customer wishlists.
type WishlistHandler struct {
	wishlists repository.WishlistRepository
	products  repository.ProductRepository
}

// NewWishlistHandler creates a wishlist handler.
func NewWishlistHandler(wishlists repository.WishlistRepository, products repository.ProductRepository) *WishlistHandler {
	return &WishlistHandler{wishlists: wishlists, products: products}
}

// List handles GET /api/v1/wishlist
func (h *WishlistHandler) List(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}

	entries, err := h.wishlists.ListByCustomer(c.Request.Context(), user.ID)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, entries)
}

type addWishlistRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
}

// Add handles POST /api/v1/wishlist
func (h *WishlistHandler) Add(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}

	var req addWishlistRequest
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

	exists, err := h.wishlists.Exists(c.Request.Context(), user.ID, req.ProductID)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	if exists {
		utils.Error(c, utils.CodeConflict, "product already in wishlist")
		return
	}

	entry := &model.Wishlist{CustomerID: user.ID, ProductID: req.ProductID}
	if err := h.wishlists.Add(c.Request.Context(), entry); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.Error(c, utils.CodeConflict, "product already in wishlist")
			return
		}
		utils.Fail(c, err)
		return
	}

	if err := h.products.AdjustWishlistCount(c.Request.Context(), req.ProductID, 1); err != nil {
		log.Warnf("adjust wishlist count failed for product %d: %v", req.ProductID, err)
	}
	utils.Created(c, entry)
}

// Remove handles DELETE /api/v1/wishlist/:product_id
func (h *WishlistHandler) Remove(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}
	productID, ok := parseIDParam(c, "product_id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid product id")
		return
	}

	removed, err := h.wishlists.Remove(c.Request.Context(), user.ID, productID)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	if !removed {
		utils.Error(c, utils.CodeNotFound, "wishlist entry not found")
		return
	}

	if err := h.products.AdjustWishlistCount(c.Request.Context(), productID, -1); err != nil {
		log.Warnf("adjust wishlist count failed for product %d: %v", productID, err)
	}
	utils.NoContent(c)
}
