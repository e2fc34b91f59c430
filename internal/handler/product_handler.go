package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"marketplace/internal/middleware"
	"marketplace/internal/model"
	"marketplace/internal/repository"
	"marketplace/internal/search"
	"marketplace/internal/service/catalog"
	"marketplace/pkg/utils"
)

// ProductHandler HTTP surface of the catalog.
type ProductHandler struct {
	catalog *catalog.Service
}

// NewProductHandler creates a product handler.
func NewProductHandler(catalogSvc *catalog.Service) *ProductHandler {
	return &ProductHandler{catalog: catalogSvc}
}

// Create handles POST /api/v1/tenants/:tenant_id/products
func (h *ProductHandler) Create(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}
	tenantID, ok := parseIDParam(c, "tenant_id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid tenant id")
		return
	}

	var product model.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		utils.Error(c, utils.CodeInvalidParam, err.Error())
		return
	}
	product.ID = 0
	product.TenantID = tenantID

	if err := h.catalog.CreateProduct(c.Request.Context(), user, &product); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, product)
}

// List handles GET /api/v1/tenants/:tenant_id/products
func (h *ProductHandler) List(c *gin.Context) {
	tenantID, ok := parseIDParam(c, "tenant_id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid tenant id")
		return
	}

	page, size, offset := pagination(c)

	filter := repository.ProductFilter{
		TenantID: tenantID,
		Status:   model.ProductStatusActive,
		Search:   c.Query("q"),
		Offset:   offset,
		Limit:    size,
	}
	if v, err := strconv.ParseUint(c.Query("category_id"), 10, 32); err == nil {
		filter.CategoryID = uint(v)
	}
	if v, err := strconv.ParseBool(c.Query("featured")); err == nil {
		filter.Featured = &v
	}

	products, total, err := h.catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.SuccessPage(c, products, total, page, size)
}

// Get handles GET /api/v1/tenants/:tenant_id/products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	tenantID, ok := parseIDParam(c, "tenant_id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid tenant id")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid product id")
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), tenantID, id, true)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, product)
}

// Update handles PUT /api/v1/tenants/:tenant_id/products/:id
func (h *ProductHandler) Update(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}
	tenantID, ok := parseIDParam(c, "tenant_id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid tenant id")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid product id")
		return
	}

	existing, err := h.catalog.GetProduct(c.Request.Context(), tenantID, id, false)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	var product model.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		utils.Error(c, utils.CodeInvalidParam, err.Error())
		return
	}
	product.ID = existing.ID
	product.TenantID = tenantID

	if err := h.catalog.UpdateProduct(c.Request.Context(), user, &product); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, product)
}

// Delete handles DELETE /api/v1/tenants/:tenant_id/products/:id
func (h *ProductHandler) Delete(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}
	tenantID, ok := parseIDParam(c, "tenant_id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid tenant id")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid product id")
		return
	}

	if err := h.catalog.DeleteProduct(c.Request.Context(), user, tenantID, id); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.NoContent(c)
}

// Search handles GET /api/v1/tenants/:tenant_id/products/search
func (h *ProductHandler) Search(c *gin.Context) {
	tenantID, ok := parseIDParam(c, "tenant_id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid tenant id")
		return
	}

	page, size, _ := pagination(c)

	result, err := h.catalog.Search(c.Request.Context(), search.Params{
		TenantID: tenantID,
		Query:    c.Query("q"),
		SortBy:   c.Query("sort"),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, result)
}

// Suggest handles GET /api/v1/tenants/:tenant_id/products/suggest
func (h *ProductHandler) Suggest(c *gin.Context) {
	tenantID, ok := parseIDParam(c, "tenant_id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid tenant id")
		return
	}

	size, _ := strconv.Atoi(c.Query("size"))
	result, err := h.catalog.Suggest(c.Request.Context(), tenantID, c.Query("q"), size)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, result)
}

// Categories

// CreateCategory handles POST /api/v1/tenants/:tenant_id/categories
func (h *ProductHandler) CreateCategory(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}
	tenantID, ok := parseIDParam(c, "tenant_id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid tenant id")
		return
	}

	var category model.Category
	if err := c.ShouldBindJSON(&category); err != nil {
		utils.Error(c, utils.CodeInvalidParam, err.Error())
		return
	}
	category.ID = 0
	category.TenantID = tenantID

	if err := h.catalog.CreateCategory(c.Request.Context(), user, &category); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, category)
}

// ListCategories handles GET /api/v1/tenants/:tenant_id/categories
func (h *ProductHandler) ListCategories(c *gin.Context) {
	tenantID, ok := parseIDParam(c, "tenant_id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid tenant id")
		return
	}

	categories, err := h.catalog.ListCategories(c.Request.Context(), tenantID)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, categories)
}

// DeleteCategory handles DELETE /api/v1/tenants/:tenant_id/categories/:id
func (h *ProductHandler) DeleteCategory(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}
	tenantID, ok := parseIDParam(c, "tenant_id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid tenant id")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid category id")
		return
	}

	if err := h.catalog.DeleteCategory(c.Request.Context(), user, tenantID, id); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.NoContent(c)
}
