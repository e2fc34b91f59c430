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

// TenantHandler HTTP surface of shop management.
type TenantHandler struct {
	tenants repository.TenantRepository
	users   repository.UserRepository
}

// NewTenantHandler creates a tenant handler.
func NewTenantHandler(tenants repository.TenantRepository, users repository.UserRepository) *TenantHandler {
	return &TenantHandler{tenants: tenants, users: users}
}

type createTenantRequest struct {
	Name        string        `json:"name" binding:"required,max=255"`
	Slug        string        `json:"slug" binding:"required,max=255"`
	Domain      string        `json:"domain"`
	Description string        `json:"description"`
	LogoURL     string        `json:"logo_url"`
	Settings    model.JSONMap `json:"settings"`
}

// Create handles POST /api/v1/tenants. The caller becomes the shop owner.
func (h *TenantHandler) Create(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}

	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, utils.CodeInvalidParam, err.Error())
		return
	}

	if existing, err := h.tenants.GetByOwner(c.Request.Context(), user.ID); err == nil && existing != nil {
		utils.Error(c, utils.CodeConflict, "user already owns a shop")
		return
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Fail(c, err)
		return
	}

	tenant := &model.Tenant{
		Name:        req.Name,
		Slug:        req.Slug,
		Domain:      req.Domain,
		Description: req.Description,
		LogoURL:     req.LogoURL,
		OwnerID:     user.ID,
		Status:      model.TenantStatusTrial,
		Settings:    req.Settings,
	}
	if err := h.tenants.Create(c.Request.Context(), tenant); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.Error(c, utils.CodeConflict, "slug or domain already taken")
			return
		}
		utils.Fail(c, err)
		return
	}

	// Promote the owner so subsequent requests carry shop privileges.
	if user.Role == model.RoleCustomer {
		user.Role = model.RoleTenantOwner
		user.TenantID = &tenant.ID
		if err := h.users.Update(c.Request.Context(), user); err != nil {
			utils.Fail(c, err)
			return
		}
	}
	utils.Created(c, tenant)
}

// Get handles GET /api/v1/tenants/:tenant_id
func (h *TenantHandler) Get(c *gin.Context) {
	tenantID, ok := parseIDParam(c, "tenant_id")
	if !ok {
		utils.Error(c, utils.CodeInvalidParam, "invalid tenant id")
		return
	}

	tenant, err := h.tenants.GetByID(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Fail(c, utils.ErrTenantNotFound)
			return
		}
		utils.Fail(c, err)
		return
	}
	utils.Success(c, tenant)
}

// GetBySlug handles GET /api/v1/shops/:slug
func (h *TenantHandler) GetBySlug(c *gin.Context) {
	slug := c.Param("slug")
	if slug == "" {
		utils.Error(c, utils.CodeInvalidParam, "invalid shop slug")
		return
	}

	tenant, err := h.tenants.GetBySlug(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Fail(c, utils.ErrTenantNotFound)
			return
		}
		utils.Fail(c, err)
		return
	}
	if !tenant.IsActive() {
		utils.Fail(c, utils.ErrTenantNotFound)
		return
	}
	utils.Success(c, tenant)
}

type updateTenantRequest struct {
	Name        string        `json:"name"`
	Domain      string        `json:"domain"`
	Description string        `json:"description"`
	LogoURL     string        `json:"logo_url"`
	Settings    model.JSONMap `json:"settings"`
}

// Update handles PUT /api/v1/tenants/:tenant_id
func (h *TenantHandler) Update(c *gin.Context) {
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

	tenant, err := h.tenants.GetByID(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Fail(c, utils.ErrTenantNotFound)
			return
		}
		utils.Fail(c, err)
		return
	}
	if !user.CanManageTenant(tenantID) {
		utils.Fail(c, utils.ErrForbidden)
		return
	}

	var req updateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, utils.CodeInvalidParam, err.Error())
		return
	}
	if req.Name != "" {
		tenant.Name = req.Name
	}
	if req.Domain != "" {
		tenant.Domain = req.Domain
	}
	if req.Description != "" {
		tenant.Description = req.Description
	}
	if req.LogoURL != "" {
		tenant.LogoURL = req.LogoURL
	}
	if req.Settings != nil {
		tenant.Settings = req.Settings
	}

	if err := h.tenants.Update(c.Request.Context(), tenant); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, tenant)
}

// List handles GET /api/v1/admin/tenants
func (h *TenantHandler) List(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, "unauthorized")
		return
	}
	if !user.IsSuperAdmin() {
		utils.Fail(c, utils.ErrForbidden)
		return
	}

	page, size, offset := pagination(c)
	tenants, total, err := h.tenants.List(c.Request.Context(), offset, size)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.SuccessPage(c, tenants, total, page, size)
}
