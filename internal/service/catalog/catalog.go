package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"marketplace/internal/cache"
	"marketplace/internal/model"
	"marketplace/internal/repository"
	"marketplace/internal/search"
	"marketplace/pkg/log"
	"marketplace/pkg/utils"
)

const (
	productCacheTTL = 30 * time.Minute

	// viewCountPrefix buffers product views in the cache; the stats
	// task flushes them to the database in bulk.
	viewCountPrefix = "views:product:"
)

func productKey(id uint) string { return fmt.Sprintf("product:%d", id) }

func tenantListPrefix(tenantID uint) string { return fmt.Sprintf("products:tenant:%d:", tenantID) }

// Service implements the product catalog.
type Service struct {
	products repository.ProductRepository
	cache    *cache.Cache
	search   *search.Service // nil when search is disabled
}

// NewService creates a catalog service.
func NewService(products repository.ProductRepository, c *cache.Cache, s *search.Service) *Service {
	return &Service{products: products, cache: c, search: s}
}

// CreateProduct adds a product to the caller's shop.
func (s *Service) CreateProduct(ctx context.Context, user *model.User, product *model.Product) error {
	if !user.CanManageTenant(product.TenantID) {
		return utils.ErrForbidden
	}
	if product.Status == "" {
		product.Status = model.ProductStatusDraft
	}

	if err := s.products.Create(ctx, product); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.NewErrorf(utils.CodeConflict, "SKU %q already exists", product.SKU)
		}
		return err
	}

	s.invalidate(ctx, product)
	s.reindex(ctx, product)
	return nil
}

// GetProduct loads a product through the cache and buffers the view.
func (s *Service) GetProduct(ctx context.Context, tenantID, id uint, countView bool) (*model.Product, error) {
	var product model.Product
	if err := s.cache.Get(ctx, productKey(id), &product); err != nil {
		fresh, err := s.products.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, utils.ErrProductNotFound
			}
			return nil, err
		}
		product = *fresh
		if err := s.cache.Set(ctx, productKey(id), product, productCacheTTL); err != nil {
			log.WithError(err).WithField("product_id", id).Debug("Product cache fill failed")
		}
	}

	if tenantID > 0 && product.TenantID != tenantID {
		return nil, utils.ErrProductNotFound
	}

	if countView {
		if _, err := s.cache.Increment(ctx, fmt.Sprintf("%s%d", viewCountPrefix, id), 1); err != nil {
			log.WithError(err).WithField("product_id", id).Debug("View counter increment failed")
		}
	}
	return &product, nil
}

// ListProducts lists products with a short-lived cache per filter.
func (s *Service) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]model.Product, int64, error) {
	type cached struct {
		Products []model.Product `json:"products"`
		Total    int64           `json:"total"`
	}

	key := fmt.Sprintf("%slist:%d:%s:%v:%s:%d:%d",
		tenantListPrefix(filter.TenantID), filter.CategoryID, filter.Status,
		filter.Featured, filter.Search, filter.Offset, filter.Limit)

	var hit cached
	if err := s.cache.Get(ctx, key, &hit); err == nil {
		return hit.Products, hit.Total, nil
	}

	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	if err := s.cache.Set(ctx, key, cached{Products: products, Total: total}, 5*time.Minute); err != nil {
		log.WithError(err).Debug("Product list cache fill failed")
	}
	return products, total, nil
}

// UpdateProduct saves changes made by a shop manager.
func (s *Service) UpdateProduct(ctx context.Context, user *model.User, product *model.Product) error {
	if !user.CanManageTenant(product.TenantID) {
		return utils.ErrForbidden
	}

	if err := s.products.Update(ctx, product); err != nil {
		return err
	}

	s.invalidate(ctx, product)
	s.reindex(ctx, product)
	return nil
}

// DeleteProduct removes a product and all its derived state.
func (s *Service) DeleteProduct(ctx context.Context, user *model.User, tenantID, id uint) error {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrProductNotFound
		}
		return err
	}
	if product.TenantID != tenantID {
		return utils.ErrProductNotFound
	}
	if !user.CanManageTenant(tenantID) {
		return utils.ErrForbidden
	}

	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, product)
	if s.search != nil {
		search.LogIndexFailure("delete", id, s.search.DeleteProduct(ctx, id))
	}
	return nil
}

// Search runs a full-text query; falls back to the database LIKE
// listing when search is disabled.
func (s *Service) Search(ctx context.Context, p search.Params) (*search.Result, error) {
	if s.search != nil {
		return s.search.Search(ctx, p)
	}

	products, total, err := s.products.List(ctx, repository.ProductFilter{
		TenantID: p.TenantID,
		Status:   model.ProductStatusActive,
		Search:   p.Query,
		Offset:   (p.Page - 1) * p.PageSize,
		Limit:    p.PageSize,
	})
	if err != nil {
		return nil, err
	}

	result := &search.Result{Total: total, Page: p.Page, PageSize: p.PageSize}
	for i := range products {
		result.Products = append(result.Products, map[string]interface{}{
			"id":         products[i].ID,
			"name":       products[i].Name,
			"base_price": products[i].BasePrice,
		})
	}
	return result, nil
}

// Suggest returns prefix completions over active product names; falls
// back to a database LIKE listing when search is disabled.
func (s *Service) Suggest(ctx context.Context, tenantID uint, prefix string, size int) (*search.Result, error) {
	if size < 1 || size > 20 {
		size = 5
	}
	if s.search != nil {
		return s.search.Suggest(ctx, tenantID, prefix, size)
	}

	products, total, err := s.products.List(ctx, repository.ProductFilter{
		TenantID: tenantID,
		Status:   model.ProductStatusActive,
		Search:   prefix,
		Limit:    size,
	})
	if err != nil {
		return nil, err
	}

	result := &search.Result{Total: total, Page: 1, PageSize: size}
	for i := range products {
		result.Products = append(result.Products, map[string]interface{}{
			"id":         products[i].ID,
			"name":       products[i].Name,
			"base_price": products[i].BasePrice,
		})
	}
	return result, nil
}

// Categories

func (s *Service) CreateCategory(ctx context.Context, user *model.User, category *model.Category) error {
	if !user.CanManageTenant(category.TenantID) {
		return utils.ErrForbidden
	}
	return s.products.CreateCategory(ctx, category)
}

func (s *Service) ListCategories(ctx context.Context, tenantID uint) ([]model.Category, error) {
	return s.products.ListCategories(ctx, tenantID)
}

func (s *Service) UpdateCategory(ctx context.Context, user *model.User, category *model.Category) error {
	if !user.CanManageTenant(category.TenantID) {
		return utils.ErrForbidden
	}
	return s.products.UpdateCategory(ctx, category)
}

func (s *Service) DeleteCategory(ctx context.Context, user *model.User, tenantID, id uint) error {
	category, err := s.products.GetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewError(utils.CodeNotFound, "category not found")
		}
		return err
	}
	if category.TenantID != tenantID || !user.CanManageTenant(tenantID) {
		return utils.ErrForbidden
	}
	return s.products.DeleteCategory(ctx, id)
}

func (s *Service) invalidate(ctx context.Context, product *model.Product) {
	if err := s.cache.Delete(ctx, productKey(product.ID)); err != nil {
		log.WithError(err).WithField("product_id", product.ID).Debug("Product cache invalidation failed")
	}
	if err := s.cache.DeletePrefix(ctx, tenantListPrefix(product.TenantID)); err != nil {
		log.WithError(err).WithField("tenant_id", product.TenantID).Debug("Product list cache invalidation failed")
	}
}

func (s *Service) reindex(ctx context.Context, product *model.Product) {
	if s.search == nil {
		return
	}
	search.LogIndexFailure("index", product.ID, s.search.IndexProduct(ctx, search.NewProductDoc(product)))
}
