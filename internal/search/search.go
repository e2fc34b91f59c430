package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"

	"marketplace/internal/config"
	"marketplace/internal/model"
	"marketplace/pkg/log"
)

// ProductDoc search index document for a product
type ProductDoc struct {
	ID               uint     `json:"id"`
	TenantID         uint     `json:"tenant_id"`
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	ShortDescription string   `json:"short_description,omitempty"`
	CategoryID       uint     `json:"category_id"`
	BasePrice        float64  `json:"base_price"`
	DiscountPrice    *float64 `json:"discount_price,omitempty"`
	SKU              string   `json:"sku"`
	Status           string   `json:"status"`
	IsFeatured       bool     `json:"is_featured"`
	StockQuantity    int      `json:"stock_quantity"`
	SalesCount       int      `json:"sales_count"`
	CreatedAt        string   `json:"created_at"`
}

// NewProductDoc build the index document from a product row
func NewProductDoc(p *model.Product) ProductDoc {
	return ProductDoc{
		ID:               p.ID,
		TenantID:         p.TenantID,
		Name:             p.Name,
		Description:      p.Description,
		ShortDescription: p.ShortDescription,
		CategoryID:       p.CategoryID,
		BasePrice:        p.BasePrice,
		DiscountPrice:    p.DiscountPrice,
		SKU:              p.SKU,
		Status:           string(p.Status),
		IsFeatured:       p.IsFeatured,
		StockQuantity:    p.StockQuantity,
		SalesCount:       p.SalesCount,
		CreatedAt:        p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Params search request parameters
type Params struct {
	TenantID   uint
	Query      string
	CategoryID uint
	SortBy     string // relevance, price_asc, price_desc, newest
	Page       int
	PageSize   int
}

// Result search response
type Result struct {
	Total    int64                    `json:"total"`
	Page     int                      `json:"page"`
	PageSize int                      `json:"page_size"`
	Products []map[string]interface{} `json:"products"`
}

// Service full-text product search backed by Elasticsearch. Index
// creation is deferred to first use so the process can boot while the
// cluster is still coming up.
type Service struct {
	es    *elasticsearch.Client
	index string

	mu           sync.Mutex
	indexCreated bool
}

// New creates a search service
func New(cfg config.SearchConfig) (*Service, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &Service{
		es:    es,
		index: cfg.ProductIndex,
	}, nil
}

const productMapping = `{
	"mappings": {
		"properties": {
			"id": {"type": "integer"},
			"tenant_id": {"type": "integer"},
			"name": {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"description": {"type": "text"},
			"short_description": {"type": "text"},
			"category_id": {"type": "integer"},
			"base_price": {"type": "float"},
			"discount_price": {"type": "float"},
			"sku": {"type": "keyword"},
			"status": {"type": "keyword"},
			"is_featured": {"type": "boolean"},
			"stock_quantity": {"type": "integer"},
			"sales_count": {"type": "integer"},
			"created_at": {"type": "date"}
		}
	}
}`

// ensureIndex create the product index on first use
func (s *Service) ensureIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexCreated {
		return nil
	}

	res, err := s.es.Indices.Exists([]string{s.index}, s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		createRes, err := s.es.Indices.Create(
			s.index,
			s.es.Indices.Create.WithContext(ctx),
			s.es.Indices.Create.WithBody(bytes.NewReader([]byte(productMapping))),
		)
		if err != nil {
			return err
		}
		defer createRes.Body.Close()
		if createRes.IsError() {
			return fmt.Errorf("failed to create index %s: %s", s.index, createRes.String())
		}
	}

	s.indexCreated = true
	return nil
}

// IndexProduct index or reindex a single product document
func (s *Service) IndexProduct(ctx context.Context, doc ProductDoc) error {
	if err := s.ensureIndex(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	res, err := s.es.Index(
		s.index,
		bytes.NewReader(body),
		s.es.Index.WithContext(ctx),
		s.es.Index.WithDocumentID(strconv.FormatUint(uint64(doc.ID), 10)),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to index product %d: %s", doc.ID, res.String())
	}
	return nil
}

// DeleteProduct remove a product document from the index
func (s *Service) DeleteProduct(ctx context.Context, productID uint) error {
	res, err := s.es.Delete(
		s.index,
		strconv.FormatUint(uint64(productID), 10),
		s.es.Delete.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	// 404 means the document was never indexed; not an error for callers
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("failed to delete product %d from index: %s", productID, res.String())
	}
	return nil
}

// Search run a product search with tenant/status filters and sorting
func (s *Service) Search(ctx context.Context, p Params) (*Result, error) {
	if err := s.ensureIndex(ctx); err != nil {
		return nil, err
	}

	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 100 {
		p.PageSize = 20
	}

	must := []map[string]interface{}{
		{"term": map[string]interface{}{"tenant_id": p.TenantID}},
		{"term": map[string]interface{}{"status": "active"}},
	}
	if p.Query != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     p.Query,
				"fields":    []string{"name^3", "description^2", "short_description"},
				"fuzziness": "AUTO",
			},
		})
	}
	if p.CategoryID > 0 {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"category_id": p.CategoryID},
		})
	}

	var sort []interface{}
	switch p.SortBy {
	case "price_asc":
		sort = append(sort, map[string]interface{}{"base_price": "asc"})
	case "price_desc":
		sort = append(sort, map[string]interface{}{"base_price": "desc"})
	case "newest":
		sort = append(sort, map[string]interface{}{"created_at": "desc"})
	default:
		if p.Query != "" {
			sort = append(sort, "_score")
		} else {
			sort = append(sort, map[string]interface{}{"created_at": "desc"})
		}
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
		"sort": sort,
		"from": (p.Page - 1) * p.PageSize,
		"size": p.PageSize,
	}

	return s.runSearch(ctx, body, p.Page, p.PageSize)
}

// Suggest prefix completion over product names
func (s *Service) Suggest(ctx context.Context, tenantID uint, prefix string, size int) (*Result, error) {
	if err := s.ensureIndex(ctx); err != nil {
		return nil, err
	}
	if size < 1 || size > 20 {
		size = 5
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []map[string]interface{}{
					{"term": map[string]interface{}{"tenant_id": tenantID}},
					{"term": map[string]interface{}{"status": "active"}},
					{"match_phrase_prefix": map[string]interface{}{"name": prefix}},
				},
			},
		},
		"size": size,
	}

	return s.runSearch(ctx, body, 1, size)
}

func (s *Service) runSearch(ctx context.Context, body map[string]interface{}, page, pageSize int) (*Result, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search failed: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	result := &Result{
		Total:    parsed.Hits.Total.Value,
		Page:     page,
		PageSize: pageSize,
		Products: make([]map[string]interface{}, 0, len(parsed.Hits.Hits)),
	}
	for _, hit := range parsed.Hits.Hits {
		result.Products = append(result.Products, hit.Source)
	}
	return result, nil
}

// Health ping the cluster
func (s *Service) Health(ctx context.Context) error {
	res, err := s.es.Ping(s.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.String())
	}
	return nil
}

// LogIndexFailure helper for best-effort index maintenance on the write
// path: indexing failures are logged, never surfaced.
func LogIndexFailure(op string, productID uint, err error) {
	if err == nil {
		return
	}
	log.WithFields(map[string]interface{}{
		"op":         op,
		"product_id": productID,
		"error":      err.Error(),
	}).Warn("Search index maintenance failed")
}
