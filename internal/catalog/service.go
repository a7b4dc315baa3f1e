package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tillworks/backend-pos/internal/common"
	"github.com/tillworks/backend-pos/internal/obs"
	"github.com/tillworks/backend-pos/internal/pricing"
)

// Service orchestrates product lookups and stock management.
type Service struct {
	store        *Store
	logger       zerolog.Logger
	now          func() time.Time
	defaultPage  int
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        *Store
	Logger       zerolog.Logger
	Now          func() time.Time
	DefaultPage  int
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	Page     int
	Limit    int
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []Product
	Total int
	Page  int
	Limit int
}

// CreateInput carries the fields for a new product.
type CreateInput struct {
	SKU               string
	Barcode           string
	Name              string
	Category          string
	CostPrice         pricing.Money
	CashPrice         pricing.Money
	CardPrice         pricing.Money
	TaxRateBps        int
	Stock             int
	AgeRestricted     bool
	LowStockThreshold int
}

// UpdateInput carries optional product mutations; nil fields are untouched.
type UpdateInput struct {
	Name              *string
	Category          *string
	CostPrice         *pricing.Money
	CashPrice         *pricing.Money
	CardPrice         *pricing.Money
	TaxRateBps        *int
	AgeRestricted     *bool
	LowStockThreshold *int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	defaultPage := cfg.DefaultPage
	if defaultPage < 1 {
		defaultPage = 1
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 50
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 200
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		store:        cfg.Store,
		logger:       cfg.Logger,
		now:          now,
		defaultPage:  defaultPage,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{
		Page:  s.defaultPage,
		Limit: s.defaultLimit,
	}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Category = strings.TrimSpace(values.Get("category"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}

	limit := s.defaultLimit
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		limit = l
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	params.Limit = limit
	return params, nil
}

// List returns the filtered product page in insertion order.
func (s *Service) List(_ context.Context, params ListParams) (ProductListResult, error) {
	all := s.store.All()
	filtered := make([]Product, 0, len(all))
	q := strings.ToLower(params.Query)
	for _, p := range all {
		if params.Category != "" && !strings.EqualFold(p.Category, params.Category) {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.SKU), q) &&
			!strings.Contains(strings.ToLower(p.Barcode), q) {
			continue
		}
		filtered = append(filtered, p)
	}
	total := len(filtered)
	start := (params.Page - 1) * params.Limit
	if start > total {
		start = total
	}
	end := start + params.Limit
	if end > total {
		end = total
	}
	return ProductListResult{
		Items: filtered[start:end],
		Total: total,
		Page:  params.Page,
		Limit: params.Limit,
	}, nil
}

// Categories returns the distinct product categories sorted by name.
func (s *Service) Categories(_ context.Context) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range s.store.All() {
		cat := strings.TrimSpace(p.Category)
		if cat == "" {
			continue
		}
		if _, ok := seen[cat]; ok {
			continue
		}
		seen[cat] = struct{}{}
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// Get returns the product by ID.
func (s *Service) Get(_ context.Context, id uuid.UUID) (Product, error) {
	p, err := s.store.Get(id)
	if err != nil {
		return Product{}, notFound(err)
	}
	return p, nil
}

// Lookup resolves a scanned SKU or barcode to a product.
func (s *Service) Lookup(_ context.Context, code string) (Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Product{}, badRequest("code", "code is required", nil)
	}
	p, err := s.store.GetByCode(code)
	if err != nil {
		return Product{}, notFound(err)
	}
	return p, nil
}

// LowStock returns products at or below their low stock threshold.
func (s *Service) LowStock(_ context.Context) []Product {
	var out []Product
	for _, p := range s.store.All() {
		if p.LowStockThreshold > 0 && p.Stock <= p.LowStockThreshold {
			out = append(out, p)
		}
	}
	return out
}

// Create validates and inserts a new product.
func (s *Service) Create(_ context.Context, in CreateInput) (Product, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Product{}, badRequest("name", "name is required", nil)
	}
	if in.CashPrice <= 0 {
		return Product{}, badRequest("cashPrice", "cashPrice must be positive", nil)
	}
	if in.CardPrice < 0 {
		return Product{}, badRequest("cardPrice", "cardPrice cannot be negative", nil)
	}
	if in.CostPrice < 0 {
		return Product{}, badRequest("costPrice", "costPrice cannot be negative", nil)
	}
	if in.TaxRateBps < 0 {
		return Product{}, badRequest("taxRateBps", "taxRateBps cannot be negative", nil)
	}
	if in.Stock < 0 {
		return Product{}, badRequest("stock", "stock cannot be negative", nil)
	}
	now := s.now().UTC()
	p := Product{
		ID:                uuid.New(),
		SKU:               normalizeCode(in.SKU),
		Barcode:           normalizeCode(in.Barcode),
		Name:              strings.TrimSpace(in.Name),
		Category:          strings.TrimSpace(in.Category),
		CostPrice:         in.CostPrice,
		CashPrice:         in.CashPrice,
		CardPrice:         in.CardPrice,
		TaxRateBps:        in.TaxRateBps,
		Stock:             in.Stock,
		AgeRestricted:     in.AgeRestricted,
		LowStockThreshold: in.LowStockThreshold,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if p.CardPrice == 0 {
		p.CardPrice = p.CashPrice
	}
	if err := s.store.Insert(p); err != nil {
		if errors.Is(err, ErrDuplicateSKU) {
			return Product{}, &common.AppError{
				Code:       "CONFLICT",
				Message:    "sku or barcode already in use",
				HTTPStatus: http.StatusConflict,
				Err:        err,
			}
		}
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

// Update applies partial mutations to an existing product.
func (s *Service) Update(_ context.Context, id uuid.UUID, in UpdateInput) (Product, error) {
	if in.CashPrice != nil && *in.CashPrice <= 0 {
		return Product{}, badRequest("cashPrice", "cashPrice must be positive", nil)
	}
	if in.CardPrice != nil && *in.CardPrice <= 0 {
		return Product{}, badRequest("cardPrice", "cardPrice must be positive", nil)
	}
	updated, err := s.store.Update(id, func(p *Product) {
		if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
			p.Name = strings.TrimSpace(*in.Name)
		}
		if in.Category != nil {
			p.Category = strings.TrimSpace(*in.Category)
		}
		if in.CostPrice != nil && *in.CostPrice >= 0 {
			p.CostPrice = *in.CostPrice
		}
		if in.CashPrice != nil {
			p.CashPrice = *in.CashPrice
		}
		if in.CardPrice != nil {
			p.CardPrice = *in.CardPrice
		}
		if in.TaxRateBps != nil && *in.TaxRateBps >= 0 {
			p.TaxRateBps = *in.TaxRateBps
		}
		if in.AgeRestricted != nil {
			p.AgeRestricted = *in.AgeRestricted
		}
		if in.LowStockThreshold != nil && *in.LowStockThreshold >= 0 {
			p.LowStockThreshold = *in.LowStockThreshold
		}
		p.UpdatedAt = s.now().UTC()
	})
	if err != nil {
		return Product{}, notFound(err)
	}
	return updated, nil
}

// AdjustStock applies a manual stock delta, clamping at zero. Clamped
// decrements are logged and counted as underruns but do not fail.
func (s *Service) AdjustStock(_ context.Context, id uuid.UUID, delta int) (Product, error) {
	p, underrun, err := s.store.AdjustStock(id, delta)
	if err != nil {
		return Product{}, notFound(err)
	}
	if underrun {
		if obs.StockUnderrunTotal != nil {
			obs.StockUnderrunTotal.Inc()
		}
		s.logger.Warn().
			Str("sku", p.SKU).
			Int("delta", delta).
			Msg("stock adjustment clamped at zero")
	}
	return p, nil
}

func notFound(err error) *common.AppError {
	return &common.AppError{
		Code:       "NOT_FOUND",
		Message:    "product not found",
		HTTPStatus: http.StatusNotFound,
		Err:        err,
	}
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}
