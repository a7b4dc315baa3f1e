package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tillworks/backend-pos/internal/common"
	"github.com/tillworks/backend-pos/internal/pricing"
)

// Handler exposes catalog endpoints for the terminal.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validate
	if v == nil {
		v = validator.New()
	}
	return &Handler{service: cfg.Service, validate: v}
}

type createProductRequest struct {
	SKU               string `json:"sku" validate:"required,alphanum,max=32"`
	Barcode           string `json:"barcode" validate:"omitempty,numeric,max=14"`
	Name              string `json:"name" validate:"required,max=120"`
	Category          string `json:"category" validate:"omitempty,max=60"`
	CostPrice         int64  `json:"costPrice" validate:"gte=0"`
	CashPrice         int64  `json:"cashPrice" validate:"required,gt=0"`
	CardPrice         int64  `json:"cardPrice" validate:"omitempty,gt=0"`
	TaxRateBps        int    `json:"taxRateBps" validate:"gte=0,lte=10000"`
	Stock             int    `json:"stock" validate:"gte=0"`
	AgeRestricted     bool   `json:"ageRestricted"`
	LowStockThreshold int    `json:"lowStockThreshold" validate:"gte=0"`
}

type updateProductRequest struct {
	Name              *string `json:"name" validate:"omitempty,max=120"`
	Category          *string `json:"category" validate:"omitempty,max=60"`
	CostPrice         *int64  `json:"costPrice" validate:"omitempty,gte=0"`
	CashPrice         *int64  `json:"cashPrice" validate:"omitempty,gt=0"`
	CardPrice         *int64  `json:"cardPrice" validate:"omitempty,gt=0"`
	TaxRateBps        *int    `json:"taxRateBps" validate:"omitempty,gte=0,lte=10000"`
	AgeRestricted     *bool   `json:"ageRestricted"`
	LowStockThreshold *int    `json:"lowStockThreshold" validate:"omitempty,gte=0"`
}

type adjustStockRequest struct {
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"omitempty,max=200"`
}

// Products handles GET /api/v1/products with filters and pagination.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	params, err := h.service.ParseListParams(r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}
	result, err := h.service.List(r.Context(), params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(result.Total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       result.Items,
		"pagination": common.Pagination{Page: result.Page, PerPage: result.Limit, TotalItems: result.Total},
	})
}

// Categories handles GET /api/v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.service.Categories(r.Context())})
}

// ProductDetail handles GET /api/v1/products/{id}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

// Lookup handles GET /api/v1/products/lookup?code= for scanner input.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	product, err := h.service.Lookup(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

// LowStock handles GET /api/v1/products/low-stock.
func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	items := h.service.LowStock(r.Context())
	if items == nil {
		items = []Product{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// Create handles POST /api/v1/products.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid product payload", validationDetails(err))
		return
	}
	product, err := h.service.Create(r.Context(), CreateInput{
		SKU:               req.SKU,
		Barcode:           req.Barcode,
		Name:              req.Name,
		Category:          req.Category,
		CostPrice:         pricing.Money(req.CostPrice),
		CashPrice:         pricing.Money(req.CashPrice),
		CardPrice:         pricing.Money(req.CardPrice),
		TaxRateBps:        req.TaxRateBps,
		Stock:             req.Stock,
		AgeRestricted:     req.AgeRestricted,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": product})
}

// Update handles PATCH /api/v1/products/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var req updateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid product payload", validationDetails(err))
		return
	}
	in := UpdateInput{
		Name:              req.Name,
		Category:          req.Category,
		AgeRestricted:     req.AgeRestricted,
		LowStockThreshold: req.LowStockThreshold,
	}
	if req.CostPrice != nil {
		price := pricing.Money(*req.CostPrice)
		in.CostPrice = &price
	}
	if req.CashPrice != nil {
		price := pricing.Money(*req.CashPrice)
		in.CashPrice = &price
	}
	if req.CardPrice != nil {
		price := pricing.Money(*req.CardPrice)
		in.CardPrice = &price
	}
	in.TaxRateBps = req.TaxRateBps
	product, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

// AdjustStock handles POST /api/v1/products/{id}/stock.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid stock payload", validationDetails(err))
		return
	}
	product, err := h.service.AdjustStock(r.Context(), id, req.Delta)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return map[string]any{"fields": fields}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code := appErr.Code
		if code == "" {
			code = "INTERNAL"
		}
		message := appErr.Message
		if message == "" {
			message = "internal error"
		}
		common.JSONError(w, status, code, message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
