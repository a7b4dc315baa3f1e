package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tillworks/backend-pos/internal/catalog"
)

type productsResponse struct {
	Data       []catalog.Product `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		TotalItems int `json:"total_items"`
	} `json:"pagination"`
}

type productResponse struct {
	Data catalog.Product `json:"data"`
}

func newTestService(t *testing.T, products ...catalog.Product) (*catalog.Service, *catalog.Store) {
	t.Helper()
	store := catalog.NewStore()
	for _, p := range products {
		require.NoError(t, store.Insert(p))
	}
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Store: store,
		Now:   func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return svc, store
}

func seedProduct(name, sku, barcode string, cash, card int64, stock int) catalog.Product {
	return catalog.Product{
		ID:        uuid.New(),
		SKU:       sku,
		Barcode:   barcode,
		Name:      name,
		Category:  "Beverages",
		CashPrice: cash,
		CardPrice: card,
		Stock:     stock,
	}
}

func TestProductsListFiltersAndPaginates(t *testing.T) {
	svc, _ := newTestService(t,
		seedProduct("Latte", "BEV001", "0001", 450, 475, 20),
		seedProduct("Espresso", "BEV002", "0002", 300, 320, 15),
		seedProduct("Croissant", "BAK001", "0003", 350, 370, 8),
	)
	handler := catalog.NewHandler(catalog.HandlerConfig{Service: svc})

	req := httptest.NewRequest(http.MethodGet, "/products?q=latte", nil)
	rr := httptest.NewRecorder()
	handler.Products(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp productsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "Latte", resp.Data[0].Name)
	require.Equal(t, "1", rr.Header().Get("X-Total-Count"))
}

func TestLookupResolvesSKUAndBarcode(t *testing.T) {
	svc, _ := newTestService(t, seedProduct("Latte", "BEV001", "12345", 450, 475, 20))
	handler := catalog.NewHandler(catalog.HandlerConfig{Service: svc})

	for _, code := range []string{"BEV001", "bev001", "12345"} {
		req := httptest.NewRequest(http.MethodGet, "/products/lookup?code="+code, nil)
		rr := httptest.NewRecorder()
		handler.Lookup(rr, req)
		require.Equal(t, http.StatusOK, rr.Code, "code %q", code)
		var resp productResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Equal(t, "BEV001", resp.Data.SKU)
	}

	req := httptest.NewRequest(http.MethodGet, "/products/lookup?code=missing", nil)
	rr := httptest.NewRecorder()
	handler.Lookup(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateProductValidatesPayload(t *testing.T) {
	svc, _ := newTestService(t)
	handler := catalog.NewHandler(catalog.HandlerConfig{Service: svc})

	body := `{"sku":"BEV001","name":"Latte","costPrice":150,"cashPrice":450,"cardPrice":475,"taxRateBps":800,"stock":20}`
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.Create(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp productResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.EqualValues(t, 150, resp.Data.CostPrice)
	require.Equal(t, 800, resp.Data.TaxRateBps)

	req = httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{"name":"Nameless"}`))
	rr = httptest.NewRecorder()
	handler.Create(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "VALIDATION")
}

func TestCreateProductRejectsDuplicateSKU(t *testing.T) {
	svc, _ := newTestService(t, seedProduct("Latte", "BEV001", "", 450, 475, 20))
	handler := catalog.NewHandler(catalog.HandlerConfig{Service: svc})

	body := `{"sku":"BEV001","name":"Other Latte","cashPrice":500}`
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.Create(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestAdjustStockClampsAtZero(t *testing.T) {
	product := seedProduct("Latte", "BEV001", "", 450, 475, 3)
	svc, store := newTestService(t, product)
	handler := catalog.NewHandler(catalog.HandlerConfig{Service: svc})

	router := chi.NewRouter()
	router.Post("/products/{id}/stock", handler.AdjustStock)

	req := httptest.NewRequest(http.MethodPost, "/products/"+product.ID.String()+"/stock", strings.NewReader(`{"delta":-10}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp productResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 0, resp.Data.Stock)

	stored, err := store.Get(product.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stored.Stock)
}

func TestLowStockUsesThreshold(t *testing.T) {
	low := seedProduct("Latte", "BEV001", "", 450, 475, 2)
	low.LowStockThreshold = 5
	fine := seedProduct("Espresso", "BEV002", "", 300, 320, 50)
	fine.LowStockThreshold = 5
	svc, _ := newTestService(t, low, fine)

	items := svc.LowStock(context.Background())
	require.Len(t, items, 1)
	require.Equal(t, "BEV001", items[0].SKU)
}

func TestPriceFallsBackToCash(t *testing.T) {
	p := seedProduct("Latte", "BEV001", "", 450, 475, 1)
	require.EqualValues(t, 475, p.Price("card"))
	require.EqualValues(t, 450, p.Price("cash"))
	require.EqualValues(t, 450, p.Price("unknown"))
}
