package catalog

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tillworks/backend-pos/internal/pricing"
)

// Product is a sellable item on the terminal. Prices are minor units (cents).
// TaxRateBps is stored per product; the register currently applies a flat
// rate at checkout.
type Product struct {
	ID                uuid.UUID     `json:"id"`
	SKU               string        `json:"sku"`
	Barcode           string        `json:"barcode,omitempty"`
	Name              string        `json:"name"`
	Category          string        `json:"category"`
	CostPrice         pricing.Money `json:"costPrice"`
	CashPrice         pricing.Money `json:"cashPrice"`
	CardPrice         pricing.Money `json:"cardPrice"`
	TaxRateBps        int           `json:"taxRateBps"`
	Stock             int           `json:"stock"`
	AgeRestricted     bool          `json:"ageRestricted"`
	LowStockThreshold int           `json:"lowStockThreshold"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Price returns the unit price for the given tender type. Card carries a
// surcharge baked into CardPrice; any unknown tender falls back to cash.
func (p Product) Price(tender string) pricing.Money {
	if strings.EqualFold(strings.TrimSpace(tender), "card") && p.CardPrice > 0 {
		return p.CardPrice
	}
	return p.CashPrice
}

// ErrNotFound indicates the product does not exist in the store.
var ErrNotFound = errors.New("catalog: product not found")

// ErrDuplicateSKU indicates another product already owns the SKU or barcode.
var ErrDuplicateSKU = errors.New("catalog: sku or barcode already in use")

// Store keeps products in memory with SKU and barcode indexes. Iteration
// order is insertion order so listings stay stable across requests.
type Store struct {
	mu        sync.RWMutex
	byID      map[uuid.UUID]*Product
	order     []uuid.UUID
	bySKU     map[string]uuid.UUID
	byBarcode map[string]uuid.UUID
}

// NewStore constructs an empty product store.
func NewStore() *Store {
	return &Store{
		byID:      make(map[uuid.UUID]*Product),
		bySKU:     make(map[string]uuid.UUID),
		byBarcode: make(map[string]uuid.UUID),
	}
}

// Insert adds a product. The SKU and barcode must be unused.
func (s *Store) Insert(p Product) error {
	sku := normalizeCode(p.SKU)
	if sku == "" {
		return errors.New("catalog: sku is required")
	}
	barcode := normalizeCode(p.Barcode)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bySKU[sku]; exists {
		return ErrDuplicateSKU
	}
	if barcode != "" {
		if _, exists := s.byBarcode[barcode]; exists {
			return ErrDuplicateSKU
		}
	}
	cp := p
	s.byID[cp.ID] = &cp
	s.order = append(s.order, cp.ID)
	s.bySKU[sku] = cp.ID
	if barcode != "" {
		s.byBarcode[barcode] = cp.ID
	}
	return nil
}

// Get returns a copy of the product by ID.
func (s *Store) Get(id uuid.UUID) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return *p, nil
}

// GetByCode resolves either a SKU or a barcode to a product.
func (s *Store) GetByCode(code string) (Product, error) {
	code = normalizeCode(code)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.bySKU[code]; ok {
		return *s.byID[id], nil
	}
	if id, ok := s.byBarcode[code]; ok {
		return *s.byID[id], nil
	}
	return Product{}, ErrNotFound
}

// All returns copies of every product in insertion order.
func (s *Store) All() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

// Update applies mutate to the stored product under the write lock.
func (s *Store) Update(id uuid.UUID, mutate func(*Product)) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	mutate(p)
	return *p, nil
}

// AdjustStock applies delta to the product's stock, clamping at zero. The
// returned underrun flag is true when the requested decrement exceeded the
// available stock.
func (s *Store) AdjustStock(id uuid.UUID, delta int) (Product, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return Product{}, false, ErrNotFound
	}
	next := p.Stock + delta
	underrun := false
	if next < 0 {
		next = 0
		underrun = true
	}
	p.Stock = next
	return *p, underrun, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
