package cart

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tillworks/backend-pos/internal/pricing"
)

// Tender types supported at the till.
const (
	TenderCash = "cash"
	TenderCard = "card"
)

// Line is a cart entry with the price pinned at the moment it was added.
type Line struct {
	ID        uuid.UUID     `json:"id"`
	ProductID uuid.UUID     `json:"productId"`
	SKU       string        `json:"sku"`
	Name      string        `json:"name"`
	Qty       int           `json:"qty"`
	UnitPrice pricing.Money `json:"unitPrice"`
	Discount  pricing.Money `json:"discount"`
}

// Cart is an operator's in-progress sale. Revision increments on every
// mutation so a checkout started against an older revision can be detected.
type Cart struct {
	ID         uuid.UUID `json:"id"`
	OperatorID string    `json:"operatorId"`
	TenderType string    `json:"tenderType"`
	Lines      []Line    `json:"lines"`
	Revision   int64     `json:"revision"`
	CustomerID string    `json:"customerId,omitempty"`
	HeldAt     time.Time `json:"heldAt,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Items converts cart lines into pricing items.
func (c *Cart) Items() []pricing.Item {
	items := make([]pricing.Item, 0, len(c.Lines))
	for _, l := range c.Lines {
		items = append(items, pricing.Item{Qty: l.Qty, UnitPrice: l.UnitPrice, Discount: l.Discount})
	}
	return items
}

// Store tracks the active cart per operator plus carts parked on hold.
type Store struct {
	mu     sync.Mutex
	active map[string]*Cart
	held   map[uuid.UUID]*Cart
}

// NewStore constructs an empty cart store.
func NewStore() *Store {
	return &Store{
		active: make(map[string]*Cart),
		held:   make(map[uuid.UUID]*Cart),
	}
}

func (s *Store) ensure(operatorID string, now time.Time) *Cart {
	c, ok := s.active[operatorID]
	if !ok {
		c = &Cart{
			ID:         uuid.New(),
			OperatorID: operatorID,
			TenderType: TenderCash,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		s.active[operatorID] = c
	}
	return c
}

// WithActive runs fn against the operator's active cart under the store lock,
// creating the cart if needed. When fn reports a mutation the revision bumps.
func (s *Store) WithActive(operatorID string, now time.Time, fn func(*Cart) (bool, error)) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.ensure(operatorID, now)
	mutated, err := fn(c)
	if err != nil {
		return Cart{}, err
	}
	if mutated {
		c.Revision++
		c.UpdatedAt = now
	}
	return cloneCart(c), nil
}

// Replace swaps the operator's active cart for a fresh one and returns the old.
func (s *Store) Replace(operatorID string, now time.Time) (old *Cart, fresh Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old = s.active[operatorID]
	c := &Cart{
		ID:         uuid.New(),
		OperatorID: operatorID,
		TenderType: TenderCash,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.active[operatorID] = c
	return old, cloneCart(c)
}

// Hold parks the operator's active cart and starts a fresh one.
func (s *Store) Hold(operatorID string, now time.Time) (Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.active[operatorID]
	if !ok || len(c.Lines) == 0 {
		return Cart{}, false
	}
	c.HeldAt = now
	c.Revision++
	c.UpdatedAt = now
	s.held[c.ID] = c
	delete(s.active, operatorID)
	return cloneCart(c), true
}

// Resume reinstates a held cart as the operator's active cart. Any current
// active cart with lines is pushed to hold so nothing is silently dropped.
func (s *Store) Resume(operatorID string, heldID uuid.UUID, now time.Time) (Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	held, ok := s.held[heldID]
	if !ok {
		return Cart{}, false
	}
	if current, exists := s.active[operatorID]; exists && len(current.Lines) > 0 {
		current.HeldAt = now
		s.held[current.ID] = current
	}
	delete(s.held, heldID)
	held.OperatorID = operatorID
	held.HeldAt = time.Time{}
	held.Revision++
	held.UpdatedAt = now
	s.active[operatorID] = held
	return cloneCart(held), true
}

// Held lists the parked carts, oldest first.
func (s *Store) Held() []Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Cart, 0, len(s.held))
	for _, c := range s.held {
		out = append(out, cloneCart(c))
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].HeldAt.Before(out[j-1].HeldAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Active returns a copy of the operator's active cart without creating one.
func (s *Store) Active(operatorID string) (Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.active[operatorID]
	if !ok {
		return Cart{}, false
	}
	return cloneCart(c), true
}

func cloneCart(c *Cart) Cart {
	cp := *c
	cp.Lines = append([]Line(nil), c.Lines...)
	return cp
}
