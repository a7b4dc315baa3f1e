package customer

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tillworks/backend-pos/internal/pricing"
)

// ErrNotFound indicates no customer with the given ID.
var ErrNotFound = errors.New("customer: not found")

// ErrDuplicatePhone indicates the phone number is already registered.
var ErrDuplicatePhone = errors.New("customer: phone already registered")

// Customer is a loyalty program member.
type Customer struct {
	ID            uuid.UUID     `json:"id"`
	Name          string        `json:"name"`
	Phone         string        `json:"phone,omitempty"`
	Email         string        `json:"email,omitempty"`
	LoyaltyPoints int64         `json:"loyaltyPoints"`
	StoreCredit   pricing.Money `json:"storeCredit"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Store is an in-memory customer directory.
type Store struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*Customer
	byPhone map[string]uuid.UUID
	order   []uuid.UUID
}

func NewStore() *Store {
	return &Store{
		byID:    make(map[uuid.UUID]*Customer),
		byPhone: make(map[string]uuid.UUID),
	}
}

// Insert adds a customer. Phone numbers must be unique when present.
func (s *Store) Insert(c Customer) error {
	phone := normalizePhone(c.Phone)
	s.mu.Lock()
	defer s.mu.Unlock()
	if phone != "" {
		if _, exists := s.byPhone[phone]; exists {
			return ErrDuplicatePhone
		}
	}
	cp := c
	s.byID[cp.ID] = &cp
	s.order = append(s.order, cp.ID)
	if phone != "" {
		s.byPhone[phone] = cp.ID
	}
	return nil
}

// Get returns a copy of the customer by ID.
func (s *Store) Get(id uuid.UUID) (Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return *c, nil
}

// All returns customers in insertion order.
func (s *Store) All() []Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Customer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

// Update applies mutate under the lock and stamps UpdatedAt.
func (s *Store) Update(id uuid.UUID, now time.Time, mutate func(*Customer)) (Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	mutate(c)
	c.UpdatedAt = now
	return *c, nil
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
