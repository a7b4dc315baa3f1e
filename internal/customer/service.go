package customer

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tillworks/backend-pos/internal/common"
	"github.com/tillworks/backend-pos/internal/pricing"
)

// Service wraps the directory with validation and search.
type Service struct {
	Store *Store
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// CreateInput holds the fields accepted when registering a customer.
type CreateInput struct {
	Name  string
	Phone string
	Email string
}

// Create registers a new customer.
func (s *Service) Create(_ context.Context, in CreateInput) (Customer, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Customer{}, common.NewAppError("VALIDATION", "name is required", http.StatusBadRequest, nil)
	}
	now := s.now()
	c := Customer{
		ID:        uuid.New(),
		Name:      name,
		Phone:     strings.TrimSpace(in.Phone),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.Insert(c); err != nil {
		if err == ErrDuplicatePhone {
			return Customer{}, common.NewAppError("CONFLICT", "phone already registered", http.StatusConflict, err)
		}
		return Customer{}, err
	}
	return c, nil
}

// Get returns a customer by ID.
func (s *Service) Get(_ context.Context, id uuid.UUID) (Customer, error) {
	c, err := s.Store.Get(id)
	if err != nil {
		return Customer{}, common.NewAppError("NOT_FOUND", "customer not found", http.StatusNotFound, err)
	}
	return c, nil
}

// Search matches q against name, phone and email, case-insensitive.
// An empty query returns everyone.
func (s *Service) Search(_ context.Context, q string) ([]Customer, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	all := s.Store.All()
	if q == "" {
		return all, nil
	}
	digits := normalizePhone(q)
	matched := make([]Customer, 0, len(all))
	for _, c := range all {
		switch {
		case strings.Contains(strings.ToLower(c.Name), q):
		case strings.Contains(strings.ToLower(c.Email), q):
		case digits != "" && strings.Contains(normalizePhone(c.Phone), digits):
		default:
			continue
		}
		matched = append(matched, c)
	}
	return matched, nil
}

// Accrue adds loyalty points for a settled amount. Negative amounts
// (voids, returns) claw points back, floored at zero.
func (s *Service) Accrue(_ context.Context, id uuid.UUID, amount pricing.Money, centsPerPoint int64) (Customer, error) {
	if centsPerPoint <= 0 {
		centsPerPoint = 100
	}
	points := int64(amount) / centsPerPoint
	return s.Store.Update(id, s.now(), func(c *Customer) {
		c.LoyaltyPoints += points
		if c.LoyaltyPoints < 0 {
			c.LoyaltyPoints = 0
		}
	})
}

// AdjustCredit moves the customer's store credit balance. Debits beyond
// the balance are rejected.
func (s *Service) AdjustCredit(_ context.Context, id uuid.UUID, delta pricing.Money) (Customer, error) {
	var insufficient bool
	c, err := s.Store.Update(id, s.now(), func(c *Customer) {
		if c.StoreCredit+delta < 0 {
			insufficient = true
			return
		}
		c.StoreCredit += delta
	})
	if err != nil {
		return Customer{}, common.NewAppError("NOT_FOUND", "customer not found", http.StatusNotFound, err)
	}
	if insufficient {
		return Customer{}, common.NewAppError("INSUFFICIENT_CREDIT", "store credit balance too low", http.StatusConflict, nil)
	}
	return c, nil
}
