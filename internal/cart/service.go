package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tillworks/backend-pos/internal/catalog"
	"github.com/tillworks/backend-pos/internal/pricing"
)

// ErrNotFound indicates the requested cart or line could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrOutOfStock is returned when the requested quantity exceeds available stock.
var ErrOutOfStock = errors.New("out of stock")

// ErrInvalidDiscount is returned when a discount would take a line negative
// or is otherwise malformed.
var ErrInvalidDiscount = errors.New("invalid discount")

// View bundles a cart with its computed totals.
type View struct {
	Cart    Cart            `json:"cart"`
	Summary pricing.Summary `json:"summary"`
}

// Service encapsulates cart domain operations for the terminal.
type Service struct {
	Store    *Store
	Products *catalog.Store
	TaxBps   int
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil || s.Products == nil {
		return errors.New("cart service not configured")
	}
	return nil
}

func (s *Service) view(c Cart) View {
	return View{Cart: c, Summary: pricing.Compute(c.Items(), s.TaxBps)}
}

// Current returns the operator's active cart, creating it if needed.
func (s *Service) Current(_ context.Context, operatorID string) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	c, err := s.Store.WithActive(operatorID, s.now(), func(*Cart) (bool, error) { return false, nil })
	if err != nil {
		return View{}, err
	}
	return s.view(c), nil
}

// AddLine adds qty of the product to the cart, pinning the unit price for the
// cart's current tender type. Quantities merge onto an existing line.
func (s *Service) AddLine(_ context.Context, operatorID string, productID uuid.UUID, qty int) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	if qty <= 0 {
		return View{}, fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	product, err := s.Products.Get(productID)
	if err != nil {
		return View{}, ErrNotFound
	}
	c, err := s.Store.WithActive(operatorID, s.now(), func(c *Cart) (bool, error) {
		inCart := 0
		idx := -1
		for i, l := range c.Lines {
			if l.ProductID == product.ID {
				inCart = l.Qty
				idx = i
				break
			}
		}
		if inCart+qty > product.Stock {
			return false, fmt.Errorf("%s: %w", product.SKU, ErrOutOfStock)
		}
		if idx >= 0 {
			c.Lines[idx].Qty += qty
			return true, nil
		}
		c.Lines = append(c.Lines, Line{
			ID:        uuid.New(),
			ProductID: product.ID,
			SKU:       product.SKU,
			Name:      product.Name,
			Qty:       qty,
			UnitPrice: product.Price(c.TenderType),
		})
		return true, nil
	})
	if err != nil {
		return View{}, err
	}
	return s.view(c), nil
}

// SetQuantity updates a line quantity. Quantities below one are clamped to one;
// increases are checked against available stock.
func (s *Service) SetQuantity(_ context.Context, operatorID string, lineID uuid.UUID, qty int) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	if qty < 1 {
		qty = 1
	}
	c, err := s.Store.WithActive(operatorID, s.now(), func(c *Cart) (bool, error) {
		for i := range c.Lines {
			if c.Lines[i].ID != lineID {
				continue
			}
			product, err := s.Products.Get(c.Lines[i].ProductID)
			if err == nil && qty > product.Stock {
				return false, fmt.Errorf("%s: %w", product.SKU, ErrOutOfStock)
			}
			c.Lines[i].Qty = qty
			if lineTotal := pricing.LineTotal(pricing.Item{Qty: qty, UnitPrice: c.Lines[i].UnitPrice}); c.Lines[i].Discount > lineTotal {
				c.Lines[i].Discount = lineTotal
			}
			return true, nil
		}
		return false, ErrNotFound
	})
	if err != nil {
		return View{}, err
	}
	return s.view(c), nil
}

// RemoveLine deletes a line from the cart.
func (s *Service) RemoveLine(_ context.Context, operatorID string, lineID uuid.UUID) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	c, err := s.Store.WithActive(operatorID, s.now(), func(c *Cart) (bool, error) {
		for i := range c.Lines {
			if c.Lines[i].ID == lineID {
				c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
				return true, nil
			}
		}
		return false, ErrNotFound
	})
	if err != nil {
		return View{}, err
	}
	return s.view(c), nil
}

// ApplyDiscount sets a line discount. Kind is "amount" (cents) or "percent"
// (basis points of the undiscounted line total). The discount may not exceed
// the line total or be negative.
func (s *Service) ApplyDiscount(_ context.Context, operatorID string, lineID uuid.UUID, kind string, value int64) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	c, err := s.Store.WithActive(operatorID, s.now(), func(c *Cart) (bool, error) {
		for i := range c.Lines {
			if c.Lines[i].ID != lineID {
				continue
			}
			gross := pricing.LineTotal(pricing.Item{Qty: c.Lines[i].Qty, UnitPrice: c.Lines[i].UnitPrice})
			var discount pricing.Money
			switch strings.ToLower(strings.TrimSpace(kind)) {
			case "amount":
				discount = pricing.Money(value)
			case "percent":
				if value < 0 || value > 10000 {
					return false, fmt.Errorf("percent out of range: %w", ErrInvalidDiscount)
				}
				discount = (gross * pricing.Money(value)) / 10000
			default:
				return false, fmt.Errorf("unknown discount kind %q: %w", kind, ErrInvalidDiscount)
			}
			if discount < 0 || discount > gross {
				return false, fmt.Errorf("discount exceeds line total: %w", ErrInvalidDiscount)
			}
			c.Lines[i].Discount = discount
			return true, nil
		}
		return false, ErrNotFound
	})
	if err != nil {
		return View{}, err
	}
	return s.view(c), nil
}

// SetTenderType switches the cart between cash and card pricing. Every line
// is repriced from the catalog for the new tender.
func (s *Service) SetTenderType(_ context.Context, operatorID, tender string) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	tender = strings.ToLower(strings.TrimSpace(tender))
	if tender != TenderCash && tender != TenderCard {
		return View{}, fmt.Errorf("unknown tender type %q: %w", tender, ErrInvalidInput)
	}
	c, err := s.Store.WithActive(operatorID, s.now(), func(c *Cart) (bool, error) {
		if c.TenderType == tender {
			return false, nil
		}
		c.TenderType = tender
		for i := range c.Lines {
			product, err := s.Products.Get(c.Lines[i].ProductID)
			if err != nil {
				continue
			}
			c.Lines[i].UnitPrice = product.Price(tender)
			if gross := pricing.LineTotal(pricing.Item{Qty: c.Lines[i].Qty, UnitPrice: c.Lines[i].UnitPrice}); c.Lines[i].Discount > gross {
				c.Lines[i].Discount = gross
			}
		}
		return true, nil
	})
	if err != nil {
		return View{}, err
	}
	return s.view(c), nil
}

// SetCustomer attaches a loyalty customer to the cart. An empty ID detaches.
func (s *Service) SetCustomer(_ context.Context, operatorID, customerID string) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	c, err := s.Store.WithActive(operatorID, s.now(), func(c *Cart) (bool, error) {
		c.CustomerID = strings.TrimSpace(customerID)
		return true, nil
	})
	if err != nil {
		return View{}, err
	}
	return s.view(c), nil
}

// Clear empties the cart and resets its discounts and customer.
func (s *Service) Clear(_ context.Context, operatorID string) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	_, fresh := s.Store.Replace(operatorID, s.now())
	return s.view(fresh), nil
}

// Hold parks the active cart so another sale can be rung up.
func (s *Service) Hold(_ context.Context, operatorID string) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	held, ok := s.Store.Hold(operatorID, s.now())
	if !ok {
		return View{}, fmt.Errorf("nothing to hold: %w", ErrInvalidInput)
	}
	return s.view(held), nil
}

// Resume reinstates a held cart.
func (s *Service) Resume(_ context.Context, operatorID string, heldID uuid.UUID) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	resumed, ok := s.Store.Resume(operatorID, heldID, s.now())
	if !ok {
		return View{}, ErrNotFound
	}
	return s.view(resumed), nil
}

// Held lists parked carts with totals.
func (s *Service) Held(_ context.Context) ([]View, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	carts := s.Store.Held()
	views := make([]View, 0, len(carts))
	for _, c := range carts {
		views = append(views, s.view(c))
	}
	return views, nil
}
