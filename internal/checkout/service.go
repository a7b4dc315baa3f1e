package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tillworks/backend-pos/internal/cart"
	"github.com/tillworks/backend-pos/internal/events"
	"github.com/tillworks/backend-pos/internal/obs"
	"github.com/tillworks/backend-pos/internal/payment"
	"github.com/tillworks/backend-pos/internal/pricing"
	"github.com/tillworks/backend-pos/internal/sales"
	"github.com/tillworks/backend-pos/internal/shift"
)

// Checkout states.
const (
	StateIdle           = "idle"
	StateAwaitingTender = "awaiting_tender"
	StateAuthorizing    = "authorizing"
	StateSettled        = "settled"
	StateCancelled      = "cancelled"
)

// ErrEmptyCart is returned when checkout begins on a cart with no lines.
var ErrEmptyCart = errors.New("checkout: cart is empty")

// ErrInsufficientTender is returned when cash tendered is below the total.
var ErrInsufficientTender = errors.New("checkout: insufficient tender")

// ErrAuthorizationFailed is returned when the card reader declines or times out.
var ErrAuthorizationFailed = errors.New("checkout: authorization failed")

// ErrStaleCheckout is returned when the cart changed after checkout began.
var ErrStaleCheckout = errors.New("checkout: cart changed since checkout began")

// ErrInvalidState is returned when an operation does not apply to the
// checkout's current state.
var ErrInvalidState = errors.New("checkout: operation not valid in current state")

// ErrNotFound indicates no checkout is in progress for the operator.
var ErrNotFound = errors.New("checkout: no checkout in progress")

// Checkout is a settlement attempt pinned to a cart revision.
type Checkout struct {
	ID           string          `json:"id"`
	OperatorID   string          `json:"operatorId"`
	ShiftID      string          `json:"shiftId"`
	State        string          `json:"state"`
	CartID       uuid.UUID       `json:"cartId"`
	CartRevision int64           `json:"cartRevision"`
	TenderType   string          `json:"tenderType"`
	Lines        []cart.Line     `json:"lines"`
	CustomerID   string          `json:"customerId,omitempty"`
	Summary      pricing.Summary `json:"summary"`
	StartedAt    time.Time       `json:"startedAt"`
}

// Result is the outcome of a settled checkout.
type Result struct {
	Checkout    Checkout          `json:"checkout"`
	Transaction sales.Transaction `json:"transaction"`
	Change      pricing.Money     `json:"change"`
}

// Service drives the tender and settlement state machine. One checkout may
// be in flight per operator.
type Service struct {
	Carts    *cart.Service
	Shifts   *shift.Ledger
	Sales    *sales.Store
	Provider payment.Provider
	Bus      *events.Bus
	Logger   zerolog.Logger
	Now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]*Checkout
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.Carts == nil || s.Shifts == nil || s.Sales == nil {
		return errors.New("checkout service not configured")
	}
	return nil
}

// Begin freezes the operator's cart into a checkout in awaiting_tender state.
// The cart must have lines and a shift must be open.
func (s *Service) Begin(ctx context.Context, operatorID string) (Checkout, error) {
	if err := s.ready(); err != nil {
		return Checkout{}, err
	}
	shiftID, ok := s.Shifts.ActiveShiftID(operatorID)
	if !ok {
		return Checkout{}, shift.ErrShiftNotActive
	}
	view, err := s.Carts.Current(ctx, operatorID)
	if err != nil {
		return Checkout{}, err
	}
	if len(view.Cart.Lines) == 0 {
		return Checkout{}, ErrEmptyCart
	}
	co := &Checkout{
		ID:           uuid.NewString(),
		OperatorID:   operatorID,
		ShiftID:      shiftID,
		State:        StateAwaitingTender,
		CartID:       view.Cart.ID,
		CartRevision: view.Cart.Revision,
		TenderType:   view.Cart.TenderType,
		Lines:        view.Cart.Lines,
		CustomerID:   view.Cart.CustomerID,
		Summary:      view.Summary,
		StartedAt:    s.now(),
	}
	s.mu.Lock()
	if s.inFlight == nil {
		s.inFlight = make(map[string]*Checkout)
	}
	s.inFlight[operatorID] = co
	snapshot := *co
	s.mu.Unlock()
	return snapshot, nil
}

// Current returns the operator's in-flight checkout.
func (s *Service) Current(_ context.Context, operatorID string) (Checkout, error) {
	if err := s.ready(); err != nil {
		return Checkout{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	co, ok := s.inFlight[operatorID]
	if !ok {
		return Checkout{}, ErrNotFound
	}
	return *co, nil
}

// Cancel abandons the in-flight checkout. The cart is left untouched.
func (s *Service) Cancel(_ context.Context, operatorID string) (Checkout, error) {
	if err := s.ready(); err != nil {
		return Checkout{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	co, ok := s.inFlight[operatorID]
	if !ok {
		return Checkout{}, ErrNotFound
	}
	if co.State == StateSettled {
		return Checkout{}, ErrInvalidState
	}
	co.State = StateCancelled
	delete(s.inFlight, operatorID)
	return *co, nil
}

// TenderCash settles the checkout with cash. The tendered amount must cover
// the total; change is computed exactly in cents.
func (s *Service) TenderCash(ctx context.Context, operatorID string, tendered pricing.Money) (Result, error) {
	if err := s.ready(); err != nil {
		return Result{}, err
	}
	co, err := s.take(operatorID, StateAwaitingTender)
	if err != nil {
		return Result{}, err
	}
	if err := s.verifyFresh(ctx, co); err != nil {
		s.release(co)
		return Result{}, err
	}
	if tendered < co.Summary.Total {
		s.release(co)
		return Result{}, fmt.Errorf("tendered %d of %d: %w", tendered, co.Summary.Total, ErrInsufficientTender)
	}
	change := tendered - co.Summary.Total
	return s.settle(ctx, co, cart.TenderCash, tendered, change, "")
}

// AuthorizeCard settles the checkout through the card reader. Declines and
// timeouts leave the checkout in awaiting_tender so the cashier can retry
// or switch to cash.
func (s *Service) AuthorizeCard(ctx context.Context, operatorID string) (Result, error) {
	if err := s.ready(); err != nil {
		return Result{}, err
	}
	if s.Provider == nil {
		return Result{}, errors.New("checkout: card reader not configured")
	}
	co, err := s.take(operatorID, StateAwaitingTender)
	if err != nil {
		return Result{}, err
	}
	if err := s.verifyFresh(ctx, co); err != nil {
		s.release(co)
		return Result{}, err
	}

	s.setState(co, StateAuthorizing)
	resp, err := s.Provider.Authorize(ctx, payment.AuthRequest{
		CheckoutID: co.ID,
		Amount:     co.Summary.Total,
	})
	if err != nil {
		s.release(co)
		if obs.AuthorizationTotal != nil {
			obs.AuthorizationTotal.WithLabelValues("error").Inc()
		}
		return Result{}, fmt.Errorf("card reader: %v: %w", err, ErrAuthorizationFailed)
	}
	if obs.AuthorizationTotal != nil {
		obs.AuthorizationTotal.WithLabelValues(resp.Result).Inc()
	}
	if !resp.Approved() {
		s.release(co)
		return Result{}, fmt.Errorf("%s: %w", resp.Result, ErrAuthorizationFailed)
	}
	return s.settle(ctx, co, cart.TenderCard, co.Summary.Total, 0, resp.Reference)
}

// take removes the in-flight checkout when it is in the expected state.
func (s *Service) take(operatorID, expectState string) (*Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	co, ok := s.inFlight[operatorID]
	if !ok {
		return nil, ErrNotFound
	}
	if co.State != expectState {
		return nil, ErrInvalidState
	}
	return co, nil
}

func (s *Service) release(co *Checkout) {
	s.setState(co, StateAwaitingTender)
}

func (s *Service) setState(co *Checkout, state string) {
	s.mu.Lock()
	co.State = state
	s.mu.Unlock()
}

// verifyFresh rejects settlement when the cart mutated after Begin.
func (s *Service) verifyFresh(ctx context.Context, co *Checkout) error {
	view, err := s.Carts.Current(ctx, co.OperatorID)
	if err != nil {
		return err
	}
	if view.Cart.ID != co.CartID || view.Cart.Revision != co.CartRevision {
		return ErrStaleCheckout
	}
	return nil
}

func (s *Service) settle(ctx context.Context, co *Checkout, tender string, tendered, change pricing.Money, authRef string) (Result, error) {
	lines := make([]sales.LineItem, 0, len(co.Lines))
	for _, l := range co.Lines {
		lines = append(lines, sales.LineItem{
			ProductID: l.ProductID.String(),
			SKU:       l.SKU,
			Name:      l.Name,
			Qty:       l.Qty,
			UnitPrice: l.UnitPrice,
			Discount:  l.Discount,
		})
	}
	txn := sales.Transaction{
		ID:          s.Sales.NextID(),
		Kind:        sales.KindSale,
		Status:      sales.StatusSettled,
		OperatorID:  co.OperatorID,
		ShiftID:     co.ShiftID,
		CustomerID:  co.CustomerID,
		TenderType:  tender,
		Lines:       lines,
		Summary:     co.Summary,
		Tendered:    tendered,
		Change:      change,
		AuthRef:     authRef,
		CompletedAt: s.now(),
	}
	if err := s.Sales.Append(txn); err != nil {
		s.release(co)
		return Result{}, err
	}
	if err := s.Shifts.RecordSale(co.ShiftID, txn.ID, tender, txn.Summary.Total); err != nil {
		s.Logger.Error().Err(err).Str("txn_id", txn.ID).Msg("record sale in drawer")
	}

	s.mu.Lock()
	co.State = StateSettled
	co.TenderType = tender
	delete(s.inFlight, co.OperatorID)
	snapshot := *co
	s.mu.Unlock()

	if _, err := s.Carts.Clear(ctx, co.OperatorID); err != nil {
		s.Logger.Error().Err(err).Str("operator_id", co.OperatorID).Msg("clear cart after settlement")
	}

	if obs.SalesSettledTotal != nil {
		obs.SalesSettledTotal.WithLabelValues(tender).Inc()
	}
	if obs.SalesAmountCents != nil {
		obs.SalesAmountCents.WithLabelValues(tender).Add(float64(txn.Summary.Total))
	}
	if s.Bus != nil {
		if _, err := s.Bus.Emit(ctx, events.TopicSaleSettled, txn.ID, txn); err != nil {
			s.Logger.Error().Err(err).Str("txn_id", txn.ID).Msg("emit sale.settled")
		}
	}
	s.Logger.Info().
		Str("txn_id", txn.ID).
		Str("tender", tender).
		Int64("total_cents", int64(txn.Summary.Total)).
		Msg("sale settled")
	return Result{Checkout: snapshot, Transaction: txn, Change: change}, nil
}
