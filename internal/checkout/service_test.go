package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tillworks/backend-pos/internal/cart"
	"github.com/tillworks/backend-pos/internal/catalog"
	"github.com/tillworks/backend-pos/internal/events"
	"github.com/tillworks/backend-pos/internal/payment"
	"github.com/tillworks/backend-pos/internal/pricing"
	"github.com/tillworks/backend-pos/internal/sales"
	"github.com/tillworks/backend-pos/internal/shift"
)

const operatorID = "op-1"

type scriptedReader struct {
	responses []payment.AuthResponse
	errs      []error
	calls     int
}

func (p *scriptedReader) Authorize(_ context.Context, _ payment.AuthRequest) (payment.AuthResponse, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return payment.AuthResponse{}, p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], nil
	}
	return payment.AuthResponse{Result: payment.ResultApproved, Reference: "AUTH-000001"}, nil
}

type topicCapture struct {
	topics []string
}

func (c *topicCapture) Notify(_ context.Context, ev events.Event) error {
	c.topics = append(c.topics, ev.Topic)
	return nil
}

type fixture struct {
	svc    *Service
	carts  *cart.Service
	ledger *shift.Ledger
	store  *sales.Store
	latte  catalog.Product
	bus    *topicCapture
}

func newFixture(t *testing.T, provider payment.Provider) *fixture {
	t.Helper()
	products := catalog.NewStore()
	latte := catalog.Product{
		ID:        uuid.New(),
		SKU:       "BEV001",
		Name:      "Latte",
		CashPrice: 450,
		CardPrice: 475,
		Stock:     5,
	}
	require.NoError(t, products.Insert(latte))

	capture := &topicCapture{}
	bus := &events.Bus{Notifiers: []events.Notifier{capture}}
	carts := &cart.Service{Store: cart.NewStore(), Products: products, TaxBps: 800}
	ledger := &shift.Ledger{Logger: zerolog.Nop()}
	txns := sales.NewStore()
	svc := &Service{
		Carts:    carts,
		Shifts:   ledger,
		Sales:    txns,
		Provider: provider,
		Bus:      bus,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC) },
	}
	return &fixture{svc: svc, carts: carts, ledger: ledger, store: txns, latte: latte, bus: capture}
}

func (f *fixture) openShift(t *testing.T, float pricing.Money) {
	t.Helper()
	_, err := f.ledger.Start(context.Background(), operatorID, float)
	require.NoError(t, err)
}

func (f *fixture) addLatte(t *testing.T, qty int) {
	t.Helper()
	_, err := f.carts.AddLine(context.Background(), operatorID, f.latte.ID, qty)
	require.NoError(t, err)
}

func TestCashSettlementComputesChangeAndClearsCart(t *testing.T) {
	f := newFixture(t, nil)
	f.openShift(t, 20000)
	f.addLatte(t, 2)
	ctx := context.Background()

	co, err := f.svc.Begin(ctx, operatorID)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingTender, co.State)
	require.Equal(t, pricing.Money(972), co.Summary.Total)

	res, err := f.svc.TenderCash(ctx, operatorID, 1000)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(28), res.Change)
	require.Equal(t, "TXN0001", res.Transaction.ID)
	require.Equal(t, cart.TenderCash, res.Transaction.TenderType)
	require.Equal(t, pricing.Money(1000), res.Transaction.Tendered)

	// Drawer saw the sale once, cash side.
	active, ok := f.ledger.Active(operatorID)
	require.True(t, ok)
	require.Equal(t, pricing.Money(972), active.CashTotal)
	require.Equal(t, pricing.Money(972), active.RunningSales)
	require.Equal(t, 1, active.SaleCount)

	// Cart was replaced and the checkout released.
	view, err := f.carts.Current(ctx, operatorID)
	require.NoError(t, err)
	require.Empty(t, view.Cart.Lines)
	_, err = f.svc.Current(ctx, operatorID)
	require.ErrorIs(t, err, ErrNotFound)

	require.Contains(t, f.bus.topics, events.TopicSaleSettled)
}

func TestTenderCashRejectsInsufficientAmount(t *testing.T) {
	f := newFixture(t, nil)
	f.openShift(t, 20000)
	f.addLatte(t, 2)
	ctx := context.Background()

	_, err := f.svc.Begin(ctx, operatorID)
	require.NoError(t, err)

	_, err = f.svc.TenderCash(ctx, operatorID, 900)
	require.ErrorIs(t, err, ErrInsufficientTender)

	// The checkout stays open so the cashier can collect more cash.
	co, err := f.svc.Current(ctx, operatorID)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingTender, co.State)

	res, err := f.svc.TenderCash(ctx, operatorID, 972)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(0), res.Change)
}

func TestBeginRequiresOpenShiftAndLines(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Begin(ctx, operatorID)
	require.ErrorIs(t, err, shift.ErrShiftNotActive)

	f.openShift(t, 20000)
	_, err = f.svc.Begin(ctx, operatorID)
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCartMutationAfterBeginIsStale(t *testing.T) {
	f := newFixture(t, nil)
	f.openShift(t, 20000)
	f.addLatte(t, 1)
	ctx := context.Background()

	_, err := f.svc.Begin(ctx, operatorID)
	require.NoError(t, err)

	// Cashier scans another item mid-checkout.
	f.addLatte(t, 1)

	_, err = f.svc.TenderCash(ctx, operatorID, 5000)
	require.ErrorIs(t, err, ErrStaleCheckout)

	// Re-beginning picks up the new revision and settles cleanly.
	co, err := f.svc.Begin(ctx, operatorID)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(972), co.Summary.Total)
	_, err = f.svc.TenderCash(ctx, operatorID, 972)
	require.NoError(t, err)
}

func TestAuthorizeCardRecordsReference(t *testing.T) {
	reader := &scriptedReader{responses: []payment.AuthResponse{
		{Result: payment.ResultApproved, Reference: "AUTH-000042"},
	}}
	f := newFixture(t, reader)
	f.openShift(t, 20000)

	ctx := context.Background()
	_, err := f.carts.SetTenderType(ctx, operatorID, cart.TenderCard)
	require.NoError(t, err)
	f.addLatte(t, 2)

	_, err = f.svc.Begin(ctx, operatorID)
	require.NoError(t, err)

	res, err := f.svc.AuthorizeCard(ctx, operatorID)
	require.NoError(t, err)
	require.Equal(t, "AUTH-000042", res.Transaction.AuthRef)
	require.Equal(t, cart.TenderCard, res.Transaction.TenderType)
	// Card price 475 x2 = 950, tax 76.
	require.Equal(t, pricing.Money(1026), res.Transaction.Summary.Total)
	require.Equal(t, pricing.Money(0), res.Change)

	active, ok := f.ledger.Active(operatorID)
	require.True(t, ok)
	require.Equal(t, pricing.Money(1026), active.CardTotal)
	require.Equal(t, pricing.Money(0), active.CashTotal)
	require.Equal(t, pricing.Money(1026), active.RunningSales)
}

func TestDeclineLeavesCheckoutOpenForRetry(t *testing.T) {
	reader := &scriptedReader{responses: []payment.AuthResponse{
		{Result: payment.ResultDeclined, Message: "issuer declined"},
		{Result: payment.ResultApproved, Reference: "AUTH-000002"},
	}}
	f := newFixture(t, reader)
	f.openShift(t, 20000)
	f.addLatte(t, 1)
	ctx := context.Background()

	_, err := f.svc.Begin(ctx, operatorID)
	require.NoError(t, err)

	_, err = f.svc.AuthorizeCard(ctx, operatorID)
	require.ErrorIs(t, err, ErrAuthorizationFailed)

	co, err := f.svc.Current(ctx, operatorID)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingTender, co.State)

	// Second swipe goes through.
	res, err := f.svc.AuthorizeCard(ctx, operatorID)
	require.NoError(t, err)
	require.Equal(t, "AUTH-000002", res.Transaction.AuthRef)
	require.Equal(t, 2, reader.calls)
}

func TestDeclinedCardFallsBackToCash(t *testing.T) {
	reader := &scriptedReader{responses: []payment.AuthResponse{
		{Result: payment.ResultTimedOut, Message: "reader timed out"},
	}}
	f := newFixture(t, reader)
	f.openShift(t, 20000)
	f.addLatte(t, 1)
	ctx := context.Background()

	_, err := f.svc.Begin(ctx, operatorID)
	require.NoError(t, err)

	_, err = f.svc.AuthorizeCard(ctx, operatorID)
	require.ErrorIs(t, err, ErrAuthorizationFailed)

	// Customer pays cash instead; the checkout did not have to restart.
	res, err := f.svc.TenderCash(ctx, operatorID, 500)
	require.NoError(t, err)
	require.Equal(t, cart.TenderCash, res.Transaction.TenderType)
	require.Equal(t, pricing.Money(14), res.Change)
}

func TestReaderErrorSurfacesAsAuthorizationFailure(t *testing.T) {
	reader := &scriptedReader{errs: []error{errors.New("serial port unavailable")}}
	f := newFixture(t, reader)
	f.openShift(t, 20000)
	f.addLatte(t, 1)
	ctx := context.Background()

	_, err := f.svc.Begin(ctx, operatorID)
	require.NoError(t, err)

	_, err = f.svc.AuthorizeCard(ctx, operatorID)
	require.ErrorIs(t, err, ErrAuthorizationFailed)
}

func TestCancelAbandonsCheckoutAndKeepsCart(t *testing.T) {
	f := newFixture(t, nil)
	f.openShift(t, 20000)
	f.addLatte(t, 1)
	ctx := context.Background()

	_, err := f.svc.Begin(ctx, operatorID)
	require.NoError(t, err)

	co, err := f.svc.Cancel(ctx, operatorID)
	require.NoError(t, err)
	require.Equal(t, StateCancelled, co.State)

	_, err = f.svc.Current(ctx, operatorID)
	require.ErrorIs(t, err, ErrNotFound)

	view, err := f.carts.Current(ctx, operatorID)
	require.NoError(t, err)
	require.Len(t, view.Cart.Lines, 1)

	_, err = f.svc.Cancel(ctx, operatorID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSettlementPostsToOwnShift(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// Another terminal's open shift does not let this operator check out.
	_, err := f.ledger.Start(ctx, "op-2", 15000)
	require.NoError(t, err)
	f.addLatte(t, 1)
	_, err = f.svc.Begin(ctx, operatorID)
	require.ErrorIs(t, err, shift.ErrShiftNotActive)

	f.openShift(t, 20000)
	co, err := f.svc.Begin(ctx, operatorID)
	require.NoError(t, err)
	mine, _ := f.ledger.ActiveShiftID(operatorID)
	require.Equal(t, mine, co.ShiftID)

	_, err = f.svc.TenderCash(ctx, operatorID, 500)
	require.NoError(t, err)

	own, _ := f.ledger.Active(operatorID)
	require.Equal(t, pricing.Money(486), own.RunningSales)
	other, _ := f.ledger.Active("op-2")
	require.Equal(t, pricing.Money(0), other.RunningSales)
}

func TestTenderCashWithoutBegin(t *testing.T) {
	f := newFixture(t, nil)
	f.openShift(t, 20000)
	f.addLatte(t, 1)

	_, err := f.svc.TenderCash(context.Background(), operatorID, 1000)
	require.ErrorIs(t, err, ErrNotFound)
}
