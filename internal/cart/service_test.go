package cart_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tillworks/backend-pos/internal/cart"
	"github.com/tillworks/backend-pos/internal/catalog"
)

const operatorID = "op-1"

func newTestCart(t *testing.T, products ...catalog.Product) (*cart.Service, *catalog.Store) {
	t.Helper()
	productStore := catalog.NewStore()
	for _, p := range products {
		require.NoError(t, productStore.Insert(p))
	}
	svc := &cart.Service{
		Store:    cart.NewStore(),
		Products: productStore,
		TaxBps:   800,
		Now:      func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) },
	}
	return svc, productStore
}

func latte() catalog.Product {
	return catalog.Product{
		ID:        uuid.New(),
		SKU:       "BEV001",
		Name:      "Latte",
		Category:  "Beverages",
		CashPrice: 450,
		CardPrice: 475,
		Stock:     5,
	}
}

func TestAddLinePinsCashPrice(t *testing.T) {
	p := latte()
	svc, _ := newTestCart(t, p)

	view, err := svc.AddLine(context.Background(), operatorID, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, view.Cart.Lines, 1)
	require.EqualValues(t, 450, view.Cart.Lines[0].UnitPrice)
	require.EqualValues(t, 900, view.Summary.Subtotal)
	require.EqualValues(t, 72, view.Summary.Tax)
	require.EqualValues(t, 972, view.Summary.Total)
}

func TestUnitPriceStaysPinnedAfterCatalogChange(t *testing.T) {
	p := latte()
	svc, products := newTestCart(t, p)
	ctx := context.Background()

	_, err := svc.AddLine(ctx, operatorID, p.ID, 1)
	require.NoError(t, err)

	// Manager raises the price while the line sits in the cart.
	_, err = products.Update(p.ID, func(prod *catalog.Product) { prod.CashPrice = 999 })
	require.NoError(t, err)

	// The existing line keeps the snapshot taken at first add, and merging
	// more units does not reprice it.
	view, err := svc.AddLine(ctx, operatorID, p.ID, 1)
	require.NoError(t, err)
	require.Len(t, view.Cart.Lines, 1)
	require.EqualValues(t, 450, view.Cart.Lines[0].UnitPrice)
	require.EqualValues(t, 900, view.Summary.Subtotal)
}

func TestAddLineMergesAndChecksStock(t *testing.T) {
	p := latte()
	svc, _ := newTestCart(t, p)

	_, err := svc.AddLine(context.Background(), operatorID, p.ID, 3)
	require.NoError(t, err)
	view, err := svc.AddLine(context.Background(), operatorID, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, view.Cart.Lines, 1)
	require.Equal(t, 5, view.Cart.Lines[0].Qty)

	_, err = svc.AddLine(context.Background(), operatorID, p.ID, 1)
	require.ErrorIs(t, err, cart.ErrOutOfStock)
}

func TestSetQuantityClampsAtOne(t *testing.T) {
	p := latte()
	svc, _ := newTestCart(t, p)

	view, err := svc.AddLine(context.Background(), operatorID, p.ID, 3)
	require.NoError(t, err)
	lineID := view.Cart.Lines[0].ID

	view, err = svc.SetQuantity(context.Background(), operatorID, lineID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, view.Cart.Lines[0].Qty)

	_, err = svc.SetQuantity(context.Background(), operatorID, lineID, 99)
	require.ErrorIs(t, err, cart.ErrOutOfStock)
}

func TestApplyDiscountValidation(t *testing.T) {
	p := latte()
	svc, _ := newTestCart(t, p)

	view, err := svc.AddLine(context.Background(), operatorID, p.ID, 2)
	require.NoError(t, err)
	lineID := view.Cart.Lines[0].ID

	view, err = svc.ApplyDiscount(context.Background(), operatorID, lineID, "amount", 100)
	require.NoError(t, err)
	require.EqualValues(t, 800, view.Summary.Subtotal)

	view, err = svc.ApplyDiscount(context.Background(), operatorID, lineID, "percent", 5000)
	require.NoError(t, err)
	require.EqualValues(t, 450, view.Cart.Lines[0].Discount)

	_, err = svc.ApplyDiscount(context.Background(), operatorID, lineID, "amount", 1000)
	require.ErrorIs(t, err, cart.ErrInvalidDiscount)
	_, err = svc.ApplyDiscount(context.Background(), operatorID, lineID, "amount", -1)
	require.ErrorIs(t, err, cart.ErrInvalidDiscount)
	_, err = svc.ApplyDiscount(context.Background(), operatorID, lineID, "loyalty", 1)
	require.ErrorIs(t, err, cart.ErrInvalidDiscount)
}

func TestSetTenderTypeRepricesLines(t *testing.T) {
	p := latte()
	svc, _ := newTestCart(t, p)

	view, err := svc.AddLine(context.Background(), operatorID, p.ID, 1)
	require.NoError(t, err)
	require.EqualValues(t, 450, view.Cart.Lines[0].UnitPrice)

	view, err = svc.SetTenderType(context.Background(), operatorID, "card")
	require.NoError(t, err)
	require.EqualValues(t, 475, view.Cart.Lines[0].UnitPrice)

	view, err = svc.SetTenderType(context.Background(), operatorID, "cash")
	require.NoError(t, err)
	require.EqualValues(t, 450, view.Cart.Lines[0].UnitPrice)

	_, err = svc.SetTenderType(context.Background(), operatorID, "crypto")
	require.ErrorIs(t, err, cart.ErrInvalidInput)
}

func TestRevisionBumpsOnMutation(t *testing.T) {
	p := latte()
	svc, _ := newTestCart(t, p)

	view, err := svc.AddLine(context.Background(), operatorID, p.ID, 1)
	require.NoError(t, err)
	rev := view.Cart.Revision

	after, err := svc.Current(context.Background(), operatorID)
	require.NoError(t, err)
	require.Equal(t, rev, after.Cart.Revision)

	after, err = svc.SetQuantity(context.Background(), operatorID, view.Cart.Lines[0].ID, 2)
	require.NoError(t, err)
	require.Greater(t, after.Cart.Revision, rev)
}

func TestHoldAndResume(t *testing.T) {
	p := latte()
	svc, _ := newTestCart(t, p)

	view, err := svc.AddLine(context.Background(), operatorID, p.ID, 2)
	require.NoError(t, err)
	heldID := view.Cart.ID

	held, err := svc.Hold(context.Background(), operatorID)
	require.NoError(t, err)
	require.Equal(t, heldID, held.Cart.ID)

	// Active cart is now empty.
	current, err := svc.Current(context.Background(), operatorID)
	require.NoError(t, err)
	require.Empty(t, current.Cart.Lines)

	resumed, err := svc.Resume(context.Background(), operatorID, heldID)
	require.NoError(t, err)
	require.Len(t, resumed.Cart.Lines, 1)
	require.Equal(t, 2, resumed.Cart.Lines[0].Qty)

	_, err = svc.Resume(context.Background(), operatorID, uuid.New())
	require.ErrorIs(t, err, cart.ErrNotFound)
}

func TestHoldRequiresLines(t *testing.T) {
	svc, _ := newTestCart(t)
	_, err := svc.Hold(context.Background(), operatorID)
	require.ErrorIs(t, err, cart.ErrInvalidInput)
}

func TestClearStartsFreshCart(t *testing.T) {
	p := latte()
	svc, _ := newTestCart(t, p)

	before, err := svc.AddLine(context.Background(), operatorID, p.ID, 1)
	require.NoError(t, err)

	after, err := svc.Clear(context.Background(), operatorID)
	require.NoError(t, err)
	require.NotEqual(t, before.Cart.ID, after.Cart.ID)
	require.Empty(t, after.Cart.Lines)
}
