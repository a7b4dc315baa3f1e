package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tillworks/backend-pos/internal/catalog"
	"github.com/tillworks/backend-pos/internal/events"
	"github.com/tillworks/backend-pos/internal/sales"
)

type alertCapture struct {
	topics []string
}

func (c *alertCapture) Notify(_ context.Context, ev events.Event) error {
	c.topics = append(c.topics, ev.Topic)
	return nil
}

func newAdjuster(t *testing.T, stock int) (*StockAdjuster, catalog.Product, *alertCapture) {
	t.Helper()
	store := catalog.NewStore()
	latte := catalog.Product{
		ID:        uuid.New(),
		SKU:       "BEV001",
		Name:      "Latte",
		CashPrice: 450,
		Stock:     stock,
	}
	require.NoError(t, store.Insert(latte))
	capture := &alertCapture{}
	adj := &StockAdjuster{
		Products: store,
		Bus:      &events.Bus{Notifiers: []events.Notifier{capture}},
		Logger:   zerolog.Nop(),
	}
	return adj, latte, capture
}

func saleEvent(t *testing.T, topic, txnID string, lines ...sales.LineItem) events.Event {
	t.Helper()
	bus := &events.Bus{}
	ev, err := bus.Emit(context.Background(), topic, txnID, sales.Transaction{ID: txnID, Lines: lines})
	require.NoError(t, err)
	return ev
}

func TestSettledSaleDecrementsStock(t *testing.T) {
	adj, latte, capture := newAdjuster(t, 5)
	ev := saleEvent(t, events.TopicSaleSettled, "TXN0001",
		sales.LineItem{ProductID: latte.ID.String(), SKU: latte.SKU, Qty: 2})

	require.NoError(t, adj.Notify(context.Background(), ev))

	p, err := adj.Products.Get(latte.ID)
	require.NoError(t, err)
	require.Equal(t, 3, p.Stock)
	require.Empty(t, capture.topics)
}

func TestVoidRestocksNegatedLines(t *testing.T) {
	adj, latte, _ := newAdjuster(t, 3)
	ev := saleEvent(t, events.TopicSaleVoided, "TXN0002",
		sales.LineItem{ProductID: latte.ID.String(), SKU: latte.SKU, Qty: -2})

	require.NoError(t, adj.Notify(context.Background(), ev))

	p, err := adj.Products.Get(latte.ID)
	require.NoError(t, err)
	require.Equal(t, 5, p.Stock)
}

func TestUnderrunClampsAndAlerts(t *testing.T) {
	adj, latte, capture := newAdjuster(t, 1)
	ev := saleEvent(t, events.TopicSaleSettled, "TXN0003",
		sales.LineItem{ProductID: latte.ID.String(), SKU: latte.SKU, Qty: 4})

	require.NoError(t, adj.Notify(context.Background(), ev))

	p, err := adj.Products.Get(latte.ID)
	require.NoError(t, err)
	require.Equal(t, 0, p.Stock)
	require.Equal(t, []string{events.TopicStockUnderrun}, capture.topics)
}

func TestUnrelatedTopicsAreIgnored(t *testing.T) {
	adj, latte, _ := newAdjuster(t, 5)
	ev := saleEvent(t, events.TopicShiftOpened, "shift-1")

	require.NoError(t, adj.Notify(context.Background(), ev))

	p, err := adj.Products.Get(latte.ID)
	require.NoError(t, err)
	require.Equal(t, 5, p.Stock)
}

func TestLineResolvesBySKUWhenIDMissing(t *testing.T) {
	adj, latte, _ := newAdjuster(t, 5)
	ev := saleEvent(t, events.TopicSaleSettled, "TXN0004",
		sales.LineItem{SKU: "bev001", Qty: 1})

	require.NoError(t, adj.Notify(context.Background(), ev))

	p, err := adj.Products.Get(latte.ID)
	require.NoError(t, err)
	require.Equal(t, 4, p.Stock)
}
