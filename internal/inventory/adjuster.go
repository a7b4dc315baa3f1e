package inventory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tillworks/backend-pos/internal/catalog"
	"github.com/tillworks/backend-pos/internal/events"
	"github.com/tillworks/backend-pos/internal/obs"
	"github.com/tillworks/backend-pos/internal/sales"
)

// UnderrunAlert is published on stock.underrun when a sale drains a
// product past zero on hand.
type UnderrunAlert struct {
	ProductID string `json:"productId"`
	SKU       string `json:"sku"`
	TxnID     string `json:"txnId"`
	Requested int    `json:"requested"`
}

// StockAdjuster mirrors settled, voided and returned sales into on-hand
// stock. Sales decrement, reversals restock. Stock never goes below zero;
// draining past zero raises a stock.underrun alert instead of failing the
// sale.
type StockAdjuster struct {
	Products *catalog.Store
	Bus      *events.Bus
	Logger   zerolog.Logger
}

// Notify implements events.Notifier for the sale topics.
func (a *StockAdjuster) Notify(ctx context.Context, ev events.Event) error {
	switch ev.Topic {
	case events.TopicSaleSettled, events.TopicSaleVoided, events.TopicSaleReturned:
	default:
		return nil
	}
	if a == nil || a.Products == nil {
		return fmt.Errorf("inventory: adjuster not configured")
	}
	var txn sales.Transaction
	if err := json.Unmarshal(ev.Payload, &txn); err != nil {
		return fmt.Errorf("inventory: decode %s payload: %w", ev.Topic, err)
	}
	for _, line := range txn.Lines {
		if err := a.apply(ctx, txn.ID, line); err != nil {
			return err
		}
	}
	return nil
}

// apply moves stock opposite to the sold quantity. Void and return
// transactions carry negated quantities, so the same rule restocks them.
func (a *StockAdjuster) apply(ctx context.Context, txnID string, line sales.LineItem) error {
	id, err := uuid.Parse(line.ProductID)
	if err != nil {
		p, lookupErr := a.Products.GetByCode(line.SKU)
		if lookupErr != nil {
			return fmt.Errorf("inventory: resolve %s: %w", line.SKU, lookupErr)
		}
		id = p.ID
	}
	product, underrun, err := a.Products.AdjustStock(id, -line.Qty)
	if err != nil {
		return fmt.Errorf("inventory: adjust %s: %w", line.SKU, err)
	}
	if !underrun {
		return nil
	}
	if obs.StockUnderrunTotal != nil {
		obs.StockUnderrunTotal.Inc()
	}
	a.Logger.Warn().
		Str("sku", product.SKU).
		Str("txn_id", txnID).
		Int("requested", line.Qty).
		Msg("stock underrun, clamped at zero")
	if a.Bus != nil {
		alert := UnderrunAlert{
			ProductID: product.ID.String(),
			SKU:       product.SKU,
			TxnID:     txnID,
			Requested: line.Qty,
		}
		if _, err := a.Bus.Emit(ctx, events.TopicStockUnderrun, product.SKU, alert); err != nil {
			a.Logger.Error().Err(err).Str("sku", product.SKU).Msg("emit stock.underrun")
		}
	}
	return nil
}
