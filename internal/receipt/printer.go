package receipt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tillworks/backend-pos/internal/events"
	"github.com/tillworks/backend-pos/internal/obs"
	"github.com/tillworks/backend-pos/internal/sales"
)

// Printer sends rendered receipt text to an output device.
type Printer interface {
	Print(ctx context.Context, txnID, text string) error
}

// LogPrinter writes receipts to the structured log. Stands in for a
// thermal printer driver.
type LogPrinter struct {
	Logger zerolog.Logger
}

func (p LogPrinter) Print(_ context.Context, txnID, text string) error {
	p.Logger.Info().Str("txn_id", txnID).Str("receipt", text).Msg("receipt printed")
	return nil
}

// Subscriber prints a receipt for every settled, voided or returned sale.
// Print failures are counted and logged, never propagated: a jammed
// printer must not fail the sale.
type Subscriber struct {
	Store   StoreInfo
	Printer Printer
	Logger  zerolog.Logger
}

// Notify implements events.Notifier.
func (s *Subscriber) Notify(ctx context.Context, ev events.Event) error {
	switch ev.Topic {
	case events.TopicSaleSettled, events.TopicSaleVoided, events.TopicSaleReturned:
	default:
		return nil
	}
	if s == nil || s.Printer == nil {
		return fmt.Errorf("receipt: subscriber not configured")
	}
	var txn sales.Transaction
	if err := json.Unmarshal(ev.Payload, &txn); err != nil {
		return fmt.Errorf("receipt: decode %s payload: %w", ev.Topic, err)
	}
	text := Render(s.Store, txn)
	if err := s.Printer.Print(ctx, txn.ID, text); err != nil {
		if obs.ReceiptPrintTotal != nil {
			obs.ReceiptPrintTotal.WithLabelValues("error").Inc()
		}
		s.Logger.Error().Err(err).Str("txn_id", txn.ID).Msg("print receipt")
		return nil
	}
	if obs.ReceiptPrintTotal != nil {
		obs.ReceiptPrintTotal.WithLabelValues("ok").Inc()
	}
	return nil
}
