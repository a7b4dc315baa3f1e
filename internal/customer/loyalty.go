package customer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tillworks/backend-pos/internal/events"
	"github.com/tillworks/backend-pos/internal/sales"
)

// LoyaltyAccrual awards points when a sale with an attached customer
// settles, and claws them back on voids and returns. Accrual failures are
// logged, never propagated.
type LoyaltyAccrual struct {
	Svc           *Service
	CentsPerPoint int64
	Logger        zerolog.Logger
}

// Notify implements events.Notifier.
func (a *LoyaltyAccrual) Notify(ctx context.Context, ev events.Event) error {
	switch ev.Topic {
	case events.TopicSaleSettled, events.TopicSaleVoided, events.TopicSaleReturned:
	default:
		return nil
	}
	if a == nil || a.Svc == nil {
		return fmt.Errorf("customer: loyalty accrual not configured")
	}
	var txn sales.Transaction
	if err := json.Unmarshal(ev.Payload, &txn); err != nil {
		return fmt.Errorf("customer: decode %s payload: %w", ev.Topic, err)
	}
	if txn.CustomerID == "" {
		return nil
	}
	id, err := uuid.Parse(txn.CustomerID)
	if err != nil {
		a.Logger.Warn().Str("txn_id", txn.ID).Str("customer_id", txn.CustomerID).Msg("invalid customer id on sale")
		return nil
	}
	c, err := a.Svc.Accrue(ctx, id, txn.Summary.Total, a.CentsPerPoint)
	if err != nil {
		a.Logger.Error().Err(err).Str("txn_id", txn.ID).Str("customer_id", txn.CustomerID).Msg("accrue loyalty points")
		return nil
	}
	a.Logger.Info().
		Str("txn_id", txn.ID).
		Str("customer_id", txn.CustomerID).
		Int64("points", c.LoyaltyPoints).
		Msg("loyalty points updated")
	return nil
}
