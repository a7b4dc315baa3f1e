package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tillworks/backend-pos/internal/events"
	"github.com/tillworks/backend-pos/internal/pricing"
)

// ErrNotFound indicates the transaction does not exist.
var ErrNotFound = errors.New("sales: transaction not found")

// ErrNotVoidable is returned when the original transaction cannot accept a
// successor (wrong kind, or already voided/returned).
var ErrNotVoidable = errors.New("sales: transaction cannot be voided or returned")

// ErrInvalidReturn is returned when return quantities exceed what was sold.
var ErrInvalidReturn = errors.New("sales: invalid return quantities")

// Recorder posts settlement amounts to the shift drawer ledger.
type Recorder interface {
	RecordSale(shiftID, txnID, tender string, amount pricing.Money) error
}

// Service owns the transaction ledger and the void/return flows.
type Service struct {
	Store  *Store
	Bus    *events.Bus
	Drawer Recorder
	TaxBps int
	Logger zerolog.Logger
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ReturnLine selects how many units of a sold line come back.
type ReturnLine struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// Get returns a single transaction.
func (s *Service) Get(_ context.Context, id string) (Transaction, error) {
	t, ok := s.Store.Get(strings.TrimSpace(id))
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return t, nil
}

// List returns the ledger newest-first.
func (s *Service) List(_ context.Context) []Transaction {
	all := s.Store.All()
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all
}

// Void cancels a settled sale by appending a reversing transaction. The
// original record keeps its lines and gains a pointer to the void.
func (s *Service) Void(ctx context.Context, originalID, operatorID, shiftID, reason string) (Transaction, error) {
	original, ok := s.Store.Get(strings.TrimSpace(originalID))
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if original.Kind != KindSale || original.Status != StatusSettled {
		return Transaction{}, ErrNotVoidable
	}
	successor := Transaction{
		ID:          s.Store.NextID(),
		Kind:        KindVoid,
		Status:      StatusSettled,
		OriginalID:  original.ID,
		OperatorID:  operatorID,
		ShiftID:     shiftID,
		CustomerID:  original.CustomerID,
		TenderType:  original.TenderType,
		Lines:       negateLines(original.Lines),
		Summary:     negateSummary(original.Summary),
		Reason:      strings.TrimSpace(reason),
		CompletedAt: s.now(),
	}
	if err := s.Store.Append(successor); err != nil {
		return Transaction{}, err
	}
	if err := s.Store.MarkSuperseded(original.ID, successor.ID, KindVoid); err != nil {
		return Transaction{}, err
	}
	if s.Drawer != nil {
		if err := s.Drawer.RecordSale(shiftID, successor.ID, successor.TenderType, successor.Summary.Total); err != nil {
			s.Logger.Error().Err(err).Str("txn_id", successor.ID).Msg("record void in drawer")
		}
	}
	s.emit(ctx, events.TopicSaleVoided, successor)
	return successor, nil
}

// Return refunds some or all units of a settled sale as a new transaction.
// Nil lines means a full return. Unit prices and per-unit discounts come
// from the original record, never the current catalog.
func (s *Service) Return(ctx context.Context, originalID, operatorID, shiftID, reason string, lines []ReturnLine) (Transaction, error) {
	original, ok := s.Store.Get(strings.TrimSpace(originalID))
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if original.Kind != KindSale || original.Status != StatusSettled {
		return Transaction{}, ErrNotVoidable
	}
	selected, err := selectReturnLines(original.Lines, lines)
	if err != nil {
		return Transaction{}, err
	}
	items := make([]pricing.Item, 0, len(selected))
	for _, l := range selected {
		items = append(items, pricing.Item{Qty: l.Qty, UnitPrice: l.UnitPrice, Discount: l.Discount})
	}
	summary := pricing.Compute(items, s.TaxBps)
	successor := Transaction{
		ID:          s.Store.NextID(),
		Kind:        KindReturn,
		Status:      StatusSettled,
		OriginalID:  original.ID,
		OperatorID:  operatorID,
		ShiftID:     shiftID,
		CustomerID:  original.CustomerID,
		TenderType:  original.TenderType,
		Lines:       negateLines(selected),
		Summary:     negateSummary(summary),
		Reason:      strings.TrimSpace(reason),
		CompletedAt: s.now(),
	}
	if err := s.Store.Append(successor); err != nil {
		return Transaction{}, err
	}
	if err := s.Store.MarkSuperseded(original.ID, successor.ID, KindReturn); err != nil {
		return Transaction{}, err
	}
	if s.Drawer != nil {
		if err := s.Drawer.RecordSale(shiftID, successor.ID, successor.TenderType, successor.Summary.Total); err != nil {
			s.Logger.Error().Err(err).Str("txn_id", successor.ID).Msg("record return in drawer")
		}
	}
	s.emit(ctx, events.TopicSaleReturned, successor)
	return successor, nil
}

func (s *Service) emit(ctx context.Context, topic string, t Transaction) {
	if s.Bus == nil {
		return
	}
	if _, err := s.Bus.Emit(ctx, topic, t.ID, t); err != nil {
		s.Logger.Error().Err(err).Str("topic", topic).Str("txn_id", t.ID).Msg("emit sale event")
	}
}

func selectReturnLines(sold []LineItem, requested []ReturnLine) ([]LineItem, error) {
	if len(requested) == 0 {
		return append([]LineItem(nil), sold...), nil
	}
	bySKU := make(map[string]LineItem, len(sold))
	for _, l := range sold {
		bySKU[l.SKU] = l
	}
	out := make([]LineItem, 0, len(requested))
	for _, req := range requested {
		line, ok := bySKU[strings.ToUpper(strings.TrimSpace(req.SKU))]
		if !ok {
			return nil, fmt.Errorf("sku %s not on original sale: %w", req.SKU, ErrInvalidReturn)
		}
		if req.Qty < 1 || req.Qty > line.Qty {
			return nil, fmt.Errorf("sku %s qty %d out of range: %w", req.SKU, req.Qty, ErrInvalidReturn)
		}
		perUnitDiscount := line.Discount / pricing.Money(line.Qty)
		out = append(out, LineItem{
			ProductID: line.ProductID,
			SKU:       line.SKU,
			Name:      line.Name,
			Qty:       req.Qty,
			UnitPrice: line.UnitPrice,
			Discount:  perUnitDiscount * pricing.Money(req.Qty),
		})
	}
	return out, nil
}

func negateLines(lines []LineItem) []LineItem {
	out := make([]LineItem, len(lines))
	for i, l := range lines {
		out[i] = l
		out[i].Qty = -l.Qty
	}
	return out
}

func negateSummary(sum pricing.Summary) pricing.Summary {
	return pricing.Summary{
		Subtotal: -sum.Subtotal,
		Discount: -sum.Discount,
		Tax:      -sum.Tax,
		Total:    -sum.Total,
	}
}
