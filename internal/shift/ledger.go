package shift

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tillworks/backend-pos/internal/events"
	"github.com/tillworks/backend-pos/internal/obs"
	"github.com/tillworks/backend-pos/internal/pricing"
)

// ErrShiftAlreadyActive is returned when an operator starts a shift while
// already having one open.
var ErrShiftAlreadyActive = errors.New("shift: a shift is already active")

// ErrShiftNotActive is returned when an operation needs an open shift.
var ErrShiftNotActive = errors.New("shift: no active shift")

// ErrNegativeCount is returned when a drawer count has a negative piece count.
var ErrNegativeCount = errors.New("shift: denomination counts cannot be negative")

// DenominationCount is a physical drawer count. Values are piece counts,
// not amounts.
type DenominationCount struct {
	Hundreds int `json:"hundreds"`
	Fifties  int `json:"fifties"`
	Twenties int `json:"twenties"`
	Tens     int `json:"tens"`
	Fives    int `json:"fives"`
	Ones     int `json:"ones"`
	Quarters int `json:"quarters"`
	Dimes    int `json:"dimes"`
	Nickels  int `json:"nickels"`
	Pennies  int `json:"pennies"`
}

// Total converts the piece counts to cents.
func (d DenominationCount) Total() pricing.Money {
	return pricing.Money(d.Hundreds)*10000 +
		pricing.Money(d.Fifties)*5000 +
		pricing.Money(d.Twenties)*2000 +
		pricing.Money(d.Tens)*1000 +
		pricing.Money(d.Fives)*500 +
		pricing.Money(d.Ones)*100 +
		pricing.Money(d.Quarters)*25 +
		pricing.Money(d.Dimes)*10 +
		pricing.Money(d.Nickels)*5 +
		pricing.Money(d.Pennies)
}

// Validate rejects counts with negative pieces.
func (d DenominationCount) Validate() error {
	counts := []struct {
		name string
		n    int
	}{
		{"hundreds", d.Hundreds}, {"fifties", d.Fifties}, {"twenties", d.Twenties},
		{"tens", d.Tens}, {"fives", d.Fives}, {"ones", d.Ones},
		{"quarters", d.Quarters}, {"dimes", d.Dimes}, {"nickels", d.Nickels},
		{"pennies", d.Pennies},
	}
	for _, c := range counts {
		if c.n < 0 {
			return fmt.Errorf("%s is %d: %w", c.name, c.n, ErrNegativeCount)
		}
	}
	return nil
}

// Shift is a drawer session between opening float and reconciliation.
// RunningSales accumulates every settled transaction total regardless of
// tender; the register drawer is reconciled against float plus all sales,
// the way the end-of-day count sheet expects.
type Shift struct {
	ID           string        `json:"id"`
	OperatorID   string        `json:"operatorId"`
	OpeningFloat pricing.Money `json:"openingFloat"`
	RunningSales pricing.Money `json:"runningSales"`
	CashTotal    pricing.Money `json:"cashTotal"`
	CardTotal    pricing.Money `json:"cardTotal"`
	SaleCount    int           `json:"saleCount"`
	StartedAt    time.Time     `json:"startedAt"`
	ClosedAt     time.Time     `json:"closedAt,omitempty"`
}

// ExpectedCash is the drawer balance the count should match.
func (s Shift) ExpectedCash() pricing.Money {
	return s.OpeningFloat + s.RunningSales
}

// Reconciliation is the result of closing a shift against a drawer count.
type Reconciliation struct {
	Shift        Shift             `json:"shift"`
	Counted      DenominationCount `json:"counted"`
	CountedCash  pricing.Money     `json:"countedCash"`
	ExpectedCash pricing.Money     `json:"expectedCash"`
	Variance     pricing.Money     `json:"variance"`
}

// Ledger tracks drawer shifts, one active per operator, and their settled
// totals. RecordSale is idempotent per transaction ID so a retried
// settlement cannot double-count.
type Ledger struct {
	Bus    *events.Bus
	Logger zerolog.Logger
	Now    func() time.Time

	mu       sync.Mutex
	active   map[string]*Shift
	recorded map[string]struct{}
	closed   []Reconciliation
}

func (l *Ledger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

// Start opens a shift for the operator with the given opening float. An
// operator holds at most one open shift; other operators' shifts do not
// conflict.
func (l *Ledger) Start(ctx context.Context, operatorID string, openingFloat pricing.Money) (Shift, error) {
	operatorID = strings.TrimSpace(operatorID)
	if operatorID == "" {
		return Shift{}, errors.New("shift: operator id is required")
	}
	if openingFloat < 0 {
		return Shift{}, errors.New("shift: opening float cannot be negative")
	}
	l.mu.Lock()
	if l.active == nil {
		l.active = make(map[string]*Shift)
	}
	if _, open := l.active[operatorID]; open {
		l.mu.Unlock()
		return Shift{}, ErrShiftAlreadyActive
	}
	s := &Shift{
		ID:           uuid.NewString(),
		OperatorID:   operatorID,
		OpeningFloat: openingFloat,
		StartedAt:    l.now(),
	}
	l.active[operatorID] = s
	if l.recorded == nil {
		l.recorded = make(map[string]struct{})
	}
	opened := *s
	l.mu.Unlock()

	l.emit(ctx, events.TopicShiftOpened, opened.ID, opened)
	return opened, nil
}

// Active returns the operator's open shift, if any.
func (l *Ledger) Active(operatorID string) (Shift, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.active[strings.TrimSpace(operatorID)]
	if !ok {
		return Shift{}, false
	}
	return *s, true
}

// ActiveShiftID returns the identifier of the operator's open shift.
func (l *Ledger) ActiveShiftID(operatorID string) (string, bool) {
	s, ok := l.Active(operatorID)
	if !ok {
		return "", false
	}
	return s.ID, true
}

// RecordSale posts a settled amount to the shift's drawer totals. Duplicate
// transaction IDs are ignored. Negative amounts record refunds from voids
// and returns. Every tender feeds RunningSales; CashTotal and CardTotal are
// the per-tender breakdown.
func (l *Ledger) RecordSale(shiftID, txnID, tender string, amount pricing.Money) error {
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return errors.New("shift: transaction id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.findLocked(shiftID)
	if s == nil {
		return ErrShiftNotActive
	}
	if _, seen := l.recorded[txnID]; seen {
		return nil
	}
	if l.recorded == nil {
		l.recorded = make(map[string]struct{})
	}
	l.recorded[txnID] = struct{}{}
	s.RunningSales += amount
	switch strings.ToLower(strings.TrimSpace(tender)) {
	case "card":
		s.CardTotal += amount
	default:
		s.CashTotal += amount
	}
	if amount > 0 {
		s.SaleCount++
	}
	return nil
}

// Reconcile closes the operator's shift against a physical drawer count.
// A closed shift cannot be recounted; a second call fails with
// ErrShiftNotActive.
func (l *Ledger) Reconcile(ctx context.Context, operatorID string, counted DenominationCount) (Reconciliation, error) {
	if err := counted.Validate(); err != nil {
		return Reconciliation{}, err
	}
	operatorID = strings.TrimSpace(operatorID)
	l.mu.Lock()
	s, ok := l.active[operatorID]
	if !ok {
		l.mu.Unlock()
		return Reconciliation{}, ErrShiftNotActive
	}
	s.ClosedAt = l.now()
	countedCash := counted.Total()
	rec := Reconciliation{
		Shift:        *s,
		Counted:      counted,
		CountedCash:  countedCash,
		ExpectedCash: s.ExpectedCash(),
		Variance:     countedCash - s.ExpectedCash(),
	}
	l.closed = append(l.closed, rec)
	delete(l.active, operatorID)
	l.mu.Unlock()

	if obs.ShiftClosedTotal != nil {
		obs.ShiftClosedTotal.Inc()
	}
	if obs.ShiftVarianceCents != nil {
		obs.ShiftVarianceCents.Observe(float64(rec.Variance))
	}
	if rec.Variance != 0 {
		l.Logger.Warn().
			Str("shift_id", rec.Shift.ID).
			Str("operator_id", operatorID).
			Int64("variance_cents", int64(rec.Variance)).
			Msg("drawer variance at shift close")
	}
	l.emit(ctx, events.TopicShiftClosed, rec.Shift.ID, rec)
	return rec, nil
}

// History returns closed shifts, oldest first.
func (l *Ledger) History() []Reconciliation {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Reconciliation(nil), l.closed...)
}

func (l *Ledger) findLocked(shiftID string) *Shift {
	shiftID = strings.TrimSpace(shiftID)
	for _, s := range l.active {
		if s.ID == shiftID {
			return s
		}
	}
	return nil
}

func (l *Ledger) emit(ctx context.Context, topic, aggregateID string, payload any) {
	if l.Bus == nil {
		return
	}
	if _, err := l.Bus.Emit(ctx, topic, aggregateID, payload); err != nil {
		l.Logger.Error().Err(err).Str("topic", topic).Msg("emit shift event")
	}
}
