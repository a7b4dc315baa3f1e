package shift_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tillworks/backend-pos/internal/events"
	"github.com/tillworks/backend-pos/internal/shift"
)

type topicCapture struct {
	topics []string
}

func (c *topicCapture) Notify(_ context.Context, e events.Event) error {
	c.topics = append(c.topics, e.Topic)
	return nil
}

func newLedger(capture *topicCapture) *shift.Ledger {
	return &shift.Ledger{
		Bus: &events.Bus{Notifiers: []events.Notifier{capture}},
		Now: func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) },
	}
}

func TestStartRejectsSecondShiftForSameOperator(t *testing.T) {
	ledger := newLedger(&topicCapture{})

	s, err := ledger.Start(context.Background(), "op-1", 20000)
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)

	_, err = ledger.Start(context.Background(), "op-1", 20000)
	require.ErrorIs(t, err, shift.ErrShiftAlreadyActive)
}

func TestOperatorsOwnIndependentShifts(t *testing.T) {
	ledger := newLedger(&topicCapture{})

	first, err := ledger.Start(context.Background(), "op-1", 20000)
	require.NoError(t, err)
	second, err := ledger.Start(context.Background(), "op-2", 10000)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	require.NoError(t, ledger.RecordSale(first.ID, "TXN0001", "cash", 1080))
	require.NoError(t, ledger.RecordSale(second.ID, "TXN0002", "cash", 540))

	s1, ok := ledger.Active("op-1")
	require.True(t, ok)
	require.EqualValues(t, 1080, s1.RunningSales)
	s2, ok := ledger.Active("op-2")
	require.True(t, ok)
	require.EqualValues(t, 540, s2.RunningSales)

	// Closing one drawer leaves the other open.
	_, err = ledger.Reconcile(context.Background(), "op-1", shift.DenominationCount{Hundreds: 2, Tens: 1, Pennies: 80})
	require.NoError(t, err)
	_, ok = ledger.Active("op-1")
	require.False(t, ok)
	_, ok = ledger.Active("op-2")
	require.True(t, ok)
}

func TestRecordSaleIsIdempotent(t *testing.T) {
	ledger := newLedger(&topicCapture{})
	s, err := ledger.Start(context.Background(), "op-1", 20000)
	require.NoError(t, err)

	require.NoError(t, ledger.RecordSale(s.ID, "TXN0001", "cash", 1080))
	require.NoError(t, ledger.RecordSale(s.ID, "TXN0001", "cash", 1080))
	require.NoError(t, ledger.RecordSale(s.ID, "TXN0002", "card", 540))

	active, ok := ledger.Active("op-1")
	require.True(t, ok)
	require.EqualValues(t, 1620, active.RunningSales)
	require.EqualValues(t, 1080, active.CashTotal)
	require.EqualValues(t, 540, active.CardTotal)
	require.Equal(t, 2, active.SaleCount)
}

func TestRecordSaleRequiresActiveShift(t *testing.T) {
	ledger := newLedger(&topicCapture{})
	require.ErrorIs(t, ledger.RecordSale("nope", "TXN0001", "cash", 100), shift.ErrShiftNotActive)
}

func TestReconcileBalancedDrawer(t *testing.T) {
	capture := &topicCapture{}
	ledger := newLedger(capture)
	s, err := ledger.Start(context.Background(), "op-1", 20000)
	require.NoError(t, err)

	// Two cash sales: $10.80 and $5.40 on a $200.00 float.
	require.NoError(t, ledger.RecordSale(s.ID, "TXN0001", "cash", 1080))
	require.NoError(t, ledger.RecordSale(s.ID, "TXN0002", "cash", 540))

	// $216.20 counted: 2x$100 + 1x$10 + 6x$1 + 20c in coins.
	counted := shift.DenominationCount{Hundreds: 2, Tens: 1, Ones: 6, Dimes: 2}
	rec, err := ledger.Reconcile(context.Background(), "op-1", counted)
	require.NoError(t, err)
	require.EqualValues(t, 21620, rec.CountedCash)
	require.EqualValues(t, 21620, rec.ExpectedCash)
	require.EqualValues(t, 0, rec.Variance)
	require.Equal(t, []string{events.TopicShiftOpened, events.TopicShiftClosed}, capture.topics)

	_, ok := ledger.Active("op-1")
	require.False(t, ok)
	require.Len(t, ledger.History(), 1)
}

func TestCardSalesFeedExpectedCash(t *testing.T) {
	ledger := newLedger(&topicCapture{})
	s, err := ledger.Start(context.Background(), "op-1", 20000)
	require.NoError(t, err)

	require.NoError(t, ledger.RecordSale(s.ID, "TXN0001", "card", 1000))

	rec, err := ledger.Reconcile(context.Background(), "op-1", shift.DenominationCount{Hundreds: 2})
	require.NoError(t, err)
	require.EqualValues(t, 21000, rec.ExpectedCash)
	require.EqualValues(t, -1000, rec.Variance)
	require.EqualValues(t, 1000, rec.Shift.CardTotal)
	require.EqualValues(t, 0, rec.Shift.CashTotal)
}

func TestReconcileReportsVariance(t *testing.T) {
	ledger := newLedger(&topicCapture{})
	s, err := ledger.Start(context.Background(), "op-1", 10000)
	require.NoError(t, err)
	require.NoError(t, ledger.RecordSale(s.ID, "TXN0001", "cash", 500))

	rec, err := ledger.Reconcile(context.Background(), "op-1", shift.DenominationCount{Hundreds: 1})
	require.NoError(t, err)
	require.EqualValues(t, -500, rec.Variance)
}

func TestReconcileIsOneWay(t *testing.T) {
	ledger := newLedger(&topicCapture{})
	_, err := ledger.Start(context.Background(), "op-1", 10000)
	require.NoError(t, err)

	_, err = ledger.Reconcile(context.Background(), "op-1", shift.DenominationCount{Hundreds: 1})
	require.NoError(t, err)

	_, err = ledger.Reconcile(context.Background(), "op-1", shift.DenominationCount{Hundreds: 1})
	require.ErrorIs(t, err, shift.ErrShiftNotActive)
	require.Len(t, ledger.History(), 1)
}

func TestReconcileRejectsNegativeCounts(t *testing.T) {
	ledger := newLedger(&topicCapture{})
	_, err := ledger.Start(context.Background(), "op-1", 10000)
	require.NoError(t, err)

	_, err = ledger.Reconcile(context.Background(), "op-1", shift.DenominationCount{Hundreds: -2})
	require.ErrorIs(t, err, shift.ErrNegativeCount)

	// The shift stays open for a corrected count.
	_, ok := ledger.Active("op-1")
	require.True(t, ok)
}

func TestRefundsReduceDrawer(t *testing.T) {
	ledger := newLedger(&topicCapture{})
	s, err := ledger.Start(context.Background(), "op-1", 0)
	require.NoError(t, err)

	require.NoError(t, ledger.RecordSale(s.ID, "TXN0001", "cash", 1000))
	require.NoError(t, ledger.RecordSale(s.ID, "TXN0002", "cash", -1000))

	active, _ := ledger.Active("op-1")
	require.EqualValues(t, 0, active.RunningSales)
	require.EqualValues(t, 0, active.CashTotal)
	require.Equal(t, 1, active.SaleCount)
}

func TestDenominationTotals(t *testing.T) {
	counted := shift.DenominationCount{
		Hundreds: 1, Fifties: 1, Twenties: 1, Tens: 1, Fives: 1,
		Ones: 1, Quarters: 1, Dimes: 1, Nickels: 1, Pennies: 1,
	}
	require.EqualValues(t, 18641, counted.Total())
}
