package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SalesSettledTotal counts settled sales by tender type.
	SalesSettledTotal *prometheus.CounterVec
	// SalesAmountCents accumulates settled sale totals in cents by tender type.
	SalesAmountCents *prometheus.CounterVec
	// AuthorizationTotal counts card authorization outcomes.
	AuthorizationTotal *prometheus.CounterVec
	// StockUnderrunTotal counts stock decrements that had to clamp at zero.
	StockUnderrunTotal prometheus.Counter
	// ShiftClosedTotal counts shift reconciliations.
	ShiftClosedTotal prometheus.Counter
	// ShiftVarianceCents records the drawer variance observed at each shift close.
	ShiftVarianceCents prometheus.Histogram
	// ReceiptPrintTotal counts receipt print attempts by outcome.
	ReceiptPrintTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SalesSettledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_settled_total",
			Help:      "Count of settled sales by tender type.",
		}, []string{"tender"})
		SalesAmountCents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_amount_cents_total",
			Help:      "Settled sale totals in cents by tender type.",
		}, []string{"tender"})
		AuthorizationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "card_authorization_total",
			Help:      "Count of card authorization outcomes.",
		}, []string{"result"})
		StockUnderrunTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_underrun_total",
			Help:      "Number of stock decrements clamped at zero after settlement.",
		})
		ShiftClosedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shift_closed_total",
			Help:      "Number of shifts closed by reconciliation.",
		})
		ShiftVarianceCents = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shift_variance_cents",
			Help:      "Drawer variance (counted minus expected) in cents at shift close.",
			Buckets:   []float64{-5000, -1000, -500, -100, 0, 100, 500, 1000, 5000},
		})
		ReceiptPrintTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_print_total",
			Help:      "Count of receipt print attempts by outcome.",
		}, []string{"result"})

		mustRegisterCollector(reg, SalesSettledTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SalesSettledTotal = v
			}
		})
		mustRegisterCollector(reg, SalesAmountCents, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SalesAmountCents = v
			}
		})
		mustRegisterCollector(reg, AuthorizationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				AuthorizationTotal = v
			}
		})
		mustRegisterCollector(reg, StockUnderrunTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				StockUnderrunTotal = v
			}
		})
		mustRegisterCollector(reg, ShiftClosedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ShiftClosedTotal = v
			}
		})
		mustRegisterCollector(reg, ShiftVarianceCents, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				ShiftVarianceCents = v
			}
		})
		mustRegisterCollector(reg, ReceiptPrintTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReceiptPrintTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
