package reports

import (
	"context"
	"sort"
	"time"

	"github.com/tillworks/backend-pos/internal/catalog"
	"github.com/tillworks/backend-pos/internal/pricing"
	"github.com/tillworks/backend-pos/internal/sales"
)

// Business hours covered by the hourly report.
const (
	hourlyStart = 8
	hourlyEnd   = 21
)

// Summary aggregates one day of settled activity. Voids and returns carry
// negative totals, so revenue is net of reversals.
type Summary struct {
	Date             string        `json:"date"`
	Revenue          pricing.Money `json:"revenue"`
	CashRevenue      pricing.Money `json:"cashRevenue"`
	CardRevenue      pricing.Money `json:"cardRevenue"`
	TransactionCount int           `json:"transactionCount"`
	ItemsSold        int           `json:"itemsSold"`
	AverageSale      pricing.Money `json:"averageSale"`
	VoidCount        int           `json:"voidCount"`
	ReturnCount      int           `json:"returnCount"`
}

// HourlyBucket is net revenue for one business hour.
type HourlyBucket struct {
	Hour    int           `json:"hour"`
	Revenue pricing.Money `json:"revenue"`
	Count   int           `json:"count"`
}

// ProductRank is one row of the top-products report. Margin is net revenue
// less the catalog cost of the units moved; it stays zero when the SKU no
// longer resolves.
type ProductRank struct {
	SKU     string        `json:"sku"`
	Name    string        `json:"name"`
	QtySold int           `json:"qtySold"`
	Revenue pricing.Money `json:"revenue"`
	Margin  pricing.Money `json:"margin"`
}

// Service computes reports on demand from the transaction store. Products
// is optional and only feeds the margin column.
type Service struct {
	Sales    *sales.Store
	Products *catalog.Store
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func (s *Service) dayTransactions(day time.Time) []sales.Transaction {
	all := s.Sales.All()
	out := make([]sales.Transaction, 0, len(all))
	for _, t := range all {
		if sameDay(t.CompletedAt, day) {
			out = append(out, t)
		}
	}
	return out
}

// DailySummary reports net revenue and counts for the given day.
func (s *Service) DailySummary(_ context.Context, day time.Time) Summary {
	sum := Summary{Date: day.UTC().Format("2006-01-02")}
	saleCount := 0
	for _, t := range s.dayTransactions(day) {
		sum.Revenue += t.Summary.Total
		if t.TenderType == "card" {
			sum.CardRevenue += t.Summary.Total
		} else {
			sum.CashRevenue += t.Summary.Total
		}
		switch t.Kind {
		case sales.KindSale:
			sum.TransactionCount++
			saleCount++
		case sales.KindVoid:
			sum.VoidCount++
		case sales.KindReturn:
			sum.ReturnCount++
		}
		for _, line := range t.Lines {
			sum.ItemsSold += line.Qty
		}
	}
	if saleCount > 0 {
		sum.AverageSale = sum.Revenue / pricing.Money(saleCount)
	}
	return sum
}

// Hourly buckets the day's net revenue into business hours 8:00 through
// 21:00. Activity outside those hours folds into the nearest edge bucket.
func (s *Service) Hourly(_ context.Context, day time.Time) []HourlyBucket {
	buckets := make([]HourlyBucket, 0, hourlyEnd-hourlyStart+1)
	for h := hourlyStart; h <= hourlyEnd; h++ {
		buckets = append(buckets, HourlyBucket{Hour: h})
	}
	for _, t := range s.dayTransactions(day) {
		h := t.CompletedAt.UTC().Hour()
		if h < hourlyStart {
			h = hourlyStart
		}
		if h > hourlyEnd {
			h = hourlyEnd
		}
		b := &buckets[h-hourlyStart]
		b.Revenue += t.Summary.Total
		b.Count++
	}
	return buckets
}

// TopProducts ranks SKUs by net revenue for the day. Returned and voided
// lines subtract from a product's rank.
func (s *Service) TopProducts(_ context.Context, day time.Time, limit int) []ProductRank {
	if limit <= 0 {
		limit = 5
	}
	bySKU := make(map[string]*ProductRank)
	order := make([]string, 0)
	for _, t := range s.dayTransactions(day) {
		for _, line := range t.Lines {
			r, ok := bySKU[line.SKU]
			if !ok {
				r = &ProductRank{SKU: line.SKU, Name: line.Name}
				bySKU[line.SKU] = r
				order = append(order, line.SKU)
			}
			r.QtySold += line.Qty
			r.Revenue += line.UnitPrice*pricing.Money(line.Qty) - line.Discount
		}
	}
	ranked := make([]ProductRank, 0, len(order))
	for _, sku := range order {
		r := *bySKU[sku]
		if s.Products != nil {
			if p, err := s.Products.GetByCode(sku); err == nil {
				r.Margin = r.Revenue - p.CostPrice*pricing.Money(r.QtySold)
			}
		}
		ranked = append(ranked, r)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Revenue > ranked[j].Revenue })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
