package reports_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tillworks/backend-pos/internal/catalog"
	"github.com/tillworks/backend-pos/internal/pricing"
	"github.com/tillworks/backend-pos/internal/reports"
	"github.com/tillworks/backend-pos/internal/sales"
)

var day = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(2025, 6, 2, hour, minute, 0, 0, time.UTC)
}

func seedStore(t *testing.T) *sales.Store {
	t.Helper()
	store := sales.NewStore()
	txns := []sales.Transaction{
		{
			ID: "TXN0001", Kind: sales.KindSale, Status: sales.StatusSettled,
			TenderType: "cash",
			Lines: []sales.LineItem{
				{SKU: "BEV001", Name: "Latte", Qty: 2, UnitPrice: 450},
			},
			Summary:     pricing.Summary{Subtotal: 900, Tax: 72, Total: 972},
			CompletedAt: at(9, 15),
		},
		{
			ID: "TXN0002", Kind: sales.KindSale, Status: sales.StatusSettled,
			TenderType: "card",
			Lines: []sales.LineItem{
				{SKU: "BAK001", Name: "Croissant", Qty: 3, UnitPrice: 350},
			},
			Summary:     pricing.Summary{Subtotal: 1050, Tax: 84, Total: 1134},
			CompletedAt: at(12, 40),
		},
		{
			ID: "TXN0003", Kind: sales.KindVoid, Status: sales.StatusSettled,
			OriginalID: "TXN0001", TenderType: "cash",
			Lines: []sales.LineItem{
				{SKU: "BEV001", Name: "Latte", Qty: -2, UnitPrice: 450},
			},
			Summary:     pricing.Summary{Subtotal: -900, Tax: -72, Total: -972},
			CompletedAt: at(12, 55),
		},
		{
			// Late-night sale folds into the 21:00 bucket.
			ID: "TXN0004", Kind: sales.KindSale, Status: sales.StatusSettled,
			TenderType: "cash",
			Lines: []sales.LineItem{
				{SKU: "BEV001", Name: "Latte", Qty: 1, UnitPrice: 450},
			},
			Summary:     pricing.Summary{Subtotal: 450, Tax: 36, Total: 486},
			CompletedAt: at(23, 5),
		},
		{
			// Previous day, excluded from every report.
			ID: "TXN0005", Kind: sales.KindSale, Status: sales.StatusSettled,
			TenderType: "cash",
			Lines: []sales.LineItem{
				{SKU: "BEV001", Name: "Latte", Qty: 9, UnitPrice: 450},
			},
			Summary:     pricing.Summary{Subtotal: 4050, Tax: 324, Total: 4374},
			CompletedAt: time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC),
		},
	}
	for _, txn := range txns {
		require.NoError(t, store.Append(txn))
	}
	return store
}

func TestDailySummaryNetsOutVoids(t *testing.T) {
	svc := &reports.Service{Sales: seedStore(t)}
	sum := svc.DailySummary(context.Background(), day)

	require.Equal(t, "2025-06-02", sum.Date)
	// 972 + 1134 - 972 + 486
	require.Equal(t, pricing.Money(1620), sum.Revenue)
	require.Equal(t, pricing.Money(486), sum.CashRevenue)
	require.Equal(t, pricing.Money(1134), sum.CardRevenue)
	require.Equal(t, 3, sum.TransactionCount)
	require.Equal(t, 1, sum.VoidCount)
	// 2 + 3 - 2 + 1
	require.Equal(t, 4, sum.ItemsSold)
	require.Equal(t, pricing.Money(540), sum.AverageSale)
}

func TestHourlyBucketsCoverBusinessHours(t *testing.T) {
	svc := &reports.Service{Sales: seedStore(t)}
	buckets := svc.Hourly(context.Background(), day)

	require.Len(t, buckets, 14)
	require.Equal(t, 8, buckets[0].Hour)
	require.Equal(t, 21, buckets[len(buckets)-1].Hour)

	byHour := make(map[int]reports.HourlyBucket, len(buckets))
	for _, b := range buckets {
		byHour[b.Hour] = b
	}
	require.Equal(t, pricing.Money(972), byHour[9].Revenue)
	// Sale and its void land in the same hour.
	require.Equal(t, pricing.Money(162), byHour[12].Revenue)
	require.Equal(t, 2, byHour[12].Count)
	// 23:05 folded into the closing bucket.
	require.Equal(t, pricing.Money(486), byHour[21].Revenue)
}

func TestTopProductsRanksByNetRevenue(t *testing.T) {
	svc := &reports.Service{Sales: seedStore(t)}
	ranked := svc.TopProducts(context.Background(), day, 5)

	require.Len(t, ranked, 2)
	// Croissant: 1050. Latte: 900 - 900 + 450 = 450.
	require.Equal(t, "BAK001", ranked[0].SKU)
	require.Equal(t, pricing.Money(1050), ranked[0].Revenue)
	require.Equal(t, "BEV001", ranked[1].SKU)
	require.Equal(t, pricing.Money(450), ranked[1].Revenue)
	require.Equal(t, 1, ranked[1].QtySold)

	top1 := svc.TopProducts(context.Background(), day, 1)
	require.Len(t, top1, 1)
}

func TestTopProductsComputesMarginFromCatalogCost(t *testing.T) {
	products := catalog.NewStore()
	require.NoError(t, products.Insert(catalog.Product{
		ID: uuid.New(), SKU: "BAK001", Name: "Croissant", CostPrice: 80, CashPrice: 300, Stock: 45,
	}))
	svc := &reports.Service{Sales: seedStore(t), Products: products}

	ranked := svc.TopProducts(context.Background(), day, 5)
	require.Equal(t, "BAK001", ranked[0].SKU)
	// 1050 revenue less 3 x 80 cost.
	require.Equal(t, pricing.Money(810), ranked[0].Margin)
	// Latte is not in the catalog, so its margin stays zero.
	require.Equal(t, pricing.Money(0), ranked[1].Margin)
}
