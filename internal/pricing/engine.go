package pricing

// Money represents a monetary value stored in minor units (cents).
type Money = int64

// Item describes a sale line used for pricing calculation. Discount is a
// per-line monetary amount already validated against the line subtotal.
type Item struct {
	Qty       int
	UnitPrice Money
	Discount  Money
}

// Summary aggregates computed pricing components for a sale.
type Summary struct {
	Subtotal Money
	Discount Money
	Tax      Money
	Total    Money
}

// LineTotal computes a single line's total: qty x unit price minus the line
// discount, floored at zero.
func LineTotal(it Item) Money {
	if it.Qty <= 0 {
		return 0
	}
	total := Money(it.Qty)*it.UnitPrice - it.Discount
	if total < 0 {
		total = 0
	}
	return total
}

// Compute calculates sale totals from the provided lines. The subtotal is the
// sum of line totals (net of per-line discounts); tax is applied to the
// subtotal at the configured rate in basis points. Integer cents throughout,
// so repeated additions cannot drift.
func Compute(items []Item, taxBps int) Summary {
	var subtotal, discount Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal += LineTotal(it)
		if it.Discount > 0 {
			discount += it.Discount
		}
	}
	if taxBps < 0 {
		taxBps = 0
	}
	tax := (subtotal * Money(taxBps)) / 10000
	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    subtotal + tax,
	}
}
