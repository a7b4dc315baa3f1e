package receipt

import (
	"fmt"
	"strings"

	"github.com/tillworks/backend-pos/internal/pricing"
	"github.com/tillworks/backend-pos/internal/sales"
)

const lineWidth = 40

// StoreInfo is printed in the receipt header. All fields optional.
type StoreInfo struct {
	Name    string
	Address string
	Phone   string
}

// Render produces the fixed-width receipt text for a transaction.
// Amounts are printed in dollars with two decimals; void and return
// receipts carry negative amounts as stored.
func Render(info StoreInfo, txn sales.Transaction) string {
	var b strings.Builder
	rule := strings.Repeat("=", lineWidth)
	thin := strings.Repeat("-", lineWidth)

	b.WriteString(rule + "\n")
	if info.Name != "" {
		b.WriteString(center(info.Name) + "\n")
	}
	if info.Address != "" {
		b.WriteString(center(info.Address) + "\n")
	}
	if info.Phone != "" {
		b.WriteString(center(info.Phone) + "\n")
	}
	b.WriteString(rule + "\n")

	b.WriteString(pair("Receipt", txn.ID) + "\n")
	if txn.Kind != sales.KindSale {
		b.WriteString(pair("Type", strings.ToUpper(txn.Kind)) + "\n")
		if txn.OriginalID != "" {
			b.WriteString(pair("Original", txn.OriginalID) + "\n")
		}
	}
	b.WriteString(pair("Date", txn.CompletedAt.Format("2006-01-02 15:04")) + "\n")
	b.WriteString(pair("Operator", txn.OperatorID) + "\n")
	b.WriteString(thin + "\n")

	for _, line := range txn.Lines {
		b.WriteString(itemLine(line))
	}
	b.WriteString(thin + "\n")

	b.WriteString(pair("Subtotal", dollars(txn.Summary.Subtotal)) + "\n")
	if txn.Summary.Discount != 0 {
		b.WriteString(pair("Discount", "-"+dollars(txn.Summary.Discount)) + "\n")
	}
	b.WriteString(pair("Tax", dollars(txn.Summary.Tax)) + "\n")
	b.WriteString(pair("TOTAL", dollars(txn.Summary.Total)) + "\n")
	b.WriteString(thin + "\n")

	switch txn.TenderType {
	case "card":
		b.WriteString(pair("Card", dollars(txn.Summary.Total)) + "\n")
		if txn.AuthRef != "" {
			b.WriteString(pair("Auth", txn.AuthRef) + "\n")
		}
	default:
		b.WriteString(pair("Cash", dollars(txn.Tendered)) + "\n")
		b.WriteString(pair("Change", dollars(txn.Change)) + "\n")
	}

	b.WriteString(rule + "\n")
	b.WriteString(center("Thank you!") + "\n")
	b.WriteString(rule + "\n")
	return b.String()
}

// itemLine formats "Name xQty" left and the extended amount right,
// with the per-line discount on its own indented row.
func itemLine(line sales.LineItem) string {
	gross := line.UnitPrice * pricing.Money(line.Qty)
	label := fmt.Sprintf("%s x%d", line.Name, line.Qty)
	out := pair(label, dollars(gross)) + "\n"
	if line.Discount != 0 {
		out += pair("  discount", "-"+dollars(line.Discount)) + "\n"
	}
	return out
}

func pair(left, right string) string {
	pad := lineWidth - len(left) - len(right)
	if pad < 1 {
		pad = 1
	}
	return left + strings.Repeat(" ", pad) + right
}

func center(s string) string {
	if len(s) >= lineWidth {
		return s
	}
	return strings.Repeat(" ", (lineWidth-len(s))/2) + s
}

func dollars(m pricing.Money) string {
	neg := ""
	if m < 0 {
		neg = "-"
		m = -m
	}
	return fmt.Sprintf("%s$%d.%02d", neg, m/100, m%100)
}
