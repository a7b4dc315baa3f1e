package events

// Topic constants for domain events emitted by the terminal.
const (
	TopicSaleSettled   = "sale.settled"
	TopicSaleVoided    = "sale.voided"
	TopicSaleReturned  = "sale.returned"
	TopicShiftOpened   = "shift.opened"
	TopicShiftClosed   = "shift.closed"
	TopicStockUnderrun = "stock.underrun"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicSaleSettled,
		TopicSaleVoided,
		TopicSaleReturned,
		TopicShiftOpened,
		TopicShiftClosed,
		TopicStockUnderrun,
	}
}
