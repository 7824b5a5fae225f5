package enums

// FinancialEventType distinguishes revenue rows from refund rows.
type FinancialEventType string

const (
	// FinancialEventTypeOrder is revenue, bucketed by the order date.
	FinancialEventTypeOrder FinancialEventType = "order"
	// FinancialEventTypeRefund is negative revenue, bucketed by the refund date.
	FinancialEventTypeRefund FinancialEventType = "refund"
)

// String implements fmt.Stringer.
func (t FinancialEventType) String() string {
	return string(t)
}
