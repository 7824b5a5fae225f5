package enums

import "fmt"

// EventKind is the canonical vocabulary webhook payloads are normalized into.
// Downstream consumers never see provider-specific topic strings.
type EventKind string

const (
	EventKindOrderCreated   EventKind = "order_created"
	EventKindOrderUpdated   EventKind = "order_updated"
	EventKindOrderPaid      EventKind = "order_paid"
	EventKindOrderCancelled EventKind = "order_cancelled"
	EventKindRefundCreated  EventKind = "refund_created"
)

var validEventKinds = []EventKind{
	EventKindOrderCreated,
	EventKindOrderUpdated,
	EventKindOrderPaid,
	EventKindOrderCancelled,
	EventKindRefundCreated,
}

// String implements fmt.Stringer.
func (k EventKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known EventKind.
func (k EventKind) IsValid() bool {
	for _, candidate := range validEventKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseEventKind converts raw input into an EventKind.
func ParseEventKind(value string) (EventKind, error) {
	for _, candidate := range validEventKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event kind %q", value)
}
