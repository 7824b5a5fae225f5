package ingest

import (
	"fmt"
	"net/http"
	"time"

	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/lucalabs/luca-backend/pkg/enums"
)

// Refund carries the refund-specific slice of a canonical event. OccurredAt is
// the refund date, which buckets independently of the original order date.
type Refund struct {
	RefundID   string
	Amount     decimal.Decimal
	OccurredAt time.Time
}

// CanonicalEvent is the provider-neutral form every webhook payload is
// normalized into. Downstream consumers never see provider vocabulary.
type CanonicalEvent struct {
	Platform        enums.Platform
	Kind            enums.EventKind
	ProviderEventID string
	AccountID       string
	OrderID         string
	Currency        string
	Amount          decimal.Decimal
	ShippingAmount  decimal.Decimal
	TaxAmount       decimal.Decimal
	DiscountAmount  decimal.Decimal
	CustomerID      *string
	CustomerEmail   *string
	IsNewCustomer   *bool
	LandingPage     *string
	Refund          *Refund
	OccurredAt      time.Time
	Raw             json.RawMessage
}

// EventID builds the canonical idempotency key. Order lifecycle webhooks for
// the same order share one key so re-deliveries and status updates converge to
// a single row. Refunds get their own key; providers without a native refund
// id fall back to a synthesized one including the receipt time.
func (e *CanonicalEvent) EventID(receivedAt time.Time) string {
	if e.Kind == enums.EventKindRefundCreated {
		if e.Refund != nil && e.Refund.RefundID != "" {
			return fmt.Sprintf("%s_refund_%s", e.Platform, e.Refund.RefundID)
		}
		return fmt.Sprintf("%s_refund_%s_%d", e.Platform, e.OrderID, receivedAt.UTC().Unix())
	}
	return fmt.Sprintf("%s_%s", e.Platform, e.OrderID)
}

// IsOrderKind reports whether the event belongs to the order lifecycle.
func (e *CanonicalEvent) IsOrderKind() bool {
	return e.Kind != enums.EventKindRefundCreated
}

// kindRank orders the lifecycle so an out-of-order "created" delivery never
// downgrades a row that already saw "paid". Cancellation outranks everything.
func kindRank(kind enums.EventKind) int {
	switch kind {
	case enums.EventKindOrderCreated:
		return 1
	case enums.EventKindOrderUpdated:
		return 2
	case enums.EventKindOrderPaid:
		return 3
	case enums.EventKindOrderCancelled:
		return 4
	default:
		return 0
	}
}

// Normalizer adapts one provider's webhook surface to the canonical form.
type Normalizer interface {
	Platform() enums.Platform
	// VerifySignature returns (false, nil) when no secret is configured: the
	// explicit degraded mode. A configured secret with a bad digest errors.
	VerifySignature(body []byte, headers http.Header) (bool, error)
	// Normalize returns (nil, nil) for topics the pipeline does not consume.
	Normalize(body []byte, headers http.Header) (*CanonicalEvent, error)
}
