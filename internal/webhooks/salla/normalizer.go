package sallawebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lucalabs/luca-backend/internal/webhooks/ingest"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
)

const headerSignature = "X-Salla-Signature"

// Normalizer verifies and normalizes Salla webhooks. The signature is a hex
// HMAC-SHA256 over the raw body.
type Normalizer struct {
	secret string
}

// NewNormalizer builds the Salla normalizer. An empty secret enables the
// explicit degraded mode.
func NewNormalizer(secret string) *Normalizer {
	return &Normalizer{secret: secret}
}

// Platform identifies the provider.
func (n *Normalizer) Platform() enums.Platform {
	return enums.PlatformSalla
}

// VerifySignature checks the raw-body HMAC in constant time.
func (n *Normalizer) VerifySignature(body []byte, headers http.Header) (bool, error) {
	if n.secret == "" {
		return false, nil
	}
	mac := hmac.New(sha256.New, []byte(n.secret))
	mac.Write(body)
	calculated := hex.EncodeToString(mac.Sum(nil))
	supplied := headers.Get(headerSignature)
	if supplied == "" || !hmac.Equal([]byte(calculated), []byte(supplied)) {
		return false, pkgerrors.New(pkgerrors.CodeSignature, "salla webhook signature mismatch")
	}
	return true, nil
}

type sallaEnvelope struct {
	Event    string          `json:"event"`
	Merchant sallaMerchant   `json:"merchant"`
	Data     json.RawMessage `json:"data"`
}

type sallaMerchant struct {
	ID json.Number `json:"id"`
}

// Merchant arrives either as {"merchant": {"id": 1}} or {"merchant": 1}.
func (m *sallaMerchant) UnmarshalJSON(data []byte) error {
	type alias struct {
		ID json.Number `json:"id"`
	}
	var object alias
	if err := json.Unmarshal(data, &object); err == nil && object.ID.String() != "" {
		m.ID = object.ID
		return nil
	}
	var scalar json.Number
	if err := json.Unmarshal(data, &scalar); err != nil {
		return err
	}
	m.ID = scalar
	return nil
}

type sallaOrder struct {
	ID        json.Number     `json:"id"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
	Date      *sallaDate      `json:"date"`
	Total     sallaMoney      `json:"total"`
	Shipping  *sallaShipping  `json:"shipping_cost"`
	Tax       *sallaMoney     `json:"tax"`
	Payment   *sallaPayment   `json:"payment"`
	Customer  *sallaCustomer  `json:"customer"`
	Refunded  *sallaMoney     `json:"refunded_amount"`
	URLs      *sallaOrderURLs `json:"urls"`
}

type sallaDate struct {
	Date string `json:"date"`
}

type sallaMoney struct {
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
}

type sallaShipping struct {
	Amount json.Number `json:"amount"`
}

type sallaPayment struct {
	Status string `json:"status"`
}

type sallaCustomer struct {
	ID    json.Number `json:"id"`
	Email string      `json:"email"`
}

type sallaOrderURLs struct {
	Customer string `json:"customer"`
}

// Normalize maps Salla order lifecycle events into the canonical vocabulary.
// A paid payment status upgrades order.updated to order_paid.
func (n *Normalizer) Normalize(body []byte, headers http.Header) (*ingest.CanonicalEvent, error) {
	var envelope sallaEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode salla envelope")
	}

	var kind enums.EventKind
	switch envelope.Event {
	case "order.created":
		kind = enums.EventKindOrderCreated
	case "order.updated":
		kind = enums.EventKindOrderUpdated
	case "order.cancelled":
		kind = enums.EventKindOrderCancelled
	case "order.refunded":
		kind = enums.EventKindRefundCreated
	default:
		return nil, nil
	}

	merchantID := envelope.Merchant.ID.String()
	if merchantID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "salla webhook missing merchant id")
	}

	var order sallaOrder
	if err := json.Unmarshal(envelope.Data, &order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode salla order")
	}
	if order.ID.String() == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "salla order missing id")
	}

	occurredAt := n.orderDate(&order)
	if kind == enums.EventKindOrderUpdated && order.Payment != nil && order.Payment.Status == "paid" {
		kind = enums.EventKindOrderPaid
	}

	event := &ingest.CanonicalEvent{
		Platform:        enums.PlatformSalla,
		Kind:            kind,
		ProviderEventID: order.ID.String(),
		AccountID:       merchantID,
		OrderID:         order.ID.String(),
		Currency:        orDefault(order.Total.Currency, "SAR"),
		Amount:          numberAmount(order.Total.Amount),
		OccurredAt:      occurredAt,
		Raw:             json.RawMessage(body),
	}
	if order.Shipping != nil {
		event.ShippingAmount = numberAmount(order.Shipping.Amount)
	}
	if order.Tax != nil {
		event.TaxAmount = numberAmount(order.Tax.Amount)
	}
	if order.Customer != nil {
		if id := order.Customer.ID.String(); id != "" {
			event.CustomerID = &id
		}
		if order.Customer.Email != "" {
			email := order.Customer.Email
			event.CustomerEmail = &email
		}
	}

	if kind == enums.EventKindRefundCreated {
		amount := event.Amount
		if order.Refunded != nil {
			amount = numberAmount(order.Refunded.Amount)
		}
		// refunds bucket by refund date, not the original order date
		refundedAt := occurredAt
		if order.UpdatedAt != "" {
			refundedAt = n.parseOrderTime(order.UpdatedAt, occurredAt)
		}
		// Salla carries no native refund id; the ingestor synthesizes one
		event.Refund = &ingest.Refund{
			Amount:     amount,
			OccurredAt: refundedAt,
		}
	}
	return event, nil
}

func (n *Normalizer) orderDate(order *sallaOrder) time.Time {
	raw := order.CreatedAt
	if raw == "" && order.Date != nil {
		raw = order.Date.Date
	}
	return n.parseOrderTime(raw, time.Now().UTC())
}

func (n *Normalizer) parseOrderTime(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05.000000", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC()
		}
	}
	return fallback
}

func numberAmount(value json.Number) decimal.Decimal {
	if value.String() == "" {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(value.String())
	if err != nil {
		return decimal.Zero
	}
	return amount
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
