package shopifywebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lucalabs/luca-backend/internal/oauth"
	"github.com/lucalabs/luca-backend/internal/webhooks/ingest"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
)

const (
	headerTopic      = "X-Shopify-Topic"
	headerHmac       = "X-Shopify-Hmac-Sha256"
	headerShopDomain = "X-Shopify-Shop-Domain"
)

var topicKinds = map[string]enums.EventKind{
	"orders/create":    enums.EventKindOrderCreated,
	"orders/updated":   enums.EventKindOrderUpdated,
	"orders/paid":      enums.EventKindOrderPaid,
	"orders/cancelled": enums.EventKindOrderCancelled,
	"refunds/create":   enums.EventKindRefundCreated,
}

// Normalizer verifies and normalizes Shopify webhooks. The HMAC digest is a
// base64 SHA-256 over the raw body.
type Normalizer struct {
	secret string
}

// NewNormalizer builds the Shopify normalizer. An empty secret enables the
// explicit degraded mode: deliveries pass unverified and get logged upstream.
func NewNormalizer(secret string) *Normalizer {
	return &Normalizer{secret: secret}
}

// Platform identifies the provider.
func (n *Normalizer) Platform() enums.Platform {
	return enums.PlatformShopify
}

// VerifySignature checks the raw-body HMAC in constant time.
func (n *Normalizer) VerifySignature(body []byte, headers http.Header) (bool, error) {
	if n.secret == "" {
		return false, nil
	}
	mac := hmac.New(sha256.New, []byte(n.secret))
	mac.Write(body)
	calculated := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	supplied := headers.Get(headerHmac)
	if supplied == "" || !hmac.Equal([]byte(calculated), []byte(supplied)) {
		return false, pkgerrors.New(pkgerrors.CodeSignature, "shopify webhook signature mismatch")
	}
	return true, nil
}

// Normalize maps a Shopify topic into the canonical event vocabulary. Topics
// outside the order/refund lifecycle are ignored.
func (n *Normalizer) Normalize(body []byte, headers http.Header) (*ingest.CanonicalEvent, error) {
	kind, ok := topicKinds[headers.Get(headerTopic)]
	if !ok {
		return nil, nil
	}

	accountID := oauth.NormalizeShopDomain(headers.Get(headerShopDomain))
	if accountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing shop domain header")
	}

	if kind == enums.EventKindRefundCreated {
		return n.normalizeRefund(body, accountID)
	}
	return n.normalizeOrder(body, accountID, kind)
}

type shopifyOrder struct {
	ID             json.Number      `json:"id"`
	CreatedAt      string           `json:"created_at"`
	Currency       string           `json:"currency"`
	TotalPrice     string           `json:"total_price"`
	TotalTax       string           `json:"total_tax"`
	TotalDiscounts string           `json:"total_discounts"`
	LandingSite    string           `json:"landing_site"`
	TotalShipping  *shopifyMoneySet `json:"total_shipping_price_set"`
	Customer       *shopifyCustomer `json:"customer"`
}

type shopifyMoneySet struct {
	ShopMoney struct {
		Amount string `json:"amount"`
	} `json:"shop_money"`
}

type shopifyCustomer struct {
	ID          json.Number `json:"id"`
	Email       string      `json:"email"`
	OrdersCount *int        `json:"orders_count"`
}

type shopifyRefund struct {
	ID           json.Number          `json:"id"`
	OrderID      json.Number          `json:"order_id"`
	CreatedAt    string               `json:"created_at"`
	Transactions []shopifyTransaction `json:"transactions"`
}

type shopifyTransaction struct {
	Amount string `json:"amount"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
}

func (n *Normalizer) normalizeOrder(body []byte, accountID string, kind enums.EventKind) (*ingest.CanonicalEvent, error) {
	var order shopifyOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode shopify order")
	}
	if order.ID.String() == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shopify order missing id")
	}

	event := &ingest.CanonicalEvent{
		Platform:        enums.PlatformShopify,
		Kind:            kind,
		ProviderEventID: order.ID.String(),
		AccountID:       accountID,
		OrderID:         order.ID.String(),
		Currency:        orDefault(order.Currency, "USD"),
		Amount:          parseAmount(order.TotalPrice),
		TaxAmount:       parseAmount(order.TotalTax),
		DiscountAmount:  parseAmount(order.TotalDiscounts),
		OccurredAt:      parseTimestamp(order.CreatedAt, time.Now().UTC()),
		Raw:             json.RawMessage(body),
	}
	if order.TotalShipping != nil {
		event.ShippingAmount = parseAmount(order.TotalShipping.ShopMoney.Amount)
	}
	if order.LandingSite != "" {
		landing := order.LandingSite
		event.LandingPage = &landing
	}
	if order.Customer != nil {
		if id := order.Customer.ID.String(); id != "" {
			event.CustomerID = &id
		}
		if order.Customer.Email != "" {
			email := order.Customer.Email
			event.CustomerEmail = &email
		}
		if order.Customer.OrdersCount != nil {
			isNew := *order.Customer.OrdersCount <= 1
			event.IsNewCustomer = &isNew
		}
	}
	return event, nil
}

func (n *Normalizer) normalizeRefund(body []byte, accountID string) (*ingest.CanonicalEvent, error) {
	var refund shopifyRefund
	if err := json.Unmarshal(body, &refund); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode shopify refund")
	}
	if refund.OrderID.String() == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shopify refund missing order id")
	}

	total := decimal.Zero
	for _, txn := range refund.Transactions {
		if txn.Kind != "" && txn.Kind != "refund" {
			continue
		}
		if txn.Status != "" && txn.Status != "success" {
			continue
		}
		total = total.Add(parseAmount(txn.Amount))
	}

	occurredAt := parseTimestamp(refund.CreatedAt, time.Now().UTC())
	return &ingest.CanonicalEvent{
		Platform:        enums.PlatformShopify,
		Kind:            enums.EventKindRefundCreated,
		ProviderEventID: refund.ID.String(),
		AccountID:       accountID,
		OrderID:         refund.OrderID.String(),
		Currency:        "USD",
		Refund: &ingest.Refund{
			RefundID:   refund.ID.String(),
			Amount:     total,
			OccurredAt: occurredAt,
		},
		OccurredAt: occurredAt,
		Raw:        json.RawMessage(body),
	}, nil
}

func parseAmount(value string) decimal.Decimal {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

func parseTimestamp(value string, fallback time.Time) time.Time {
	if value == "" {
		return fallback
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return fallback
	}
	return parsed.UTC()
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
