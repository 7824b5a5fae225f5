package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lucalabs/luca-backend/pkg/enums"
)

// FinancialEvent is one normalized order or refund. EventID is the idempotency
// key: unique per tenant, so provider re-deliveries converge to one row.
// Amount is signed — refunds are negative. OccurredAt carries the date basis:
// order date for orders, refund date for refunds.
type FinancialEvent struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID       uuid.UUID                `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:ux_financial_events_tenant_event,priority:1;index:ix_financial_events_tenant_occurred,priority:1"`
	IntegrationID  *uuid.UUID               `gorm:"column:integration_id;type:uuid"`
	Platform       enums.Platform           `gorm:"column:platform;type:text;not null"`
	EventID        string                   `gorm:"column:event_id;not null;uniqueIndex:ux_financial_events_tenant_event,priority:2"`
	Type           enums.FinancialEventType `gorm:"column:type;type:text;not null"`
	Kind           enums.EventKind          `gorm:"column:kind;type:text;not null"`
	OrderID        string                   `gorm:"column:order_id;not null;index"`
	RefundID       *string                  `gorm:"column:refund_id"`
	Currency       string                   `gorm:"column:currency;not null;default:'USD'"`
	Amount         decimal.Decimal          `gorm:"column:amount;type:numeric(14,2);not null"`
	ShippingAmount decimal.Decimal          `gorm:"column:shipping_amount;type:numeric(14,2);not null;default:0"`
	TaxAmount      decimal.Decimal          `gorm:"column:tax_amount;type:numeric(14,2);not null;default:0"`
	DiscountAmount decimal.Decimal          `gorm:"column:discount_amount;type:numeric(14,2);not null;default:0"`
	CustomerID     *string                  `gorm:"column:customer_id"`
	CustomerEmail  *string                  `gorm:"column:customer_email"`
	IsNewCustomer  *bool                    `gorm:"column:is_new_customer"`
	LandingPage    *string                  `gorm:"column:landing_page"`
	OccurredAt     time.Time                `gorm:"column:occurred_at;not null;index:ix_financial_events_tenant_occurred,priority:2"`
	Raw            json.RawMessage          `gorm:"column:raw;type:jsonb"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
