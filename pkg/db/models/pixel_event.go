package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lucalabs/luca-backend/pkg/enums"
)

// PixelEvent is a pixel-reported or webhook-derived event. Purchases enter the
// attribution pipeline at pending and receive exactly one terminal transition;
// everything else stays at none.
type PixelEvent struct {
	ID                uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID          uuid.UUID                `gorm:"column:tenant_id;type:uuid;not null;index"`
	EventType         enums.PixelEventType     `gorm:"column:event_type;type:text;not null"`
	SessionID         *string                  `gorm:"column:session_id;index"`
	ClickID           *string                  `gorm:"column:click_id"`
	OrderID           *string                  `gorm:"column:order_id;index"`
	OrderValue        *decimal.Decimal         `gorm:"column:order_value;type:numeric(14,2)"`
	UTMSource         *string                  `gorm:"column:utm_source"`
	UTMMedium         *string                  `gorm:"column:utm_medium"`
	UTMCampaign       *string                  `gorm:"column:utm_campaign"`
	ReferrerURL       *string                  `gorm:"column:referrer_url"`
	ReferrerDomain    *string                  `gorm:"column:referrer_domain"`
	LandingPage       *string                  `gorm:"column:landing_page"`
	Platform          *enums.Platform          `gorm:"column:platform;type:text"`
	AttributionStatus enums.AttributionStatus  `gorm:"column:attribution_status;type:text;not null;default:'none';index"`
	AttributionMethod *enums.AttributionMethod `gorm:"column:attribution_method;type:text"`
	Confidence        *decimal.Decimal         `gorm:"column:confidence;type:numeric(4,2)"`
	MatchedClickID    *uuid.UUID               `gorm:"column:matched_click_id;type:uuid"`
	MatchedAt         *time.Time               `gorm:"column:matched_at"`
	OccurredAt        time.Time                `gorm:"column:occurred_at;not null;index"`
	CreatedAt         time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
