package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lucalabs/luca-backend/pkg/enums"
)

// ClickRecord is a first-party touchpoint captured by the tracking pixel.
// Converted transitions false→true at most once, under a conditional update.
type ClickRecord struct {
	ID                  uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID            uuid.UUID        `gorm:"column:tenant_id;type:uuid;not null;index"`
	Platform            *enums.Platform  `gorm:"column:platform;type:text;uniqueIndex:ux_click_records_platform_click,priority:1"`
	ClickID             *string          `gorm:"column:click_id;uniqueIndex:ux_click_records_platform_click,priority:2"`
	ClickIDParam        *string          `gorm:"column:click_id_param"`
	SessionID           string           `gorm:"column:session_id;not null;index"`
	LandingPage         *string          `gorm:"column:landing_page"`
	ReferrerURL         *string          `gorm:"column:referrer_url"`
	ReferrerDomain      *string          `gorm:"column:referrer_domain"`
	UTMSource           *string          `gorm:"column:utm_source;index:ix_click_records_utm"`
	UTMMedium           *string          `gorm:"column:utm_medium;index:ix_click_records_utm"`
	UTMCampaign         *string          `gorm:"column:utm_campaign;index:ix_click_records_utm"`
	UTMTerm             *string          `gorm:"column:utm_term"`
	UTMContent          *string          `gorm:"column:utm_content"`
	OccurredAt          time.Time        `gorm:"column:occurred_at;not null;index"`
	Converted           bool             `gorm:"column:converted;not null;default:false"`
	ConversionOrderID   *string          `gorm:"column:conversion_order_id"`
	ConversionTimestamp *time.Time       `gorm:"column:conversion_timestamp"`
	ConversionValue     *decimal.Decimal `gorm:"column:conversion_value;type:numeric(14,2)"`
	CreatedAt           time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
