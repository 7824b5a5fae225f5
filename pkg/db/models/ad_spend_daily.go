package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lucalabs/luca-backend/pkg/enums"
)

// AdSpendDaily is one day of spend for one ad account, bucketed by the spend
// date the platform reports. Re-syncs upsert in place.
type AdSpendDaily struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID      uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:ux_ad_spend_daily_bucket,priority:1"`
	IntegrationID uuid.UUID       `gorm:"column:integration_id;type:uuid;not null"`
	Platform      enums.Platform  `gorm:"column:platform;type:text;not null;uniqueIndex:ux_ad_spend_daily_bucket,priority:3"`
	AccountID     string          `gorm:"column:account_id;not null;uniqueIndex:ux_ad_spend_daily_bucket,priority:4"`
	Date          time.Time       `gorm:"column:date;type:date;not null;uniqueIndex:ux_ad_spend_daily_bucket,priority:2"`
	Spend         decimal.Decimal `gorm:"column:spend;type:numeric(14,2);not null"`
	Impressions   int64           `gorm:"column:impressions;not null;default:0"`
	Clicks        int64           `gorm:"column:clicks;not null;default:0"`
	Currency      string          `gorm:"column:currency;not null;default:'USD'"`
	SyncedAt      time.Time       `gorm:"column:synced_at;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
