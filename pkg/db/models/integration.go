package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lucalabs/luca-backend/pkg/enums"
)

// Integration holds a tenant's connection to one external platform. Tokens are
// stored encrypted; plaintext only exists in memory around provider calls.
// Rows are never hard-deleted: disconnects flip Status and keep the audit trail.
type Integration struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID      uuid.UUID               `gorm:"column:tenant_id;type:uuid;not null;index;uniqueIndex:ux_integrations_tenant_platform,priority:1"`
	Platform      enums.Platform          `gorm:"column:platform;type:text;not null;uniqueIndex:ux_integrations_tenant_platform,priority:2"`
	AccountID     string                  `gorm:"column:account_id;not null;index:ix_integrations_platform_account"`
	AccountName   *string                 `gorm:"column:account_name"`
	ShopDomain    *string                 `gorm:"column:shop_domain"`
	AccessToken   string                  `gorm:"column:access_token;not null"`
	RefreshToken  *string                 `gorm:"column:refresh_token"`
	TokenExpires  *time.Time              `gorm:"column:token_expires_at"`
	Scopes        *string                 `gorm:"column:scopes"`
	Status        enums.IntegrationStatus `gorm:"column:status;type:text;not null;default:'active'"`
	ClickWindowHr *int                    `gorm:"column:click_window_hours"`
	ViewWindowHr  *int                    `gorm:"column:view_window_hours"`
	LastSyncAt    *time.Time              `gorm:"column:last_sync_at"`
	Metadata      json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	ConnectedAt   time.Time               `gorm:"column:connected_at;not null"`
	DisconnectedAt *time.Time             `gorm:"column:disconnected_at"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// IsConnected reports whether the integration currently holds usable credentials.
func (i Integration) IsConnected() bool {
	return i.Status == enums.IntegrationStatusActive
}
