package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucalabs/luca-backend/pkg/enums"
)

// OAuthState is a single-use CSRF token binding a pending authorization to
// {tenant, user, platform}. Consumed exactly once; expired rows are swept.
type OAuthState struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	State      string         `gorm:"column:state;not null;unique"`
	TenantID   uuid.UUID      `gorm:"column:tenant_id;type:uuid;not null"`
	UserID     uuid.UUID      `gorm:"column:user_id;type:uuid;not null"`
	Platform   enums.Platform `gorm:"column:platform;type:text;not null"`
	ShopDomain *string        `gorm:"column:shop_domain"`
	ExpiresAt  time.Time      `gorm:"column:expires_at;not null;index"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
}
