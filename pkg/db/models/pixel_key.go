package models

import (
	"time"

	"github.com/google/uuid"
)

// PixelKey authenticates tracking-pixel ingestion for a tenant. Only the
// SHA-256 of the key is stored.
type PixelKey struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID   uuid.UUID  `gorm:"column:tenant_id;type:uuid;not null;index"`
	KeyHash    string     `gorm:"column:key_hash;not null;unique"`
	Name       *string    `gorm:"column:name"`
	LastUsedAt *time.Time `gorm:"column:last_used_at"`
	RevokedAt  *time.Time `gorm:"column:revoked_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}
