package pixel

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucalabs/luca-backend/pkg/db/models"
)

// Repository persists click records, pixel events, and pixel keys.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a pixel repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// CreateClick inserts a click record.
func (r *Repository) CreateClick(ctx context.Context, click *models.ClickRecord) (*models.ClickRecord, error) {
	if err := r.db.WithContext(ctx).Create(click).Error; err != nil {
		return nil, err
	}
	return click, nil
}

// FindClickByPlatformClickID returns the click record owning a platform click id.
func (r *Repository) FindClickByPlatformClickID(ctx context.Context, tenantID uuid.UUID, platform string, clickID string) (*models.ClickRecord, error) {
	var row models.ClickRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ? AND click_id = ?", tenantID, platform, clickID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// CreateEvent inserts a pixel event.
func (r *Repository) CreateEvent(ctx context.Context, event *models.PixelEvent) (*models.PixelEvent, error) {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

// ListEvents returns the tenant's pixel events inside [from, to), newest first.
func (r *Repository) ListEvents(ctx context.Context, tenantID uuid.UUID, from, to time.Time, limit int) ([]models.PixelEvent, error) {
	var rows []models.PixelEvent
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND occurred_at >= ? AND occurred_at < ?", tenantID, from, to).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateKey inserts a pixel key row (hash only).
func (r *Repository) CreateKey(ctx context.Context, key *models.PixelKey) (*models.PixelKey, error) {
	if err := r.db.WithContext(ctx).Create(key).Error; err != nil {
		return nil, err
	}
	return key, nil
}

// FindActiveKeyByHash returns the unrevoked pixel key matching the hash.
func (r *Repository) FindActiveKeyByHash(ctx context.Context, keyHash string) (*models.PixelKey, error) {
	var row models.PixelKey
	err := r.db.WithContext(ctx).
		Where("key_hash = ? AND revoked_at IS NULL", keyHash).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// TouchKey stamps last_used_at.
func (r *Repository) TouchKey(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PixelKey{}).
		Where("id = ?", id).
		Update("last_used_at", at).Error
}

// RevokeKey stamps revoked_at; revoked keys stop authenticating immediately.
func (r *Repository) RevokeKey(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PixelKey{}).
		Where("id = ? AND tenant_id = ? AND revoked_at IS NULL", id, tenantID).
		Update("revoked_at", at).Error
}
