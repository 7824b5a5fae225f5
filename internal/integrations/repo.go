package integrations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
)

// Repository exposes integration persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an integration repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts a new integration row.
func (r *Repository) Create(ctx context.Context, integration *models.Integration) (*models.Integration, error) {
	if err := r.db.WithContext(ctx).Create(integration).Error; err != nil {
		return nil, err
	}
	return integration, nil
}

// Update persists the full integration row.
func (r *Repository) Update(ctx context.Context, integration *models.Integration) error {
	return r.db.WithContext(ctx).Save(integration).Error
}

// FindByID returns the integration with the given id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Integration, error) {
	var row models.Integration
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByTenantAndPlatform returns the tenant's integration for a platform
// regardless of status (rows are never hard-deleted).
func (r *Repository) FindByTenantAndPlatform(ctx context.Context, tenantID uuid.UUID, platform enums.Platform) (*models.Integration, error) {
	var row models.Integration
	err := r.db.WithContext(ctx).
		First(&row, "tenant_id = ? AND platform = ?", tenantID, platform).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindConnectedByAccount resolves the owning integration for an inbound
// webhook by (platform, account id). Disconnected rows never match.
func (r *Repository) FindConnectedByAccount(ctx context.Context, platform enums.Platform, accountID string) (*models.Integration, error) {
	var row models.Integration
	err := r.db.WithContext(ctx).
		Where("platform = ? AND account_id = ? AND status <> ?", platform, accountID, enums.IntegrationStatusDisconnected).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByTenant returns all of the tenant's integrations, newest first.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Integration, error) {
	var rows []models.Integration
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListActiveAds returns every active advertising integration across tenants.
// The spend-sync job iterates this set.
func (r *Repository) ListActiveAds(ctx context.Context) ([]models.Integration, error) {
	var rows []models.Integration
	err := r.db.WithContext(ctx).
		Where("status = ? AND platform IN ?", enums.IntegrationStatusActive, []enums.Platform{
			enums.PlatformMeta,
			enums.PlatformGoogle,
			enums.PlatformTikTok,
			enums.PlatformSnapchat,
		}).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateTokens overwrites the stored (encrypted) token material.
func (r *Repository) UpdateTokens(ctx context.Context, id uuid.UUID, accessToken string, refreshToken *string, expiresAt *time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Integration{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"access_token":     accessToken,
			"refresh_token":    refreshToken,
			"token_expires_at": expiresAt,
			"status":           enums.IntegrationStatusActive,
		}).Error
}

// SetStatus updates the lifecycle status; disconnects stamp disconnected_at.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status enums.IntegrationStatus, at time.Time) error {
	updates := map[string]any{"status": status}
	if status == enums.IntegrationStatusDisconnected {
		updates["disconnected_at"] = at
	}
	return r.db.WithContext(ctx).
		Model(&models.Integration{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// StampLastSync records a completed pull sync.
func (r *Repository) StampLastSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Integration{}).
		Where("id = ?", id).
		Update("last_sync_at", at).Error
}
