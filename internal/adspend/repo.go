package adspend

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
)

// Repository persists pulled spend rows and the sync bookkeeping.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListSyncable(ctx context.Context, platforms []enums.Platform) ([]*models.Integration, error)
	UpsertSpend(ctx context.Context, row *models.AdSpendDaily) error
	StampLastSync(ctx context.Context, integrationID uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an ad-spend repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ListSyncable returns active integrations on the given ad platforms.
func (r *repository) ListSyncable(ctx context.Context, platforms []enums.Platform) ([]*models.Integration, error) {
	var rows []*models.Integration
	err := r.db.WithContext(ctx).
		Where("platform IN ?", platforms).
		Where("status = ?", enums.IntegrationStatusActive).
		Find(&rows).Error
	return rows, err
}

// UpsertSpend writes one day of spend, replacing the previous sync's row for
// the same (tenant, date, platform, account) bucket.
func (r *repository) UpsertSpend(ctx context.Context, row *models.AdSpendDaily) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "tenant_id"}, {Name: "date"}, {Name: "platform"}, {Name: "account_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"spend", "impressions", "clicks", "currency", "synced_at", "updated_at",
			}),
		}).
		Create(row).Error
}

func (r *repository) StampLastSync(ctx context.Context, integrationID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Integration{}).
		Where("id = ?", integrationID).
		Update("last_sync_at", at).Error
}
