package ingest

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lucalabs/luca-backend/pkg/db/models"
)

// Repository handles persistence for normalized financial events and the
// attribution intents they spawn.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByTenantEvent(ctx context.Context, tenantID uuid.UUID, eventID string) (*models.FinancialEvent, error)
	CreateFinancialEvent(ctx context.Context, event *models.FinancialEvent) error
	UpdateFinancialEvent(ctx context.Context, event *models.FinancialEvent) error
	CreatePixelEvent(ctx context.Context, event *models.PixelEvent) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an ingest repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByTenantEvent returns the financial event with the tenant-scoped
// idempotency key, or nil when none exists.
func (r *repository) FindByTenantEvent(ctx context.Context, tenantID uuid.UUID, eventID string) (*models.FinancialEvent, error) {
	var row models.FinancialEvent
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND event_id = ?", tenantID, eventID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// CreateFinancialEvent inserts a financial event row. The (tenant_id, event_id)
// unique index is the last line of defense against concurrent duplicates.
func (r *repository) CreateFinancialEvent(ctx context.Context, event *models.FinancialEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// UpdateFinancialEvent persists the full financial event row.
func (r *repository) UpdateFinancialEvent(ctx context.Context, event *models.FinancialEvent) error {
	return r.db.WithContext(ctx).Save(event).Error
}

// CreatePixelEvent inserts an attribution intent spawned by a first order
// sighting.
func (r *repository) CreatePixelEvent(ctx context.Context, event *models.PixelEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
