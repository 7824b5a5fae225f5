package attribution

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
)

// MatchOutcome is the terminal attribution verdict written onto a purchase.
type MatchOutcome struct {
	Method     enums.AttributionMethod
	Confidence decimal.Decimal
	Platform   *enums.Platform
	ClickID    *uuid.UUID
	MatchedAt  time.Time
}

// Repository handles the conditional claim updates the sweep relies on.
// Claims return false when another sweeper already took the row; callers
// treat a lost claim as a signal to retry or move on, never as an error.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListPending(ctx context.Context, limit int) ([]*models.PixelEvent, error)
	FindIntegration(ctx context.Context, tenantID uuid.UUID, platform enums.Platform) (*models.Integration, error)
	FindClickByClickID(ctx context.Context, tenantID uuid.UUID, platform enums.Platform, clickID string, since, until time.Time) (*models.ClickRecord, error)
	FindClicksByUTM(ctx context.Context, tenantID uuid.UUID, source, medium, campaign *string, since, until time.Time, limit int) ([]*models.ClickRecord, error)
	ListCandidateClicks(ctx context.Context, tenantID uuid.UUID, since, until time.Time, limit int) ([]*models.ClickRecord, error)
	ClaimPurchase(ctx context.Context, eventID uuid.UUID, outcome MatchOutcome) (bool, error)
	MarkUnmatched(ctx context.Context, eventID uuid.UUID) (bool, error)
	ClaimClick(ctx context.Context, clickID uuid.UUID, orderID *string, value *decimal.Decimal, at time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an attribution repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ListPending returns the oldest pending purchases first so expiring events
// reach a terminal state before fresh ones are examined.
func (r *repository) ListPending(ctx context.Context, limit int) ([]*models.PixelEvent, error) {
	var rows []*models.PixelEvent
	err := r.db.WithContext(ctx).
		Where("event_type = ? AND attribution_status = ?", enums.PixelEventTypePurchase, enums.AttributionStatusPending).
		Order("occurred_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindIntegration(ctx context.Context, tenantID uuid.UUID, platform enums.Platform) (*models.Integration, error) {
	var row models.Integration
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ?", tenantID, platform).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// FindClickByClickID returns the unconverted click carrying the identifier,
// scoped to the tenant and platform and the attribution window.
func (r *repository) FindClickByClickID(ctx context.Context, tenantID uuid.UUID, platform enums.Platform, clickID string, since, until time.Time) (*models.ClickRecord, error) {
	var row models.ClickRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ? AND click_id = ? AND converted = ?", tenantID, platform, clickID, false).
		Where("occurred_at >= ? AND occurred_at <= ?", since, until).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// FindClicksByUTM returns unconverted clicks whose UTM fields equal the
// purchase session's, newest first. Nil fields are not constrained.
func (r *repository) FindClicksByUTM(ctx context.Context, tenantID uuid.UUID, source, medium, campaign *string, since, until time.Time, limit int) ([]*models.ClickRecord, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND converted = ?", tenantID, false).
		Where("occurred_at >= ? AND occurred_at <= ?", since, until)
	if source != nil {
		query = query.Where("utm_source = ?", *source)
	}
	if medium != nil {
		query = query.Where("utm_medium = ?", *medium)
	}
	if campaign != nil {
		query = query.Where("utm_campaign = ?", *campaign)
	}
	var rows []*models.ClickRecord
	err := query.Order("occurred_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// ListCandidateClicks returns unconverted clicks in the window, newest first,
// for the time-decay fallback.
func (r *repository) ListCandidateClicks(ctx context.Context, tenantID uuid.UUID, since, until time.Time, limit int) ([]*models.ClickRecord, error) {
	var rows []*models.ClickRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND converted = ?", tenantID, false).
		Where("occurred_at >= ? AND occurred_at <= ?", since, until).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ClaimPurchase writes the attribution outcome onto a purchase only while it
// is still pending. A zero rows-affected result means another sweeper won.
func (r *repository) ClaimPurchase(ctx context.Context, eventID uuid.UUID, outcome MatchOutcome) (bool, error) {
	matchedAt := outcome.MatchedAt
	result := r.db.WithContext(ctx).
		Model(&models.PixelEvent{}).
		Where("id = ? AND attribution_status = ?", eventID, enums.AttributionStatusPending).
		Updates(map[string]any{
			"attribution_status": enums.AttributionStatusMatched,
			"attribution_method": outcome.Method,
			"confidence":         outcome.Confidence,
			"platform":           outcome.Platform,
			"matched_click_id":   outcome.ClickID,
			"matched_at":         matchedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkUnmatched moves a pending purchase to the terminal unmatched state.
func (r *repository) MarkUnmatched(ctx context.Context, eventID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PixelEvent{}).
		Where("id = ? AND attribution_status = ?", eventID, enums.AttributionStatusPending).
		Update("attribution_status", enums.AttributionStatusUnmatched)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ClaimClick flips converted false→true at most once.
func (r *repository) ClaimClick(ctx context.Context, clickID uuid.UUID, orderID *string, value *decimal.Decimal, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ClickRecord{}).
		Where("id = ? AND converted = ?", clickID, false).
		Updates(map[string]any{
			"converted":            true,
			"conversion_order_id":  orderID,
			"conversion_timestamp": at,
			"conversion_value":     value,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
