package reporting

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
)

// Repository reads the raw inputs of the metrics pipeline and writes the
// derived snapshots. All reads are range scans; bucketing happens in Go so the
// date math is identical across drivers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListFinancialEvents(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*models.FinancialEvent, error)
	ListSpend(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*models.AdSpendDaily, error)
	ListExpenses(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*models.CustomExpense, error)
	CreateExpense(ctx context.Context, expense *models.CustomExpense) (*models.CustomExpense, error)
	FindExpense(ctx context.Context, tenantID, id uuid.UUID) (*models.CustomExpense, error)
	SaveExpense(ctx context.Context, expense *models.CustomExpense) error
	DeleteExpense(ctx context.Context, tenantID, id uuid.UUID) (bool, error)
	ListTenantExpenses(ctx context.Context, tenantID uuid.UUID) ([]*models.CustomExpense, error)
	UpsertSnapshot(ctx context.Context, snapshot *models.DailyMetricSnapshot) error
	ListSnapshots(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*models.DailyMetricSnapshot, error)
	ListTenantsWithEvents(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reporting repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ListFinancialEvents returns orders and refunds whose date basis falls inside
// [from, to). Cancelled orders stay out of the revenue aggregates.
func (r *repository) ListFinancialEvents(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*models.FinancialEvent, error) {
	var rows []*models.FinancialEvent
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("occurred_at >= ? AND occurred_at < ?", from, to).
		Where("kind <> ?", enums.EventKindOrderCancelled).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListSpend(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*models.AdSpendDaily, error) {
	var rows []*models.AdSpendDaily
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("date >= ? AND date < ?", from, to).
		Find(&rows).Error
	return rows, err
}

// ListExpenses returns custom expenses whose coverage overlaps [from, to).
func (r *repository) ListExpenses(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*models.CustomExpense, error) {
	var rows []*models.CustomExpense
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("start_date < ?", to).
		Where("end_date IS NULL OR end_date >= ?", from).
		Find(&rows).Error
	return rows, err
}

func (r *repository) CreateExpense(ctx context.Context, expense *models.CustomExpense) (*models.CustomExpense, error) {
	if err := r.db.WithContext(ctx).Create(expense).Error; err != nil {
		return nil, err
	}
	return expense, nil
}

// FindExpense returns (nil, nil) when no tenant-owned row exists.
func (r *repository) FindExpense(ctx context.Context, tenantID, id uuid.UUID) (*models.CustomExpense, error) {
	var row models.CustomExpense
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) SaveExpense(ctx context.Context, expense *models.CustomExpense) error {
	return r.db.WithContext(ctx).Save(expense).Error
}

func (r *repository) DeleteExpense(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.CustomExpense{})
	return result.RowsAffected > 0, result.Error
}

func (r *repository) ListTenantExpenses(ctx context.Context, tenantID uuid.UUID) ([]*models.CustomExpense, error) {
	var rows []*models.CustomExpense
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("start_date DESC").
		Find(&rows).Error
	return rows, err
}

// UpsertSnapshot writes the derived row, replacing a previous computation for
// the same tenant and date.
func (r *repository) UpsertSnapshot(ctx context.Context, snapshot *models.DailyMetricSnapshot) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"orders_count", "refunds_count", "new_customers",
				"gross_sales", "total_sales", "order_revenue", "refunded_sales",
				"ad_spend", "blended_ad_spend", "other_expenses", "net_profit",
				"roas", "mer", "net_margin", "ncpa",
				"computed_at", "updated_at",
			}),
		}).
		Create(snapshot).Error
}

func (r *repository) ListSnapshots(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*models.DailyMetricSnapshot, error) {
	var rows []*models.DailyMetricSnapshot
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("date >= ? AND date < ?", from, to).
		Order("date ASC").
		Find(&rows).Error
	return rows, err
}

// ListTenantsWithEvents returns tenants with financial activity since the
// cutoff, for the rollup worker.
func (r *repository) ListTenantsWithEvents(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.FinancialEvent{}).
		Where("occurred_at >= ?", since).
		Distinct("tenant_id").
		Pluck("tenant_id", &ids).Error
	return ids, err
}
