package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
)

func setupReportingTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:reporting_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	financialEvents := `
CREATE TABLE IF NOT EXISTS financial_events (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  tenant_id TEXT NOT NULL,
  integration_id TEXT,
  platform TEXT NOT NULL,
  event_id TEXT NOT NULL,
  type TEXT NOT NULL,
  kind TEXT NOT NULL,
  order_id TEXT NOT NULL,
  refund_id TEXT,
  currency TEXT NOT NULL DEFAULT 'USD',
  amount NUMERIC NOT NULL,
  shipping_amount NUMERIC NOT NULL DEFAULT 0,
  tax_amount NUMERIC NOT NULL DEFAULT 0,
  discount_amount NUMERIC NOT NULL DEFAULT 0,
  customer_id TEXT,
  customer_email TEXT,
  is_new_customer INTEGER,
  landing_page TEXT,
  occurred_at DATETIME NOT NULL,
  raw TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (tenant_id, event_id)
);`
	customExpenses := `
CREATE TABLE IF NOT EXISTS custom_expenses (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  tenant_id TEXT NOT NULL,
  name TEXT NOT NULL,
  type TEXT NOT NULL,
  recurrence TEXT NOT NULL DEFAULT 'one_time',
  amount NUMERIC NOT NULL,
  start_date DATETIME NOT NULL,
  end_date DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	snapshots := `
CREATE TABLE IF NOT EXISTS daily_metric_snapshots (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  tenant_id TEXT NOT NULL,
  date DATETIME NOT NULL,
  orders_count INTEGER NOT NULL DEFAULT 0,
  refunds_count INTEGER NOT NULL DEFAULT 0,
  new_customers INTEGER NOT NULL DEFAULT 0,
  gross_sales NUMERIC NOT NULL DEFAULT 0,
  total_sales NUMERIC NOT NULL DEFAULT 0,
  order_revenue NUMERIC NOT NULL DEFAULT 0,
  refunded_sales NUMERIC NOT NULL DEFAULT 0,
  ad_spend NUMERIC NOT NULL DEFAULT 0,
  blended_ad_spend NUMERIC NOT NULL DEFAULT 0,
  other_expenses NUMERIC NOT NULL DEFAULT 0,
  net_profit NUMERIC NOT NULL DEFAULT 0,
  roas NUMERIC,
  mer NUMERIC,
  net_margin NUMERIC,
  ncpa NUMERIC,
  computed_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (tenant_id, date)
);`
	for _, stmt := range []string{financialEvents, customExpenses, snapshots} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedEvent(t *testing.T, db *gorm.DB, tenantID uuid.UUID, eventID string, kind enums.EventKind, occurredAt time.Time) {
	t.Helper()
	event := &models.FinancialEvent{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Platform:   enums.PlatformShopify,
		EventID:    eventID,
		Type:       enums.FinancialEventTypeOrder,
		Kind:       kind,
		OrderID:    eventID,
		Amount:     decimal.NewFromInt(100),
		OccurredAt: occurredAt,
	}
	require.NoError(t, db.Create(event).Error)
}

func TestRepositoryExcludesCancelledOrders(t *testing.T) {
	db := setupReportingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	day := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)

	seedEvent(t, db, tenantID, "evt-paid", enums.EventKindOrderPaid, day)
	seedEvent(t, db, tenantID, "evt-cancelled", enums.EventKindOrderCancelled, day)

	rows, err := repo.ListFinancialEvents(ctx, tenantID,
		time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "evt-paid", rows[0].EventID)
}

func TestRepositoryExpenseLifecycle(t *testing.T) {
	db := setupReportingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	created, err := repo.CreateExpense(ctx, &models.CustomExpense{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Name:       "warehouse rent",
		Type:       enums.ExpenseTypeOther,
		Recurrence: enums.ExpenseRecurrenceMonthly,
		Amount:     decimal.NewFromInt(3000),
		StartDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	found, err := repo.FindExpense(ctx, tenantID, created.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "warehouse rent", found.Name)

	// other tenants never see the row
	foreign, err := repo.FindExpense(ctx, uuid.New(), created.ID)
	require.NoError(t, err)
	assert.Nil(t, foreign)

	found.Amount = decimal.NewFromInt(3500)
	require.NoError(t, repo.SaveExpense(ctx, found))

	rows, err := repo.ListTenantExpenses(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Amount.Equal(decimal.NewFromInt(3500)))

	deleted, err := repo.DeleteExpense(ctx, tenantID, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteExpense(ctx, tenantID, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRepositoryExpenseOverlapQuery(t *testing.T) {
	db := setupReportingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	closed := &models.CustomExpense{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Name:       "january campaign",
		Type:       enums.ExpenseTypeAdSpend,
		Recurrence: enums.ExpenseRecurrenceDaily,
		Amount:     decimal.NewFromInt(50),
		StartDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    &end,
	}
	openEnded := &models.CustomExpense{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Name:       "saas tooling",
		Type:       enums.ExpenseTypeOther,
		Recurrence: enums.ExpenseRecurrenceMonthly,
		Amount:     decimal.NewFromInt(200),
		StartDate:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err := repo.CreateExpense(ctx, closed)
	require.NoError(t, err)
	_, err = repo.CreateExpense(ctx, openEnded)
	require.NoError(t, err)

	// March range: the January campaign ended, the open-ended row still covers
	rows, err := repo.ListExpenses(ctx, tenantID,
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "saas tooling", rows[0].Name)
}

func TestRepositoryUpsertSnapshotReplaces(t *testing.T) {
	db := setupReportingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	day := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	first := &models.DailyMetricSnapshot{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Date:       day,
		TotalSales: decimal.NewFromInt(100),
		ComputedAt: time.Date(2026, 3, 6, 1, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.UpsertSnapshot(ctx, first))

	second := &models.DailyMetricSnapshot{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Date:       day,
		TotalSales: decimal.NewFromInt(250),
		ComputedAt: time.Date(2026, 3, 7, 1, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.UpsertSnapshot(ctx, second))

	rows, err := repo.ListSnapshots(ctx, tenantID, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].TotalSales.Equal(decimal.NewFromInt(250)))
}

func TestRepositoryListTenantsWithEvents(t *testing.T) {
	db := setupReportingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	active := uuid.New()
	stale := uuid.New()
	seedEvent(t, db, active, "evt-recent", enums.EventKindOrderPaid, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	seedEvent(t, db, stale, "evt-old", enums.EventKindOrderPaid, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	ids, err := repo.ListTenantsWithEvents(ctx, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, active, ids[0])
}
