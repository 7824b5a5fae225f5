package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DailyMetricSnapshot is a derived, recomputable cache row — always a pure
// function of FinancialEvent + spend + expense rows for its date. Ratio
// columns are NULL when undefined (no spend / no revenue / no customers).
type DailyMetricSnapshot struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID       uuid.UUID        `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:ux_daily_metric_snapshots_tenant_date,priority:1"`
	Date           time.Time        `gorm:"column:date;type:date;not null;uniqueIndex:ux_daily_metric_snapshots_tenant_date,priority:2"`
	OrdersCount    int              `gorm:"column:orders_count;not null;default:0"`
	RefundsCount   int              `gorm:"column:refunds_count;not null;default:0"`
	NewCustomers   int              `gorm:"column:new_customers;not null;default:0"`
	GrossSales     decimal.Decimal  `gorm:"column:gross_sales;type:numeric(14,2);not null;default:0"`
	TotalSales     decimal.Decimal  `gorm:"column:total_sales;type:numeric(14,2);not null;default:0"`
	OrderRevenue   decimal.Decimal  `gorm:"column:order_revenue;type:numeric(14,2);not null;default:0"`
	RefundedSales  decimal.Decimal  `gorm:"column:refunded_sales;type:numeric(14,2);not null;default:0"`
	AdSpend        decimal.Decimal  `gorm:"column:ad_spend;type:numeric(14,2);not null;default:0"`
	BlendedAdSpend decimal.Decimal  `gorm:"column:blended_ad_spend;type:numeric(14,2);not null;default:0"`
	OtherExpenses  decimal.Decimal  `gorm:"column:other_expenses;type:numeric(14,2);not null;default:0"`
	NetProfit      decimal.Decimal  `gorm:"column:net_profit;type:numeric(14,2);not null;default:0"`
	ROAS           *decimal.Decimal `gorm:"column:roas;type:numeric(10,4)"`
	MER            *decimal.Decimal `gorm:"column:mer;type:numeric(10,4)"`
	NetMargin      *decimal.Decimal `gorm:"column:net_margin;type:numeric(10,4)"`
	NCPA           *decimal.Decimal `gorm:"column:ncpa;type:numeric(14,2)"`
	ComputedAt     time.Time        `gorm:"column:computed_at;not null"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
