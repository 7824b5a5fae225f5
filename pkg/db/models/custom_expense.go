package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lucalabs/luca-backend/pkg/enums"
)

// CustomExpense is a manually entered cost. Recurring rows are projected onto
// each day they cover; ad_spend typed rows roll into BlendedAdSpend.
type CustomExpense struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID   uuid.UUID               `gorm:"column:tenant_id;type:uuid;not null;index"`
	Name       string                  `gorm:"column:name;not null"`
	Type       enums.ExpenseType       `gorm:"column:type;type:text;not null"`
	Recurrence enums.ExpenseRecurrence `gorm:"column:recurrence;type:text;not null;default:'one_time'"`
	Amount     decimal.Decimal         `gorm:"column:amount;type:numeric(14,2);not null"`
	StartDate  time.Time               `gorm:"column:start_date;type:date;not null"`
	EndDate    *time.Time              `gorm:"column:end_date;type:date"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
