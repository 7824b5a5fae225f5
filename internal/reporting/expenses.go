package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
)

// ExpenseInput carries one manually entered cost.
type ExpenseInput struct {
	Name       string
	Type       enums.ExpenseType
	Recurrence enums.ExpenseRecurrence
	Amount     decimal.Decimal
	StartDate  time.Time
	EndDate    *time.Time
}

func (in ExpenseInput) validate() error {
	if in.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "expense name is required")
	}
	if !in.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid expense type")
	}
	if !in.Recurrence.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid expense recurrence")
	}
	if in.Amount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "expense amount must not be negative")
	}
	if in.StartDate.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "expense start date is required")
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return pkgerrors.New(pkgerrors.CodeValidation, "expense end date precedes start date")
	}
	return nil
}

// CreateExpense stores a new custom expense for the tenant.
func (s *Service) CreateExpense(ctx context.Context, tenantID uuid.UUID, input ExpenseInput) (*models.CustomExpense, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	row := &models.CustomExpense{
		TenantID:   tenantID,
		Name:       input.Name,
		Type:       input.Type,
		Recurrence: input.Recurrence,
		Amount:     input.Amount,
		StartDate:  dateOf(input.StartDate),
	}
	if input.EndDate != nil {
		end := dateOf(*input.EndDate)
		row.EndDate = &end
	}
	created, err := s.repo.CreateExpense(ctx, row)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist custom expense")
	}
	return created, nil
}

// UpdateExpense replaces the mutable fields of an existing expense. Rows are
// tenant-scoped; an id from another tenant reads as not found.
func (s *Service) UpdateExpense(ctx context.Context, tenantID, id uuid.UUID, input ExpenseInput) (*models.CustomExpense, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	existing, err := s.repo.FindExpense(ctx, tenantID, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load custom expense")
	}
	if existing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "expense not found")
	}

	existing.Name = input.Name
	existing.Type = input.Type
	existing.Recurrence = input.Recurrence
	existing.Amount = input.Amount
	existing.StartDate = dateOf(input.StartDate)
	existing.EndDate = nil
	if input.EndDate != nil {
		end := dateOf(*input.EndDate)
		existing.EndDate = &end
	}
	if err := s.repo.SaveExpense(ctx, existing); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update custom expense")
	}
	return existing, nil
}

// DeleteExpense removes an expense. Past snapshots keep the old numbers until
// the next rollup recomputes them.
func (s *Service) DeleteExpense(ctx context.Context, tenantID, id uuid.UUID) error {
	deleted, err := s.repo.DeleteExpense(ctx, tenantID, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete custom expense")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "expense not found")
	}
	return nil
}

// ListTenantExpenses returns every expense row for the tenant.
func (s *Service) ListTenantExpenses(ctx context.Context, tenantID uuid.UUID) ([]*models.CustomExpense, error) {
	rows, err := s.repo.ListTenantExpenses(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list custom expenses")
	}
	return rows, nil
}
