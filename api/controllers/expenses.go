package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lucalabs/luca-backend/api/middleware"
	"github.com/lucalabs/luca-backend/api/responses"
	"github.com/lucalabs/luca-backend/api/validators"
	"github.com/lucalabs/luca-backend/internal/reporting"
	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
	"github.com/lucalabs/luca-backend/pkg/logger"
)

type ExpensesService interface {
	CreateExpense(ctx context.Context, tenantID uuid.UUID, input reporting.ExpenseInput) (*models.CustomExpense, error)
	UpdateExpense(ctx context.Context, tenantID, id uuid.UUID, input reporting.ExpenseInput) (*models.CustomExpense, error)
	DeleteExpense(ctx context.Context, tenantID, id uuid.UUID) error
	ListTenantExpenses(ctx context.Context, tenantID uuid.UUID) ([]*models.CustomExpense, error)
}

type expenseRequest struct {
	Name       string  `json:"name" validate:"required,max=255"`
	Type       string  `json:"type" validate:"required"`
	Recurrence string  `json:"recurrence" validate:"required"`
	Amount     string  `json:"amount" validate:"required"`
	StartDate  string  `json:"start_date" validate:"required"`
	EndDate    *string `json:"end_date"`
}

type expenseResponse struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Recurrence string          `json:"recurrence"`
	Amount     decimal.Decimal `json:"amount"`
	StartDate  string          `json:"start_date"`
	EndDate    *string         `json:"end_date,omitempty"`
}

func (req expenseRequest) toInput() (reporting.ExpenseInput, error) {
	expenseType, err := enums.ParseExpenseType(req.Type)
	if err != nil {
		return reporting.ExpenseInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown expense type")
	}
	recurrence, err := enums.ParseExpenseRecurrence(req.Recurrence)
	if err != nil {
		return reporting.ExpenseInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown expense recurrence")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return reporting.ExpenseInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid expense amount")
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return reporting.ExpenseInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "start_date must be YYYY-MM-DD")
	}
	input := reporting.ExpenseInput{
		Name:       req.Name,
		Type:       expenseType,
		Recurrence: recurrence,
		Amount:     amount,
		StartDate:  start,
	}
	if req.EndDate != nil && *req.EndDate != "" {
		end, err := time.Parse("2006-01-02", *req.EndDate)
		if err != nil {
			return reporting.ExpenseInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "end_date must be YYYY-MM-DD")
		}
		input.EndDate = &end
	}
	return input, nil
}

// ExpensesList returns every custom expense row for the tenant.
func ExpensesList(service ExpensesService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := middleware.TenantIDFromContext(r.Context())
		rows, err := service.ListTenantExpenses(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]expenseResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, expenseToResponse(row))
		}
		responses.WriteSuccess(w, out)
	}
}

// ExpenseCreate records a manually entered cost.
func ExpenseCreate(service ExpensesService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req expenseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		created, err := service.CreateExpense(r.Context(), tenantID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, expenseToResponse(created))
	}
}

// ExpenseUpdate replaces an expense's fields. Another tenant's id reads as
// not found.
func ExpenseUpdate(service ExpensesService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "expenseId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid expense id"))
			return
		}
		var req expenseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		updated, err := service.UpdateExpense(r.Context(), tenantID, id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, expenseToResponse(updated))
	}
}

// ExpenseDelete removes an expense row.
func ExpenseDelete(service ExpensesService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "expenseId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid expense id"))
			return
		}
		tenantID := middleware.TenantIDFromContext(r.Context())
		if err := service.DeleteExpense(r.Context(), tenantID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": true})
	}
}

func expenseToResponse(row *models.CustomExpense) expenseResponse {
	out := expenseResponse{
		ID:         row.ID,
		Name:       row.Name,
		Type:       string(row.Type),
		Recurrence: string(row.Recurrence),
		Amount:     row.Amount,
		StartDate:  row.StartDate.Format("2006-01-02"),
	}
	if row.EndDate != nil {
		end := row.EndDate.Format("2006-01-02")
		out.EndDate = &end
	}
	return out
}
