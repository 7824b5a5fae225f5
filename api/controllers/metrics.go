package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lucalabs/luca-backend/api/middleware"
	"github.com/lucalabs/luca-backend/api/responses"
	"github.com/lucalabs/luca-backend/api/validators"
	"github.com/lucalabs/luca-backend/internal/reporting"
	"github.com/lucalabs/luca-backend/pkg/db/models"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
	"github.com/lucalabs/luca-backend/pkg/logger"
)

type MetricsService interface {
	Summarize(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*reporting.Summary, error)
	Compare(ctx context.Context, tenantID uuid.UUID, from, to, compareFrom, compareTo time.Time) (*reporting.Comparison, error)
	Snapshots(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*models.DailyMetricSnapshot, error)
}

type metricsResponse struct {
	OrdersCount    int              `json:"orders_count"`
	RefundsCount   int              `json:"refunds_count"`
	NewCustomers   int              `json:"new_customers"`
	GrossSales     decimal.Decimal  `json:"gross_sales"`
	TotalSales     decimal.Decimal  `json:"total_sales"`
	OrderRevenue   decimal.Decimal  `json:"order_revenue"`
	RefundedSales  decimal.Decimal  `json:"refunded_sales"`
	BlendedAdSpend decimal.Decimal  `json:"blended_ad_spend"`
	NetProfit      decimal.Decimal  `json:"net_profit"`
	ROAS           *decimal.Decimal `json:"roas"`
	MER            *decimal.Decimal `json:"mer"`
	NetMargin      *decimal.Decimal `json:"net_margin"`
	NCPA           *decimal.Decimal `json:"ncpa"`
}

type summaryResponse struct {
	From    string          `json:"from"`
	To      string          `json:"to"`
	Metrics metricsResponse `json:"metrics"`
}

type deltasResponse struct {
	TotalSales     decimal.Decimal  `json:"total_sales"`
	OrderRevenue   decimal.Decimal  `json:"order_revenue"`
	BlendedAdSpend decimal.Decimal  `json:"blended_ad_spend"`
	NetProfit      decimal.Decimal  `json:"net_profit"`
	ROAS           *decimal.Decimal `json:"roas"`
	MER            *decimal.Decimal `json:"mer"`
	NetMargin      *decimal.Decimal `json:"net_margin"`
	NCPA           *decimal.Decimal `json:"ncpa"`
}

type comparisonResponse struct {
	Current  summaryResponse `json:"current"`
	Previous summaryResponse `json:"previous"`
	Deltas   deltasResponse  `json:"deltas"`
}

// MetricsSummary serves the aggregated metric set for a date range. When a
// comparison range is supplied, the response carries both periods and their
// deltas.
func MetricsSummary(service MetricsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, err := parseDateRange(r, "start", "end")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		compareFrom, err := validators.ParseQueryDate(r, "compare_start", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if compareFrom.IsZero() {
			summary, err := service.Summarize(r.Context(), tenantID, from, to)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, summaryToResponse(summary))
			return
		}

		compareTo, err := validators.ParseQueryDate(r, "compare_end", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		comparison, err := service.Compare(r.Context(), tenantID, from, to, compareFrom, compareTo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, comparisonResponse{
			Current:  summaryToResponse(comparison.Current),
			Previous: summaryToResponse(comparison.Previous),
			Deltas: deltasResponse{
				TotalSales:     comparison.Deltas.TotalSales,
				OrderRevenue:   comparison.Deltas.OrderRevenue,
				BlendedAdSpend: comparison.Deltas.BlendedAdSpend,
				NetProfit:      comparison.Deltas.NetProfit,
				ROAS:           comparison.Deltas.ROAS.Ptr(),
				MER:            comparison.Deltas.MER.Ptr(),
				NetMargin:      comparison.Deltas.NetMargin.Ptr(),
				NCPA:           comparison.Deltas.NCPA.Ptr(),
			},
		})
	}
}

type snapshotResponse struct {
	Date string `json:"date"`
	metricsResponse
}

// MetricsDaily serves the stored per-day snapshot rows for a date range.
func MetricsDaily(service MetricsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, err := parseDateRange(r, "start", "end")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		rows, err := service.Snapshots(r.Context(), tenantID, from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]snapshotResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, snapshotResponse{
				Date: row.Date.Format("2006-01-02"),
				metricsResponse: metricsResponse{
					OrdersCount:    row.OrdersCount,
					RefundsCount:   row.RefundsCount,
					NewCustomers:   row.NewCustomers,
					GrossSales:     row.GrossSales,
					TotalSales:     row.TotalSales,
					OrderRevenue:   row.OrderRevenue,
					RefundedSales:  row.RefundedSales,
					BlendedAdSpend: row.BlendedAdSpend,
					NetProfit:      row.NetProfit,
					ROAS:           row.ROAS,
					MER:            row.MER,
					NetMargin:      row.NetMargin,
					NCPA:           row.NCPA,
				},
			})
		}
		responses.WriteSuccess(w, out)
	}
}

func summaryToResponse(summary *reporting.Summary) summaryResponse {
	return summaryResponse{
		From: summary.From.Format("2006-01-02"),
		To:   summary.To.Format("2006-01-02"),
		Metrics: metricsResponse{
			OrdersCount:    summary.Inputs.OrdersCount,
			RefundsCount:   summary.Inputs.RefundsCount,
			NewCustomers:   summary.Inputs.NewCustomers,
			GrossSales:     summary.Inputs.GrossSales,
			TotalSales:     summary.Metrics.TotalSales,
			OrderRevenue:   summary.Metrics.OrderRevenue,
			RefundedSales:  summary.Inputs.RefundedSales,
			BlendedAdSpend: summary.Metrics.BlendedAdSpend,
			NetProfit:      summary.Metrics.NetProfit,
			ROAS:           summary.Metrics.ROAS.Ptr(),
			MER:            summary.Metrics.MER.Ptr(),
			NetMargin:      summary.Metrics.NetMargin.Ptr(),
			NCPA:           summary.Metrics.NCPA.Ptr(),
		},
	}
}

func parseDateRange(r *http.Request, fromKey, toKey string) (time.Time, time.Time, error) {
	from, err := validators.ParseQueryDate(r, fromKey, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := validators.ParseQueryDate(r, toKey, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "range end precedes start")
	}
	return from, to, nil
}
