package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lucalabs/luca-backend/pkg/db/models"
	"github.com/lucalabs/luca-backend/pkg/enums"
	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
	"github.com/lucalabs/luca-backend/pkg/logger"
)

// ServiceParams wires the reporting dependencies.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
	Now    func() time.Time
}

// Service recomputes daily metric snapshots and serves range summaries.
// Everything here is a pure function of stored rows; recomputing a closed
// range always yields the same snapshot.
type Service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService validates dependencies and builds the reporting service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reporting repo required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: params.Repo, logg: params.Logger, now: now}, nil
}

// Summary is the computed metric set for one inclusive date range.
type Summary struct {
	From    time.Time
	To      time.Time
	Inputs  DayInputs
	Metrics Metrics
}

// Comparison pairs a summary with a comparison period and per-metric deltas.
type Comparison struct {
	Current  *Summary
	Previous *Summary
	Deltas   Deltas
}

// Deltas are current-minus-previous differences. Ratio deltas are only
// defined when the ratio is defined in both periods.
type Deltas struct {
	TotalSales     decimal.Decimal
	OrderRevenue   decimal.Decimal
	BlendedAdSpend decimal.Decimal
	NetProfit      decimal.Decimal
	ROAS           Ratio
	MER            Ratio
	NetMargin      Ratio
	NCPA           Ratio
}

// Rollup recomputes and stores one snapshot per day in the inclusive date
// range. Days without activity are written too, so stale snapshots from a
// previous computation never survive a re-run.
func (s *Service) Rollup(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (int, error) {
	from, to = dateOf(from), dateOf(to)
	if to.Before(from) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "rollup range end precedes start")
	}

	inputs, err := s.collectInputs(ctx, tenantID, from, to)
	if err != nil {
		return 0, err
	}

	computedAt := s.now().UTC()
	days := 0
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		in := inputs[day]
		metrics := Compute(in)
		snapshot := &models.DailyMetricSnapshot{
			TenantID:       tenantID,
			Date:           day,
			OrdersCount:    in.OrdersCount,
			RefundsCount:   in.RefundsCount,
			NewCustomers:   in.NewCustomers,
			GrossSales:     in.GrossSales,
			TotalSales:     metrics.TotalSales,
			OrderRevenue:   metrics.OrderRevenue,
			RefundedSales:  in.RefundedSales,
			AdSpend:        in.PlatformSpend,
			BlendedAdSpend: metrics.BlendedAdSpend,
			OtherExpenses:  in.OtherExpenses,
			NetProfit:      metrics.NetProfit,
			ROAS:           metrics.ROAS.Ptr(),
			MER:            metrics.MER.Ptr(),
			NetMargin:      metrics.NetMargin.Ptr(),
			NCPA:           metrics.NCPA.Ptr(),
			ComputedAt:     computedAt,
		}
		if err := s.repo.UpsertSnapshot(ctx, snapshot); err != nil {
			return days, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert metric snapshot")
		}
		days++
	}
	return days, nil
}

// Summarize computes the aggregated metric set for an inclusive date range,
// straight from the raw rows.
func (s *Service) Summarize(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*Summary, error) {
	from, to = dateOf(from), dateOf(to)
	if to.Before(from) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "summary range end precedes start")
	}

	inputs, err := s.collectInputs(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}

	var total DayInputs
	for _, in := range inputs {
		total = total.Add(in)
	}
	return &Summary{From: from, To: to, Inputs: total, Metrics: Compute(total)}, nil
}

// Compare computes the current range plus a comparison range and the deltas
// between them.
func (s *Service) Compare(ctx context.Context, tenantID uuid.UUID, from, to, compareFrom, compareTo time.Time) (*Comparison, error) {
	current, err := s.Summarize(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	previous, err := s.Summarize(ctx, tenantID, compareFrom, compareTo)
	if err != nil {
		return nil, err
	}
	return &Comparison{
		Current:  current,
		Previous: previous,
		Deltas: Deltas{
			TotalSales:     current.Metrics.TotalSales.Sub(previous.Metrics.TotalSales),
			OrderRevenue:   current.Metrics.OrderRevenue.Sub(previous.Metrics.OrderRevenue),
			BlendedAdSpend: current.Metrics.BlendedAdSpend.Sub(previous.Metrics.BlendedAdSpend),
			NetProfit:      current.Metrics.NetProfit.Sub(previous.Metrics.NetProfit),
			ROAS:           ratioDelta(current.Metrics.ROAS, previous.Metrics.ROAS),
			MER:            ratioDelta(current.Metrics.MER, previous.Metrics.MER),
			NetMargin:      ratioDelta(current.Metrics.NetMargin, previous.Metrics.NetMargin),
			NCPA:           ratioDelta(current.Metrics.NCPA, previous.Metrics.NCPA),
		},
	}, nil
}

// Snapshots returns the stored daily rows for an inclusive date range.
func (s *Service) Snapshots(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*models.DailyMetricSnapshot, error) {
	from, to = dateOf(from), dateOf(to)
	rows, err := s.repo.ListSnapshots(ctx, tenantID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list metric snapshots")
	}
	return rows, nil
}

// collectInputs buckets every raw component onto its own date basis: orders by
// order date, refunds by refund date, spend by spend date, expenses by
// coverage projection.
func (s *Service) collectInputs(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (map[time.Time]DayInputs, error) {
	rangeEnd := to.AddDate(0, 0, 1)
	inputs := make(map[time.Time]DayInputs)

	events, err := s.repo.ListFinancialEvents(ctx, tenantID, from, rangeEnd)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list financial events")
	}
	for _, event := range events {
		day := dateOf(event.OccurredAt)
		in := inputs[day]
		switch event.Type {
		case enums.FinancialEventTypeOrder:
			in.OrdersCount++
			in.GrossSales = in.GrossSales.Add(event.Amount)
			in.ShippingCollected = in.ShippingCollected.Add(event.ShippingAmount)
			in.TaxesCollected = in.TaxesCollected.Add(event.TaxAmount)
			in.Discounts = in.Discounts.Add(event.DiscountAmount)
			if event.IsNewCustomer != nil && *event.IsNewCustomer {
				in.NewCustomers++
			}
		case enums.FinancialEventTypeRefund:
			in.RefundsCount++
			// refund amounts are stored negative
			in.RefundedSales = in.RefundedSales.Add(event.Amount.Neg())
			in.RefundedShipping = in.RefundedShipping.Add(event.ShippingAmount)
			in.RefundedTaxes = in.RefundedTaxes.Add(event.TaxAmount)
		}
		inputs[day] = in
	}

	spend, err := s.repo.ListSpend(ctx, tenantID, from, rangeEnd)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ad spend")
	}
	for _, row := range spend {
		day := dateOf(row.Date)
		in := inputs[day]
		in.PlatformSpend = in.PlatformSpend.Add(row.Spend)
		inputs[day] = in
	}

	expenses, err := s.repo.ListExpenses(ctx, tenantID, from, rangeEnd)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list custom expenses")
	}
	for _, expense := range expenses {
		projectExpense(inputs, expense, from, to)
	}
	return inputs, nil
}

// projectExpense spreads one expense onto the days it covers within the range.
// One-time expenses land fully on their start date; daily expenses charge the
// full amount each covered day; monthly expenses prorate over the days of
// each calendar month.
func projectExpense(inputs map[time.Time]DayInputs, expense *models.CustomExpense, from, to time.Time) {
	start := dateOf(expense.StartDate)

	switch expense.Recurrence {
	case enums.ExpenseRecurrenceOneTime:
		if start.Before(from) || start.After(to) {
			return
		}
		addExpense(inputs, start, expense.Type, expense.Amount)
	case enums.ExpenseRecurrenceDaily:
		for day := maxDate(start, from); !day.After(coverageEnd(expense, to)); day = day.AddDate(0, 0, 1) {
			addExpense(inputs, day, expense.Type, expense.Amount)
		}
	case enums.ExpenseRecurrenceMonthly:
		for day := maxDate(start, from); !day.After(coverageEnd(expense, to)); day = day.AddDate(0, 0, 1) {
			daily := expense.Amount.DivRound(decimal.NewFromInt(int64(daysInMonth(day))), 2)
			addExpense(inputs, day, expense.Type, daily)
		}
	}
}

func addExpense(inputs map[time.Time]DayInputs, day time.Time, expenseType enums.ExpenseType, amount decimal.Decimal) {
	in := inputs[day]
	switch expenseType {
	case enums.ExpenseTypeCOGS:
		in.COGS = in.COGS.Add(amount)
	case enums.ExpenseTypeShipping:
		in.ShippingCost = in.ShippingCost.Add(amount)
	case enums.ExpenseTypeHandling:
		in.HandlingCost = in.HandlingCost.Add(amount)
	case enums.ExpenseTypeGatewayFees:
		in.GatewayFees = in.GatewayFees.Add(amount)
	case enums.ExpenseTypeTaxesRemitted:
		in.TaxesRemitted = in.TaxesRemitted.Add(amount)
	case enums.ExpenseTypeAdSpend:
		in.ExpenseAdSpend = in.ExpenseAdSpend.Add(amount)
	default:
		in.OtherExpenses = in.OtherExpenses.Add(amount)
	}
	inputs[day] = in
}

func coverageEnd(expense *models.CustomExpense, rangeEnd time.Time) time.Time {
	if expense.EndDate == nil {
		return rangeEnd
	}
	end := dateOf(*expense.EndDate)
	if end.Before(rangeEnd) {
		return end
	}
	return rangeEnd
}

func ratioDelta(current, previous Ratio) Ratio {
	if !current.Defined || !previous.Defined {
		return Ratio{}
	}
	return Ratio{Value: current.Value.Sub(previous.Value), Defined: true}
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func maxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func daysInMonth(day time.Time) int {
	first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Day()
}
