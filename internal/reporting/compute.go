package reporting

import "github.com/shopspring/decimal"

// DayInputs are the raw aggregates feeding one day's metric computation.
// Order-dated components and refund-dated components arrive pre-bucketed on
// their own date basis; mixing them up here would silently corrupt TotalSales.
type DayInputs struct {
	OrdersCount  int
	RefundsCount int
	NewCustomers int

	GrossSales        decimal.Decimal
	ShippingCollected decimal.Decimal
	TaxesCollected    decimal.Decimal
	Discounts         decimal.Decimal

	RefundedSales    decimal.Decimal
	RefundedShipping decimal.Decimal
	RefundedTaxes    decimal.Decimal

	PlatformSpend  decimal.Decimal
	ExpenseAdSpend decimal.Decimal

	COGS          decimal.Decimal
	ShippingCost  decimal.Decimal
	HandlingCost  decimal.Decimal
	GatewayFees   decimal.Decimal
	TaxesRemitted decimal.Decimal
	OtherExpenses decimal.Decimal
}

// Add merges another day's inputs, for range-level summaries.
func (in DayInputs) Add(other DayInputs) DayInputs {
	in.OrdersCount += other.OrdersCount
	in.RefundsCount += other.RefundsCount
	in.NewCustomers += other.NewCustomers
	in.GrossSales = in.GrossSales.Add(other.GrossSales)
	in.ShippingCollected = in.ShippingCollected.Add(other.ShippingCollected)
	in.TaxesCollected = in.TaxesCollected.Add(other.TaxesCollected)
	in.Discounts = in.Discounts.Add(other.Discounts)
	in.RefundedSales = in.RefundedSales.Add(other.RefundedSales)
	in.RefundedShipping = in.RefundedShipping.Add(other.RefundedShipping)
	in.RefundedTaxes = in.RefundedTaxes.Add(other.RefundedTaxes)
	in.PlatformSpend = in.PlatformSpend.Add(other.PlatformSpend)
	in.ExpenseAdSpend = in.ExpenseAdSpend.Add(other.ExpenseAdSpend)
	in.COGS = in.COGS.Add(other.COGS)
	in.ShippingCost = in.ShippingCost.Add(other.ShippingCost)
	in.HandlingCost = in.HandlingCost.Add(other.HandlingCost)
	in.GatewayFees = in.GatewayFees.Add(other.GatewayFees)
	in.TaxesRemitted = in.TaxesRemitted.Add(other.TaxesRemitted)
	in.OtherExpenses = in.OtherExpenses.Add(other.OtherExpenses)
	return in
}

// Ratio is a division result with an explicit undefined state. A zero
// denominator yields Defined=false, never a zero value masquerading as data.
type Ratio struct {
	Value   decimal.Decimal
	Defined bool
}

// Ptr returns the ratio as a nullable column value.
func (r Ratio) Ptr() *decimal.Decimal {
	if !r.Defined {
		return nil
	}
	value := r.Value
	return &value
}

func ratioOf(numerator, denominator decimal.Decimal) Ratio {
	if denominator.IsZero() {
		return Ratio{}
	}
	return Ratio{Value: numerator.DivRound(denominator, 4), Defined: true}
}

// Metrics is the derived metric set for one day or one aggregated range.
type Metrics struct {
	TotalSales     decimal.Decimal
	OrderRevenue   decimal.Decimal
	BlendedAdSpend decimal.Decimal
	NetProfit      decimal.Decimal
	ROAS           Ratio
	MER            Ratio
	NetMargin      Ratio
	NCPA           Ratio
}

// Compute derives the metric set. Each step consumes only raw inputs and
// previously computed values, in fixed order.
func Compute(in DayInputs) Metrics {
	var out Metrics

	out.TotalSales = in.GrossSales.
		Add(in.ShippingCollected).
		Add(in.TaxesCollected).
		Sub(in.Discounts).
		Sub(in.RefundedSales).
		Sub(in.RefundedShipping).
		Sub(in.RefundedTaxes)

	out.OrderRevenue = in.GrossSales.
		Sub(in.Discounts).
		Sub(in.RefundedSales)

	out.BlendedAdSpend = in.PlatformSpend.Add(in.ExpenseAdSpend)

	out.NetProfit = out.OrderRevenue.
		Sub(in.COGS).
		Sub(in.ShippingCost).
		Sub(in.HandlingCost).
		Sub(in.GatewayFees).
		Sub(in.TaxesRemitted).
		Sub(out.BlendedAdSpend).
		Sub(in.OtherExpenses)

	out.ROAS = ratioOf(out.OrderRevenue, out.BlendedAdSpend)
	out.MER = ratioOf(out.BlendedAdSpend, out.OrderRevenue)
	out.NetMargin = ratioOf(out.NetProfit, out.TotalSales)
	out.NCPA = ratioOf(out.BlendedAdSpend, decimal.NewFromInt(int64(in.NewCustomers)))
	return out
}
