package reporting

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCompute_FormulaOrder(t *testing.T) {
	in := DayInputs{
		OrdersCount:       10,
		NewCustomers:      4,
		GrossSales:        dec("1000"),
		ShippingCollected: dec("50"),
		TaxesCollected:    dec("80"),
		Discounts:         dec("30"),
		RefundedSales:     dec("100"),
		RefundedShipping:  dec("5"),
		RefundedTaxes:     dec("8"),
		PlatformSpend:     dec("200"),
		ExpenseAdSpend:    dec("40"),
		COGS:              dec("300"),
		ShippingCost:      dec("20"),
		HandlingCost:      dec("10"),
		GatewayFees:       dec("25"),
		TaxesRemitted:     dec("15"),
		OtherExpenses:     dec("60"),
	}

	out := Compute(in)

	if !out.TotalSales.Equal(dec("987")) {
		t.Fatalf("TotalSales = %s, want 987", out.TotalSales)
	}
	if !out.OrderRevenue.Equal(dec("870")) {
		t.Fatalf("OrderRevenue = %s, want 870", out.OrderRevenue)
	}
	if !out.BlendedAdSpend.Equal(dec("240")) {
		t.Fatalf("BlendedAdSpend = %s, want 240", out.BlendedAdSpend)
	}
	// 870 - 300 - 20 - 10 - 25 - 15 - 240 - 60
	if !out.NetProfit.Equal(dec("200")) {
		t.Fatalf("NetProfit = %s, want 200", out.NetProfit)
	}
	if !out.ROAS.Defined || !out.ROAS.Value.Equal(dec("3.625")) {
		t.Fatalf("ROAS = %+v, want 3.625", out.ROAS)
	}
	if !out.MER.Defined || !out.MER.Value.Equal(dec("0.2759")) {
		t.Fatalf("MER = %+v, want 0.2759", out.MER)
	}
	if !out.NetMargin.Defined || !out.NetMargin.Value.Equal(dec("0.2026")) {
		t.Fatalf("NetMargin = %+v, want 0.2026", out.NetMargin)
	}
	if !out.NCPA.Defined || !out.NCPA.Value.Equal(dec("60")) {
		t.Fatalf("NCPA = %+v, want 60", out.NCPA)
	}
}

func TestCompute_ZeroSpendROASIsUndefinedNotZero(t *testing.T) {
	out := Compute(DayInputs{GrossSales: dec("500")})

	if out.ROAS.Defined {
		t.Fatalf("ROAS with zero spend must be undefined, got %s", out.ROAS.Value)
	}
	if out.ROAS.Ptr() != nil {
		t.Fatalf("undefined ratios must serialize as NULL")
	}
	if out.NCPA.Defined {
		t.Fatalf("NCPA with zero new customers must be undefined")
	}
}

func TestCompute_ZeroRevenueMERIsUndefined(t *testing.T) {
	out := Compute(DayInputs{PlatformSpend: dec("100")})

	if out.MER.Defined {
		t.Fatalf("MER with zero revenue must be undefined")
	}
	if !out.ROAS.Defined || !out.ROAS.Value.IsZero() {
		t.Fatalf("zero revenue over real spend is a defined 0 ROAS, got %+v", out.ROAS)
	}
}

func TestCompute_IsDeterministic(t *testing.T) {
	in := DayInputs{
		GrossSales:    dec("123.45"),
		Discounts:     dec("3.45"),
		PlatformSpend: dec("67.89"),
		NewCustomers:  3,
	}
	first := Compute(in)
	second := Compute(in)
	if !first.NetProfit.Equal(second.NetProfit) || !first.ROAS.Value.Equal(second.ROAS.Value) {
		t.Fatalf("recomputation must be byte-for-byte stable")
	}
}
