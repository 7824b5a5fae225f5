package enums

import "fmt"

// ExpenseType buckets a custom expense into the profitability formulas.
type ExpenseType string

const (
	ExpenseTypeCOGS          ExpenseType = "cogs"
	ExpenseTypeShipping      ExpenseType = "shipping"
	ExpenseTypeHandling      ExpenseType = "handling"
	ExpenseTypeGatewayFees   ExpenseType = "gateway_fees"
	ExpenseTypeTaxesRemitted ExpenseType = "taxes_remitted"
	ExpenseTypeAdSpend       ExpenseType = "ad_spend"
	ExpenseTypeOther         ExpenseType = "other"
)

var validExpenseTypes = []ExpenseType{
	ExpenseTypeCOGS,
	ExpenseTypeShipping,
	ExpenseTypeHandling,
	ExpenseTypeGatewayFees,
	ExpenseTypeTaxesRemitted,
	ExpenseTypeAdSpend,
	ExpenseTypeOther,
}

// String implements fmt.Stringer.
func (t ExpenseType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known ExpenseType.
func (t ExpenseType) IsValid() bool {
	for _, candidate := range validExpenseTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseExpenseType converts raw input into an ExpenseType.
func ParseExpenseType(value string) (ExpenseType, error) {
	for _, candidate := range validExpenseTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid expense type %q", value)
}

// ExpenseRecurrence controls how an expense row is projected onto days.
type ExpenseRecurrence string

const (
	ExpenseRecurrenceOneTime ExpenseRecurrence = "one_time"
	ExpenseRecurrenceDaily   ExpenseRecurrence = "daily"
	ExpenseRecurrenceMonthly ExpenseRecurrence = "monthly"
)

var validExpenseRecurrences = []ExpenseRecurrence{
	ExpenseRecurrenceOneTime,
	ExpenseRecurrenceDaily,
	ExpenseRecurrenceMonthly,
}

// String implements fmt.Stringer.
func (r ExpenseRecurrence) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ExpenseRecurrence.
func (r ExpenseRecurrence) IsValid() bool {
	for _, candidate := range validExpenseRecurrences {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseExpenseRecurrence converts raw input into an ExpenseRecurrence.
func ParseExpenseRecurrence(value string) (ExpenseRecurrence, error) {
	for _, candidate := range validExpenseRecurrences {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid expense recurrence %q", value)
}
