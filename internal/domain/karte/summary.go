package karte

import (
	"github.com/shopspring/decimal"
)

// Summary is the financial roll-up of a record
type Summary struct {
	TotalPayment    decimal.Decimal
	TotalExpense    decimal.Decimal
	Profit          decimal.Decimal
	ProfitRate      float64 // percent, one decimal place
	ProfitPerPerson decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// CalculateSummary totals payments against expenses. Malformed amounts
// count as zero.
func CalculateSummary(payments []Payment, expenses []Expense, totalPersons string) Summary {
	totalPayment := decimal.Zero
	for _, p := range payments {
		totalPayment = totalPayment.Add(ParseAmount(p.Amount))
	}
	totalExpense := decimal.Zero
	for _, e := range expenses {
		totalExpense = totalExpense.Add(ParseAmount(e.Amount))
	}
	profit := totalPayment.Sub(totalExpense)

	return Summary{
		TotalPayment:    totalPayment,
		TotalExpense:    totalExpense,
		Profit:          profit,
		ProfitRate:      ProfitRate(profit, totalPayment),
		ProfitPerPerson: perPerson(profit, ParseAmount(totalPersons)),
	}
}

// ProfitRate returns profit as a percentage of revenue, rounded to one
// decimal place. It is zero when there is no revenue.
func ProfitRate(profit, revenue decimal.Decimal) float64 {
	if !revenue.IsPositive() {
		return 0
	}
	rate, _ := profit.Div(revenue).Mul(hundred).Round(1).Float64()
	return rate
}

func perPerson(profit, persons decimal.Decimal) decimal.Decimal {
	if !persons.IsPositive() {
		return decimal.Zero
	}
	return roundHalfUp(profit.Div(persons))
}
