package karte

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/width"
)

var dateLayouts = []string{"2006-01-02", "2006/01/02", time.RFC3339}

// ParseDate parses a date field. Only the calendar date is kept.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ParseAmount parses a numeric field leniently. Full-width digits are
// narrowed and thousands separators dropped; anything unparseable is zero.
func ParseAmount(s string) decimal.Decimal {
	s = width.Narrow.String(strings.TrimSpace(s))
	s = strings.NewReplacer(",", "", " ", "", "¥", "", "円", "").Replace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// roundHalfUp rounds to the nearest integer, halves toward positive infinity.
func roundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Add(decimal.NewFromFloat(0.5)).Floor()
}

// CalculateNights returns the whole-day distance between two dates. The
// second return value is false when either date is missing or unparseable,
// in which case the caller leaves the field untouched.
func CalculateNights(departure, ret string) (string, bool) {
	from, ok := ParseDate(departure)
	if !ok {
		return "", false
	}
	to, ok := ParseDate(ret)
	if !ok {
		return "", false
	}
	days := math.Ceil(math.Abs(to.Sub(from).Hours()) / 24)
	return decimal.NewFromFloat(days).String(), true
}

// CalculateUnitPrice returns round(totalAmount / totalPersons), or the empty
// string when either input is not a positive number.
func CalculateUnitPrice(totalAmount, totalPersons string) string {
	amount := ParseAmount(totalAmount)
	persons := ParseAmount(totalPersons)
	if !amount.IsPositive() || !persons.IsPositive() {
		return ""
	}
	return roundHalfUp(amount.Div(persons)).String()
}

// CalculateSalesTotal returns unitPrice * personCount for one sales line.
func CalculateSalesTotal(unitPrice, personCount string) string {
	return ParseAmount(unitPrice).Mul(ParseAmount(personCount)).String()
}

// derivedInputsPresent reports whether the inputs of a derived field are
// all present, which makes the field read-only.
func derivedInputsPresent(f Fields, name Field) bool {
	switch name {
	case FieldNights:
		_, ok := CalculateNights(f.DepartureDate, f.ReturnDate)
		return ok
	case FieldUnitPrice:
		return CalculateUnitPrice(f.TotalAmount, f.TotalPersons) != ""
	}
	return false
}

// recompute refreshes the fields derived from changed.
func recompute(f *Fields, changed Field) {
	switch changed {
	case FieldDepartureDate, FieldReturnDate:
		if nights, ok := CalculateNights(f.DepartureDate, f.ReturnDate); ok {
			f.Nights = nights
		}
	case FieldTotalAmount, FieldTotalPersons:
		f.UnitPrice = CalculateUnitPrice(f.TotalAmount, f.TotalPersons)
	}
}
