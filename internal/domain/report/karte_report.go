// Package report holds the read models of the admin reports: per-record
// figures, monthly and yearly roll-ups and staff performance.
package report

import (
	"sort"
	"time"

	"github.com/karte/backend/internal/domain/karte"
	"github.com/shopspring/decimal"
)

// RecordFigures is the financial result of one record
type RecordFigures struct {
	ID            string          `json:"id"`
	RecordNumber  string          `json:"record_number"`
	StaffName     string          `json:"staff_name"`
	ClientName    string          `json:"client_name"`
	DepartureDate string          `json:"departure_date"`
	Destination   string          `json:"destination"`
	Revenue       decimal.Decimal `json:"revenue"`
	Expense       decimal.Decimal `json:"expense"`
	Profit        decimal.Decimal `json:"profit"`
	ProfitRate    float64         `json:"profit_rate"` // Percentage
	LastUpdated   time.Time       `json:"last_updated"`
}

// Totals aggregates a set of records
type Totals struct {
	KarteCount        int             `json:"karte_count"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalExpense      decimal.Decimal `json:"total_expense"`
	TotalProfit       decimal.Decimal `json:"total_profit"`
	AverageProfitRate float64         `json:"average_profit_rate"` // Percentage
}

// MonthlyReport lists the records updated in one calendar month
type MonthlyReport struct {
	Year    int             `json:"year"`
	Month   int             `json:"month"`
	Records []RecordFigures `json:"records"`
	Totals
}

// MonthBucket is one month of a yearly breakdown
type MonthBucket struct {
	Month      int             `json:"month"`
	KarteCount int             `json:"karte_count"`
	Revenue    decimal.Decimal `json:"revenue"`
	Expense    decimal.Decimal `json:"expense"`
	Profit     decimal.Decimal `json:"profit"`
}

// StaffPerformance aggregates the records of one staff member
type StaffPerformance struct {
	StaffName string `json:"staff_name"`
	Totals
}

// FiguresOf computes the figures of a record. The list columns come from
// the same projection the record list uses.
func FiguresOf(s karte.Snapshot) RecordFigures {
	sum := s.Summary()
	proj := karte.ProjectSummary(s)
	return RecordFigures{
		ID:            s.ID,
		RecordNumber:  proj.RecordNumber,
		StaffName:     proj.StaffName,
		ClientName:    proj.ClientName,
		DepartureDate: proj.DepartureDate,
		Destination:   proj.Destination,
		Revenue:       sum.TotalPayment,
		Expense:       sum.TotalExpense,
		Profit:        sum.Profit,
		ProfitRate:    sum.ProfitRate,
		LastUpdated:   s.LastUpdated,
	}
}

// Aggregate totals figures. The average profit rate is total profit over
// total revenue, not the mean of the per-record rates.
func Aggregate(figs []RecordFigures) Totals {
	t := Totals{
		KarteCount:   len(figs),
		TotalRevenue: decimal.Zero,
		TotalExpense: decimal.Zero,
		TotalProfit:  decimal.Zero,
	}
	for _, f := range figs {
		t.TotalRevenue = t.TotalRevenue.Add(f.Revenue)
		t.TotalExpense = t.TotalExpense.Add(f.Expense)
		t.TotalProfit = t.TotalProfit.Add(f.Profit)
	}
	t.AverageProfitRate = karte.ProfitRate(t.TotalProfit, t.TotalRevenue)
	return t
}

// BucketByMonth spreads figures over the twelve months of their update
// time in loc. Records without an update time are skipped.
func BucketByMonth(figs []RecordFigures, loc *time.Location) []MonthBucket {
	buckets := make([]MonthBucket, 12)
	for i := range buckets {
		buckets[i] = MonthBucket{
			Month:   i + 1,
			Revenue: decimal.Zero,
			Expense: decimal.Zero,
			Profit:  decimal.Zero,
		}
	}
	for _, f := range figs {
		if f.LastUpdated.IsZero() {
			continue
		}
		b := &buckets[f.LastUpdated.In(loc).Month()-1]
		b.KarteCount++
		b.Revenue = b.Revenue.Add(f.Revenue)
		b.Expense = b.Expense.Add(f.Expense)
		b.Profit = b.Profit.Add(f.Profit)
	}
	return buckets
}

// GroupByStaff aggregates figures per staff name, highest profit first.
// Every registered name gets a row, even without records.
func GroupByStaff(figs []RecordFigures, registered ...string) []StaffPerformance {
	groups := make(map[string][]RecordFigures)
	for _, name := range registered {
		if name != "" {
			groups[name] = nil
		}
	}
	for _, f := range figs {
		groups[f.StaffName] = append(groups[f.StaffName], f)
	}

	out := make([]StaffPerformance, 0, len(groups))
	for name, list := range groups {
		out = append(out, StaffPerformance{StaffName: name, Totals: Aggregate(list)})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalProfit.Cmp(out[j].TotalProfit); c != 0 {
			return c > 0
		}
		return out[i].StaffName < out[j].StaffName
	})
	return out
}

// MonthRange returns [start, end) of a calendar month in loc
func MonthRange(year, month int, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}
