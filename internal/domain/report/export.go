package report

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Table is a report laid out for export. Cells hold strings, ints,
// decimals or float64 percentages; encoders decide how each one is written.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Percent is a profit rate cell, rendered with one decimal and a % sign
type Percent float64

// String implements fmt.Stringer
func (p Percent) String() string {
	return strconv.FormatFloat(float64(p), 'f', 1, 64) + "%"
}

var (
	monthlyHeader = []string{"カルテNo", "担当者", "クライアント", "出発日", "行先", "売上", "費用", "利益", "利益率"}
	staffHeader   = []string{"担当者", "カルテ数", "売上合計", "利益合計", "平均利益率"}
)

// MonthlyTable lays out a monthly report one row per record
func MonthlyTable(r *MonthlyReport) Table {
	rows := make([][]any, 0, len(r.Records))
	for _, f := range r.Records {
		rows = append(rows, []any{
			f.RecordNumber,
			f.StaffName,
			f.ClientName,
			f.DepartureDate,
			f.Destination,
			f.Revenue,
			f.Expense,
			f.Profit,
			Percent(f.ProfitRate),
		})
	}
	return Table{
		Name:   fmt.Sprintf("monthly_report_%d_%02d", r.Year, r.Month),
		Header: monthlyHeader,
		Rows:   rows,
	}
}

// StaffTable lays out staff performance one row per staff member
func StaffTable(year, month int, staff []StaffPerformance) Table {
	rows := make([][]any, 0, len(staff))
	for _, s := range staff {
		rows = append(rows, []any{
			s.StaffName,
			s.KarteCount,
			s.TotalRevenue,
			s.TotalProfit,
			Percent(s.AverageProfitRate),
		})
	}
	return Table{
		Name:   fmt.Sprintf("staff_stats_%d_%02d", year, month),
		Header: staffHeader,
		Rows:   rows,
	}
}

// CellText renders a cell the way the text exports show it
func CellText(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case int:
		return strconv.Itoa(c)
	case decimal.Decimal:
		return c.String()
	case Percent:
		return c.String()
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	default:
		return fmt.Sprint(c)
	}
}
