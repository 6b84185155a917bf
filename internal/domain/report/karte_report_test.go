package report

import (
	"testing"
	"time"

	"github.com/karte/backend/internal/domain/karte"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func figures(staff string, revenue, expense int64, updated time.Time) RecordFigures {
	r := decimal.NewFromInt(revenue)
	e := decimal.NewFromInt(expense)
	return RecordFigures{
		StaffName:   staff,
		Revenue:     r,
		Expense:     e,
		Profit:      r.Sub(e),
		ProfitRate:  karte.ProfitRate(r.Sub(e), r),
		LastUpdated: updated,
	}
}

func TestFiguresOf(t *testing.T) {
	s := karte.Snapshot{
		ID:           "k1",
		RecordNumber: "D-250110-001",
		Fields: karte.Fields{
			CompanyPerson: "Tanaka",
			ClientCompany: "Acme",
			TotalPersons:  "4",
		},
		Payments: []karte.Payment{{Amount: "60,000"}, {Amount: "abc"}},
		Expenses: []karte.Expense{{Amount: "15000"}},
	}

	f := FiguresOf(s)
	assert.Equal(t, "k1", f.ID)
	assert.Equal(t, "D-250110-001", f.RecordNumber)
	assert.Equal(t, "Tanaka", f.StaffName)
	assert.Equal(t, "Acme", f.ClientName)
	assert.True(t, f.Revenue.Equal(decimal.NewFromInt(60000)))
	assert.True(t, f.Profit.Equal(decimal.NewFromInt(45000)))
	assert.Equal(t, 75.0, f.ProfitRate)
}

func TestAggregate(t *testing.T) {
	t.Run("rate is total profit over total revenue", func(t *testing.T) {
		got := Aggregate([]RecordFigures{
			figures("a", 100, 50, time.Time{}),
			figures("b", 300, 300, time.Time{}),
		})
		assert.Equal(t, 2, got.KarteCount)
		assert.True(t, got.TotalRevenue.Equal(decimal.NewFromInt(400)))
		assert.True(t, got.TotalProfit.Equal(decimal.NewFromInt(50)))
		assert.Equal(t, 12.5, got.AverageProfitRate)
	})

	t.Run("empty", func(t *testing.T) {
		got := Aggregate(nil)
		assert.Equal(t, 0, got.KarteCount)
		assert.True(t, got.TotalRevenue.IsZero())
		assert.Equal(t, 0.0, got.AverageProfitRate)
	})
}

func TestBucketByMonth(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	figs := []RecordFigures{
		// 2025-01-31 20:00 UTC is already February in Tokyo
		figures("a", 100, 0, time.Date(2025, 1, 31, 20, 0, 0, 0, time.UTC)),
		figures("a", 50, 10, time.Date(2025, 2, 10, 0, 0, 0, 0, tokyo)),
		figures("b", 70, 0, time.Date(2025, 12, 1, 0, 0, 0, 0, tokyo)),
		figures("c", 999, 0, time.Time{}),
	}

	buckets := BucketByMonth(figs, tokyo)
	require.Len(t, buckets, 12)
	assert.Equal(t, 1, buckets[0].Month)
	assert.Equal(t, 0, buckets[0].KarteCount)
	assert.Equal(t, 2, buckets[1].KarteCount)
	assert.True(t, buckets[1].Revenue.Equal(decimal.NewFromInt(150)))
	assert.True(t, buckets[1].Profit.Equal(decimal.NewFromInt(140)))
	assert.Equal(t, 1, buckets[11].KarteCount)
}

func TestGroupByStaff(t *testing.T) {
	got := GroupByStaff([]RecordFigures{
		figures("Sato", 100, 90, time.Time{}),
		figures("Tanaka", 200, 100, time.Time{}),
		figures("Sato", 100, 90, time.Time{}),
		figures("Ito", 100, 90, time.Time{}),
	})

	require.Len(t, got, 3)
	assert.Equal(t, "Tanaka", got[0].StaffName)
	assert.Equal(t, "Sato", got[1].StaffName)
	assert.Equal(t, 2, got[1].KarteCount)
	assert.True(t, got[1].TotalProfit.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, "Ito", got[2].StaffName)
}

func TestGroupByStaff_SeedsRegisteredStaff(t *testing.T) {
	got := GroupByStaff([]RecordFigures{
		figures("Sato", 100, 90, time.Time{}),
	}, "Ito", "Sato", "", "Tanaka")

	require.Len(t, got, 3)
	assert.Equal(t, "Sato", got[0].StaffName)
	assert.Equal(t, 1, got[0].KarteCount)
	assert.Equal(t, "Ito", got[1].StaffName)
	assert.Equal(t, 0, got[1].KarteCount)
	assert.True(t, got[1].TotalRevenue.IsZero())
	assert.Zero(t, got[1].AverageProfitRate)
	assert.Equal(t, "Tanaka", got[2].StaffName)
}

func TestMonthRange(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)

	start, end := MonthRange(2024, 12, tokyo)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, tokyo), start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, tokyo), end)
	assert.Equal(t, time.Date(2024, 11, 30, 15, 0, 0, 0, time.UTC), start.UTC())
}
