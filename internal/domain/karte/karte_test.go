package karte

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/karte/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() shared.IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestKarte() *Karte {
	fixed := time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC)
	return New(WithIDGenerator(sequentialIDs()), WithClock(func() time.Time { return fixed }))
}

func TestNew(t *testing.T) {
	k := newTestKarte()

	assert.Equal(t, StateEmpty, k.State())
	assert.Empty(t, k.ID())
	assert.Equal(t, TravelTypeDomestic, k.Fields().TravelType)
	assert.Equal(t, ArrangementNotStarted, k.Fields().ArrangementStatus)

	snap := k.Snapshot()
	assert.NotNil(t, snap.Payments)
	assert.NotNil(t, snap.SalesDetails.Items)
	assert.True(t, snap.IsNew())
}

func TestKarte_UpdateField(t *testing.T) {
	t.Run("marks modified and bumps revision", func(t *testing.T) {
		k := newTestKarte()
		require.NoError(t, k.UpdateField(FieldClientCompany, "Acme Travel"))
		assert.Equal(t, "Acme Travel", k.Fields().ClientCompany)
		assert.Equal(t, StateModified, k.State())
		assert.Equal(t, uint64(1), k.Revision())
	})

	t.Run("unknown field is rejected", func(t *testing.T) {
		k := newTestKarte()
		err := k.UpdateField(Field("bogus"), "x")
		assert.True(t, shared.IsKind(err, shared.KindValidation))
		assert.Equal(t, StateEmpty, k.State())
	})

	t.Run("dates recompute nights", func(t *testing.T) {
		k := newTestKarte()
		require.NoError(t, k.UpdateField(FieldDepartureDate, "2025-01-10"))
		assert.Empty(t, k.Fields().Nights)
		require.NoError(t, k.UpdateField(FieldReturnDate, "2025-01-13"))
		assert.Equal(t, "3", k.Fields().Nights)
	})

	t.Run("unparseable date leaves nights untouched", func(t *testing.T) {
		k := newTestKarte()
		require.NoError(t, k.UpdateField(FieldNights, "5"))
		require.NoError(t, k.UpdateField(FieldDepartureDate, "2025-01-10"))
		require.NoError(t, k.UpdateField(FieldReturnDate, "soon"))
		assert.Equal(t, "5", k.Fields().Nights)
	})

	t.Run("amount and persons recompute unit price", func(t *testing.T) {
		k := newTestKarte()
		require.NoError(t, k.UpdateField(FieldTotalAmount, "100000"))
		assert.Equal(t, "", k.Fields().UnitPrice)
		require.NoError(t, k.UpdateField(FieldTotalPersons, "4"))
		assert.Equal(t, "25000", k.Fields().UnitPrice)
		require.NoError(t, k.UpdateField(FieldTotalPersons, "0"))
		assert.Equal(t, "", k.Fields().UnitPrice)
	})

	t.Run("derived fields are read-only once inputs are present", func(t *testing.T) {
		k := newTestKarte()
		require.NoError(t, k.UpdateField(FieldTotalAmount, "100000"))
		require.NoError(t, k.UpdateField(FieldTotalPersons, "4"))
		err := k.UpdateField(FieldUnitPrice, "1")
		assert.True(t, shared.IsKind(err, shared.KindValidation))
		assert.Equal(t, "25000", k.Fields().UnitPrice)

		require.NoError(t, k.UpdateField(FieldDepartureDate, "2025-01-10"))
		require.NoError(t, k.UpdateField(FieldReturnDate, "2025-01-11"))
		assert.Error(t, k.UpdateField(FieldNights, "9"))
	})

	t.Run("invalid enums are rejected", func(t *testing.T) {
		k := newTestKarte()
		assert.Error(t, k.UpdateField(FieldTravelType, "space"))
		assert.Error(t, k.UpdateField(FieldArrangementStatus, "done"))
		require.NoError(t, k.UpdateField(FieldArrangementStatus, "completed"))
		assert.Equal(t, ArrangementCompleted, k.Fields().ArrangementStatus)
	})
}

func TestKarte_TravelTypeRewritesPrefix(t *testing.T) {
	k := newTestKarte()
	k.AssignRecordNumber("D-250110-004")
	require.NoError(t, k.UpdateField(FieldDeparturePlace, "Haneda"))
	require.NoError(t, k.UpdateField(FieldDestination, DestinationOther))
	require.NoError(t, k.UpdateField(FieldDestinationOther, "Okinawa"))

	require.NoError(t, k.UpdateField(FieldTravelType, string(TravelTypeInternational)))

	assert.Equal(t, "I-250110-004", k.RecordNumber())
	f := k.Fields()
	assert.Empty(t, f.DeparturePlace)
	assert.Empty(t, f.Destination)
	assert.Empty(t, f.DestinationOther)

	t.Run("setting the same type keeps place fields", func(t *testing.T) {
		require.NoError(t, k.UpdateField(FieldDestination, "Seoul"))
		require.NoError(t, k.UpdateField(FieldTravelType, string(TravelTypeInternational)))
		assert.Equal(t, "Seoul", k.Fields().Destination)
		assert.Equal(t, "I-250110-004", k.RecordNumber())
	})

	t.Run("late number assignment follows current type", func(t *testing.T) {
		k.AssignRecordNumber("D-250110-007")
		assert.Equal(t, "I-250110-007", k.RecordNumber())
	})
}

func TestKarte_PrefixInvariantOverSequences(t *testing.T) {
	k := newTestKarte()
	k.AssignRecordNumber("D-250110-002")
	for i, tt := range []TravelType{TravelTypeInternational, TravelTypeInternational, TravelTypeDomestic, TravelTypeInternational, TravelTypeDomestic} {
		require.NoError(t, k.UpdateField(FieldTravelType, string(tt)))
		want := NumberPrefix(tt) + "-"
		assert.True(t, strings.HasPrefix(k.RecordNumber(), want), "step %d", i)
		assert.True(t, strings.HasSuffix(k.RecordNumber(), "-250110-002"), "step %d", i)
	}
}

func TestKarte_Payments(t *testing.T) {
	k := newTestKarte()

	p1 := k.AddPayment(Payment{Amount: "50000", ID: "ignored"})
	p2 := k.AddPayment(Payment{Amount: "30000"})
	assert.Equal(t, "id-1", p1.ID)
	assert.Equal(t, "id-2", p2.ID)

	p1.Amount = "55000"
	require.NoError(t, k.UpdatePayment(p1))
	require.NoError(t, k.DeletePayment(p2.ID))

	snap := k.Snapshot()
	require.Len(t, snap.Payments, 1)
	assert.Equal(t, "55000", snap.Payments[0].Amount)

	p3 := k.AddPayment(Payment{Amount: "1"})
	assert.Equal(t, "id-3", p3.ID, "ids are never reused")

	assert.ErrorIs(t, k.DeletePayment("missing"), shared.ErrNotFound)
	assert.ErrorIs(t, k.UpdatePayment(Payment{ID: "missing"}), shared.ErrNotFound)
}

func TestKarte_Expenses(t *testing.T) {
	k := newTestKarte()

	e, err := k.AddExpense(Expense{Vendor: "Hotel", Amount: "20000"})
	require.NoError(t, err)
	assert.Equal(t, ExpenseUnarranged, e.Status)

	_, err = k.AddExpense(Expense{Status: "lost"})
	assert.True(t, shared.IsKind(err, shared.KindValidation))

	e.Status = ExpensePaid
	require.NoError(t, k.UpdateExpense(e))
	assert.Equal(t, ExpensePaid, k.Snapshot().Expenses[0].Status)

	require.NoError(t, k.DeleteExpense(e.ID))
	assert.Empty(t, k.Snapshot().Expenses)
}

func TestKarte_CommentsNewestFirst(t *testing.T) {
	k := newTestKarte()

	_, err := k.AddComment("first", nil, "")
	require.NoError(t, err)
	c2, err := k.AddComment("second", []string{"data:image/jpeg;base64,AAAA"}, "Sato")
	require.NoError(t, err)

	comments := k.Snapshot().Comments
	require.Len(t, comments, 2)
	assert.Equal(t, c2.ID, comments[0].ID)
	assert.Equal(t, "first", comments[1].Text)
	assert.Equal(t, time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC), comments[0].Date)

	_, err = k.AddComment("  ", nil, "")
	assert.Error(t, err)

	require.NoError(t, k.DeleteComment(c2.ID))
	assert.Len(t, k.Snapshot().Comments, 1)
}

func TestKarte_SalesItems(t *testing.T) {
	k := newTestKarte()

	hotel, err := k.AddSalesItem(SalesItem{Category: SalesAccommodation, UnitPrice: "15000", PersonCount: "2"})
	require.NoError(t, err)
	bus, err := k.AddSalesItem(SalesItem{Category: SalesTransportation, UnitPrice: "3000", PersonCount: "2"})
	require.NoError(t, err)
	assert.Equal(t, "30000", hotel.TotalSales)
	assert.Equal(t, SalesNotArranged, hotel.ArrangementStatus)
	assert.Equal(t, PaymentScheduled, hotel.PaymentStatus)

	t.Run("editing price recomputes only that line", func(t *testing.T) {
		updated, err := k.UpdateSalesItem(hotel.ID, SalesFieldUnitPrice, "20000")
		require.NoError(t, err)
		assert.Equal(t, "40000", updated.TotalSales)

		updated, err = k.UpdateSalesItem(hotel.ID, SalesFieldPersonCount, "3")
		require.NoError(t, err)
		assert.Equal(t, "60000", updated.TotalSales)

		items := k.Snapshot().SalesDetails.Items
		assert.Equal(t, "60000", items[0].TotalSales)
		assert.Equal(t, "6000", items[1].TotalSales)
		assert.Equal(t, bus.ID, items[1].ID)
	})

	t.Run("editing other fields leaves the total alone", func(t *testing.T) {
		updated, err := k.UpdateSalesItem(bus.ID, SalesFieldContent, "charter bus")
		require.NoError(t, err)
		assert.Equal(t, "6000", updated.TotalSales)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		_, err := k.UpdateSalesItem(bus.ID, SalesFieldPaymentTo, "bitcoin")
		assert.Error(t, err)
		_, err = k.UpdateSalesItem(bus.ID, SalesItemField("nope"), "x")
		assert.Error(t, err)
		_, err = k.UpdateSalesItem("missing", SalesFieldContent, "x")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("unknown category falls into others", func(t *testing.T) {
		item, err := k.AddSalesItem(SalesItem{Category: "souvenirs"})
		require.NoError(t, err)
		assert.Equal(t, SalesOthers, item.Category)
		assert.Len(t, k.Snapshot().SalesDetails.ByCategory(SalesOthers), 1)
	})

	t.Run("legacy unpaid becomes scheduled", func(t *testing.T) {
		updated, err := k.UpdateSalesItem(bus.ID, SalesFieldPaymentStatus, "unpaid")
		require.NoError(t, err)
		assert.Equal(t, PaymentScheduled, updated.PaymentStatus)
	})

	t.Run("memo and delete", func(t *testing.T) {
		k.SetSalesMemo("check invoices")
		require.NoError(t, k.DeleteSalesItem(bus.ID))
		snap := k.Snapshot()
		assert.Equal(t, "check invoices", snap.SalesDetails.Memo)
		assert.Empty(t, snap.SalesDetails.ByCategory(SalesTransportation))
	})
}

func TestKarte_UpdateSalesDetails(t *testing.T) {
	k := newTestKarte()

	err := k.UpdateSalesDetails(SalesDetails{
		Items: []SalesItem{
			{ID: "keep", Category: SalesMeals},
			{Category: "", PaymentStatus: PaymentUnpaidLegacy},
		},
		Memo: "memo",
	})
	require.NoError(t, err)

	items := k.Snapshot().SalesDetails.Items
	require.Len(t, items, 2)
	assert.Equal(t, "keep", items[0].ID)
	assert.Equal(t, "id-1", items[1].ID)
	assert.Equal(t, SalesOthers, items[1].Category)
	assert.Equal(t, PaymentScheduled, items[1].PaymentStatus)

	err = k.UpdateSalesDetails(SalesDetails{Items: []SalesItem{{ArrangementStatus: "maybe"}}})
	assert.Error(t, err)
	assert.Len(t, k.Snapshot().SalesDetails.Items, 2, "failed replace keeps previous lines")
}

func TestKarte_MarkSaved(t *testing.T) {
	savedAt := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	t.Run("unchanged revision becomes saved", func(t *testing.T) {
		k := newTestKarte()
		require.NoError(t, k.UpdateField(FieldMemo, "x"))
		k.MarkSaved("doc-1", savedAt, k.Revision())
		assert.Equal(t, StateSaved, k.State())
		assert.Equal(t, "doc-1", k.ID())
		assert.Equal(t, savedAt, k.Snapshot().LastSaved)
	})

	t.Run("edits during save keep the record modified", func(t *testing.T) {
		k := newTestKarte()
		require.NoError(t, k.UpdateField(FieldMemo, "x"))
		rev := k.Revision()
		require.NoError(t, k.UpdateField(FieldMemo, "y"))
		k.MarkSaved("doc-1", savedAt, rev)
		assert.Equal(t, StateModified, k.State())
		assert.Equal(t, "doc-1", k.ID(), "id is adopted so the next save updates")
	})
}

func TestRehydrate(t *testing.T) {
	snap := Snapshot{
		ID:           "doc-9",
		RecordNumber: "D-250110-001",
		Fields:       DefaultFields(),
		Comments:     []Comment{{ID: "c1", Images: []string{"a"}}},
	}
	k := Rehydrate(snap)
	assert.Equal(t, StateLoaded, k.State())
	assert.Equal(t, "doc-9", k.ID())

	snap.Comments[0].Images[0] = "mutated"
	assert.Equal(t, "a", k.Snapshot().Comments[0].Images[0])
}

func TestProjectSummary(t *testing.T) {
	f := DefaultFields()
	f.CompanyPerson = "Sato"
	f.ClientCompany = "Acme"
	f.DepartureDate = "2025-02-01"
	f.TotalPersons = "12"
	f.Destination = DestinationOther
	f.DestinationOther = "Yakushima"

	p := ProjectSummary(Snapshot{RecordNumber: "D-250110-001", Fields: f})
	assert.Equal(t, SummaryProjection{
		RecordNumber:  "D-250110-001",
		StaffName:     "Sato",
		ClientName:    "Acme",
		DepartureDate: "2025-02-01",
		PersonCount:   "12",
		Destination:   "Yakushima",
	}, p)
}
