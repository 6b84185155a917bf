package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/karte/backend/internal/domain/karte"
	"github.com/karte/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockKarteRepository is a mock implementation of karte.Repository
type MockKarteRepository struct {
	mock.Mock
}

func (m *MockKarteRepository) FindByID(ctx context.Context, id string) (karte.Snapshot, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(karte.Snapshot), args.Error(1)
}

func (m *MockKarteRepository) Save(ctx context.Context, s karte.Snapshot) (karte.SaveResult, error) {
	args := m.Called(ctx, s)
	return args.Get(0).(karte.SaveResult), args.Error(1)
}

func (m *MockKarteRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockKarteRepository) List(ctx context.Context, opts karte.ListOptions) ([]karte.ListEntry, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]karte.ListEntry), args.Error(1)
}

func (m *MockKarteRepository) FindUpdatedBetween(ctx context.Context, from, to time.Time) ([]karte.Snapshot, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]karte.Snapshot), args.Error(1)
}

var tokyo = time.FixedZone("JST", 9*60*60)

func record(id, staff, revenue, expense string, updated time.Time) karte.Snapshot {
	return karte.Snapshot{
		ID:          id,
		Fields:      karte.Fields{CompanyPerson: staff},
		Payments:    []karte.Payment{{ID: id + "-p", Amount: revenue}},
		Expenses:    []karte.Expense{{ID: id + "-e", Amount: expense}},
		LastUpdated: updated,
	}
}

func TestReportService_MonthlyReport(t *testing.T) {
	ctx := context.Background()
	repo := new(MockKarteRepository)
	svc := NewReportService(repo, tokyo, zap.NewNop())

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, tokyo)
	to := time.Date(2025, 4, 1, 0, 0, 0, 0, tokyo)
	repo.On("FindUpdatedBetween", ctx, from, to).Return([]karte.Snapshot{
		record("a", "Sato", "100000", "80000", from.Add(time.Hour)),
		record("b", "Ito", "50000", "45000", from.Add(48*time.Hour)),
	}, nil)

	got, err := svc.MonthlyReport(ctx, 2025, 3)
	require.NoError(t, err)
	assert.Equal(t, 2025, got.Year)
	assert.Equal(t, 3, got.Month)
	require.Len(t, got.Records, 2)
	assert.Equal(t, 20.0, got.Records[0].ProfitRate)
	assert.Equal(t, 2, got.KarteCount)
	assert.True(t, got.TotalRevenue.Equal(decimal.NewFromInt(150000)))
	assert.True(t, got.TotalProfit.Equal(decimal.NewFromInt(25000)))
	assert.Equal(t, 16.7, got.AverageProfitRate)
	repo.AssertExpectations(t)
}

func TestReportService_InvalidPeriod(t *testing.T) {
	ctx := context.Background()
	repo := new(MockKarteRepository)
	svc := NewReportService(repo, tokyo, zap.NewNop())

	_, err := svc.MonthlyReport(ctx, 2025, 13)
	assert.True(t, shared.IsKind(err, shared.KindValidation))

	_, err = svc.StaffPerformance(ctx, 2025, 0)
	assert.True(t, shared.IsKind(err, shared.KindValidation))

	_, err = svc.YearlyBreakdown(ctx, 1999)
	assert.True(t, shared.IsKind(err, shared.KindValidation))

	repo.AssertNotCalled(t, "FindUpdatedBetween", mock.Anything, mock.Anything, mock.Anything)
}

func TestReportService_OverallStats(t *testing.T) {
	ctx := context.Background()
	repo := new(MockKarteRepository)
	svc := NewReportService(repo, tokyo, zap.NewNop())

	repo.On("FindUpdatedBetween", ctx, time.Time{}, mock.AnythingOfType("time.Time")).Return([]karte.Snapshot{
		record("a", "Sato", "1000", "500", time.Now()),
		record("b", "Sato", "", "200", time.Now()),
	}, nil)

	got, err := svc.OverallStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got.KarteCount)
	assert.True(t, got.TotalProfit.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, 30.0, got.AverageProfitRate)
}

func TestReportService_YearlyBreakdown(t *testing.T) {
	ctx := context.Background()
	repo := new(MockKarteRepository)
	svc := NewReportService(repo, tokyo, zap.NewNop())

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, tokyo)
	repo.On("FindUpdatedBetween", ctx, from, from.AddDate(1, 0, 0)).Return([]karte.Snapshot{
		record("a", "Sato", "100", "0", time.Date(2025, 5, 5, 0, 0, 0, 0, tokyo)),
		record("b", "Sato", "100", "0", time.Date(2025, 5, 31, 23, 0, 0, 0, tokyo)),
	}, nil)

	got, err := svc.YearlyBreakdown(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, got, 12)
	assert.Equal(t, 2, got[4].KarteCount)
	assert.True(t, got[4].Revenue.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, 0, got[5].KarteCount)
}

func TestReportService_StaffPerformance(t *testing.T) {
	ctx := context.Background()
	repo := new(MockKarteRepository)
	svc := NewReportService(repo, tokyo, zap.NewNop())

	repo.On("FindUpdatedBetween", ctx, mock.Anything, mock.Anything).Return([]karte.Snapshot{
		record("a", "Sato", "1000", "900", time.Now()),
		record("b", "Tanaka", "1000", "500", time.Now()),
		record("c", "Sato", "1000", "900", time.Now()),
	}, nil)

	got, err := svc.StaffPerformance(ctx, 2025, 6)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Tanaka", got[0].StaffName)
	assert.Equal(t, 2, got[1].KarteCount)
}

// stubRoster returns fixed staff names
type stubRoster struct {
	names []string
	err   error
}

func (r stubRoster) Names(context.Context) ([]string, error) {
	return r.names, r.err
}

func TestReportService_StaffPerformanceIncludesRoster(t *testing.T) {
	ctx := context.Background()
	records := []karte.Snapshot{
		record("a", "Sato", "1000", "900", time.Now()),
	}

	t.Run("registered staff without records get a zero row", func(t *testing.T) {
		repo := new(MockKarteRepository)
		repo.On("FindUpdatedBetween", ctx, mock.Anything, mock.Anything).Return(records, nil)
		svc := NewReportService(repo, tokyo, zap.NewNop(), WithStaffRoster(stubRoster{names: []string{"Ito", "Sato"}}))

		got, err := svc.StaffPerformance(ctx, 2025, 6)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Sato", got[0].StaffName)
		assert.Equal(t, 1, got[0].KarteCount)
		assert.Equal(t, "Ito", got[1].StaffName)
		assert.Equal(t, 0, got[1].KarteCount)
	})

	t.Run("roster failure degrades to staff with records", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		repo := new(MockKarteRepository)
		repo.On("FindUpdatedBetween", ctx, mock.Anything, mock.Anything).Return(records, nil)
		svc := NewReportService(repo, tokyo, zap.New(core), WithStaffRoster(stubRoster{err: errors.New("offline")}))

		got, err := svc.StaffPerformance(ctx, 2025, 6)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Sato", got[0].StaffName)
		assert.Equal(t, 1, logs.Len())
	})
}

func TestReportService_StoreFailure(t *testing.T) {
	ctx := context.Background()
	repo := new(MockKarteRepository)
	svc := NewReportService(repo, tokyo, zap.NewNop())

	storeErr := shared.NewPersistenceError("query karte by update time", errors.New("unavailable"))
	repo.On("FindUpdatedBetween", ctx, mock.Anything, mock.Anything).Return(nil, storeErr)

	_, err := svc.MonthlyReport(ctx, 2025, 1)
	assert.True(t, shared.IsKind(err, shared.KindPersistence))
}
