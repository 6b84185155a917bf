package report

import (
	"context"
	"time"

	"github.com/karte/backend/internal/domain/karte"
	"github.com/karte/backend/internal/domain/report"
	"github.com/karte/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// allTimeEnd bounds the open-ended overall query
var allTimeEnd = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// StaffRoster lists the registered staff names
type StaffRoster interface {
	Names(ctx context.Context) ([]string, error)
}

// ReportService provides the admin reports over stored records. Month
// boundaries are taken in the configured business timezone.
type ReportService struct {
	repo   karte.Repository
	roster StaffRoster
	loc    *time.Location
	logger *zap.Logger
}

// ReportOption configures a ReportService
type ReportOption func(*ReportService)

// WithStaffRoster lists every registered staff member in the staff report,
// including those without records in the month
func WithStaffRoster(roster StaffRoster) ReportOption {
	return func(s *ReportService) {
		s.roster = roster
	}
}

// NewReportService creates a new ReportService
func NewReportService(repo karte.Repository, loc *time.Location, logger *zap.Logger, opts ...ReportOption) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	s := &ReportService{
		repo:   repo,
		loc:    loc,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ===================== Monthly Report =====================

// MonthlyReport lists the records last updated in the given month with
// their figures and the month totals
func (s *ReportService) MonthlyReport(ctx context.Context, year, month int) (*report.MonthlyReport, error) {
	if err := validateMonth(year, month); err != nil {
		return nil, err
	}
	from, to := report.MonthRange(year, month, s.loc)
	figs, err := s.figuresBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Monthly report computed",
		zap.Int("year", year),
		zap.Int("month", month),
		zap.Int("records", len(figs)),
	)
	return &report.MonthlyReport{
		Year:    year,
		Month:   month,
		Records: figs,
		Totals:  report.Aggregate(figs),
	}, nil
}

// ===================== Overall Statistics =====================

// OverallStats totals every stored record
func (s *ReportService) OverallStats(ctx context.Context) (*report.Totals, error) {
	figs, err := s.figuresBetween(ctx, time.Time{}, allTimeEnd)
	if err != nil {
		return nil, err
	}
	totals := report.Aggregate(figs)
	return &totals, nil
}

// ===================== Yearly Breakdown =====================

// YearlyBreakdown aggregates the records of a year month by month
func (s *ReportService) YearlyBreakdown(ctx context.Context, year int) ([]report.MonthBucket, error) {
	if err := validateMonth(year, 1); err != nil {
		return nil, err
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, s.loc)
	figs, err := s.figuresBetween(ctx, from, from.AddDate(1, 0, 0))
	if err != nil {
		return nil, err
	}
	return report.BucketByMonth(figs, s.loc), nil
}

// ===================== Staff Performance =====================

// StaffPerformance aggregates the records of a month per staff member.
// When the roster cannot be read the report covers only staff with records.
func (s *ReportService) StaffPerformance(ctx context.Context, year, month int) ([]report.StaffPerformance, error) {
	if err := validateMonth(year, month); err != nil {
		return nil, err
	}
	from, to := report.MonthRange(year, month, s.loc)
	figs, err := s.figuresBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	var registered []string
	if s.roster != nil {
		registered, err = s.roster.Names(ctx)
		if err != nil {
			s.logger.Warn("Failed to read staff roster, reporting staff with records only", zap.Error(err))
			registered = nil
		}
	}
	return report.GroupByStaff(figs, registered...), nil
}

func (s *ReportService) figuresBetween(ctx context.Context, from, to time.Time) ([]report.RecordFigures, error) {
	records, err := s.repo.FindUpdatedBetween(ctx, from, to)
	if err != nil {
		s.logger.Error("Failed to query records for report", zap.Error(err))
		return nil, err
	}
	figs := make([]report.RecordFigures, 0, len(records))
	for _, r := range records {
		figs = append(figs, report.FiguresOf(r))
	}
	return figs, nil
}

func validateMonth(year, month int) error {
	if year < 2000 || year > 9998 {
		return shared.NewValidationError("INVALID_YEAR", "Year must be between 2000 and 9998")
	}
	if month < 1 || month > 12 {
		return shared.NewValidationError("INVALID_MONTH", "Month must be between 1 and 12")
	}
	return nil
}
