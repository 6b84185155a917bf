package report

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/karte/backend/internal/domain/report"
	"github.com/karte/backend/internal/domain/shared"
	"github.com/karte/backend/internal/infrastructure/export"
	"go.uber.org/zap"
)

// ObjectStorageService stores archived exports and signs download URLs
type ObjectStorageService interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	SignedURL(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error)
}

// ExportKind names the report an export is built from
type ExportKind string

// Export kinds
const (
	ExportMonthly ExportKind = "monthly"
	ExportStaff   ExportKind = "staff"
)

// ExportRequest selects a report period and file format
type ExportRequest struct {
	Kind   ExportKind
	Year   int
	Month  int
	Format string
}

// ArchivedExport describes an export written to object storage
type ArchivedExport struct {
	Key         string    `json:"key"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ExportService turns reports into CSV or XLSX files and optionally
// archives them in object storage
type ExportService struct {
	reports *ReportService
	storage ObjectStorageService
	prefix  string
	expires time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// ExportOption configures an ExportService
type ExportOption func(*ExportService)

// WithArchive enables archiving into storage under the key prefix
func WithArchive(storage ObjectStorageService, prefix string, expires time.Duration) ExportOption {
	return func(s *ExportService) {
		s.storage = storage
		s.prefix = prefix
		s.expires = expires
	}
}

// WithClock overrides the time source used for archive keys
func WithClock(now func() time.Time) ExportOption {
	return func(s *ExportService) {
		s.now = now
	}
}

// NewExportService creates a new ExportService
func NewExportService(reports *ReportService, logger *zap.Logger, opts ...ExportOption) *ExportService {
	s := &ExportService{
		reports: reports,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ArchiveEnabled reports whether exports can be archived
func (s *ExportService) ArchiveEnabled() bool {
	return s.storage != nil
}

// Export builds the requested report and encodes it
func (s *ExportService) Export(ctx context.Context, req ExportRequest) (*export.File, error) {
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return nil, shared.NewValidationError("INVALID_FORMAT", "Format must be csv or xlsx")
	}

	var table report.Table
	switch req.Kind {
	case ExportMonthly:
		monthly, err := s.reports.MonthlyReport(ctx, req.Year, req.Month)
		if err != nil {
			return nil, err
		}
		table = report.MonthlyTable(monthly)
	case ExportStaff:
		staff, err := s.reports.StaffPerformance(ctx, req.Year, req.Month)
		if err != nil {
			return nil, err
		}
		table = report.StaffTable(req.Year, req.Month, staff)
	default:
		return nil, shared.NewValidationError("INVALID_REPORT", fmt.Sprintf("Unknown report %q", req.Kind))
	}

	file, err := export.Encode(table, format)
	if err != nil {
		s.logger.Error("Failed to encode report export", zap.String("report", string(req.Kind)), zap.Error(err))
		return nil, err
	}
	return file, nil
}

// Archive exports a report, stores the file and returns a signed download
// URL for it. Keys are prefix/YYYY/MM/<unix-nanos>-<filename>.
func (s *ExportService) Archive(ctx context.Context, req ExportRequest) (*ArchivedExport, error) {
	if s.storage == nil {
		return nil, shared.NewDomainError("ARCHIVE_DISABLED", "Object storage is not configured")
	}

	file, err := s.Export(ctx, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	key := path.Join(s.prefix, fmt.Sprintf("%04d/%02d", req.Year, req.Month),
		fmt.Sprintf("%d-%s", now.UnixNano(), file.Filename))
	if err := s.storage.Put(ctx, key, file.Data, file.ContentType); err != nil {
		s.logger.Error("Failed to archive report export", zap.String("key", key), zap.Error(err))
		return nil, shared.NewPersistenceError("archive export", err)
	}
	url, expiresAt, err := s.storage.SignedURL(ctx, key, s.expires)
	if err != nil {
		s.logger.Error("Failed to sign archived export", zap.String("key", key), zap.Error(err))
		return nil, shared.NewPersistenceError("sign export", err)
	}

	s.logger.Info("Report export archived",
		zap.String("report", string(req.Kind)),
		zap.String("key", key),
		zap.Int("bytes", len(file.Data)),
	)
	return &ArchivedExport{
		Key:         key,
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Size:        len(file.Data),
		URL:         url,
		ExpiresAt:   expiresAt,
	}, nil
}
