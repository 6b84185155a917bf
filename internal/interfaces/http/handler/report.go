package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	appreport "github.com/karte/backend/internal/application/report"
	"github.com/karte/backend/internal/domain/report"
	"github.com/karte/backend/internal/infrastructure/export"
	"github.com/karte/backend/internal/interfaces/http/router"
)

// Reporter computes the admin reports
type Reporter interface {
	MonthlyReport(ctx context.Context, year, month int) (*report.MonthlyReport, error)
	OverallStats(ctx context.Context) (*report.Totals, error)
	YearlyBreakdown(ctx context.Context, year int) ([]report.MonthBucket, error)
	StaffPerformance(ctx context.Context, year, month int) ([]report.StaffPerformance, error)
}

// ReportExporter encodes reports into files and archives them
type ReportExporter interface {
	Export(ctx context.Context, req appreport.ExportRequest) (*export.File, error)
	Archive(ctx context.Context, req appreport.ExportRequest) (*appreport.ArchivedExport, error)
}

// MonthQuery selects one calendar month
type MonthQuery struct {
	Year  int `form:"year" binding:"required,gte=2000,lte=2100"`
	Month int `form:"month" binding:"required,gte=1,lte=12"`
}

// YearQuery selects one calendar year
type YearQuery struct {
	Year int `form:"year" binding:"required,gte=2000,lte=2100"`
}

// ExportQuery selects a month and an export format
type ExportQuery struct {
	MonthQuery
	Format string `form:"format" binding:"omitempty,oneof=csv xlsx"`
}

// ArchiveRequest asks for a report export to be stored
type ArchiveRequest struct {
	Report string `json:"report" binding:"required,oneof=monthly staff"`
	Year   int    `json:"year" binding:"required,gte=2000,lte=2100"`
	Month  int    `json:"month" binding:"required,gte=1,lte=12"`
	Format string `json:"format" binding:"omitempty,oneof=csv xlsx"`
}

// ReportHandler handles report endpoints
type ReportHandler struct {
	BaseHandler
	reports  Reporter
	exporter ReportExporter
}

// ReportHandlerOption configures a ReportHandler
type ReportHandlerOption func(*ReportHandler)

// WithExporter mounts the export and archive endpoints
func WithExporter(exporter ReportExporter) ReportHandlerOption {
	return func(h *ReportHandler) {
		h.exporter = exporter
	}
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reports Reporter, opts ...ReportHandlerOption) *ReportHandler {
	h := &ReportHandler{reports: reports}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes implements router.RouteRegistrar
func (h *ReportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := router.NewDomainGroup("reports", "/reports")
	g.GET("/monthly", h.Monthly)
	g.GET("/overall", h.Overall)
	g.GET("/yearly", h.Yearly)
	g.GET("/staff", h.Staff)
	if h.exporter != nil {
		g.GET("/monthly/export", h.exportHandler(appreport.ExportMonthly))
		g.GET("/staff/export", h.exportHandler(appreport.ExportStaff))
		g.POST("/archive", h.Archive)
	}
	g.RegisterRoutes(rg)
}

// Monthly returns the records of a month with their totals
// GET /reports/monthly?year=&month=
func (h *ReportHandler) Monthly(c *gin.Context) {
	var q MonthQuery
	if !h.bindQuery(c, &q) {
		return
	}
	result, err := h.reports.MonthlyReport(c.Request.Context(), q.Year, q.Month)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Overall returns totals across every stored record
// GET /reports/overall
func (h *ReportHandler) Overall(c *gin.Context) {
	result, err := h.reports.OverallStats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Yearly returns twelve month buckets
// GET /reports/yearly?year=
func (h *ReportHandler) Yearly(c *gin.Context) {
	var q YearQuery
	if !h.bindQuery(c, &q) {
		return
	}
	result, err := h.reports.YearlyBreakdown(c.Request.Context(), q.Year)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Staff returns per staff totals for a month
// GET /reports/staff?year=&month=
func (h *ReportHandler) Staff(c *gin.Context) {
	var q MonthQuery
	if !h.bindQuery(c, &q) {
		return
	}
	result, err := h.reports.StaffPerformance(c.Request.Context(), q.Year, q.Month)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// exportHandler streams a report as a file download
// GET /reports/{monthly,staff}/export?year=&month=&format=csv|xlsx
func (h *ReportHandler) exportHandler(kind appreport.ExportKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q ExportQuery
		if !h.bindQuery(c, &q) {
			return
		}
		file, err := h.exporter.Export(c.Request.Context(), appreport.ExportRequest{
			Kind:   kind,
			Year:   q.Year,
			Month:  q.Month,
			Format: q.Format,
		})
		if err != nil {
			h.HandleError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
		c.Data(http.StatusOK, file.ContentType, file.Data)
	}
}

// Archive stores a report export and returns a signed download URL
// POST /reports/archive
func (h *ReportHandler) Archive(c *gin.Context) {
	var req ArchiveRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.exporter.Archive(c.Request.Context(), appreport.ExportRequest{
		Kind:   appreport.ExportKind(req.Report),
		Year:   req.Year,
		Month:  req.Month,
		Format: req.Format,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}
