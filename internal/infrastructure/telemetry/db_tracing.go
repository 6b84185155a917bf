package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/karte/backend/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"

// DBTracing adds otelgorm spans to the document store's queries and marks
// slow or failed statements on them.
type DBTracing struct {
	enabled   bool
	fullSQL   bool
	slowQuery time.Duration
	logger    *zap.Logger
}

// NewDBTracing reads the database tracing switches from cfg.
func NewDBTracing(cfg config.TelemetryConfig, logger *zap.Logger) *DBTracing {
	slow := cfg.DBSlowQueryThresh
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}
	return &DBTracing{
		enabled:   cfg.Enabled && cfg.DBTraceEnabled,
		fullSQL:   cfg.DBLogFullSQL,
		slowQuery: slow,
		logger:    logger,
	}
}

// Register installs the otelgorm plugin and the timing callbacks on db.
func (t *DBTracing) Register(db *gorm.DB) error {
	if !t.enabled {
		t.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName("postgresql")}
	if !t.fullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	cb := db.Callback()
	steps := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("otel_timing:before_create", t.before) },
		func() error { return cb.Query().Before("gorm:query").Register("otel_timing:before_query", t.before) },
		func() error { return cb.Update().Before("gorm:update").Register("otel_timing:before_update", t.before) },
		func() error { return cb.Delete().Before("gorm:delete").Register("otel_timing:before_delete", t.before) },
		func() error { return cb.Raw().Before("gorm:raw").Register("otel_timing:before_raw", t.before) },
		func() error { return cb.Create().After("gorm:create").Register("otel_timing:after_create", t.after) },
		func() error { return cb.Query().After("gorm:query").Register("otel_timing:after_query", t.after) },
		func() error { return cb.Update().After("gorm:update").Register("otel_timing:after_update", t.after) },
		func() error { return cb.Delete().After("gorm:delete").Register("otel_timing:after_delete", t.after) },
		func() error { return cb.Raw().After("gorm:raw").Register("otel_timing:after_raw", t.after) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	t.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", t.fullSQL),
		zap.Duration("slow_query_threshold", t.slowQuery),
	)
	return nil
}

func (t *DBTracing) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

func (t *DBTracing) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	start, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > t.slowQuery {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("threshold_ms", t.slowQuery.Milliseconds()),
		))
	}
}
