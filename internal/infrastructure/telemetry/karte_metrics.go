package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/karte/backend/internal/domain/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics set is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter is nil")

var (
	attrOperation = attribute.Key("karte.operation")
	attrOutcome   = attribute.Key("karte.outcome")
)

// KarteMetrics records the store round trips of editing sessions and the
// number of times record numbering fell back to the default serial.
type KarteMetrics struct {
	operations        *Counter
	duration          *Histogram
	numberingFallback *Counter
}

// NewKarteMetrics creates the record metrics on meter.
func NewKarteMetrics(meter metric.Meter) (*KarteMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &KarteMetrics{}
	var err error
	if m.operations, err = NewCounter(meter,
		"karte_store_operations_total",
		"Record store operations by operation and outcome",
		"{operations}",
	); err != nil {
		return nil, err
	}
	if m.duration, err = NewHistogram(meter,
		"karte_store_operation_duration_seconds",
		"Duration of record store operations",
		StoreDurationBuckets,
	); err != nil {
		return nil, err
	}
	if m.numberingFallback, err = NewCounter(meter,
		"karte_numbering_fallback_total",
		"Record numbers generated with the fallback serial",
		"{numbers}",
	); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordOperation counts one store round trip and records its duration.
func (m *KarteMetrics) RecordOperation(ctx context.Context, op string, elapsed time.Duration, err error) {
	attrs := []attribute.KeyValue{attrOperation.String(op), attrOutcome.String(outcome(err))}
	m.operations.Inc(ctx, attrs...)
	m.duration.Record(ctx, elapsed.Seconds(), attrs...)
}

// RecordNumberingFallback counts a degraded record number.
func (m *KarteMetrics) RecordNumberingFallback(ctx context.Context) {
	m.numberingFallback.Inc(ctx)
}

// RegisterSessionGauge reports the number of open editing sessions.
func RegisterSessionGauge(meter metric.Meter, count func() int) (metric.Registration, error) {
	gauge, err := meter.Int64ObservableGauge("karte_sessions_open",
		metric.WithDescription("Open editing sessions"),
		metric.WithUnit("{sessions}"))
	if err != nil {
		return nil, err
	}
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, int64(count()))
		return nil
	}, gauge)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case shared.IsKind(err, shared.KindNotFound):
		return "not_found"
	case shared.IsKind(err, shared.KindValidation):
		return "invalid"
	default:
		return "error"
	}
}
