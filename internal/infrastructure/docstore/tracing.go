package docstore

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracedStore wraps a Store and records a span per round trip.
type TracedStore struct {
	next   Store
	tracer trace.Tracer
	system string
}

// WithTracing decorates next with spans from tracer. system names the
// backend in span attributes (memory, postgresql, firestore).
func WithTracing(next Store, tracer trace.Tracer, system string) *TracedStore {
	return &TracedStore{next: next, tracer: tracer, system: system}
}

func (s *TracedStore) start(ctx context.Context, op, collection string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "docstore."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", s.system),
			attribute.String("db.collection.name", collection),
		),
	)
}

func finish(span trace.Span, err error) {
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *TracedStore) Get(ctx context.Context, collection, id string) (Document, error) {
	ctx, span := s.start(ctx, "Get", collection)
	span.SetAttributes(attribute.String("docstore.id", id))
	doc, err := s.next.Get(ctx, collection, id)
	finish(span, err)
	return doc, err
}

func (s *TracedStore) Put(ctx context.Context, collection, id string, data []byte) (Document, error) {
	ctx, span := s.start(ctx, "Put", collection)
	span.SetAttributes(
		attribute.Bool("docstore.create", id == ""),
		attribute.Int("docstore.bytes", len(data)),
	)
	doc, err := s.next.Put(ctx, collection, id, data)
	if err == nil {
		span.SetAttributes(attribute.String("docstore.id", doc.ID))
	}
	finish(span, err)
	return doc, err
}

func (s *TracedStore) Delete(ctx context.Context, collection, id string) error {
	ctx, span := s.start(ctx, "Delete", collection)
	span.SetAttributes(attribute.String("docstore.id", id))
	err := s.next.Delete(ctx, collection, id)
	finish(span, err)
	return err
}

func (s *TracedStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	ctx, span := s.start(ctx, "Query", collection)
	span.SetAttributes(
		attribute.Int("docstore.filters", len(q.Filters)),
		attribute.String("docstore.order_by", q.OrderBy),
		attribute.Int("docstore.limit", q.Limit),
	)
	docs, err := s.next.Query(ctx, collection, q)
	if err == nil {
		span.SetAttributes(attribute.Int("docstore.results", len(docs)))
	}
	finish(span, err)
	return docs, err
}
