package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracedStore_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	store := WithTracing(NewMemoryStore(), provider.Tracer("docstore-test"), "memory")
	ctx := context.Background()

	doc, err := store.Put(ctx, "karte", "", []byte(`{"a":"b"}`))
	require.NoError(t, err)
	_, err = store.Get(ctx, "karte", doc.ID)
	require.NoError(t, err)
	_, err = store.Get(ctx, "karte", "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.Query(ctx, "karte", Query{}.Where("bad path", OpEq, "x"))
	require.ErrorIs(t, err, ErrInvalidQuery)

	spans := recorder.Ended()
	require.Len(t, spans, 4)
	assert.Equal(t, "docstore.Put", spans[0].Name())
	assert.Equal(t, "docstore.Get", spans[1].Name())
	assert.Equal(t, codes.Unset, spans[2].Status().Code, "not found is not a span error")
	assert.Equal(t, codes.Error, spans[3].Status().Code)
}
