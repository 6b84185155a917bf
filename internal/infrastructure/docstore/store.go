// Package docstore provides a schemaless document store abstraction with
// in-memory, PostgreSQL (JSONB via GORM) and Firestore backends.
//
// Documents are JSON objects addressed by (collection, id). The store owns a
// server-assigned "last updated" timestamp per document, exposed as
// Document.UpdatedAt and addressable in queries through FieldUpdatedAt.
package docstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// FieldUpdatedAt is the reserved field name that addresses the store-assigned
// update timestamp in filters and ordering.
const FieldUpdatedAt = "lastUpdated"

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrInvalidDocument is returned when the document body is not a JSON object.
	ErrInvalidDocument = errors.New("docstore: document body must be a JSON object")
	// ErrInvalidQuery is returned for malformed field paths or operators.
	ErrInvalidQuery = errors.New("docstore: invalid query")
)

// Document is a stored JSON object together with its store metadata.
type Document struct {
	ID        string
	Data      []byte
	UpdatedAt time.Time
}

// Op is a comparison operator usable in a Filter.
type Op string

const (
	OpEq  Op = "=="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// Filter restricts a query to documents whose field compares to Value.
// Field may be a dotted path into nested objects. Value must be a string,
// a number or a time.Time (the latter only for FieldUpdatedAt).
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query describes a collection scan.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Where appends a filter and returns the query for chaining.
func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// Store is the document-store collaborator consumed by the repositories.
type Store interface {
	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Put creates a document with a store-assigned id when id is empty,
	// otherwise replaces the body of an existing document. Replacing a
	// missing document returns ErrNotFound.
	Put(ctx context.Context, collection, id string, data []byte) (Document, error)
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Query returns the documents matching q.
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
}

var fieldPathPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

func validateQuery(q Query) error {
	for _, f := range q.Filters {
		if !fieldPathPattern.MatchString(f.Field) {
			return fmt.Errorf("%w: field path %q", ErrInvalidQuery, f.Field)
		}
		switch f.Op {
		case OpEq, OpLt, OpLte, OpGt, OpGte:
		default:
			return fmt.Errorf("%w: operator %q", ErrInvalidQuery, f.Op)
		}
		switch f.Value.(type) {
		case string, int, int64, float64:
		case time.Time:
			if f.Field != FieldUpdatedAt {
				return fmt.Errorf("%w: time value only allowed on %s", ErrInvalidQuery, FieldUpdatedAt)
			}
		default:
			return fmt.Errorf("%w: unsupported value type %T", ErrInvalidQuery, f.Value)
		}
	}
	if q.OrderBy != "" && !fieldPathPattern.MatchString(q.OrderBy) {
		return fmt.Errorf("%w: order field %q", ErrInvalidQuery, q.OrderBy)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	return nil
}

func validateBody(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ErrInvalidDocument
	}
	return nil
}

// HealthCollection is read by Probe. Nothing is ever written to it.
const HealthCollection = "_health"

// Prober checks a Store is reachable by reading a document that does not
// exist. It satisfies the health checker of the system endpoints.
type Prober struct {
	Store Store
}

// Ping returns nil when the store answered, found or not.
func (p Prober) Ping(ctx context.Context) error {
	_, err := p.Store.Get(ctx, HealthCollection, "probe")
	if err == nil || errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
