package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryDoc struct {
	data      []byte
	updatedAt time.Time
}

// MemoryStore is a process-local Store. It is safe for concurrent use and
// is the default backend for development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]memoryDoc
	now         func() time.Time
	newID       func() string
	last        time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source used for update timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithIDGenerator overrides the generator for store-assigned ids.
func WithIDGenerator(gen func() string) MemoryOption {
	return func(s *MemoryStore) { s.newID = gen }
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		collections: make(map[string]map[string]memoryDoc),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// nextTimestamp returns a strictly increasing timestamp. Caller holds mu.
func (s *MemoryStore) nextTimestamp() time.Time {
	ts := s.now().UTC().Truncate(time.Microsecond)
	if !ts.After(s.last) {
		ts = s.last.Add(time.Microsecond)
	}
	s.last = ts
	return ts
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: cloneBytes(doc.data), UpdatedAt: doc.updatedAt}, nil
}

func (s *MemoryStore) Put(ctx context.Context, collection, id string, data []byte) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if err := validateBody(data); err != nil {
		return Document{}, err
	}
	if !json.Valid(data) {
		return Document{}, ErrInvalidDocument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]memoryDoc)
		s.collections[collection] = coll
	}
	if id == "" {
		id = s.newID()
	} else if _, exists := coll[id]; !exists {
		return Document{}, ErrNotFound
	}

	doc := memoryDoc{data: cloneBytes(data), updatedAt: s.nextTimestamp()}
	coll[id] = doc
	return Document{ID: id, Data: cloneBytes(doc.data), UpdatedAt: doc.updatedAt}, nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], id)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	s.mu.RLock()
	type candidate struct {
		doc    Document
		fields map[string]any
	}
	candidates := make([]candidate, 0, len(s.collections[collection]))
	for id, stored := range s.collections[collection] {
		var fields map[string]any
		if err := json.Unmarshal(stored.data, &fields); err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		fields[FieldUpdatedAt] = stored.updatedAt
		candidates = append(candidates, candidate{
			doc:    Document{ID: id, Data: cloneBytes(stored.data), UpdatedAt: stored.updatedAt},
			fields: fields,
		})
	}
	s.mu.RUnlock()

	matched := candidates[:0]
	for _, c := range candidates {
		if matchesAll(c.fields, q.Filters) {
			matched = append(matched, c)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if q.OrderBy != "" {
			a, _ := lookupPath(matched[i].fields, q.OrderBy)
			b, _ := lookupPath(matched[j].fields, q.OrderBy)
			if cmp := compareOrdered(a, b); cmp != 0 {
				if q.Descending {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		return matched[i].doc.ID < matched[j].doc.ID
	})

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	out := make([]Document, len(matched))
	for i, c := range matched {
		out[i] = c.doc
	}
	return out, nil
}

func matchesAll(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := lookupPath(fields, f.Field)
		if !ok {
			return false
		}
		cmp, comparable := compareValues(v, f.Value)
		if !comparable {
			return false
		}
		switch f.Op {
		case OpEq:
			if cmp != 0 {
				return false
			}
		case OpLt:
			if cmp >= 0 {
				return false
			}
		case OpLte:
			if cmp > 0 {
				return false
			}
		case OpGt:
			if cmp <= 0 {
				return false
			}
		case OpGte:
			if cmp < 0 {
				return false
			}
		}
	}
	return true
}

func lookupPath(fields map[string]any, path string) (any, bool) {
	var cur any = fields
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// compareValues compares a stored value against a filter value. Strings
// compare byte-wise, numbers numerically and timestamps chronologically.
// Values of different kinds are not comparable.
func compareValues(stored, want any) (int, bool) {
	switch w := want.(type) {
	case string:
		s, ok := stored.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(s, w), true
	case int:
		return compareNumber(stored, float64(w))
	case int64:
		return compareNumber(stored, float64(w))
	case float64:
		return compareNumber(stored, w)
	case time.Time:
		ts, ok := stored.(time.Time)
		if !ok {
			return 0, false
		}
		return ts.Compare(w), true
	}
	return 0, false
}

func compareNumber(stored any, want float64) (int, bool) {
	n, ok := stored.(float64)
	if !ok {
		return 0, false
	}
	switch {
	case n < want:
		return -1, true
	case n > want:
		return 1, true
	}
	return 0, true
}

// compareOrdered orders arbitrary stored values. Missing values sort first.
func compareOrdered(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		}
		return 1
	}
	if cmp, ok := compareValues(a, b); ok {
		return cmp
	}
	return 0
}

func cloneBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}
