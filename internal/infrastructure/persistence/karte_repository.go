package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/karte/backend/internal/domain/karte"
	"github.com/karte/backend/internal/domain/shared"
	"github.com/karte/backend/internal/infrastructure/docstore"
	"go.uber.org/zap"
)

// KarteCollection is the document collection holding records
const KarteCollection = "karte"

// legacyNumberField is where older documents kept the record number
const legacyNumberField = "karteNo"

// DocstoreKarteRepository implements karte.Repository over a document store.
// It is the only place the record shape is translated to and from its
// stored form.
type DocstoreKarteRepository struct {
	store  docstore.Store
	newID  shared.IDGenerator
	logger *zap.Logger
}

// NewDocstoreKarteRepository creates a new record repository
func NewDocstoreKarteRepository(store docstore.Store, logger *zap.Logger) *DocstoreKarteRepository {
	return &DocstoreKarteRepository{
		store:  store,
		newID:  shared.NewLocalID,
		logger: logger,
	}
}

// FindByID loads one record and migrates it to the current shape
func (r *DocstoreKarteRepository) FindByID(ctx context.Context, id string) (karte.Snapshot, error) {
	doc, err := r.store.Get(ctx, KarteCollection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return karte.Snapshot{}, shared.NewNotFoundError("karte", id)
		}
		return karte.Snapshot{}, shared.NewPersistenceError("load karte", err)
	}
	migrated, err := migrateKarteDocument(doc.Data, r.newID)
	if err != nil {
		return karte.Snapshot{}, shared.NewPersistenceError("load karte", err)
	}
	return migrated.toSnapshot(doc.ID, doc.UpdatedAt), nil
}

// Save writes the full record. Records without an id are created.
func (r *DocstoreKarteRepository) Save(ctx context.Context, s karte.Snapshot) (karte.SaveResult, error) {
	data, err := encodeKarte(s)
	if err != nil {
		return karte.SaveResult{}, shared.NewPersistenceError("encode karte", err)
	}
	doc, err := r.store.Put(ctx, KarteCollection, s.ID, data)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return karte.SaveResult{}, shared.NewNotFoundError("karte", s.ID)
		}
		return karte.SaveResult{}, shared.NewPersistenceError("save karte", err)
	}
	return karte.SaveResult{ID: doc.ID, SavedAt: doc.UpdatedAt, Created: s.ID == ""}, nil
}

// Delete removes a record
func (r *DocstoreKarteRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, KarteCollection, id); err != nil {
		return shared.NewPersistenceError("delete karte", err)
	}
	return nil
}

// List returns record projections, most recently updated first unless opts
// name another order
func (r *DocstoreKarteRepository) List(ctx context.Context, opts karte.ListOptions) ([]karte.ListEntry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = karte.DefaultListLimit
	}
	docs, err := r.store.Query(ctx, KarteCollection, docstore.Query{
		OrderBy:    ValidateSortField(opts.SortBy, KarteSortFields, docstore.FieldUpdatedAt),
		Descending: !opts.Ascending,
		Limit:      limit,
	})
	if err != nil {
		return nil, shared.NewPersistenceError("list karte", err)
	}

	entries := make([]karte.ListEntry, 0, len(docs))
	for _, doc := range docs {
		migrated, err := migrateKarteDocument(doc.Data, r.newID)
		if err != nil {
			r.logger.Warn("Skipping unreadable karte document",
				zap.String("id", doc.ID),
				zap.Error(err),
			)
			continue
		}
		entries = append(entries, karte.ListEntry{
			ID:          doc.ID,
			Projection:  karte.SummaryProjection(migrated.SummaryProjection),
			LastUpdated: doc.UpdatedAt,
		})
	}
	return entries, nil
}

// FindUpdatedBetween returns full records with from <= lastUpdated < to
func (r *DocstoreKarteRepository) FindUpdatedBetween(ctx context.Context, from, to time.Time) ([]karte.Snapshot, error) {
	docs, err := r.store.Query(ctx, KarteCollection, docstore.Query{}.
		Where(docstore.FieldUpdatedAt, docstore.OpGte, from.UTC()).
		Where(docstore.FieldUpdatedAt, docstore.OpLt, to.UTC()))
	if err != nil {
		return nil, shared.NewPersistenceError("query karte by update time", err)
	}

	out := make([]karte.Snapshot, 0, len(docs))
	for _, doc := range docs {
		migrated, err := migrateKarteDocument(doc.Data, r.newID)
		if err != nil {
			r.logger.Warn("Skipping unreadable karte document",
				zap.String("id", doc.ID),
				zap.Error(err),
			)
			continue
		}
		out = append(out, migrated.toSnapshot(doc.ID, doc.UpdatedAt))
	}
	return out, nil
}

// NextSerial counts the records whose number lies in the range of prefix
// and returns count + 1. Documents that still carry the number under its
// legacy field name are counted too.
func (r *DocstoreKarteRepository) NextSerial(ctx context.Context, prefix string) (int, error) {
	count := 0
	for _, field := range []string{"recordNumber", legacyNumberField} {
		docs, err := r.store.Query(ctx, KarteCollection, docstore.Query{}.
			Where(field, docstore.OpGte, prefix).
			Where(field, docstore.OpLt, prefix+karte.RangeSuffix))
		if err != nil {
			return 0, err
		}
		count += len(docs)
	}
	return count + 1, nil
}
