package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig holds the settings needed to open a Firestore client.
type FirestoreConfig struct {
	ProjectID       string
	DatabaseID      string
	CredentialsFile string
}

// FirestoreStore implements Store on Cloud Firestore. The update timestamp
// is kept in the lastUpdated field and assigned by the server.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore opens a Firestore client for the configured project.
func NewFirestoreStore(ctx context.Context, cfg FirestoreConfig) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	databaseID := cfg.DatabaseID
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, cfg.ProjectID, databaseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

// NewFirestoreStoreWithClient wraps an existing client.
func NewFirestoreStoreWithClient(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// Close releases the underlying client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return snapshotToDocument(snap)
}

func (s *FirestoreStore) Put(ctx context.Context, collection, id string, data []byte) (Document, error) {
	if err := validateBody(data); err != nil {
		return Document{}, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return Document{}, ErrInvalidDocument
	}
	fields[FieldUpdatedAt] = firestore.ServerTimestamp

	coll := s.client.Collection(collection)
	if id == "" {
		ref, wr, err := coll.Add(ctx, fields)
		if err != nil {
			return Document{}, err
		}
		return Document{ID: ref.ID, Data: cloneBytes(data), UpdatedAt: wr.UpdateTime.UTC()}, nil
	}

	// The existence check and the replace commit together, so a delete
	// that lands in between fails the put instead of being undone by it.
	ref := coll.Doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrNotFound
			}
			return err
		}
		return tx.Set(ref, fields)
	})
	if err != nil {
		return Document{}, err
	}

	updatedAt := time.Now().UTC()
	if snap, err := ref.Get(ctx); err == nil {
		if stored, err := snapshotToDocument(snap); err == nil {
			updatedAt = stored.UpdatedAt
		}
	}
	return Document{ID: id, Data: cloneBytes(data), UpdatedAt: updatedAt}, nil
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	return err
}

func (s *FirestoreStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	query := s.client.Collection(collection).Query
	for _, f := range q.Filters {
		query = query.Where(f.Field, string(f.Op), f.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Descending {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var docs []Document
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		doc, err := snapshotToDocument(snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func snapshotToDocument(snap *firestore.DocumentSnapshot) (Document, error) {
	fields := snap.Data()
	updatedAt := snap.UpdateTime
	if ts, ok := fields[FieldUpdatedAt].(time.Time); ok {
		updatedAt = ts
	}
	delete(fields, FieldUpdatedAt)

	data, err := json.Marshal(fields)
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode firestore document %s: %w", snap.Ref.ID, err)
	}
	return Document{ID: snap.Ref.ID, Data: data, UpdatedAt: updatedAt.UTC()}, nil
}
