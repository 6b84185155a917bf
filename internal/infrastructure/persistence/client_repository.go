package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/karte/backend/internal/domain/client"
	"github.com/karte/backend/internal/domain/shared"
	"github.com/karte/backend/internal/infrastructure/docstore"
)

// ClientCollection is the document collection holding directory entries
const ClientCollection = "clients"

type clientDocument struct {
	Name      string            `json:"name"`
	NameIndex string            `json:"nameIndex"`
	Address   string            `json:"address"`
	Notes     string            `json:"notes"`
	Contacts  []contactDocument `json:"contacts"`
}

type contactDocument struct {
	ID         string `json:"id"`
	PersonName string `json:"personName"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Department string `json:"department"`
	Position   string `json:"position"`
	Notes      string `json:"notes"`
	IsPrimary  bool   `json:"isPrimary"`
}

var contactStringFields = []string{"id", "personName", "phone", "email", "department", "position", "notes"}

// DocstoreClientRepository implements client.Repository over a document store
type DocstoreClientRepository struct {
	store docstore.Store
	newID shared.IDGenerator
}

// NewDocstoreClientRepository creates a new directory repository
func NewDocstoreClientRepository(store docstore.Store) *DocstoreClientRepository {
	return &DocstoreClientRepository{store: store, newID: shared.NewLocalID}
}

// FindByID loads one directory entry
func (r *DocstoreClientRepository) FindByID(ctx context.Context, id string) (*client.Client, error) {
	doc, err := r.store.Get(ctx, ClientCollection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, shared.NewNotFoundError("client", id)
		}
		return nil, shared.NewPersistenceError("load client", err)
	}
	return r.decode(doc)
}

// FindByNameIndex returns the entry whose name index equals key. Entries
// written with an older index folding are not found by the indexed query,
// so a miss falls back to comparing the folded names of every entry.
func (r *DocstoreClientRepository) FindByNameIndex(ctx context.Context, key string) (*client.Client, error) {
	docs, err := r.store.Query(ctx, ClientCollection, docstore.Query{Limit: 1}.
		Where("nameIndex", docstore.OpEq, key))
	if err != nil {
		return nil, shared.NewPersistenceError("find client by name", err)
	}
	if len(docs) > 0 {
		return r.decode(docs[0])
	}

	all, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range all {
		if c.NameIndex == key {
			return c, nil
		}
	}
	return nil, shared.NewNotFoundError("client", key)
}

// FindAll returns every entry ordered by name index
func (r *DocstoreClientRepository) FindAll(ctx context.Context) ([]*client.Client, error) {
	docs, err := r.store.Query(ctx, ClientCollection, docstore.Query{OrderBy: "nameIndex"})
	if err != nil {
		return nil, shared.NewPersistenceError("list clients", err)
	}
	out := make([]*client.Client, 0, len(docs))
	for _, doc := range docs {
		c, err := r.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NameIndex < out[j].NameIndex })
	return out, nil
}

// Save creates or replaces a directory entry. The name index is always
// recomputed from the current name.
func (r *DocstoreClientRepository) Save(ctx context.Context, c *client.Client) error {
	doc := clientDocument{
		Name:      c.Name,
		NameIndex: client.NameIndex(c.Name),
		Address:   c.Address,
		Notes:     c.Notes,
		Contacts:  make([]contactDocument, 0, len(c.Contacts)),
	}
	for _, ct := range c.Contacts {
		doc.Contacts = append(doc.Contacts, contactDocument(ct))
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return shared.NewPersistenceError("encode client", err)
	}

	stored, err := r.store.Put(ctx, ClientCollection, c.ID, data)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return shared.NewNotFoundError("client", c.ID)
		}
		return shared.NewPersistenceError("save client", err)
	}
	c.ID = stored.ID
	c.NameIndex = doc.NameIndex
	c.LastUpdated = stored.UpdatedAt
	return nil
}

// Delete removes a directory entry
func (r *DocstoreClientRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, ClientCollection, id); err != nil {
		return shared.NewPersistenceError("delete client", err)
	}
	return nil
}

// decode migrates a stored entry: numeric values become strings, contacts
// without an id get one, the name index is recomputed from the name and
// exactly one contact is left primary.
func (r *DocstoreClientRepository) decode(doc docstore.Document) (*client.Client, error) {
	var m map[string]any
	if err := json.Unmarshal(doc.Data, &m); err != nil {
		return nil, shared.NewPersistenceError("decode client", fmt.Errorf("client %s: %w", doc.ID, err))
	}
	delete(m, "lastUpdated")
	stringifyFields(m, []string{"name", "nameIndex", "address", "notes"})
	m["contacts"] = migrateEntries(m["contacts"], contactStringFields, r.newID, func(ct map[string]any) {
		primary, _ := ct["isPrimary"].(bool)
		ct["isPrimary"] = primary
	})

	normalized, err := json.Marshal(m)
	if err != nil {
		return nil, shared.NewPersistenceError("decode client", err)
	}
	var stored clientDocument
	if err := json.Unmarshal(normalized, &stored); err != nil {
		return nil, shared.NewPersistenceError("decode client", err)
	}

	c := &client.Client{
		ID:          doc.ID,
		Name:        stored.Name,
		NameIndex:   client.NameIndex(stored.Name),
		Address:     stored.Address,
		Notes:       stored.Notes,
		Contacts:    make([]client.Contact, 0, len(stored.Contacts)),
		LastUpdated: doc.UpdatedAt,
	}
	for _, ct := range stored.Contacts {
		c.Contacts = append(c.Contacts, client.Contact(ct))
	}
	c.NormalizePrimary()
	return c, nil
}
