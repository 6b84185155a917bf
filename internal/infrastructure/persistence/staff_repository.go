package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/karte/backend/internal/domain/shared"
	"github.com/karte/backend/internal/domain/staff"
	"github.com/karte/backend/internal/infrastructure/docstore"
)

// StaffCollection is the document collection holding staff members
const StaffCollection = "staff"

type staffDocument struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// DocstoreStaffRepository implements staff.Repository over a document store
type DocstoreStaffRepository struct {
	store docstore.Store
	now   func() time.Time
}

// NewDocstoreStaffRepository creates a new staff repository
func NewDocstoreStaffRepository(store docstore.Store) *DocstoreStaffRepository {
	return &DocstoreStaffRepository{store: store, now: time.Now}
}

// FindByID loads one staff member
func (r *DocstoreStaffRepository) FindByID(ctx context.Context, id string) (*staff.Member, error) {
	doc, err := r.store.Get(ctx, StaffCollection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, shared.NewNotFoundError("staff", id)
		}
		return nil, shared.NewPersistenceError("load staff", err)
	}
	return decodeStaff(doc)
}

// FindAll returns every staff member ordered by name
func (r *DocstoreStaffRepository) FindAll(ctx context.Context) ([]*staff.Member, error) {
	docs, err := r.store.Query(ctx, StaffCollection, docstore.Query{OrderBy: "name"})
	if err != nil {
		return nil, shared.NewPersistenceError("list staff", err)
	}
	out := make([]*staff.Member, 0, len(docs))
	for _, doc := range docs {
		m, err := decodeStaff(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Save creates or replaces a staff member. The creation time is set on
// first save and kept afterwards.
func (r *DocstoreStaffRepository) Save(ctx context.Context, m *staff.Member) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now().UTC()
	}
	data, err := json.Marshal(staffDocument{
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		Role:      m.Role,
		CreatedAt: m.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return shared.NewPersistenceError("encode staff", err)
	}

	stored, err := r.store.Put(ctx, StaffCollection, m.ID, data)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return shared.NewNotFoundError("staff", m.ID)
		}
		return shared.NewPersistenceError("save staff", err)
	}
	m.ID = stored.ID
	m.LastUpdated = stored.UpdatedAt
	return nil
}

// Delete removes a staff member
func (r *DocstoreStaffRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, StaffCollection, id); err != nil {
		return shared.NewPersistenceError("delete staff", err)
	}
	return nil
}

// decodeStaff reads a stored member. Values written as numbers become
// strings and an unreadable creation time is dropped.
func decodeStaff(doc docstore.Document) (*staff.Member, error) {
	var m map[string]any
	if err := json.Unmarshal(doc.Data, &m); err != nil {
		return nil, shared.NewPersistenceError("decode staff", fmt.Errorf("staff %s: %w", doc.ID, err))
	}
	stringifyFields(m, []string{"name", "email", "phone", "role", "createdAt"})

	member := &staff.Member{
		ID:          doc.ID,
		Name:        m["name"].(string),
		Email:       m["email"].(string),
		Phone:       m["phone"].(string),
		Role:        m["role"].(string),
		LastUpdated: doc.UpdatedAt,
	}
	if created, err := time.Parse(time.RFC3339Nano, m["createdAt"].(string)); err == nil {
		member.CreatedAt = created.UTC()
	}
	return member, nil
}
