// Package staff holds the registered staff members who are named as the
// person in charge of a record.
package staff

import (
	"context"
	"strings"
	"time"

	"github.com/karte/backend/internal/domain/shared"
)

// Member is a registered staff member
type Member struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	Role        string
	CreatedAt   time.Time
	LastUpdated time.Time
}

// NewMember creates a staff member
func NewMember(name, email, phone, role string) (*Member, error) {
	m := &Member{}
	if err := m.Update(name, email, phone, role); err != nil {
		return nil, err
	}
	return m, nil
}

// Update replaces the contact details of a member
func (m *Member) Update(name, email, phone, role string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewValidationError("STAFF_NAME_REQUIRED", "Staff name is required")
	}
	m.Name = name
	m.Email = strings.TrimSpace(email)
	m.Phone = strings.TrimSpace(phone)
	m.Role = strings.TrimSpace(role)
	return nil
}

// Names returns the distinct non-empty names of members in order
func Names(members []*Member) []string {
	seen := make(map[string]bool, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m.Name == "" || seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		out = append(out, m.Name)
	}
	return out
}

// Repository persists staff members
type Repository interface {
	FindByID(ctx context.Context, id string) (*Member, error)
	// FindAll returns every member ordered by name.
	FindAll(ctx context.Context) ([]*Member, error)
	// Save creates the member when its id is empty, otherwise replaces it.
	Save(ctx context.Context, m *Member) error
	Delete(ctx context.Context, id string) error
}
