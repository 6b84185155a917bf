// Package client holds the client company directory: entries, their
// contacts and the search ranking used during data entry.
package client

import (
	"context"
	"strings"
	"time"

	"github.com/karte/backend/internal/domain/shared"
	"golang.org/x/text/cases"
	"golang.org/x/text/width"
)

// Contact is a person at a client company
type Contact struct {
	ID         string
	PersonName string
	Phone      string
	Email      string
	Department string
	Position   string
	Notes      string
	IsPrimary  bool
}

// Client is a directory entry. It owns its contacts and keeps exactly one
// of them primary whenever there are any.
type Client struct {
	ID          string
	Name        string
	NameIndex   string
	Address     string
	Notes       string
	Contacts    []Contact
	LastUpdated time.Time
}

// NameIndex returns the search key of a company name: trimmed, width
// normalized and case folded.
func NameIndex(name string) string {
	return cases.Fold().String(width.Fold.String(strings.TrimSpace(name)))
}

// NewClient creates a directory entry
func NewClient(name, address, notes string) (*Client, error) {
	c := &Client{Contacts: []Contact{}}
	if err := c.Update(name, address, notes); err != nil {
		return nil, err
	}
	return c, nil
}

// Update sets the company fields and recomputes the name index
func (c *Client) Update(name, address, notes string) error {
	if strings.TrimSpace(name) == "" {
		return shared.NewValidationError("CLIENT_NAME_REQUIRED", "Company name is required")
	}
	c.Name = strings.TrimSpace(name)
	c.NameIndex = NameIndex(c.Name)
	c.Address = address
	c.Notes = notes
	return nil
}

// AddContact appends a contact. The first contact is always primary and a
// new primary demotes the others.
func (c *Client) AddContact(contact Contact, newID shared.IDGenerator) Contact {
	contact.ID = newID()
	if len(c.Contacts) == 0 {
		contact.IsPrimary = true
	}
	if contact.IsPrimary {
		c.demoteAll()
	}
	c.Contacts = append(c.Contacts, contact)
	return contact
}

// UpdateContact replaces the contact with the same id. Setting it primary
// demotes its siblings; clearing the flag on the primary passes it to the
// first other contact, and the only contact stays primary.
func (c *Client) UpdateContact(contact Contact) error {
	idx := c.indexOf(contact.ID)
	if idx < 0 {
		return shared.NewNotFoundError("contact", contact.ID)
	}
	wasPrimary := c.Contacts[idx].IsPrimary
	if contact.IsPrimary {
		c.demoteAll()
	}
	c.Contacts[idx] = contact
	if wasPrimary && !contact.IsPrimary {
		c.promoteFirstExcept(idx)
	}
	return nil
}

// DeleteContact removes a contact. Removing the primary promotes the first
// remaining contact.
func (c *Client) DeleteContact(id string) error {
	idx := c.indexOf(id)
	if idx < 0 {
		return shared.NewNotFoundError("contact", id)
	}
	wasPrimary := c.Contacts[idx].IsPrimary
	c.Contacts = append(c.Contacts[:idx:idx], c.Contacts[idx+1:]...)
	if wasPrimary && len(c.Contacts) > 0 {
		c.Contacts[0].IsPrimary = true
	}
	return nil
}

// PrimaryContact returns the primary contact, if any
func (c *Client) PrimaryContact() (Contact, bool) {
	for _, ct := range c.Contacts {
		if ct.IsPrimary {
			return ct, true
		}
	}
	return Contact{}, false
}

// FindContactByName returns the contact with the given person name
func (c *Client) FindContactByName(name string) (Contact, bool) {
	key := NameIndex(name)
	for _, ct := range c.Contacts {
		if NameIndex(ct.PersonName) == key {
			return ct, true
		}
	}
	return Contact{}, false
}

// NormalizePrimary repairs stored data so exactly one contact is primary:
// the first flagged contact wins, or the first contact when none is flagged.
func (c *Client) NormalizePrimary() {
	found := false
	for i := range c.Contacts {
		if c.Contacts[i].IsPrimary {
			if found {
				c.Contacts[i].IsPrimary = false
			}
			found = true
		}
	}
	if !found && len(c.Contacts) > 0 {
		c.Contacts[0].IsPrimary = true
	}
}

func (c *Client) indexOf(id string) int {
	for i := range c.Contacts {
		if c.Contacts[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Client) demoteAll() {
	for i := range c.Contacts {
		c.Contacts[i].IsPrimary = false
	}
}

func (c *Client) promoteFirstExcept(skip int) {
	for i := range c.Contacts {
		if i != skip {
			c.Contacts[i].IsPrimary = true
			return
		}
	}
	c.Contacts[skip].IsPrimary = true
}

// Clone returns a deep copy
func (c *Client) Clone() *Client {
	out := *c
	out.Contacts = append([]Contact{}, c.Contacts...)
	return &out
}

// Repository persists directory entries
type Repository interface {
	FindByID(ctx context.Context, id string) (*Client, error)
	// FindByNameIndex returns the entry whose folded name equals key.
	FindByNameIndex(ctx context.Context, key string) (*Client, error)
	// FindAll returns every entry ordered by name index.
	FindAll(ctx context.Context) ([]*Client, error)
	// Save creates the entry when it has no id, otherwise replaces it. The
	// id and LastUpdated are set on the passed entry.
	Save(ctx context.Context, c *Client) error
	Delete(ctx context.Context, id string) error
}
