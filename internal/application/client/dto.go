package client

import (
	"time"

	"github.com/karte/backend/internal/domain/client"
)

// UpsertClientRequest represents a request to create or update a directory entry
type UpsertClientRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Address string `json:"address" validate:"max=500"`
	Notes   string `json:"notes" validate:"max=2000"`
}

// ContactRequest represents a contact to add or update
type ContactRequest struct {
	PersonName string `json:"personName" validate:"required,max=100"`
	Phone      string `json:"phone" validate:"max=50"`
	Email      string `json:"email" validate:"omitempty,email,max=200"`
	Department string `json:"department" validate:"max=100"`
	Position   string `json:"position" validate:"max=100"`
	Notes      string `json:"notes" validate:"max=1000"`
	IsPrimary  bool   `json:"isPrimary"`
}

func (r ContactRequest) toContact(id string) client.Contact {
	return client.Contact{
		ID:         id,
		PersonName: r.PersonName,
		Phone:      r.Phone,
		Email:      r.Email,
		Department: r.Department,
		Position:   r.Position,
		Notes:      r.Notes,
		IsPrimary:  r.IsPrimary,
	}
}

// RecordClientRef is the client information typed into a record. ClientID
// is set when the user picked an entry from the directory.
type RecordClientRef struct {
	ClientID    string `json:"clientId"`
	CompanyName string `json:"companyName" validate:"required_without=ClientID,max=200"`
	PersonName  string `json:"personName" validate:"max=100"`
	Phone       string `json:"phone" validate:"max=50"`
	Email       string `json:"email" validate:"omitempty,email,max=200"`
}

// ResolvedClient names the directory entry and contact a record refers to
type ResolvedClient struct {
	ClientID       string `json:"clientId"`
	ContactID      string `json:"contactId,omitempty"`
	ClientCreated  bool   `json:"clientCreated"`
	ContactCreated bool   `json:"contactCreated"`
}

// ContactResponse represents a contact in API responses
type ContactResponse struct {
	ID         string `json:"id"`
	PersonName string `json:"personName"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Department string `json:"department"`
	Position   string `json:"position"`
	Notes      string `json:"notes"`
	IsPrimary  bool   `json:"isPrimary"`
}

// ClientResponse represents a directory entry in API responses
type ClientResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	NameIndex   string            `json:"nameIndex"`
	Address     string            `json:"address"`
	Notes       string            `json:"notes"`
	Contacts    []ContactResponse `json:"contacts"`
	LastUpdated time.Time         `json:"lastUpdated"`
}

// ToClientResponse converts a domain entry to a response DTO
func ToClientResponse(c *client.Client) ClientResponse {
	resp := ClientResponse{
		ID:          c.ID,
		Name:        c.Name,
		NameIndex:   c.NameIndex,
		Address:     c.Address,
		Notes:       c.Notes,
		Contacts:    make([]ContactResponse, 0, len(c.Contacts)),
		LastUpdated: c.LastUpdated,
	}
	for _, ct := range c.Contacts {
		resp.Contacts = append(resp.Contacts, ContactResponse(ct))
	}
	return resp
}

// ToClientResponses converts a list of domain entries
func ToClientResponses(list []*client.Client) []ClientResponse {
	out := make([]ClientResponse, 0, len(list))
	for _, c := range list {
		out = append(out, ToClientResponse(c))
	}
	return out
}
