package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/karte/backend/internal/domain/client"
	"github.com/karte/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DirectoryService handles client directory operations
type DirectoryService struct {
	repo     client.Repository
	validate *validator.Validate
	newID    shared.IDGenerator
	logger   *zap.Logger
}

// NewDirectoryService creates a new DirectoryService
func NewDirectoryService(repo client.Repository, logger *zap.Logger) *DirectoryService {
	return &DirectoryService{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		newID:    shared.NewLocalID,
		logger:   logger,
	}
}

// Search returns the best matching entries for text, at most client.SearchLimit
func (s *DirectoryService) Search(ctx context.Context, text string) ([]*client.Client, error) {
	if strings.TrimSpace(text) == "" {
		return []*client.Client{}, nil
	}
	all, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return client.Search(all, text, client.SearchLimit), nil
}

// Get returns one entry
func (s *DirectoryService) Get(ctx context.Context, id string) (*client.Client, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns every entry ordered by name index
func (s *DirectoryService) List(ctx context.Context) ([]*client.Client, error) {
	return s.repo.FindAll(ctx)
}

// Upsert creates an entry when id is empty, otherwise updates it. The name
// index is always recomputed from the current name.
func (s *DirectoryService) Upsert(ctx context.Context, id string, req UpsertClientRequest) (*client.Client, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	var c *client.Client
	if id == "" {
		created, err := client.NewClient(req.Name, req.Address, req.Notes)
		if err != nil {
			return nil, err
		}
		c = created
	} else {
		existing, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := existing.Update(req.Name, req.Address, req.Notes); err != nil {
			return nil, err
		}
		c = existing
	}

	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("Client saved", zap.String("client_id", c.ID), zap.Bool("created", id == ""))
	return c, nil
}

// Delete removes an entry
func (s *DirectoryService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// AddContact adds a contact to an entry. The first contact becomes primary.
func (s *DirectoryService) AddContact(ctx context.Context, clientID string, req ContactRequest) (client.Contact, error) {
	if err := s.validateRequest(req); err != nil {
		return client.Contact{}, err
	}
	c, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		return client.Contact{}, err
	}
	added := c.AddContact(req.toContact(""), s.newID)
	if err := s.repo.Save(ctx, c); err != nil {
		return client.Contact{}, err
	}
	return added, nil
}

// UpdateContact replaces a contact of an entry
func (s *DirectoryService) UpdateContact(ctx context.Context, clientID, contactID string, req ContactRequest) (*client.Client, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	c, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := c.UpdateContact(req.toContact(contactID)); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteContact removes a contact. Deleting the primary promotes the first
// remaining contact.
func (s *DirectoryService) DeleteContact(ctx context.Context, clientID, contactID string) (*client.Client, error) {
	c, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := c.DeleteContact(contactID); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ResolveForRecord makes sure the client typed into a record exists in the
// directory. The entry is found by id or by folded company name and created
// when missing; a contact person not yet known is added, primary when it is
// the first one.
func (s *DirectoryService) ResolveForRecord(ctx context.Context, ref RecordClientRef) (ResolvedClient, error) {
	if err := s.validateRequest(ref); err != nil {
		return ResolvedClient{}, err
	}

	var (
		c       *client.Client
		res     ResolvedClient
		changed bool
		err     error
	)
	if ref.ClientID != "" {
		c, err = s.repo.FindByID(ctx, ref.ClientID)
	} else {
		c, err = s.repo.FindByNameIndex(ctx, client.NameIndex(ref.CompanyName))
		if errors.Is(err, shared.ErrNotFound) {
			c, err = client.NewClient(ref.CompanyName, "", "")
			res.ClientCreated = true
			changed = true
		}
	}
	if err != nil {
		return ResolvedClient{}, err
	}

	if strings.TrimSpace(ref.PersonName) != "" {
		if ct, ok := c.FindContactByName(ref.PersonName); ok {
			res.ContactID = ct.ID
		} else {
			added := c.AddContact(client.Contact{
				PersonName: strings.TrimSpace(ref.PersonName),
				Phone:      ref.Phone,
				Email:      ref.Email,
			}, s.newID)
			res.ContactID = added.ID
			res.ContactCreated = true
			changed = true
		}
	}

	if changed {
		if err := s.repo.Save(ctx, c); err != nil {
			return ResolvedClient{}, err
		}
	}
	res.ClientID = c.ID
	return res, nil
}

// validateRequest runs struct validation and maps failures to a validation error
func (s *DirectoryService) validateRequest(req any) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
			}
			return shared.NewValidationError("INVALID_INPUT", strings.Join(msgs, "; "))
		}
		return shared.NewValidationError("INVALID_INPUT", err.Error())
	}
	return nil
}
