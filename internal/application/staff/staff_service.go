// Package staff provides the staff directory used by the admin pages and
// the staff performance report.
package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/karte/backend/internal/domain/shared"
	"github.com/karte/backend/internal/domain/staff"
	"go.uber.org/zap"
)

// StaffService handles staff directory operations
type StaffService struct {
	repo     staff.Repository
	validate *validator.Validate
	logger   *zap.Logger
}

// NewStaffService creates a new StaffService
func NewStaffService(repo staff.Repository, logger *zap.Logger) *StaffService {
	return &StaffService{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// List returns every staff member ordered by name
func (s *StaffService) List(ctx context.Context) ([]*staff.Member, error) {
	return s.repo.FindAll(ctx)
}

// Get returns one staff member
func (s *StaffService) Get(ctx context.Context, id string) (*staff.Member, error) {
	return s.repo.FindByID(ctx, id)
}

// Create adds a staff member
func (s *StaffService) Create(ctx context.Context, req MemberRequest) (*staff.Member, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	m, err := staff.NewMember(req.Name, req.Email, req.Phone, req.Role)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, m); err != nil {
		s.logger.Error("Failed to add staff member", zap.Error(err))
		return nil, err
	}
	s.logger.Info("Staff member added", zap.String("staff_id", m.ID))
	return m, nil
}

// Update replaces the details of a staff member
func (s *StaffService) Update(ctx context.Context, id string, req MemberRequest) (*staff.Member, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.Update(req.Name, req.Email, req.Phone, req.Role); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, m); err != nil {
		s.logger.Error("Failed to update staff member", zap.String("staff_id", id), zap.Error(err))
		return nil, err
	}
	return m, nil
}

// Delete removes a staff member. Records naming the member keep the name.
func (s *StaffService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete staff member", zap.String("staff_id", id), zap.Error(err))
		return err
	}
	s.logger.Info("Staff member deleted", zap.String("staff_id", id))
	return nil
}

// Names returns the registered staff names, used to seed the staff report
func (s *StaffService) Names(ctx context.Context) ([]string, error) {
	members, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return staff.Names(members), nil
}

func (s *StaffService) validateRequest(req any) error {
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
