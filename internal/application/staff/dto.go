package staff

import (
	"time"

	"github.com/karte/backend/internal/domain/staff"
)

// MemberRequest represents a request to add or update a staff member
type MemberRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"omitempty,email,max=200"`
	Phone string `json:"phone" validate:"max=50"`
	Role  string `json:"role" validate:"max=100"`
}

// MemberResponse represents a staff member in API responses
type MemberResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// ToMemberResponse converts a domain member
func ToMemberResponse(m *staff.Member) MemberResponse {
	return MemberResponse{
		ID:          m.ID,
		Name:        m.Name,
		Email:       m.Email,
		Phone:       m.Phone,
		Role:        m.Role,
		CreatedAt:   m.CreatedAt,
		LastUpdated: m.LastUpdated,
	}
}

// ToMemberResponses converts a list of domain members
func ToMemberResponses(list []*staff.Member) []MemberResponse {
	out := make([]MemberResponse, 0, len(list))
	for _, m := range list {
		out = append(out, ToMemberResponse(m))
	}
	return out
}
