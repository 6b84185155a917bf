package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	appstaff "github.com/karte/backend/internal/application/staff"
	"github.com/karte/backend/internal/domain/staff"
	"github.com/karte/backend/internal/interfaces/http/router"
)

// StaffDirectory is the staff directory consumed by StaffHandler
type StaffDirectory interface {
	List(ctx context.Context) ([]*staff.Member, error)
	Get(ctx context.Context, id string) (*staff.Member, error)
	Create(ctx context.Context, req appstaff.MemberRequest) (*staff.Member, error)
	Update(ctx context.Context, id string, req appstaff.MemberRequest) (*staff.Member, error)
	Delete(ctx context.Context, id string) error
}

// StaffHandler handles staff directory endpoints
type StaffHandler struct {
	BaseHandler
	directory StaffDirectory
}

// NewStaffHandler creates a new StaffHandler
func NewStaffHandler(directory StaffDirectory) *StaffHandler {
	return &StaffHandler{directory: directory}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *StaffHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := router.NewDomainGroup("staff", "/staff")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.RegisterRoutes(rg)
}

// List returns every staff member
// GET /staff
func (h *StaffHandler) List(c *gin.Context) {
	list, err := h.directory.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appstaff.ToMemberResponses(list))
}

// Get returns one staff member
// GET /staff/:id
func (h *StaffHandler) Get(c *gin.Context) {
	m, err := h.directory.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appstaff.ToMemberResponse(m))
}

// Create adds a staff member
// POST /staff
func (h *StaffHandler) Create(c *gin.Context) {
	var req appstaff.MemberRequest
	if !h.bindJSON(c, &req) {
		return
	}
	m, err := h.directory.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, appstaff.ToMemberResponse(m))
}

// Update replaces the details of a staff member
// PUT /staff/:id
func (h *StaffHandler) Update(c *gin.Context) {
	var req appstaff.MemberRequest
	if !h.bindJSON(c, &req) {
		return
	}
	m, err := h.directory.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appstaff.ToMemberResponse(m))
}

// Delete removes a staff member
// DELETE /staff/:id
func (h *StaffHandler) Delete(c *gin.Context) {
	if err := h.directory.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
