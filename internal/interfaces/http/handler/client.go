package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	appclient "github.com/karte/backend/internal/application/client"
	"github.com/karte/backend/internal/domain/client"
	"github.com/karte/backend/internal/infrastructure/export"
	"github.com/karte/backend/internal/interfaces/http/dto"
	"github.com/karte/backend/internal/interfaces/http/router"
)

// ClientDirectory is the client directory consumed by ClientHandler
type ClientDirectory interface {
	Search(ctx context.Context, text string) ([]*client.Client, error)
	Get(ctx context.Context, id string) (*client.Client, error)
	List(ctx context.Context) ([]*client.Client, error)
	Upsert(ctx context.Context, id string, req appclient.UpsertClientRequest) (*client.Client, error)
	Delete(ctx context.Context, id string) error
	AddContact(ctx context.Context, clientID string, req appclient.ContactRequest) (client.Contact, error)
	UpdateContact(ctx context.Context, clientID, contactID string, req appclient.ContactRequest) (*client.Client, error)
	DeleteContact(ctx context.Context, clientID, contactID string) (*client.Client, error)
	ResolveForRecord(ctx context.Context, ref appclient.RecordClientRef) (appclient.ResolvedClient, error)
	Import(ctx context.Context, r io.Reader, dryRun bool) (*appclient.ImportResult, error)
	Export(ctx context.Context, format string) (*export.File, error)
}

// maxImportBytes caps an uploaded directory file
const maxImportBytes = 5 << 20

// ImportQuery holds the import flags
type ImportQuery struct {
	DryRun bool `form:"dry_run"`
}

// ClientHandler handles client directory endpoints
type ClientHandler struct {
	BaseHandler
	directory ClientDirectory
}

// NewClientHandler creates a new ClientHandler
func NewClientHandler(directory ClientDirectory) *ClientHandler {
	return &ClientHandler{directory: directory}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *ClientHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := router.NewDomainGroup("clients", "/clients")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.POST("/resolve", h.Resolve)
	g.POST("/import", h.Import)
	g.GET("/export", h.Export)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)

	contacts := g.Group("contacts", "/:id/contacts")
	contacts.POST("", h.AddContact)
	contacts.PUT("/:contactId", h.UpdateContact)
	contacts.DELETE("/:contactId", h.DeleteContact)

	g.RegisterRoutes(rg)
}

// List returns the directory, or the best matches when q is given.
// GET /clients?q=
func (h *ClientHandler) List(c *gin.Context) {
	var (
		list []*client.Client
		err  error
	)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		list, err = h.directory.Search(c.Request.Context(), q)
	} else {
		list, err = h.directory.List(c.Request.Context())
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appclient.ToClientResponses(list))
}

// Get returns one directory entry
// GET /clients/:id
func (h *ClientHandler) Get(c *gin.Context) {
	entry, err := h.directory.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appclient.ToClientResponse(entry))
}

// Create adds a directory entry
// POST /clients
func (h *ClientHandler) Create(c *gin.Context) {
	var req appclient.UpsertClientRequest
	if !h.bindJSON(c, &req) {
		return
	}
	entry, err := h.directory.Upsert(c.Request.Context(), "", req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, appclient.ToClientResponse(entry))
}

// Update replaces the name, address and notes of an entry
// PUT /clients/:id
func (h *ClientHandler) Update(c *gin.Context) {
	var req appclient.UpsertClientRequest
	if !h.bindJSON(c, &req) {
		return
	}
	entry, err := h.directory.Upsert(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appclient.ToClientResponse(entry))
}

// Delete removes an entry
// DELETE /clients/:id
func (h *ClientHandler) Delete(c *gin.Context) {
	if err := h.directory.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Resolve finds or creates the entry and contact a record refers to.
// POST /clients/resolve
func (h *ClientHandler) Resolve(c *gin.Context) {
	var ref appclient.RecordClientRef
	if !h.bindJSON(c, &ref) {
		return
	}
	resolved, err := h.directory.ResolveForRecord(c.Request.Context(), ref)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resolved)
}

// AddContact appends a contact to an entry
// POST /clients/:id/contacts
func (h *ClientHandler) AddContact(c *gin.Context) {
	var req appclient.ContactRequest
	if !h.bindJSON(c, &req) {
		return
	}
	contact, err := h.directory.AddContact(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, appclient.ContactResponse(contact))
}

// UpdateContact replaces a contact and returns the whole entry
// PUT /clients/:id/contacts/:contactId
func (h *ClientHandler) UpdateContact(c *gin.Context) {
	var req appclient.ContactRequest
	if !h.bindJSON(c, &req) {
		return
	}
	entry, err := h.directory.UpdateContact(c.Request.Context(), c.Param("id"), c.Param("contactId"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appclient.ToClientResponse(entry))
}

// DeleteContact removes a contact and returns the whole entry
// DELETE /clients/:id/contacts/:contactId
func (h *ClientHandler) DeleteContact(c *gin.Context) {
	entry, err := h.directory.DeleteContact(c.Request.Context(), c.Param("id"), c.Param("contactId"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appclient.ToClientResponse(entry))
}

// Import merges a CSV file into the directory. The file is either the
// "file" part of a multipart form or the raw request body.
// POST /clients/import?dry_run=
func (h *ClientHandler) Import(c *gin.Context) {
	var q ImportQuery
	if !h.bindQuery(c, &q) {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	var body io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			h.BadRequest(c, "file part is required")
			return
		}
		f, err := header.Open()
		if err != nil {
			h.BadRequest(c, "file could not be read")
			return
		}
		defer f.Close()
		body = f
	}

	result, err := h.directory.Import(c.Request.Context(), body, q.DryRun)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeBadRequest, "file is too large")
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Export downloads the directory
// GET /clients/export?format=csv|xlsx
func (h *ClientHandler) Export(c *gin.Context) {
	file, err := h.directory.Export(c.Request.Context(), c.Query("format"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
