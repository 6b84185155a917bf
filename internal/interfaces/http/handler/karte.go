package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/karte/backend/internal/domain/karte"
	"github.com/karte/backend/internal/infrastructure/logger"
	"github.com/karte/backend/internal/interfaces/http/dto"
	"github.com/karte/backend/internal/interfaces/http/middleware"
	"github.com/karte/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

const defaultHeartbeat = 30 * time.Second

// ListQuery limits and orders the record list
type ListQuery struct {
	Limit int    `form:"limit" binding:"omitempty,gte=1,lte=500"`
	Sort  string `form:"sort" binding:"omitempty,oneof=updated departure record_number"`
	Order string `form:"order" binding:"omitempty,oneof=asc desc"`
}

// KarteHandler exposes the record open in the caller's editing session
// and the stored record list. Every route requires X-Session-ID.
type KarteHandler struct {
	BaseHandler
	sessions  middleware.SessionResolver
	logger    *zap.Logger
	heartbeat time.Duration
}

// KarteHandlerOption configures a KarteHandler
type KarteHandlerOption func(*KarteHandler)

// WithHeartbeat sets the interval of keep-alive events on the event stream
func WithHeartbeat(d time.Duration) KarteHandlerOption {
	return func(h *KarteHandler) { h.heartbeat = d }
}

// NewKarteHandler creates a new KarteHandler
func NewKarteHandler(sessions middleware.SessionResolver, log *zap.Logger, opts ...KarteHandlerOption) *KarteHandler {
	h := &KarteHandler{sessions: sessions, logger: log, heartbeat: defaultHeartbeat}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes implements router.RouteRegistrar
func (h *KarteHandler) RegisterRoutes(rg *gin.RouterGroup) {
	requireSession := middleware.RequireSession(h.sessions, h.logger)

	current := router.NewDomainGroup("karte", "/karte").Use(requireSession)
	current.GET("", h.Get).
		GET("/events", h.Events).
		POST("/new", h.CreateNew).
		POST("/reset", h.Reset).
		POST("/save", h.Save).
		PATCH("/fields", h.UpdateField)
	current.Group("payments", "/payments").
		POST("", h.AddPayment).
		PUT("/:id", h.UpdatePayment).
		DELETE("/:id", h.DeletePayment)
	current.Group("expenses", "/expenses").
		POST("", h.AddExpense).
		PUT("/:id", h.UpdateExpense).
		DELETE("/:id", h.DeleteExpense)
	current.Group("comments", "/comments").
		POST("", h.AddComment).
		DELETE("/:id", h.DeleteComment)
	current.Group("sales", "/sales").
		PUT("", h.UpdateSalesDetails).
		PUT("/memo", h.SetSalesMemo).
		POST("/items", h.AddSalesItem).
		PATCH("/items/:id", h.UpdateSalesItem).
		DELETE("/items/:id", h.DeleteSalesItem)
	current.RegisterRoutes(rg)

	stored := router.NewDomainGroup("kartes", "/kartes").Use(requireSession)
	stored.GET("", h.List).
		POST("/:id/load", h.Load).
		DELETE("/:id", h.Delete)
	stored.RegisterRoutes(rg)
}

// respond writes the snapshot, or the error when err is set
func (h *KarteHandler) respond(c *gin.Context, snap karte.Snapshot, err error) {
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToKarteResponse(snap))
}

// Get returns the open record with its summary.
// GET /karte
func (h *KarteHandler) Get(c *gin.Context) {
	h.Success(c, dto.ToKarteResponse(middleware.GetSession(c).Snapshot()))
}

// CreateNew discards the open record and starts a numbered new one.
// POST /karte/new
func (h *KarteHandler) CreateNew(c *gin.Context) {
	snap, err := middleware.GetSession(c).CreateNew(c.Request.Context())
	h.respond(c, snap, err)
}

// Reset replaces the open record with an empty one.
// POST /karte/reset
func (h *KarteHandler) Reset(c *gin.Context) {
	session := middleware.GetSession(c)
	session.ResetToEmpty()
	h.Success(c, dto.ToKarteResponse(session.Snapshot()))
}

// Save writes the open record.
// POST /karte/save
func (h *KarteHandler) Save(c *gin.Context) {
	snap, err := middleware.GetSession(c).Save(c.Request.Context())
	h.respond(c, snap, err)
}

// UpdateField sets one scalar field; dependent fields are recalculated.
// PATCH /karte/fields
func (h *KarteHandler) UpdateField(c *gin.Context) {
	var req dto.UpdateFieldRequest
	if !h.bindJSON(c, &req) {
		return
	}
	snap, err := middleware.GetSession(c).UpdateField(karte.Field(req.Field), req.Value)
	h.respond(c, snap, err)
}

// AddPayment appends a payment. Any id in the body is ignored.
// POST /karte/payments
func (h *KarteHandler) AddPayment(c *gin.Context) {
	var req dto.PaymentDTO
	if !h.bindJSON(c, &req) {
		return
	}
	added, err := middleware.GetSession(c).AddPayment(req.ToDomain())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.PaymentDTO(added))
}

// UpdatePayment replaces a payment.
// PUT /karte/payments/:id
func (h *KarteHandler) UpdatePayment(c *gin.Context) {
	var req dto.PaymentDTO
	if !h.bindJSON(c, &req) {
		return
	}
	p := req.ToDomain()
	p.ID = c.Param("id")
	snap, err := middleware.GetSession(c).UpdatePayment(p)
	h.respond(c, snap, err)
}

// DeletePayment removes a payment.
// DELETE /karte/payments/:id
func (h *KarteHandler) DeletePayment(c *gin.Context) {
	snap, err := middleware.GetSession(c).DeletePayment(c.Param("id"))
	h.respond(c, snap, err)
}

// AddExpense appends an expense.
// POST /karte/expenses
func (h *KarteHandler) AddExpense(c *gin.Context) {
	var req dto.ExpenseDTO
	if !h.bindJSON(c, &req) {
		return
	}
	added, err := middleware.GetSession(c).AddExpense(req.ToDomain())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToExpenseDTO(added))
}

// UpdateExpense replaces an expense.
// PUT /karte/expenses/:id
func (h *KarteHandler) UpdateExpense(c *gin.Context) {
	var req dto.ExpenseDTO
	if !h.bindJSON(c, &req) {
		return
	}
	e := req.ToDomain()
	e.ID = c.Param("id")
	snap, err := middleware.GetSession(c).UpdateExpense(e)
	h.respond(c, snap, err)
}

// DeleteExpense removes an expense.
// DELETE /karte/expenses/:id
func (h *KarteHandler) DeleteExpense(c *gin.Context) {
	snap, err := middleware.GetSession(c).DeleteExpense(c.Param("id"))
	h.respond(c, snap, err)
}

// AddComment adds a comment by the session author. Images are resized and
// stored inline.
// POST /karte/comments
func (h *KarteHandler) AddComment(c *gin.Context) {
	var req dto.CommentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	images, err := req.DecodeImages()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	added, err := middleware.GetSession(c).AddComment(req.Text, images)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToCommentDTO(added))
}

// DeleteComment removes a comment.
// DELETE /karte/comments/:id
func (h *KarteHandler) DeleteComment(c *gin.Context) {
	snap, err := middleware.GetSession(c).DeleteComment(c.Param("id"))
	h.respond(c, snap, err)
}

// UpdateSalesDetails replaces every sales line and the memo.
// PUT /karte/sales
func (h *KarteHandler) UpdateSalesDetails(c *gin.Context) {
	var req dto.SalesDetailsDTO
	if !h.bindJSON(c, &req) {
		return
	}
	snap, err := middleware.GetSession(c).UpdateSalesDetails(req.ToDomain())
	h.respond(c, snap, err)
}

// SetSalesMemo sets the sales memo.
// PUT /karte/sales/memo
func (h *KarteHandler) SetSalesMemo(c *gin.Context) {
	var req dto.SalesMemoRequest
	if !h.bindJSON(c, &req) {
		return
	}
	snap, err := middleware.GetSession(c).SetSalesMemo(req.Memo)
	h.respond(c, snap, err)
}

// AddSalesItem appends a sales line.
// POST /karte/sales/items
func (h *KarteHandler) AddSalesItem(c *gin.Context) {
	var req dto.SalesItemDTO
	if !h.bindJSON(c, &req) {
		return
	}
	added, err := middleware.GetSession(c).AddSalesItem(req.ToDomain())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToSalesItemDTO(added))
}

// UpdateSalesItem sets one field of a sales line.
// PATCH /karte/sales/items/:id
func (h *KarteHandler) UpdateSalesItem(c *gin.Context) {
	var req dto.UpdateSalesItemRequest
	if !h.bindJSON(c, &req) {
		return
	}
	updated, err := middleware.GetSession(c).UpdateSalesItem(c.Param("id"), karte.SalesItemField(req.Field), req.Value)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToSalesItemDTO(updated))
}

// DeleteSalesItem removes a sales line.
// DELETE /karte/sales/items/:id
func (h *KarteHandler) DeleteSalesItem(c *gin.Context) {
	snap, err := middleware.GetSession(c).DeleteSalesItem(c.Param("id"))
	h.respond(c, snap, err)
}

// List returns stored records, most recently updated first by default.
// GET /kartes?limit=&sort=&order=
func (h *KarteHandler) List(c *gin.Context) {
	var q ListQuery
	if !h.bindQuery(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = karte.DefaultListLimit
	}
	entries, err := middleware.GetSession(c).List(c.Request.Context(), karte.ListOptions{
		Limit:     q.Limit,
		SortBy:    q.Sort,
		Ascending: q.Order == "asc",
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToListEntryResponses(entries))
}

// Load opens a stored record in the session.
// POST /kartes/:id/load
func (h *KarteHandler) Load(c *gin.Context) {
	snap, err := middleware.GetSession(c).Load(c.Request.Context(), c.Param("id"))
	h.respond(c, snap, err)
}

// Delete removes a stored record and returns the session's open record,
// which is a new one when the deleted record was open.
// DELETE /kartes/:id
func (h *KarteHandler) Delete(c *gin.Context) {
	session := middleware.GetSession(c)
	if err := session.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToKarteResponse(session.Snapshot()))
}

// Events streams the open record as server-sent events: one "snapshot"
// event now and after every change, plus periodic "heartbeat" events.
// GET /karte/events
func (h *KarteHandler) Events(c *gin.Context) {
	session := middleware.GetSession(c)
	ctx := c.Request.Context()
	updates := session.Watch(ctx)
	l := logger.GetGinLogger(c, h.logger)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	l.Debug("Karte event stream opened")
	c.SSEvent("snapshot", dto.ToKarteResponse(session.Snapshot()))
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snap, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("snapshot", dto.ToKarteResponse(snap))
			return true
		case t := <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"timestamp": t.Unix()})
			return true
		}
	})
	l.Debug("Karte event stream closed")
}
