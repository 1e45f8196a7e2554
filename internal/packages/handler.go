package packages

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clientdesk/backend/internal/models"
	"github.com/clientdesk/backend/pkg/response"
)

// CreateRequest is the body for POST /packages.
type CreateRequest struct {
	ContactID             int64    `json:"contact_id" binding:"required"`
	Kind                  string   `json:"kind" binding:"required"`
	Price                 *float64 `json:"price"`
	StartLocal            string   `json:"start_date"`
	InitialAmountReceived float64  `json:"initial_amount_received"`
}

// UpdateRequest is the body for PATCH /packages/:id. Absent fields are left
// unchanged; clear_price removes the price entirely.
type UpdateRequest struct {
	Kind           *string  `json:"kind"`
	Price          *float64 `json:"price"`
	ClearPrice     bool     `json:"clear_price"`
	AmountReceived *float64 `json:"amount_received"`
	StartLocal     *string  `json:"start_date"`
	Active         *bool    `json:"active"`
}

// PaymentRequest is the body for POST /packages/:id/payments.
type PaymentRequest struct {
	Amount float64 `json:"amount" binding:"required"`
	Note   string  `json:"note"`
}

// Handler handles package HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a packages handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /packages.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.svc.Create(c.Request.Context(), CreateInput{
		ContactID:             req.ContactID,
		Kind:                  models.PackageKind(req.Kind),
		Price:                 req.Price,
		StartLocal:            req.StartLocal,
		InitialAmountReceived: req.InitialAmountReceived,
	})
	if err != nil {
		h.logger.Debug("create package rejected", zap.Error(err))
		response.FromError(c, err)
		return
	}
	response.Created(c, p)
}

// Update handles PATCH /packages/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := h.packageID(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	in := UpdateInput{
		Price:          req.Price,
		ClearPrice:     req.ClearPrice,
		AmountReceived: req.AmountReceived,
		StartLocal:     req.StartLocal,
		Active:         req.Active,
	}
	if req.Kind != nil {
		kind := models.PackageKind(*req.Kind)
		in.Kind = &kind
	}
	p, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, p)
}

// Get handles GET /packages/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := h.packageID(c)
	if !ok {
		return
	}
	p, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, p)
}

// ListByContact handles GET /contacts/:id/packages.
func (h *Handler) ListByContact(c *gin.Context) {
	contactID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || contactID <= 0 {
		response.BadRequest(c, "invalid contact id")
		return
	}
	list, err := h.svc.ListByContact(c.Request.Context(), contactID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, list)
}

// LogPayment handles POST /packages/:id/payments.
func (h *Handler) LogPayment(c *gin.Context) {
	id, ok := h.packageID(c)
	if !ok {
		return
	}
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ev, err := h.svc.LogPayment(c.Request.Context(), id, req.Amount, req.Note)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, ev)
}

// ListPayments handles GET /packages/:id/payments.
func (h *Handler) ListPayments(c *gin.Context) {
	id, ok := h.packageID(c)
	if !ok {
		return
	}
	list, err := h.svc.ListPayments(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, list)
}

func (h *Handler) packageID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid package id")
		return 0, false
	}
	return id, true
}
