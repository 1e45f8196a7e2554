package bookings

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clientdesk/backend/internal/models"
	"github.com/clientdesk/backend/pkg/response"
)

// CreateRequest is the body for POST /bookings.
type CreateRequest struct {
	Variant        string   `json:"variant" binding:"required"`
	ContactID      int64    `json:"contact_id" binding:"required"`
	ParticipantIDs []int64  `json:"participant_ids"`
	ScheduledLocal string   `json:"scheduled_at" binding:"required"`
	EndsLocal      string   `json:"ends_at"`
	Location       string   `json:"location"`
	Price          *float64 `json:"price"`
	PackageID      *int64   `json:"package_id"`
}

// QuickAddRequest is the body for POST /bookings/quick-add.
type QuickAddRequest struct {
	ContactID             int64    `json:"contact_id" binding:"required"`
	Kind                  string   `json:"kind" binding:"required"`
	Price                 *float64 `json:"price"`
	InitialAmountReceived float64  `json:"initial_amount_received"`
	StartLocal            string   `json:"start_at" binding:"required"`
	Location              string   `json:"location"`
	ParticipantIDs        []int64  `json:"participant_ids"`
}

// CompleteRequest is the body for PATCH /bookings/:variant/:id/complete.
type CompleteRequest struct {
	ShowedUp      bool   `json:"showed_up"`
	Cancelled     bool   `json:"cancelled"`
	Paid          bool   `json:"paid"`
	PaymentMethod string `json:"payment_method"`
}

// Handler handles booking HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a bookings handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /bookings.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	b, err := h.svc.Create(c.Request.Context(), CreateInput{
		Variant:        models.BookingVariant(req.Variant),
		ContactID:      req.ContactID,
		ParticipantIDs: req.ParticipantIDs,
		ScheduledLocal: req.ScheduledLocal,
		EndsLocal:      req.EndsLocal,
		Location:       req.Location,
		Price:          req.Price,
		PackageID:      req.PackageID,
	})
	if err != nil {
		h.logger.Debug("create booking rejected", zap.Error(err))
		response.FromError(c, err)
		return
	}
	response.Created(c, b)
}

// QuickAdd handles POST /bookings/quick-add.
func (h *Handler) QuickAdd(c *gin.Context) {
	var req QuickAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	pkg, created, err := h.svc.QuickAdd(c.Request.Context(), QuickAddInput{
		ContactID:             req.ContactID,
		Kind:                  models.PackageKind(req.Kind),
		Price:                 req.Price,
		InitialAmountReceived: req.InitialAmountReceived,
		StartLocal:            req.StartLocal,
		Location:              req.Location,
		ParticipantIDs:        req.ParticipantIDs,
	})
	if err != nil {
		h.logger.Debug("quick-add rejected", zap.Error(err))
		response.FromError(c, err)
		return
	}
	response.Created(c, gin.H{"package": pkg, "bookings": created})
}

// Get handles GET /bookings/:variant/:id.
func (h *Handler) Get(c *gin.Context) {
	variant, id, ok := h.bookingRef(c)
	if !ok {
		return
	}
	b, err := h.svc.Get(c.Request.Context(), variant, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, b)
}

// Accept handles PATCH /bookings/:variant/:id/accept. Only trials accept.
func (h *Handler) Accept(c *gin.Context) {
	variant, id, ok := h.bookingRef(c)
	if !ok {
		return
	}
	if variant != models.VariantTrial {
		response.BadRequest(c, "only trial bookings can be accepted")
		return
	}
	b, err := h.svc.Accept(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, b)
}

// Cancel handles PATCH /bookings/:variant/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	variant, id, ok := h.bookingRef(c)
	if !ok {
		return
	}
	b, err := h.svc.Cancel(c.Request.Context(), variant, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, b)
}

// MarkNoShow handles PATCH /bookings/:variant/:id/no-show.
func (h *Handler) MarkNoShow(c *gin.Context) {
	variant, id, ok := h.bookingRef(c)
	if !ok {
		return
	}
	b, err := h.svc.MarkNoShow(c.Request.Context(), variant, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, b)
}

// Complete handles PATCH /bookings/:variant/:id/complete.
func (h *Handler) Complete(c *gin.Context) {
	variant, id, ok := h.bookingRef(c)
	if !ok {
		return
	}
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	b, err := h.svc.Complete(c.Request.Context(), variant, id, CompleteInput{
		ShowedUp:      req.ShowedUp,
		Cancelled:     req.Cancelled,
		Paid:          req.Paid,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, b)
}

func (h *Handler) bookingRef(c *gin.Context) (models.BookingVariant, int64, bool) {
	variant := models.BookingVariant(c.Param("variant"))
	if !variant.Valid() {
		response.BadRequest(c, "invalid booking variant")
		return "", 0, false
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid booking id")
		return "", 0, false
	}
	return variant, id, true
}
