package groups

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clientdesk/backend/pkg/response"
)

// CreateRequest is the body for POST /group-bookings.
type CreateRequest struct {
	Title       string   `json:"title" binding:"required"`
	StartsLocal string   `json:"starts_at" binding:"required"`
	Location    string   `json:"location"`
	MaxPlayers  int      `json:"max_players" binding:"required"`
	Price       *float64 `json:"price"`
}

// CapacityRequest is the body for PATCH /group-bookings/:id.
type CapacityRequest struct {
	MaxPlayers int `json:"max_players" binding:"required"`
}

// SignupRequest is the body for POST /group-bookings/:id/signups.
type SignupRequest struct {
	ContactID *int64 `json:"contact_id"`
	Name      string `json:"name" binding:"required"`
	Paid      bool   `json:"paid"`
}

// PaidRequest is the body for PATCH /group-signups/:id/paid.
type PaidRequest struct {
	Paid bool `json:"paid"`
}

// Handler handles group booking HTTP endpoints.
type Handler struct {
	svc           *Service
	lookAheadDays int
	logger        *zap.Logger
}

// NewHandler creates a groups handler.
func NewHandler(svc *Service, lookAheadDays int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, lookAheadDays: lookAheadDays, logger: logger}
}

// Create handles POST /group-bookings.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	g, err := h.svc.Create(c.Request.Context(), CreateInput{
		Title:       req.Title,
		StartsLocal: req.StartsLocal,
		Location:    req.Location,
		MaxPlayers:  req.MaxPlayers,
		Price:       req.Price,
	})
	if err != nil {
		h.logger.Debug("create group rejected", zap.Error(err))
		response.FromError(c, err)
		return
	}
	response.Created(c, g)
}

// SetCapacity handles PATCH /group-bookings/:id.
func (h *Handler) SetCapacity(c *gin.Context) {
	id, ok := h.groupID(c)
	if !ok {
		return
	}
	var req CapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	g, err := h.svc.SetCapacity(c.Request.Context(), id, req.MaxPlayers)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, g)
}

// Admit handles POST /group-bookings/:id/signups.
func (h *Handler) Admit(c *gin.Context) {
	id, ok := h.groupID(c)
	if !ok {
		return
	}
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	signup, err := h.svc.Admit(c.Request.Context(), id, SignupInput{
		ContactID: req.ContactID,
		Name:      req.Name,
		Paid:      req.Paid,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, signup)
}

// SetSignupPaid handles PATCH /group-signups/:id/paid.
func (h *Handler) SetSignupPaid(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid signup id")
		return
	}
	var req PaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.MarkSignupPaid(c.Request.Context(), id, req.Paid); err != nil {
		response.FromError(c, err)
		return
	}
	response.NoContent(c)
}

// Get handles GET /group-bookings/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := h.groupID(c)
	if !ok {
		return
	}
	g, signups, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"group": g, "signups": signups})
}

// List handles GET /group-bookings.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.ListUpcoming(c.Request.Context(), time.Now().UTC(), h.lookAheadDays)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, list)
}

func (h *Handler) groupID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid group booking id")
		return 0, false
	}
	return id, true
}
