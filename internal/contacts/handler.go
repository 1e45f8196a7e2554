package contacts

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clientdesk/backend/pkg/response"
)

// CreateRequest is the body for POST /contacts.
type CreateRequest struct {
	Name         string   `json:"name" binding:"required"`
	SecondName   string   `json:"second_name"`
	Participants []string `json:"participants"`
}

// UpdateRequest is the body for PATCH /contacts/:id.
type UpdateRequest struct {
	Name       string `json:"name"`
	SecondName string `json:"second_name"`
}

// ParticipantRequest is the body for POST /contacts/:id/participants.
type ParticipantRequest struct {
	Name string `json:"name" binding:"required"`
}

// Handler handles contact HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a contacts handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /contacts.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	contact, err := h.svc.Create(c.Request.Context(), CreateInput{
		Name:         req.Name,
		SecondName:   req.SecondName,
		Participants: req.Participants,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, contact)
}

// Get handles GET /contacts/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := h.contactID(c)
	if !ok {
		return
	}
	contact, participants, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"contact": contact, "participants": participants})
}

// Update handles PATCH /contacts/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := h.contactID(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	contact, err := h.svc.Update(c.Request.Context(), id, req.Name, req.SecondName)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, contact)
}

// List handles GET /contacts. ?customers=true filters to customers only.
func (h *Handler) List(c *gin.Context) {
	customersOnly := c.Query("customers") == "true"
	list, err := h.svc.List(c.Request.Context(), customersOnly)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, list)
}

// AddParticipant handles POST /contacts/:id/participants.
func (h *Handler) AddParticipant(c *gin.Context) {
	id, ok := h.contactID(c)
	if !ok {
		return
	}
	var req ParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.svc.AddParticipant(c.Request.Context(), id, req.Name)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, p)
}

func (h *Handler) contactID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid contact id")
		return 0, false
	}
	return id, true
}
