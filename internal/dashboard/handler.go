package dashboard

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clientdesk/backend/pkg/response"
)

// Handler handles the dashboard HTTP endpoint.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Snapshot handles GET /dashboard. An optional ?at=RFC3339 instant lets
// operators preview another day's view; it defaults to now.
func (h *Handler) Snapshot(c *gin.Context) {
	now := time.Now().UTC()
	if at := c.Query("at"); at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			response.BadRequest(c, "invalid at: expected RFC3339 timestamp")
			return
		}
		now = t.UTC()
	}
	snap, err := h.svc.Snapshot(c.Request.Context(), now)
	if err != nil {
		h.logger.Error("dashboard snapshot failed", zap.Error(err))
		response.FromError(c, err)
		return
	}
	response.OK(c, snap)
}
