package calendarfeed

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clientdesk/backend/pkg/response"
)

// Handler serves the ICS feed.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a calendar feed handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Feed handles GET /calendar.ics.
func (h *Handler) Feed(c *gin.Context) {
	out, err := h.svc.Render(c.Request.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Error("calendar feed failed", zap.Error(err))
		response.Internal(c, "failed to render calendar")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="schedule.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(out))
}
