package response

import (
	"github.com/gin-gonic/gin"

	"github.com/clientdesk/backend/internal/engine"
)

// FromError maps an engine error class to the matching HTTP response.
// Unclassified errors are reported as opaque internal failures; the detail
// stays in the server log, not the response body.
func FromError(c *gin.Context, err error) {
	switch {
	case engine.IsValidation(err):
		BadRequest(c, err.Error())
	case engine.IsNotFound(err):
		NotFound(c, err.Error())
	case engine.IsInvariant(err):
		Conflict(c, err.Error())
	default:
		Internal(c, "internal error")
	}
}
