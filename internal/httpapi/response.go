package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/sh3r4rd/mycloud/internal/apperr"
	"github.com/sh3r4rd/mycloud/internal/model"
)

func errorBody(err error) model.ErrorResponse {
	return model.ErrorResponse{
		Status:  model.ResultError,
		Kind:    string(apperr.KindOf(err)),
		Message: apperr.MessageOf(err),
	}
}

// writeError logs the full error and sends the client only its kind and safe
// message.
func (h *handler) writeError(c *gin.Context, op string, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	fields := []any{
		"operation", op,
		"status_code", status,
		"kind", string(kind),
		"error", err.Error(),
		"request_id", c.GetString(requestIDKey),
	}
	if status >= 500 {
		h.logger.ErrorContext(c.Request.Context(), "http operation failed", fields...)
	} else {
		h.logger.WarnContext(c.Request.Context(), "http operation failed", fields...)
	}
	c.JSON(status, errorBody(err))
}
