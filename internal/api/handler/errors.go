package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/crudgate/internal/correlation"
	"github.com/timmy/crudgate/internal/domain"
	"github.com/timmy/crudgate/internal/service"
)

// ErrorResponse is the JSON body of every error answer.
type ErrorResponse struct {
	Error         string `json:"error"`
	Field         string `json:"field,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// respondError maps err to a status code, records it through the log
// pipeline and writes the error body.
//   - *service.ValidationError: 400 and a BusinessException entry.
//   - domain.ErrLogRecordNotFound: 404.
//   - anything else: 500 and an Exception entry.
func respondError(c *gin.Context, logs *service.LogService, category string, err error) {
	ctx := c.Request.Context()
	body := ErrorResponse{CorrelationID: correlation.IDFromContext(ctx)}

	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		body.Error = ve.Error()
		body.Field = ve.Field
		if logs != nil {
			logs.BusinessException(ctx, "validation", ve.Error(), map[string]string{"field": ve.Field})
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, domain.ErrLogRecordNotFound):
		body.Error = err.Error()
		c.JSON(http.StatusNotFound, body)
	default:
		body.Error = "internal server error"
		if logs != nil {
			logs.Exception(ctx, category, err, "")
		}
		c.JSON(http.StatusInternalServerError, body)
	}
}
