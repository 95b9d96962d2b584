package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/crudgate/internal/domain"
	"github.com/timmy/crudgate/internal/service"
)

// LogHandler serves the persisted log records.
type LogHandler struct {
	query *service.LogQueryService
	logs  *service.LogService
}

// NewLogHandler creates a new log handler.
// Parameters:
//   - query: read service over persisted records.
//   - logs: pipeline receiving validation and failure entries.
//
// Returns:
//   - *LogHandler: initialized handler.
func NewLogHandler(query *service.LogQueryService, logs *service.LogService) *LogHandler {
	return &LogHandler{query: query, logs: logs}
}

// ListLogs handles GET /api/v1/logs.
// Query parameters: type, correlation_id, limit (1..200, default 50), offset.
func (h *LogHandler) ListLogs(c *gin.Context) {
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		respondError(c, h.logs, "query", err)
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		respondError(c, h.logs, "query", err)
		return
	}

	page, err := h.query.List(c.Request.Context(), domain.LogFilter{
		CorrelationID: c.Query("correlation_id"),
		Type:          domain.LogType(c.Query("type")),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		respondError(c, h.logs, "database", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetTrace handles GET /api/v1/logs/:correlation_id.
func (h *LogHandler) GetTrace(c *gin.Context) {
	id := c.Param("correlation_id")
	records, err := h.query.Trace(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logs, "database", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"correlation_id": id,
		"records":        records,
	})
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &service.ValidationError{Field: name, Message: "must be an integer"}
	}
	return v, nil
}
