package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/crudgate/internal/correlation"
	"github.com/timmy/crudgate/internal/httpclient"
	"github.com/timmy/crudgate/internal/logger"
)

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"Host":                {},
	"Content-Length":      {},
}

// UpstreamHandler forwards requests to the internal Server API.
type UpstreamHandler struct {
	client *httpclient.Client
}

// NewUpstreamHandler creates a new upstream handler.
// Parameters:
//   - client: upstream client; correlation headers and exchange entries are added there.
//
// Returns:
//   - *UpstreamHandler: initialized handler.
func NewUpstreamHandler(client *httpclient.Client) *UpstreamHandler {
	return &UpstreamHandler{client: client}
}

// Forward handles ANY /api/v1/upstream/*path.
func (h *UpstreamHandler) Forward(c *gin.Context) {
	ctx := c.Request.Context()

	var body []byte
	if c.Request.Body != nil {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil {
			logger.CtxWarn(ctx, "Failed to read request body for upstream: %v", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:         "failed to read request body",
				CorrelationID: correlation.IDFromContext(ctx),
			})
			return
		}
		if len(b) > 0 {
			body = b
		}
	}

	resp, err := h.client.Do(ctx, c.Request.Method, c.Param("path"), c.Request.URL.RawQuery, forwardHeaders(c.Request.Header), body)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, httpclient.ErrNotConfigured) {
			status = http.StatusServiceUnavailable
		}
		// transport failures are already recorded by the client
		c.JSON(status, ErrorResponse{
			Error:         "upstream unavailable",
			CorrelationID: correlation.IDFromContext(ctx),
		})
		return
	}

	for k, values := range resp.Header() {
		if _, hop := hopHeaders[http.CanonicalHeaderKey(k)]; hop {
			continue
		}
		if strings.EqualFold(k, correlation.HeaderCorrelationID) {
			continue
		}
		for _, v := range values {
			c.Writer.Header().Add(k, v)
		}
	}
	c.Data(resp.StatusCode(), resp.Header().Get("Content-Type"), resp.Body())
}

func forwardHeaders(in http.Header) http.Header {
	out := make(http.Header, len(in))
	for k, values := range in {
		if _, hop := hopHeaders[http.CanonicalHeaderKey(k)]; hop {
			continue
		}
		// replaced with the gateway's own correlation context
		if strings.EqualFold(k, correlation.HeaderCorrelationID) || strings.EqualFold(k, correlation.HeaderParentCorrelationID) {
			continue
		}
		out[k] = append([]string(nil), values...)
	}
	return out
}
