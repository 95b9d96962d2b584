package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/crudgate/internal/logger"
	"github.com/timmy/crudgate/internal/service"
)

// bodyCaptureWriter keeps the first limit bytes of the response body.
type bodyCaptureWriter struct {
	gin.ResponseWriter
	buf   bytes.Buffer
	limit int
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.capture(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	w.capture([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *bodyCaptureWriter) capture(b []byte) {
	if room := w.limit - w.buf.Len(); room > 0 {
		if len(b) > room {
			b = b[:room]
		}
		w.buf.Write(b)
	}
}

// RequestLogger returns a Gin middleware that records each request as Request,
// Response and Performance entries through the log pipeline and writes a
// completion line on the request logger.
// Parameters:
//   - logs: log pipeline; bodies and headers are masked there.
//   - maxBody: bytes of request and response body kept for logging.
//   - skipPaths: paths that are served but not recorded.
//
// Returns:
//   - gin.HandlerFunc: middleware handler.
func RequestLogger(logs *service.LogService, maxBody int, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		ctx := c.Request.Context()
		query := c.Request.URL.RawQuery

		reqBody := captureRequestBody(c, maxBody)
		logs.Request(ctx, c.Request, reqBody)

		writer := &bodyCaptureWriter{ResponseWriter: c.Writer, limit: maxBody}
		c.Writer = writer

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logs.Response(ctx, status, c.Writer.Header(), writer.buf.Bytes(), latency)

		route := c.FullPath()
		if route == "" {
			route = path
		}
		logs.Performance(ctx, c.Request.Method+" "+route, latency)

		fullPath := path
		if query != "" {
			fullPath = path + "?" + logs.Masker().MaskJSON(query)
		}

		logger.With(logger.Fields{
			logger.FieldStatus:     status,
			logger.FieldDurationMs: latency.Milliseconds(),
			logger.FieldSize:       c.Writer.Size(),
		}).Info(ctx, "Request completed: method=%s, path=%s", c.Request.Method, fullPath)
	}
}

// captureRequestBody reads up to limit bytes of the body for logging and
// restores the full body for the handler.
func captureRequestBody(c *gin.Context, limit int) []byte {
	if c.Request.Body == nil || c.Request.Body == http.NoBody || limit <= 0 {
		return nil
	}
	head, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(limit)))
	if err != nil {
		GetLogger(c).WithError(err).Warn("Failed to read request body for logging")
	}
	c.Request.Body = readCloser{
		Reader: io.MultiReader(bytes.NewReader(head), c.Request.Body),
		Closer: c.Request.Body,
	}
	return head
}

type readCloser struct {
	io.Reader
	io.Closer
}

// GetLogger extracts logger from Gin context or request context.
// Parameters:
//   - c: Gin request context.
//
// Returns:
//   - *logger.Logger: request-scoped logger or default logger.
func GetLogger(c *gin.Context) *logger.Logger {
	if l, exists := c.Get(LoggerKey); exists {
		if log, ok := l.(*logger.Logger); ok {
			return log
		}
	}
	return logger.FromContext(c.Request.Context())
}
