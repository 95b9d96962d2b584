package middleware

import (
	"fmt"
	"net/http"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/crudgate/internal/correlation"
	"github.com/timmy/crudgate/internal/service"
)

const maxStackFrames = 8

// Recovery returns a middleware that turns a panic into a 500 response
// carrying the correlation id, and records it as an Exception entry.
func Recovery(logs *service.LogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if r == http.ErrAbortHandler {
				panic(r)
			}

			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			ctx := c.Request.Context()
			logs.Exception(ctx, "panic", err, stackSummary(3))

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":          "internal server error",
				"correlation_id": correlation.IDFromContext(ctx),
			})
		}()
		c.Next()
	}
}

// stackSummary renders the panicking goroutine's frames on one line,
// innermost first, leaving out the runtime.
func stackSummary(skip int) string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var parts []string
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			fn := frame.Function
			if idx := strings.LastIndex(fn, "/"); idx != -1 {
				fn = fn[idx+1:]
			}
			parts = append(parts, fn+" ("+filepath.Base(frame.File)+":"+strconv.Itoa(frame.Line)+")")
		}
		if !more || len(parts) == maxStackFrames {
			break
		}
	}
	return strings.Join(parts, " <- ")
}
