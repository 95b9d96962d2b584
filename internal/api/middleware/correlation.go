package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/crudgate/internal/correlation"
	"github.com/timmy/crudgate/internal/logger"
)

const (
	// CorrelationKey is the Gin context key holding the *correlation.Context.
	CorrelationKey = "correlation"
	// LoggerKey is the Gin context key holding the request-scoped *logger.Logger.
	LoggerKey = "logger"

	HeaderUserID    = "X-User-ID"
	HeaderSessionID = "X-Session-ID"
	sessionCookie   = "session_id"
)

// Correlation returns a middleware that creates the request's correlation
// context. An inbound X-Correlation-ID is reused, otherwise a fresh id is
// generated. The id is echoed on the response.
// Parameters:
//   - factory: correlation factory owning host metadata.
//
// Returns:
//   - gin.HandlerFunc: middleware handler.
func Correlation(factory *correlation.Factory) gin.HandlerFunc {
	return func(c *gin.Context) {
		cc := factory.FromHeaders(c.Request.Header)
		cc.ClientIP = c.ClientIP()
		cc.UserAgent = c.Request.UserAgent()
		cc.RequestPath = c.Request.URL.Path
		cc.SessionID = sessionID(c)

		ctx := correlation.NewContext(c.Request.Context(), cc)
		ctx = logger.WithCorrelation(ctx, cc)
		ctx = logger.SetComponent(ctx, "api")
		c.Request = c.Request.WithContext(ctx)

		c.Set(CorrelationKey, cc)
		c.Set(LoggerKey, logger.FromContext(ctx))
		c.Header(correlation.HeaderCorrelationID, cc.CorrelationID())

		c.Next()
	}
}

// Actor returns a middleware that records the calling user from X-User-ID.
// Authentication happens upstream of this gateway; the header is trusted as is.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderUserID)
		if cc := GetCorrelation(c); cc != nil && userID != "" {
			cc.UserID = userID
			c.Request = c.Request.WithContext(logger.SetUserID(c.Request.Context(), userID))
			c.Set(LoggerKey, logger.FromContext(c.Request.Context()))
		}
		c.Next()
	}
}

// GetCorrelation extracts the correlation context from Gin context or request context.
func GetCorrelation(c *gin.Context) *correlation.Context {
	if v, exists := c.Get(CorrelationKey); exists {
		if cc, ok := v.(*correlation.Context); ok {
			return cc
		}
	}
	return correlation.FromContext(c.Request.Context())
}

func sessionID(c *gin.Context) string {
	if id := c.GetHeader(HeaderSessionID); id != "" {
		return id
	}
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		return cookie
	}
	return ""
}
