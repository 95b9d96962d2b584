package correlation

import (
	"context"
	"net/http"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

var correlationKey = contextKey{}

// NewContext returns a copy of ctx carrying cc.
func NewContext(ctx context.Context, cc *Context) context.Context {
	return context.WithValue(ctx, correlationKey, cc)
}

// FromContext returns the correlation context stored in ctx, or nil.
func FromContext(ctx context.Context) *Context {
	if ctx == nil {
		return nil
	}
	cc, _ := ctx.Value(correlationKey).(*Context)
	return cc
}

// IDFromContext returns the correlation id stored in ctx, or "".
func IDFromContext(ctx context.Context) string {
	if cc := FromContext(ctx); cc != nil {
		return cc.CorrelationID()
	}
	return ""
}

// InjectHeaders writes the correlation headers for an outbound call made on
// behalf of cc. A nil cc leaves h untouched.
func InjectHeaders(h http.Header, cc *Context) {
	if cc == nil {
		return
	}
	h.Set(HeaderCorrelationID, cc.CorrelationID())
	if parent := cc.ParentCorrelationID(); parent != "" {
		h.Set(HeaderParentCorrelationID, parent)
	}
}
