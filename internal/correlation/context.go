// Package correlation carries the per-request identity that stamps every log
// entry of a request: the correlation id, the optional parent id propagated by
// an upstream caller, actor metadata and an open property bag.
package correlation

import (
	"time"
)

const (
	// HeaderCorrelationID carries the correlation id across service boundaries.
	HeaderCorrelationID = "X-Correlation-ID"

	// HeaderParentCorrelationID carries the id of the calling context for fan-out tracing.
	HeaderParentCorrelationID = "X-Parent-Correlation-ID"
)

// Context is the request-scoped identity and metadata carrier.
//
// A Context is owned by exactly one request and is not safe for concurrent
// mutation. Identity fields (correlation id, parent id, server identity and
// start time) are fixed at construction and only exposed through getters.
type Context struct {
	correlationID       string
	parentCorrelationID string
	serverName          string
	serverIP            string
	requestStartTime    time.Time

	UserID      string
	ClientIP    string
	UserAgent   string
	RequestPath string
	SessionID   string

	properties map[string]any
	now        func() time.Time
}

// CorrelationID returns the id generated or inherited at construction.
func (c *Context) CorrelationID() string {
	return c.correlationID
}

// ParentCorrelationID returns the upstream parent id, empty when this context
// was not derived from an upstream call.
func (c *Context) ParentCorrelationID() string {
	return c.parentCorrelationID
}

// ServerName returns the host name resolved at construction.
func (c *Context) ServerName() string {
	return c.serverName
}

// ServerIP returns the local outbound IP, empty when it could not be resolved.
func (c *Context) ServerIP() string {
	return c.serverIP
}

// RequestStartTime returns the UTC time the context was created.
func (c *Context) RequestStartTime() time.Time {
	return c.requestStartTime
}

// Elapsed returns the time since the context was created. A Context not built
// by a Factory measures against the wall clock.
func (c *Context) Elapsed() time.Duration {
	if c.now == nil {
		return time.Since(c.requestStartTime)
	}
	return c.now().Sub(c.requestStartTime)
}

// SetProperty stores value under key. The last write for a key wins.
func (c *Context) SetProperty(key string, value any) {
	if c.properties == nil {
		c.properties = make(map[string]any)
	}
	c.properties[key] = value
}

// Properties returns a copy of the property bag.
func (c *Context) Properties() map[string]any {
	out := make(map[string]any, len(c.properties))
	for k, v := range c.properties {
		out[k] = v
	}
	return out
}

// GetProperty returns the value stored under key as a T. The second result is
// false when the key is missing or the stored value is not a T.
func GetProperty[T any](c *Context, key string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	raw, ok := c.properties[key]
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
