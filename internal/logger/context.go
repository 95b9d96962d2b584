package logger

import (
	"context"
	"sync"

	"github.com/timmy/crudgate/internal/correlation"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// loggerKey is the key used to store logger in context
var loggerKey = contextKey{}

// defaultLogger is used when no logger is found in context
var (
	defaultLogger   *Logger
	defaultLoggerMu sync.RWMutex
)

func init() {
	defaultLogger = New(nil)
}

// ============================================
// Default Logger Access
// ============================================

// GetDefault returns the default logger (thread-safe).
func GetDefault() *Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger sets the default logger used when no logger is found in context.
// A nil logger is ignored.
func SetDefaultLogger(l *Logger) {
	if l != nil {
		defaultLoggerMu.Lock()
		defaultLogger = l
		defaultLoggerMu.Unlock()
	}
}

// ============================================
// Context Logger Access
// ============================================

// WithContext returns a new context with the logger attached.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context, falling back to the default logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*Logger); ok {
			return l
		}
	}
	return GetDefault()
}

// ============================================
// Context Field Injection
// ============================================

// WithField creates a new context with a single additional field.
func WithField(ctx context.Context, key string, value interface{}) context.Context {
	return FromContext(ctx).WithField(key, value).WithContext(ctx)
}

// WithFields creates a new context with additional fields added to the logger.
func WithFields(ctx context.Context, fields Fields) context.Context {
	return FromContext(ctx).WithFields(fields).WithContext(ctx)
}

// WithCorrelation stamps the context logger with the identity of cc. Empty
// values are left out so lines stay compact.
// Parameters:
//   - ctx: base context.
//   - cc: request correlation context; nil returns ctx unchanged.
//
// Returns:
//   - context.Context: context containing the enriched logger.
func WithCorrelation(ctx context.Context, cc *correlation.Context) context.Context {
	if cc == nil {
		return ctx
	}
	fields := Fields{FieldCorrelationID: cc.CorrelationID()}
	optional := map[string]string{
		FieldParentCorrelationID: cc.ParentCorrelationID(),
		FieldUserID:              cc.UserID,
		FieldClientIP:            cc.ClientIP,
		FieldRequestPath:         cc.RequestPath,
		FieldServerName:          cc.ServerName(),
	}
	for k, v := range optional {
		if v != "" {
			fields[k] = v
		}
	}
	return WithFields(ctx, fields)
}

// SetComponent sets the component name field in context.
func SetComponent(ctx context.Context, name string) context.Context {
	return WithField(ctx, FieldComponent, name)
}

// SetUserID sets the user ID field in context.
func SetUserID(ctx context.Context, id string) context.Context {
	return WithField(ctx, FieldUserID, id)
}

// ============================================
// Field Extraction
// ============================================

// GetField extracts a field value from the context's logger.
func GetField(ctx context.Context, key string) (interface{}, bool) {
	val, ok := FromContext(ctx).Data[key]
	return val, ok
}

// GetFieldString extracts a string field value from the context's logger.
func GetFieldString(ctx context.Context, key string) string {
	val, ok := GetField(ctx, key)
	if !ok {
		return ""
	}
	str, _ := val.(string)
	return str
}

// GetCorrelationID extracts the correlation ID from the context's logger.
func GetCorrelationID(ctx context.Context) string {
	return GetFieldString(ctx, FieldCorrelationID)
}

// GetFields extracts all fields from the context's logger.
func GetFields(ctx context.Context) Fields {
	data := FromContext(ctx).Data
	fields := make(Fields, len(data))
	for k, v := range data {
		fields[k] = v
	}
	return fields
}
