package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/timmy/crudgate/internal/correlation"
	"github.com/timmy/crudgate/internal/domain"
	"github.com/timmy/crudgate/internal/logger"
	"github.com/timmy/crudgate/internal/masking"
	"github.com/timmy/crudgate/internal/metrics"
	"github.com/timmy/crudgate/internal/sink"
)

// LogServiceConfig holds configuration for the log pipeline.
type LogServiceConfig struct {
	Layer         string        // layer name stamped on entries that carry none
	SlowThreshold time.Duration // performance entries at or above this are flagged slow; zero disables
}

// LogService stamps, masks and sanitizes log entries and hands them to a sink.
// Emitting never fails from the caller's point of view.
type LogService struct {
	masker  *masking.Masker
	sink    sink.Sink
	factory *correlation.Factory
	metrics *metrics.Metrics
	logger  *logger.Logger
	layer   string
	slow    time.Duration
	now     func() time.Time
}

// NewLogService creates a new log service.
// Parameters:
//   - masker: masker applied to every payload field.
//   - sk: destination sink.
//   - factory: used to create a correlation context when the request has none; may be nil.
//   - m: pipeline counters; may be nil.
//   - log: process logger receiving sink failures.
//   - cfg: pipeline configuration.
//
// Returns:
//   - *LogService: initialized log service.
func NewLogService(
	masker *masking.Masker,
	sk sink.Sink,
	factory *correlation.Factory,
	m *metrics.Metrics,
	log *logger.Logger,
	cfg *LogServiceConfig,
) *LogService {
	if masker == nil {
		masker = masking.NewDefault()
	}
	if log == nil {
		log = logger.GetDefault()
	}
	s := &LogService{
		masker:  masker,
		sink:    sk,
		factory: factory,
		metrics: m,
		logger:  log.WithField(logger.FieldComponent, "log_service"),
		now:     time.Now,
	}
	if cfg != nil {
		s.layer = cfg.Layer
		s.slow = cfg.SlowThreshold
	}
	return s
}

// Masker returns the masker used by the pipeline.
func (s *LogService) Masker() *masking.Masker {
	return s.masker
}

// Emit runs entry through the pipeline. Sink failures and panics are logged
// and counted, never returned.
func (s *LogService) Emit(ctx context.Context, entry domain.LogEntry) {
	if entry == nil {
		return
	}

	s.stamp(ctx, entry.Header())
	if p, ok := entry.(*domain.PerformanceEntry); ok {
		s.classify(p)
	}
	s.mask(entry)
	sanitizeEntry(entry)

	s.metrics.EntryEmitted(string(entry.Type()))
	if s.sink == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.metrics.SinkFailed(s.sink.Name())
			s.logger.WithField(logger.FieldLogType, string(entry.Type())).
				Errorf("Log sink panicked: %v", r)
		}
	}()

	if err := s.sink.Write(ctx, entry); err != nil {
		for _, name := range sink.FailedSinks(err, s.sink.Name()) {
			s.metrics.SinkFailed(name)
		}
		s.logger.WithError(err).
			WithField(logger.FieldLogType, string(entry.Type())).
			WithField(logger.FieldCorrelationID, entry.Header().CorrelationID).
			Warn("Failed to write log entry")
	}
}

// Request emits a Request entry for r. Headers and body are masked.
func (s *LogService) Request(ctx context.Context, r *http.Request, body []byte) {
	entry := &domain.RequestEntry{
		Method:        r.Method,
		URL:           r.URL.Path,
		Query:         r.URL.RawQuery,
		Headers:       s.masker.MaskHTTPHeader(r.Header),
		Body:          string(body),
		ContentLength: r.ContentLength,
	}
	s.Emit(ctx, entry)
}

// Response emits a Response entry.
func (s *LogService) Response(ctx context.Context, status int, header http.Header, body []byte, duration time.Duration) {
	entry := &domain.ResponseEntry{
		StatusCode: status,
		Headers:    s.masker.MaskHTTPHeader(header),
		Body:       string(body),
		DurationMs: duration.Milliseconds(),
	}
	s.Emit(ctx, entry)
}

// Exception emits an Exception entry for err.
// Parameters:
//   - ctx: request context.
//   - category: coarse classification such as "panic", "upstream" or "database".
//   - err: the failure; nil is recorded as "unknown error".
//   - stack: optional single-line stack summary.
func (s *LogService) Exception(ctx context.Context, category string, err error, stack string) {
	entry := &domain.ExceptionEntry{
		Category:     category,
		Message:      "unknown error",
		StackSummary: stack,
	}
	if err != nil {
		entry.ErrorType = fmt.Sprintf("%T", err)
		entry.Message = err.Error()
	}
	s.Emit(ctx, entry)
}

// BusinessException emits a BusinessException entry. details is encoded as JSON
// unless it already is a string.
func (s *LogService) BusinessException(ctx context.Context, code, message string, details any) {
	s.Emit(ctx, &domain.BusinessExceptionEntry{
		Code:    code,
		Message: message,
		Details: encodePayload(details),
	})
}

// Audit emits an Audit entry. changes is encoded as JSON unless it already is a string.
func (s *LogService) Audit(ctx context.Context, action, entity, entityID, outcome string, changes any) {
	s.Emit(ctx, &domain.AuditEntry{
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Outcome:  outcome,
		Changes:  encodePayload(changes),
	})
}

// Performance emits a Performance entry for an operation that took d.
func (s *LogService) Performance(ctx context.Context, operation string, d time.Duration) {
	s.Emit(ctx, &domain.PerformanceEntry{
		Operation:  operation,
		DurationMs: d.Milliseconds(),
	})
}

// General emits a generic entry.
func (s *LogService) General(ctx context.Context, level, message string, data any) {
	s.Emit(ctx, &domain.GeneralEntry{
		Level:   level,
		Message: message,
		Data:    encodePayload(data),
	})
}

// stamp fills the header from the request's correlation context. Values the
// caller already set are kept.
func (s *LogService) stamp(ctx context.Context, h *domain.EntryHeader) {
	cc := correlation.FromContext(ctx)
	if cc == nil && h.CorrelationID == "" && s.factory != nil {
		cc = s.factory.New()
	}

	if cc != nil {
		setIfEmpty(&h.CorrelationID, cc.CorrelationID())
		setIfEmpty(&h.ParentCorrelationID, cc.ParentCorrelationID())
		setIfEmpty(&h.UserID, cc.UserID)
		setIfEmpty(&h.ClientIP, cc.ClientIP)
		setIfEmpty(&h.UserAgent, cc.UserAgent)
		setIfEmpty(&h.RequestPath, cc.RequestPath)
		setIfEmpty(&h.SessionID, cc.SessionID)
		setIfEmpty(&h.ServerName, cc.ServerName())
	}
	setIfEmpty(&h.Layer, s.layer)

	if h.Timestamp.IsZero() {
		h.Timestamp = s.now()
	}
	h.Timestamp = h.Timestamp.UTC()
}

// classify flags a performance entry as slow against the configured threshold
// unless the caller supplied its own.
func (s *LogService) classify(p *domain.PerformanceEntry) {
	if p.ThresholdMs == 0 && s.slow > 0 {
		p.ThresholdMs = s.slow.Milliseconds()
	}
	if p.ThresholdMs > 0 && p.DurationMs >= p.ThresholdMs {
		p.Slow = true
	}
}

// mask runs every payload field of entry through the masker.
func (s *LogService) mask(entry domain.LogEntry) {
	switch e := entry.(type) {
	case *domain.RequestEntry:
		e.Body = s.masker.MaskJSON(e.Body)
		e.Query = s.masker.MaskJSON(e.Query)
		e.Headers = s.masker.MaskHeaders(e.Headers)
	case *domain.ResponseEntry:
		e.Body = s.masker.MaskJSON(e.Body)
		e.Headers = s.masker.MaskHeaders(e.Headers)
	case *domain.ExceptionEntry:
		e.Message = s.masker.MaskJSON(e.Message)
	case *domain.BusinessExceptionEntry:
		e.Details = s.masker.MaskJSON(e.Details)
	case *domain.AuditEntry:
		e.Changes = s.masker.MaskJSON(e.Changes)
	case *domain.GeneralEntry:
		e.Data = s.masker.MaskJSON(e.Data)
	}
}

func sanitizeEntry(entry domain.LogEntry) {
	h := entry.Header()
	sanitize(&h.CorrelationID, &h.ParentCorrelationID)
	sanitize(&h.UserID, &h.ClientIP, &h.UserAgent, &h.RequestPath, &h.SessionID)

	switch e := entry.(type) {
	case *domain.RequestEntry:
		sanitize(&e.Method, &e.URL, &e.Query, &e.Body)
		e.Headers = sanitizeMap(e.Headers)
	case *domain.ResponseEntry:
		sanitize(&e.Body)
		e.Headers = sanitizeMap(e.Headers)
	case *domain.ExceptionEntry:
		sanitize(&e.Category, &e.ErrorType, &e.Message, &e.StackSummary)
	case *domain.BusinessExceptionEntry:
		sanitize(&e.Code, &e.Message, &e.Details)
	case *domain.AuditEntry:
		sanitize(&e.Action, &e.Entity, &e.EntityID, &e.Outcome, &e.Changes)
	case *domain.PerformanceEntry:
		sanitize(&e.Operation)
	case *domain.GeneralEntry:
		sanitize(&e.Level, &e.Message, &e.Data)
	}
}

func sanitize(fields ...*string) {
	for _, f := range fields {
		*f = masking.SanitizeForLogging(*f)
	}
}

func sanitizeMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[masking.SanitizeForLogging(k)] = masking.SanitizeForLogging(v)
	}
	return out
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// encodePayload turns an arbitrary payload into text for masking.
func encodePayload(v any) string {
	switch p := v.(type) {
	case nil:
		return ""
	case string:
		return p
	case []byte:
		return string(p)
	case json.RawMessage:
		return string(p)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
