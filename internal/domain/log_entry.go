package domain

import "time"

// LogType tags the variant of a log entry.
// Values include LogTypeRequest, LogTypeResponse, LogTypeException,
// LogTypeBusinessException, LogTypeAudit, LogTypePerformance and LogTypeGeneral.
type LogType string

const (
	LogTypeRequest           LogType = "request"
	LogTypeResponse          LogType = "response"
	LogTypeException         LogType = "exception"
	LogTypeBusinessException LogType = "business_exception"
	LogTypeAudit             LogType = "audit"
	LogTypePerformance       LogType = "performance"
	LogTypeGeneral           LogType = "general"
)

// IsValid reports whether t is one of the known log types.
func (t LogType) IsValid() bool {
	switch t {
	case LogTypeRequest, LogTypeResponse, LogTypeException, LogTypeBusinessException,
		LogTypeAudit, LogTypePerformance, LogTypeGeneral:
		return true
	}
	return false
}

// EntryHeader holds the fields common to every log entry. It is filled in by
// the log pipeline from the request's correlation context.
type EntryHeader struct {
	CorrelationID       string    `json:"correlation_id"`
	ParentCorrelationID string    `json:"parent_correlation_id,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
	Layer               string    `json:"layer"`
	UserID              string    `json:"user_id,omitempty"`
	ClientIP            string    `json:"client_ip,omitempty"`
	UserAgent           string    `json:"user_agent,omitempty"`
	RequestPath         string    `json:"request_path,omitempty"`
	SessionID           string    `json:"session_id,omitempty"`
	ServerName          string    `json:"server_name,omitempty"`
}

// Header returns the common fields.
func (h *EntryHeader) Header() *EntryHeader {
	return h
}

// LogEntry is one of the entry variants below.
type LogEntry interface {
	Type() LogType
	Header() *EntryHeader
}

// RequestEntry records an inbound or outbound request.
type RequestEntry struct {
	EntryHeader   `json:"-"`
	Method        string            `json:"method"`
	URL           string            `json:"url"`
	Query         string            `json:"query,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          string            `json:"body,omitempty"`
	ContentLength int64             `json:"content_length,omitempty"`
}

func (*RequestEntry) Type() LogType { return LogTypeRequest }

// ResponseEntry records the response to a request.
type ResponseEntry struct {
	EntryHeader `json:"-"`
	StatusCode  int               `json:"status_code"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        string            `json:"body,omitempty"`
	DurationMs  int64             `json:"duration_ms"`
}

func (*ResponseEntry) Type() LogType { return LogTypeResponse }

// ExceptionEntry records an unexpected failure.
type ExceptionEntry struct {
	EntryHeader  `json:"-"`
	Category     string `json:"category"`
	ErrorType    string `json:"error_type,omitempty"`
	Message      string `json:"message"`
	StackSummary string `json:"stack_summary,omitempty"`
}

func (*ExceptionEntry) Type() LogType { return LogTypeException }

// BusinessExceptionEntry records an expected, rule-driven rejection.
type BusinessExceptionEntry struct {
	EntryHeader `json:"-"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	Details     string `json:"details,omitempty"`
}

func (*BusinessExceptionEntry) Type() LogType { return LogTypeBusinessException }

// AuditEntry records who did what to which entity.
type AuditEntry struct {
	EntryHeader `json:"-"`
	Action      string `json:"action"`
	Entity      string `json:"entity"`
	EntityID    string `json:"entity_id,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
	Changes     string `json:"changes,omitempty"`
}

func (*AuditEntry) Type() LogType { return LogTypeAudit }

// PerformanceEntry records how long an operation took.
type PerformanceEntry struct {
	EntryHeader `json:"-"`
	Operation   string `json:"operation"`
	DurationMs  int64  `json:"duration_ms"`
	ThresholdMs int64  `json:"threshold_ms,omitempty"`
	Slow        bool   `json:"slow"`
}

func (*PerformanceEntry) Type() LogType { return LogTypePerformance }

// GeneralEntry is the catch-all variant.
type GeneralEntry struct {
	EntryHeader `json:"-"`
	Level       string `json:"level"`
	Message     string `json:"message"`
	Data        string `json:"data,omitempty"`
}

func (*GeneralEntry) Type() LogType { return LogTypeGeneral }
