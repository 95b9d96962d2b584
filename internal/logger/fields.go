package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldCorrelationID is the request correlation id
	FieldCorrelationID = "correlation_id"

	// FieldParentCorrelationID is the upstream caller's correlation id
	FieldParentCorrelationID = "parent_correlation_id"

	// FieldUserID is the authenticated actor
	FieldUserID = "user_id"

	// FieldClientIP is the remote client address
	FieldClientIP = "client_ip"

	// FieldRequestPath is the inbound request path
	FieldRequestPath = "request_path"

	// FieldServerName is the host that served the request
	FieldServerName = "server_name"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldLayer is the architectural layer emitting the log
	FieldLayer = "layer"

	// FieldLogType is the log entry variant
	FieldLogType = "log_type"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
