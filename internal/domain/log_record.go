package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrLogRecordNotFound is returned when no record matches a lookup.
var ErrLogRecordNotFound = errors.New("log record not found")

// LogRecord is the persisted form of a masked log entry.
// Variant-specific fields are stored as JSON in Payload.
type LogRecord struct {
	ID                  string    `gorm:"type:text;primaryKey" json:"id"`
	CorrelationID       string    `gorm:"type:text;not null;index:idx_log_records_correlation" json:"correlation_id"`
	ParentCorrelationID string    `gorm:"type:text" json:"parent_correlation_id,omitempty"`
	Type                LogType   `gorm:"type:text;not null;index:idx_log_records_type" json:"type"`
	Layer               string    `gorm:"type:text" json:"layer"`
	UserID              string    `gorm:"type:text" json:"user_id,omitempty"`
	ClientIP            string    `gorm:"type:text" json:"client_ip,omitempty"`
	RequestPath         string    `gorm:"type:text" json:"request_path,omitempty"`
	ServerName          string    `gorm:"type:text" json:"server_name,omitempty"`
	Payload             string    `gorm:"type:text" json:"payload"`
	Timestamp           time.Time `gorm:"not null;index:idx_log_records_timestamp" json:"timestamp"`
	CreatedAt           time.Time `json:"created_at"`
}

// TableName returns the database table name for LogRecord.
func (LogRecord) TableName() string {
	return "log_records"
}

// NewLogRecord flattens entry into a LogRecord with a fresh sortable ID.
// Parameters:
//   - entry: an already masked log entry.
//
// Returns:
//   - *LogRecord: record ready to persist.
//   - error: non-nil if the payload cannot be encoded.
func NewLogRecord(entry LogEntry) (*LogRecord, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", entry.Type(), err)
	}

	h := entry.Header()
	return &LogRecord{
		ID:                  ulid.Make().String(),
		CorrelationID:       h.CorrelationID,
		ParentCorrelationID: h.ParentCorrelationID,
		Type:                entry.Type(),
		Layer:               h.Layer,
		UserID:              h.UserID,
		ClientIP:            h.ClientIP,
		RequestPath:         h.RequestPath,
		ServerName:          h.ServerName,
		Payload:             string(payload),
		Timestamp:           h.Timestamp,
	}, nil
}

// LogFilter narrows a log record listing.
type LogFilter struct {
	CorrelationID string
	Type          LogType
	Before        *time.Time
	Limit         int
	Offset        int
}
