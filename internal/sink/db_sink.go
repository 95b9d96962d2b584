package sink

import (
	"context"

	"github.com/timmy/crudgate/internal/domain"
)

// RecordWriter persists a log record.
type RecordWriter interface {
	Create(ctx context.Context, record *domain.LogRecord) error
}

// DBSink stores entries as log records.
type DBSink struct {
	repo RecordWriter
}

// NewDBSink creates a sink backed by repo.
func NewDBSink(repo RecordWriter) *DBSink {
	return &DBSink{repo: repo}
}

func (s *DBSink) Name() string { return "database" }

func (s *DBSink) Write(ctx context.Context, entry domain.LogEntry) error {
	record, err := domain.NewLogRecord(entry)
	if err != nil {
		return err
	}
	// the request may already be cancelled when its final entries are written
	return s.repo.Create(context.WithoutCancel(ctx), record)
}
