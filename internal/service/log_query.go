package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/timmy/crudgate/internal/domain"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// LogStore is the read side of the log record repository.
type LogStore interface {
	List(ctx context.Context, filter domain.LogFilter) ([]domain.LogRecord, int64, error)
	ListByCorrelation(ctx context.Context, correlationID string) ([]domain.LogRecord, error)
}

// LogPage is one page of a log listing.
type LogPage struct {
	Records []domain.LogRecord `json:"records"`
	Total   int64              `json:"total"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
}

// LogQueryService answers read queries over persisted log records.
type LogQueryService struct {
	store LogStore
}

// NewLogQueryService creates a new query service over store.
func NewLogQueryService(store LogStore) *LogQueryService {
	return &LogQueryService{store: store}
}

// List validates filter and returns a page of records, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - filter: zero Limit selects DefaultPageSize.
//
// Returns:
//   - *LogPage: the page with the total match count.
//   - error: *ValidationError for bad input, otherwise a store error.
func (s *LogQueryService) List(ctx context.Context, filter domain.LogFilter) (*LogPage, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, &ValidationError{Field: "type", Message: fmt.Sprintf("unknown log type %q", filter.Type)}
	}
	if filter.Limit == 0 {
		filter.Limit = DefaultPageSize
	}
	if filter.Limit < 1 || filter.Limit > MaxPageSize {
		return nil, &ValidationError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", MaxPageSize)}
	}
	if filter.Offset < 0 {
		return nil, &ValidationError{Field: "offset", Message: "must not be negative"}
	}
	filter.CorrelationID = strings.TrimSpace(filter.CorrelationID)

	records, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	if records == nil {
		records = []domain.LogRecord{}
	}
	return &LogPage{Records: records, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// Trace returns every record of one request, oldest first.
// It returns domain.ErrLogRecordNotFound when the id has no records.
func (s *LogQueryService) Trace(ctx context.Context, correlationID string) ([]domain.LogRecord, error) {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return nil, &ValidationError{Field: "correlation_id", Message: "must not be empty"}
	}
	return s.store.ListByCorrelation(ctx, correlationID)
}
