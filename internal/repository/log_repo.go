package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/crudgate/internal/domain"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	// deleteBatchSize keeps IN (...) lists under driver parameter limits
	deleteBatchSize = 500
)

// LogRepository handles persisted log records.
type LogRepository struct {
	db *gorm.DB
}

// NewLogRepository creates a new LogRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *LogRepository: repository instance bound to db.
func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

// Create inserts a log record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - record: already masked record to persist.
//
// Returns:
//   - error: non-nil if the insert fails.
func (r *LogRepository) Create(ctx context.Context, record *domain.LogRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// List returns records matching filter, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - filter: optional correlation id, type and cutoff; limit is clamped to 1..200.
//
// Returns:
//   - []domain.LogRecord: page of records.
//   - int64: total number of matching records.
//   - error: non-nil if the query fails.
func (r *LogRepository) List(ctx context.Context, filter domain.LogFilter) ([]domain.LogRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.LogRecord{})
	if filter.CorrelationID != "" {
		query = query.Where("correlation_id = ?", filter.CorrelationID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Before != nil {
		query = query.Where("timestamp < ?", *filter.Before)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count log records: %w", err)
	}

	var records []domain.LogRecord
	err := query.
		Order("timestamp DESC").
		Order("id DESC").
		Limit(clampLimit(filter.Limit)).
		Offset(max(filter.Offset, 0)).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list log records: %w", err)
	}
	return records, total, nil
}

// ListByCorrelation returns every record of one request in chronological order,
// including records whose parent is that request.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - correlationID: id of the request.
//
// Returns:
//   - []domain.LogRecord: the request's trace.
//   - error: domain.ErrLogRecordNotFound when nothing matches.
func (r *LogRepository) ListByCorrelation(ctx context.Context, correlationID string) ([]domain.LogRecord, error) {
	var records []domain.LogRecord
	err := r.db.WithContext(ctx).
		Where("correlation_id = ? OR parent_correlation_id = ?", correlationID, correlationID).
		Order("timestamp ASC").
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list log records: %w", err)
	}
	if len(records) == 0 {
		return nil, domain.ErrLogRecordNotFound
	}
	return records, nil
}

// ListBefore returns up to limit records older than cutoff, oldest first.
// A non-positive limit returns every matching record.
func (r *LogRepository) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.LogRecord, error) {
	query := r.db.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Order("timestamp ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []domain.LogRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list log records before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return records, nil
}

// DeleteByIDs removes records by primary key.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ids: record ids to delete.
//
// Returns:
//   - int64: number of rows removed.
//   - error: non-nil if a delete batch fails.
func (r *LogRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	var deleted int64
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(ids))
		result := r.db.WithContext(ctx).Where("id IN ?", ids[start:end]).Delete(&domain.LogRecord{})
		if result.Error != nil {
			return deleted, fmt.Errorf("failed to delete log records: %w", result.Error)
		}
		deleted += result.RowsAffected
	}
	return deleted, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
