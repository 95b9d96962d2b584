package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/timmy/crudgate/internal/domain"
	"github.com/timmy/crudgate/internal/logger"
	"github.com/timmy/crudgate/internal/storage"
)

// ArchiveStore is the part of the log record repository the archiver needs.
type ArchiveStore interface {
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.LogRecord, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// ArchiveConfig holds configuration for the archive service.
type ArchiveConfig struct {
	Prefix string // object key prefix inside the bucket
}

// ArchiveStats summarizes one archive run.
type ArchiveStats struct {
	Exported  int
	Deleted   int64
	ObjectKey string
	Bytes     int
	DryRun    bool
}

// ArchiveService exports old log records to object storage as JSON lines
// and removes them from the database.
type ArchiveService struct {
	store   ArchiveStore
	storage storage.ObjectStorage
	logs    *LogService
	logger  *logger.Logger
	prefix  string
	now     func() time.Time
}

// NewArchiveService creates a new archive service.
// Parameters:
//   - store: repository of persisted log records.
//   - objectStorage: destination bucket.
//   - logs: pipeline receiving the run's Audit or Exception entry.
//   - log: logger instance.
//   - cfg: archive configuration.
//
// Returns:
//   - *ArchiveService: initialized archive service.
func NewArchiveService(
	store ArchiveStore,
	objectStorage storage.ObjectStorage,
	logs *LogService,
	log *logger.Logger,
	cfg *ArchiveConfig,
) *ArchiveService {
	if log == nil {
		log = logger.GetDefault()
	}
	s := &ArchiveService{
		store:   store,
		storage: objectStorage,
		logs:    logs,
		logger:  log.WithField(logger.FieldComponent, "archive"),
		now:     time.Now,
	}
	if cfg != nil {
		s.prefix = cfg.Prefix
	}
	return s
}

// Run exports up to limit records older than cutoff. With dryRun set nothing
// is uploaded or deleted.
// Parameters:
//   - ctx: context carrying the run's correlation context.
//   - cutoff: records strictly older than this are archived.
//   - limit: maximum number of records; non-positive means all.
//   - dryRun: only count and encode.
//
// Returns:
//   - *ArchiveStats: what was (or would have been) archived.
//   - error: non-nil if listing, upload or purge fails.
func (s *ArchiveService) Run(ctx context.Context, cutoff time.Time, limit int, dryRun bool) (*ArchiveStats, error) {
	records, err := s.store.ListBefore(ctx, cutoff, limit)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	stats := &ArchiveStats{Exported: len(records), DryRun: dryRun}
	if len(records) == 0 {
		s.logger.WithField("cutoff", cutoff.Format(time.RFC3339)).Info("No log records to archive")
		return stats, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	ids := make([]string, 0, len(records))
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return nil, s.fail(ctx, fmt.Errorf("failed to encode record %s: %w", records[i].ID, err))
		}
		ids = append(ids, records[i].ID)
	}
	stats.Bytes = buf.Len()
	stats.ObjectKey = s.objectKey()

	if dryRun {
		s.logger.WithFields(logger.Fields{
			logger.FieldCount: stats.Exported,
			logger.FieldSize:  stats.Bytes,
			"key":             stats.ObjectKey,
		}).Info("Dry run, nothing uploaded")
		return stats, nil
	}

	if err := s.storage.Upload(ctx, stats.ObjectKey, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "application/x-ndjson"); err != nil {
		return nil, s.fail(ctx, err)
	}

	stats.Deleted, err = s.store.DeleteByIDs(ctx, ids)
	if err != nil {
		return stats, s.fail(ctx, fmt.Errorf("uploaded %s but purge failed: %w", stats.ObjectKey, err))
	}

	if s.logs != nil {
		s.logs.Audit(ctx, "archive", "log_records", stats.ObjectKey, "success", map[string]any{
			"exported": stats.Exported,
			"deleted":  stats.Deleted,
			"bytes":    stats.Bytes,
			"cutoff":   cutoff.UTC().Format(time.RFC3339),
		})
	}
	return stats, nil
}

// objectKey returns <prefix>/yyyy/mm/dd/<ulid>.jsonl for the current day.
func (s *ArchiveService) objectKey() string {
	now := s.now().UTC()
	return path.Join(s.prefix, now.Format("2006/01/02"), ulid.Make().String()+".jsonl")
}

func (s *ArchiveService) fail(ctx context.Context, err error) error {
	if s.logs != nil {
		s.logs.Exception(ctx, "archive", err, "")
	}
	return fmt.Errorf("archive failed: %w", err)
}
