package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/timmy/crudgate/internal/domain"
	"github.com/timmy/crudgate/internal/storage"
)

type stubArchiveStore struct {
	records []domain.LogRecord
	deleted []string
	listErr error
	delErr  error
}

func (s *stubArchiveStore) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.LogRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.LogRecord
	for _, r := range s.records {
		if r.Timestamp.Before(cutoff) {
			out = append(out, r)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubArchiveStore) DeleteByIDs(_ context.Context, ids []string) (int64, error) {
	if s.delErr != nil {
		return 0, s.delErr
	}
	s.deleted = append(s.deleted, ids...)
	return int64(len(ids)), nil
}

var archiveCutoff = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func newArchiveFixture() (*stubArchiveStore, *storage.MemoryStorage, *recordingSink, *ArchiveService) {
	store := &stubArchiveStore{records: []domain.LogRecord{
		{ID: "a", CorrelationID: "c1", Type: domain.LogTypeRequest, Payload: `{}`, Timestamp: archiveCutoff.Add(-48 * time.Hour)},
		{ID: "b", CorrelationID: "c1", Type: domain.LogTypeResponse, Payload: `{}`, Timestamp: archiveCutoff.Add(-47 * time.Hour)},
		{ID: "c", CorrelationID: "c2", Type: domain.LogTypeRequest, Payload: `{}`, Timestamp: archiveCutoff.Add(time.Hour)},
	}}
	objects := storage.NewMemoryStorage()
	sk := &recordingSink{name: "rec"}
	svc := NewArchiveService(store, objects, newTestLogService(sk, nil), nil, &ArchiveConfig{Prefix: "logs"})
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC) }
	return store, objects, sk, svc
}

func TestArchiveService_Run(t *testing.T) {
	store, objects, sk, svc := newArchiveFixture()
	ctx := context.Background()

	stats, err := svc.Run(ctx, archiveCutoff, 0, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Exported != 2 || stats.Deleted != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if !regexp.MustCompile(`^logs/2024/03/15/[0-9A-Z]{26}\.jsonl$`).MatchString(stats.ObjectKey) {
		t.Errorf("ObjectKey = %q", stats.ObjectKey)
	}
	if len(store.deleted) != 2 || store.deleted[0] != "a" || store.deleted[1] != "b" {
		t.Errorf("deleted = %v", store.deleted)
	}

	rc, err := objects.Download(ctx, stats.ObjectKey)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer rc.Close()
	var lines int
	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		var rec domain.LogRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line %d is not a record: %v", lines, err)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}

	audit, ok := sk.last(t).(*domain.AuditEntry)
	if !ok {
		t.Fatalf("last entry = %T, want audit", sk.last(t))
	}
	if audit.Action != "archive" || audit.EntityID != stats.ObjectKey {
		t.Errorf("audit = %+v", audit)
	}
}

func TestArchiveService_DryRun(t *testing.T) {
	store, objects, _, svc := newArchiveFixture()

	stats, err := svc.Run(context.Background(), archiveCutoff, 1, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !stats.DryRun || stats.Exported != 1 || stats.Bytes == 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(store.deleted) != 0 {
		t.Error("dry run must not delete")
	}
	if list, _ := objects.List(context.Background(), ""); len(list) != 0 {
		t.Error("dry run must not upload")
	}
}

func TestArchiveService_NothingToDo(t *testing.T) {
	_, _, _, svc := newArchiveFixture()

	stats, err := svc.Run(context.Background(), archiveCutoff.Add(-72*time.Hour), 0, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Exported != 0 || stats.ObjectKey != "" {
		t.Errorf("stats = %+v", stats)
	}
}

func TestArchiveService_Failures(t *testing.T) {
	store, _, sk, svc := newArchiveFixture()
	store.delErr = errors.New("locked")

	if _, err := svc.Run(context.Background(), archiveCutoff, 0, false); err == nil {
		t.Fatal("expected purge error")
	}
	if _, ok := sk.last(t).(*domain.ExceptionEntry); !ok {
		t.Errorf("last entry = %T, want exception", sk.last(t))
	}

	store.delErr = nil
	store.listErr = errors.New("db down")
	if _, err := svc.Run(context.Background(), archiveCutoff, 0, false); err == nil {
		t.Fatal("expected list error")
	}
}
