package storage

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestDetectStorageType(t *testing.T) {
	tests := []struct {
		endpoint string
		want     StorageType
	}{
		{"", StorageTypeS3},
		{"https://abc.r2.cloudflarestorage.com", StorageTypeR2},
		{"s3.eu-west-1.amazonaws.com", StorageTypeS3},
		{"localhost:9000", StorageTypeS3Compatible},
	}
	for _, tc := range tests {
		if got := detectStorageType(tc.endpoint); got != tc.want {
			t.Errorf("detectStorageType(%q) = %s, want %s", tc.endpoint, got, tc.want)
		}
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := map[string]string{
		"https://minio.local:9000/":      "minio.local:9000",
		"http://minio.local:9000/bucket": "minio.local:9000",
		"abc.r2.cloudflarestorage.com":   "abc.r2.cloudflarestorage.com",
		"":                               "",
	}
	for in, want := range tests {
		if got := normalizeEndpoint(in); got != want {
			t.Errorf("normalizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewStorage(t *testing.T) {
	s, err := NewStorage(&S3Config{Type: StorageTypeMemory})
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	if _, ok := s.(*MemoryStorage); !ok {
		t.Errorf("got %T, want *MemoryStorage", s)
	}

	if _, err := NewStorage(&S3Config{Endpoint: "localhost:9000"}); err == nil {
		t.Error("expected error for missing bucket")
	}

	s, err = NewStorage(&S3Config{Endpoint: "localhost:9000", Bucket: "logs", AccessKey: "k", SecretKey: "s"})
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	if _, ok := s.(*S3Storage); !ok {
		t.Errorf("got %T, want *S3Storage", s)
	}
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()

	if err := m.EnsureBucket(ctx); err != nil {
		t.Fatalf("EnsureBucket: %v", err)
	}
	for _, key := range []string{"logs/2024/03/02/b.jsonl", "logs/2024/03/01/a.jsonl", "other/c.jsonl"} {
		if err := m.Upload(ctx, key, strings.NewReader("{}\n"), 3, "application/x-ndjson"); err != nil {
			t.Fatalf("Upload: %v", err)
		}
	}

	objects, err := m.List(ctx, "logs/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objects) != 2 || objects[0].Key != "logs/2024/03/01/a.jsonl" || objects[0].Size != 3 {
		t.Errorf("List = %+v", objects)
	}

	rc, err := m.Download(ctx, "other/c.jsonl")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "{}\n" {
		t.Errorf("data = %q", data)
	}

	if err := m.Delete(ctx, "other/c.jsonl"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := m.Exists(ctx, "other/c.jsonl"); ok {
		t.Error("object should be gone")
	}
	if _, err := m.Download(ctx, "other/c.jsonl"); err == nil {
		t.Error("expected error downloading a deleted object")
	}
}
