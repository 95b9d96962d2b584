package storage

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes a stored archive object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStorage defines the interface for object storage operations
type ObjectStorage interface {
	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download downloads an object from storage
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns the objects whose key starts with prefix
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Delete deletes an object from storage
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// EnsureBucket creates the bucket when the backend allows it
	EnsureBucket(ctx context.Context) error
}
