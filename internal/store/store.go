// Package store declares the ports the file service uses to reach the object
// store and the two key-value tables.
package store

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sh3r4rd/mycloud/internal/model"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the blob storage backing uploaded files.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// URL returns the link handed to clients for downloading key.
	URL(ctx context.Context, key string) (string, error)
}

// FileRepository stores FileRecords keyed by (user_id, file_id).
type FileRepository interface {
	// CreatePending writes rec only if no record with the same key exists,
	// returning ErrAlreadyExists otherwise.
	CreatePending(ctx context.Context, rec model.FileRecord) error
	MarkUploaded(ctx context.Context, userID, fileID string) error
	Get(ctx context.Context, userID, fileID string) (model.FileRecord, error)
	ListByUser(ctx context.Context, userID string) ([]model.FileRecord, error)
	ListPending(ctx context.Context) ([]model.FileRecord, error)
	Delete(ctx context.Context, userID, fileID string) error
}

// ActivityLog stores append-only ActivityLogEntries keyed by (user_id, timestamp).
type ActivityLog interface {
	Append(ctx context.Context, entry model.ActivityLogEntry) error
	// Recent returns at most limit entries for userID, newest first.
	Recent(ctx context.Context, userID string, limit int) ([]model.ActivityLogEntry, error)
	Delete(ctx context.Context, userID, timestamp string) error
}
