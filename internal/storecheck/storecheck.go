// Package storecheck exercises the configured bucket and tables end to end
// with throwaway data and removes it afterwards.
package storecheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sh3r4rd/mycloud/internal/model"
	"github.com/sh3r4rd/mycloud/internal/store"
	"github.com/sh3r4rd/mycloud/internal/store/dynamo"
)

const (
	testUserID   = "storecheck-user"
	testFileID   = "storecheck-file"
	testFilename = "storecheck-document.txt"
	testKey      = "storecheck/test-file.txt"
	presignTTL   = time.Hour
)

// Bucket is an object store that can also verify access and sign links.
type Bucket interface {
	store.ObjectStore
	CheckBucket(ctx context.Context) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Table reports table status and size.
type Table interface {
	Describe(ctx context.Context) (dynamo.TableInfo, error)
}

// Checker runs the store checks. Now defaults to time.Now.
type Checker struct {
	Bucket    Bucket
	Files     store.FileRepository
	FileTable Table
	Logs      store.ActivityLog
	LogTable  Table
	Logger    *slog.Logger
	Now       func() time.Time
}

// Run checks the bucket and then the tables, stopping at the first failure.
// Whatever a check wrote is removed even when it fails.
func (c *Checker) Run(ctx context.Context) error {
	if c.Now == nil {
		c.Now = time.Now
	}
	if err := c.checkBucket(ctx); err != nil {
		return fmt.Errorf("bucket: %w", err)
	}
	if err := c.checkTables(ctx); err != nil {
		return fmt.Errorf("tables: %w", err)
	}
	return nil
}

func (c *Checker) checkBucket(ctx context.Context) (err error) {
	if err := c.Bucket.CheckBucket(ctx); err != nil {
		return err
	}
	c.Logger.InfoContext(ctx, "bucket reachable")

	content := fmt.Sprintf("Test file created at %s", model.FormatTimestamp(c.Now()))
	if err := c.Bucket.Put(ctx, testKey, strings.NewReader(content), int64(len(content)), "text/plain"); err != nil {
		return fmt.Errorf("put: %w", err)
	}
	defer func() {
		if delErr := c.Bucket.Delete(context.WithoutCancel(ctx), testKey); delErr != nil {
			err = errors.Join(err, fmt.Errorf("cleanup: %w", delErr))
			return
		}
		c.Logger.InfoContext(ctx, "test object deleted", "key", testKey)
	}()
	c.Logger.InfoContext(ctx, "test object uploaded", "key", testKey)

	objects, err := c.Bucket.List(ctx, "storecheck/")
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	c.Logger.InfoContext(ctx, "objects listed", "count", len(objects))

	link, err := c.Bucket.PresignedURL(ctx, testKey, presignTTL)
	if err != nil {
		return fmt.Errorf("presign: %w", err)
	}
	c.Logger.InfoContext(ctx, "presigned url generated", "ttl", presignTTL.String(), "url_prefix", truncate(link, 80))

	body, err := c.Bucket.Get(ctx, testKey)
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	defer body.Close()
	got, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if string(got) != content {
		return fmt.Errorf("content mismatch: got %q", got)
	}
	c.Logger.InfoContext(ctx, "test object read back", "bytes", len(got))
	return nil
}

func (c *Checker) checkTables(ctx context.Context) (err error) {
	for _, t := range []Table{c.FileTable, c.LogTable} {
		info, err := t.Describe(ctx)
		if err != nil {
			return fmt.Errorf("describe: %w", err)
		}
		c.Logger.InfoContext(ctx, "table reachable", "table", info.Name, "status", info.Status, "item_count", info.ItemCount)
	}

	now := model.FormatTimestamp(c.Now())
	rec := model.FileRecord{
		UserID:     testUserID,
		FileID:     testFileID,
		Filename:   testFilename,
		UploadTime: now,
		Size:       "1024",
		StorageKey: model.StorageKey(testUserID, testFileID, testFilename),
	}
	if err := c.Files.CreatePending(ctx, rec); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return fmt.Errorf("create record: %w", err)
	}
	defer func() {
		if delErr := c.Files.Delete(context.WithoutCancel(ctx), testUserID, testFileID); delErr != nil {
			err = errors.Join(err, fmt.Errorf("cleanup record: %w", delErr))
		}
	}()
	if err := c.Files.MarkUploaded(ctx, testUserID, testFileID); err != nil {
		return fmt.Errorf("mark record: %w", err)
	}

	// The log entry is keyed by the timestamp it was written with, which is
	// what cleanup must delete by.
	logTimestamp := model.FormatTimestamp(c.Now())
	if err := c.Logs.Append(ctx, model.ActivityLogEntry{
		UserID:    testUserID,
		Timestamp: logTimestamp,
		Action:    model.ActionTest,
		FileID:    testFileID,
		Filename:  testFilename,
	}); err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	defer func() {
		if delErr := c.Logs.Delete(context.WithoutCancel(ctx), testUserID, logTimestamp); delErr != nil {
			err = errors.Join(err, fmt.Errorf("cleanup log: %w", delErr))
		}
	}()
	c.Logger.InfoContext(ctx, "test data inserted", "user_id", testUserID, "file_id", testFileID)

	got, err := c.Files.Get(ctx, testUserID, testFileID)
	if err != nil {
		return fmt.Errorf("read record: %w", err)
	}
	entries, err := c.Logs.Recent(ctx, testUserID, 1)
	if err != nil {
		return fmt.Errorf("read logs: %w", err)
	}
	if len(entries) == 0 || entries[0].Timestamp != logTimestamp {
		return fmt.Errorf("log entry %s not found", logTimestamp)
	}
	c.Logger.InfoContext(ctx, "test data read back", "filename", got.Filename, "size", got.Size, "status", got.Status)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
