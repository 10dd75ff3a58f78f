package memstore_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sh3r4rd/mycloud/internal/model"
	"github.com/sh3r4rd/mycloud/internal/store"
	"github.com/sh3r4rd/mycloud/internal/store/memstore"
)

func TestFileTablePendingProtocol(t *testing.T) {
	ctx := context.Background()
	files := memstore.NewFileTable()
	rec := model.FileRecord{UserID: "u1", FileID: "f1", Filename: "a.txt"}

	if err := files.CreatePending(ctx, rec); err != nil {
		t.Fatalf("CreatePending: %v", err)
	}
	if err := files.CreatePending(ctx, rec); !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("second CreatePending = %v, want ErrAlreadyExists", err)
	}

	pending, _ := files.ListPending(ctx)
	if len(pending) != 1 {
		t.Fatalf("pending = %+v", pending)
	}

	if err := files.MarkUploaded(ctx, "u1", "f1"); err != nil {
		t.Fatalf("MarkUploaded: %v", err)
	}
	got, err := files.Get(ctx, "u1", "f1")
	if err != nil || got.Status != model.StatusUploaded {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if err := files.MarkUploaded(ctx, "u2", "f1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("MarkUploaded in another partition = %v", err)
	}
}

func TestLogTableRecentIsNewestFirstAndBounded(t *testing.T) {
	ctx := context.Background()
	logs := memstore.NewLogTable()
	for i := 0; i < 60; i++ {
		ts := fmt.Sprintf("2026-01-01T00:00:%02d.000000Z", i)
		if err := logs.Append(ctx, model.ActivityLogEntry{UserID: "u1", Timestamp: ts, Action: model.ActionDownload}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	entries, err := logs.Recent(ctx, "u1", model.MaxLogEntries)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 50 {
		t.Fatalf("len = %d, want 50", len(entries))
	}
	if entries[0].Timestamp != "2026-01-01T00:00:59.000000Z" {
		t.Errorf("newest = %q", entries[0].Timestamp)
	}
}

func TestObjectStoreFailOn(t *testing.T) {
	ctx := context.Background()
	objects := memstore.NewObjectStore("http://local", nil)
	objects.FailOn("put", errors.New("quota exceeded"))

	if err := objects.Put(ctx, "k", strings.NewReader("x"), 1, ""); err == nil {
		t.Fatalf("expected injected failure")
	}
	objects.FailOn("put", nil)
	if err := objects.Put(ctx, "k", strings.NewReader("x"), 1, ""); err != nil {
		t.Fatalf("Put after clearing: %v", err)
	}
	if objects.Puts() != 1 || objects.Len() != 1 {
		t.Errorf("puts=%d len=%d", objects.Puts(), objects.Len())
	}

	url, _ := objects.URL(ctx, "u1/f1_a b.txt")
	if url != "http://local/u1/f1_a%20b.txt" {
		t.Errorf("URL = %q", url)
	}
}
