package files_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sh3r4rd/mycloud/internal/apperr"
	"github.com/sh3r4rd/mycloud/internal/files"
	"github.com/sh3r4rd/mycloud/internal/model"
	"github.com/sh3r4rd/mycloud/internal/store/memstore"
)

// tickingClock advances by one millisecond per call so every write gets a
// distinct timestamp.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type fixture struct {
	svc     *files.Service
	objects *memstore.ObjectStore
	files   *memstore.FileTable
	logs    *memstore.LogTable
}

func newFixture(t *testing.T, maxBytes int64) fixture {
	t.Helper()
	clock := &tickingClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	f := fixture{
		objects: memstore.NewObjectStore("https://bucket.example", clock.Now),
		files:   memstore.NewFileTable(),
		logs:    memstore.NewLogTable(),
	}
	f.svc = files.NewService(files.Dependencies{
		Objects:        f.objects,
		Files:          f.files,
		Logs:           f.logs,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		MaxUploadBytes: maxBytes,
		Now:            clock.Now,
	})
	return f
}

func upload(user, name, body string) model.UploadRequest {
	return model.UploadRequest{
		UserID:      user,
		Filename:    name,
		ContentType: "text/plain",
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
	}
}

func TestUploadWritesObjectRecordAndLog(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	rec, err := f.svc.Upload(ctx, upload("u1", "notes.txt", "hello"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if rec.FileID == "" || rec.Status != model.StatusUploaded || rec.Size != "5" {
		t.Fatalf("record = %+v", rec)
	}
	if want := "u1/" + rec.FileID + "_notes.txt"; rec.StorageKey != want {
		t.Errorf("StorageKey = %q, want %q", rec.StorageKey, want)
	}

	body, err := f.objects.Get(ctx, rec.StorageKey)
	if err != nil {
		t.Fatalf("object missing: %v", err)
	}
	data, _ := io.ReadAll(body)
	if string(data) != "hello" {
		t.Errorf("object body = %q", data)
	}

	logs, _ := f.svc.Logs(ctx, "u1")
	if len(logs) != 1 || logs[0].Action != model.ActionUpload || logs[0].FileID != rec.FileID {
		t.Fatalf("logs = %+v", logs)
	}
	if logs[0].Timestamp != rec.UploadTime {
		t.Errorf("log timestamp %q != upload_time %q", logs[0].Timestamp, rec.UploadTime)
	}
}

func TestUploadSameNameTwiceGivesDistinctFiles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	a, err := f.svc.Upload(ctx, upload("u1", "same.txt", "one"))
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := f.svc.Upload(ctx, upload("u1", "same.txt", "two"))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if a.FileID == b.FileID || a.StorageKey == b.StorageKey {
		t.Fatalf("uploads collided: %+v %+v", a, b)
	}
	list, _ := f.svc.List(ctx, "u1")
	if len(list) != 2 {
		t.Errorf("list len = %d, want 2", len(list))
	}
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name string
		req  model.UploadRequest
		max  int64
		kind apperr.Kind
		msg  string
	}{
		{name: "no user", req: upload("", "a.txt", "x"), kind: apperr.KindUnauthorized},
		{name: "empty filename", req: upload("u1", "", "x"), kind: apperr.KindInvalid, msg: "No file selected"},
		{name: "no body", req: model.UploadRequest{UserID: "u1", Filename: "a.txt"}, kind: apperr.KindInvalid, msg: "No file uploaded"},
		{name: "too large", req: upload("u1", "a.txt", "0123456789"), max: 4, kind: apperr.KindInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.max)
			_, err := f.svc.Upload(context.Background(), tt.req)
			if apperr.KindOf(err) != tt.kind {
				t.Fatalf("KindOf(%v) = %q, want %q", err, apperr.KindOf(err), tt.kind)
			}
			if tt.msg != "" && apperr.MessageOf(err) != tt.msg {
				t.Errorf("message = %q, want %q", apperr.MessageOf(err), tt.msg)
			}
			if f.objects.Len() != 0 || f.files.Len() != 0 || f.logs.Len() != 0 {
				t.Errorf("writes happened: objects=%d files=%d logs=%d", f.objects.Len(), f.files.Len(), f.logs.Len())
			}
		})
	}
}

func TestUploadObjectFailureRemovesPendingRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.objects.FailOn("put", apperr.New(apperr.KindStoreUnavailable, "s3.PutObject", ""))

	_, err := f.svc.Upload(ctx, upload("u1", "a.txt", "x"))
	if !apperr.Is(err, apperr.KindStoreUnavailable) {
		t.Fatalf("KindOf = %q", apperr.KindOf(err))
	}
	if f.files.Len() != 0 || f.logs.Len() != 0 {
		t.Errorf("files=%d logs=%d, want none", f.files.Len(), f.logs.Len())
	}
}

func TestUploadCompensationFailureLeavesPendingRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.objects.FailOn("put", errors.New("boom"))
	f.files.FailOn("delete", errors.New("boom"))

	if _, err := f.svc.Upload(ctx, upload("u1", "a.txt", "x")); err == nil {
		t.Fatal("expected error")
	}
	pending, _ := f.files.ListPending(ctx)
	if len(pending) != 1 {
		t.Fatalf("pending = %+v, want one record for the reconciler", pending)
	}
	if _, err := f.svc.DownloadLink(ctx, "u1", pending[0].FileID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("pending record downloadable: %v", err)
	}
}

func TestUploadMetadataFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.files.FailOn("create", apperr.New(apperr.KindThrottled, "dynamodb.PutItem", ""))

	_, err := f.svc.Upload(ctx, upload("u1", "a.txt", "x"))
	if !apperr.Is(err, apperr.KindThrottled) {
		t.Fatalf("KindOf = %q", apperr.KindOf(err))
	}
	if f.objects.Len() != 0 || f.logs.Len() != 0 {
		t.Errorf("objects=%d logs=%d", f.objects.Len(), f.logs.Len())
	}
}

func TestUploadIdempotencyKeyReplays(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	req := upload("u1", "a.txt", "x")
	req.IdempotencyKey = "k-1"
	first, err := f.svc.Upload(ctx, req)
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	req = upload("u1", "a.txt", "x")
	req.IdempotencyKey = "k-1"
	second, err := f.svc.Upload(ctx, req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if first.FileID != second.FileID {
		t.Errorf("file ids differ: %q %q", first.FileID, second.FileID)
	}
	if f.objects.Puts() != 1 || f.logs.Len() != 1 {
		t.Errorf("puts=%d logs=%d, want 1/1", f.objects.Puts(), f.logs.Len())
	}

	other := upload("u2", "a.txt", "x")
	other.IdempotencyKey = "k-1"
	third, err := f.svc.Upload(ctx, other)
	if err != nil {
		t.Fatalf("other user: %v", err)
	}
	if third.FileID == first.FileID {
		t.Error("idempotency keys leak across users")
	}
}

func TestUploadIdempotencyKeyResumesPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	req := upload("u1", "a.txt", "x")
	req.IdempotencyKey = "k-2"
	f.files.FailOn("mark", errors.New("timeout"))
	if _, err := f.svc.Upload(ctx, req); err == nil {
		t.Fatal("expected finalize failure")
	}
	f.files.FailOn("mark", nil)

	req = upload("u1", "a.txt", "x")
	req.IdempotencyKey = "k-2"
	rec, err := f.svc.Upload(ctx, req)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if rec.Status != model.StatusUploaded {
		t.Errorf("status = %q", rec.Status)
	}
	if f.objects.Len() != 1 || f.files.Len() != 1 || f.logs.Len() != 1 {
		t.Errorf("objects=%d files=%d logs=%d", f.objects.Len(), f.files.Len(), f.logs.Len())
	}
}

func TestUploadIdempotencyKeyRejectsDifferentFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	done := upload("u1", "a.txt", "x")
	done.IdempotencyKey = "k-done"
	if _, err := f.svc.Upload(ctx, done); err != nil {
		t.Fatalf("first: %v", err)
	}

	pending := upload("u1", "b.txt", "y")
	pending.IdempotencyKey = "k-pending"
	f.files.FailOn("mark", errors.New("timeout"))
	if _, err := f.svc.Upload(ctx, pending); err == nil {
		t.Fatal("expected finalize failure")
	}
	f.files.FailOn("mark", nil)

	tests := []struct {
		name string
		key  string
	}{
		{name: "completed upload", key: "k-done"},
		{name: "pending upload", key: "k-pending"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := upload("u1", "other.txt", "zzz")
			req.IdempotencyKey = tt.key
			_, err := f.svc.Upload(ctx, req)
			if !apperr.Is(err, apperr.KindInvalid) {
				t.Fatalf("KindOf(%v) = %q, want invalid", err, apperr.KindOf(err))
			}
		})
	}

	if f.objects.Puts() != 2 {
		t.Errorf("puts = %d, want only the original two", f.objects.Puts())
	}
	records, _ := f.files.ListByUser(ctx, "u1")
	for _, rec := range records {
		if rec.Filename == "other.txt" {
			t.Errorf("record renamed: %+v", rec)
		}
	}
	if left, _ := f.files.ListPending(ctx); len(left) != 1 || left[0].Filename != "b.txt" {
		t.Errorf("pending = %+v, want b.txt untouched", left)
	}
}

func TestListIsScopedToUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	for i := 0; i < 3; i++ {
		if _, err := f.svc.Upload(ctx, upload("alice", fmt.Sprintf("a%d.txt", i), "x")); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.svc.Upload(ctx, upload("bob", "b.txt", "x")); err != nil {
		t.Fatal(err)
	}

	alice, _ := f.svc.List(ctx, "alice")
	bob, _ := f.svc.List(ctx, "bob")
	carol, err := f.svc.List(ctx, "carol")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(alice) != 3 || len(bob) != 1 {
		t.Fatalf("alice=%d bob=%d", len(alice), len(bob))
	}
	if carol == nil || len(carol) != 0 {
		t.Errorf("carol = %#v, want empty non-nil", carol)
	}
	for _, rec := range alice {
		if rec.UserID != "alice" {
			t.Errorf("foreign record in alice's list: %+v", rec)
		}
	}
}

func TestDownloadLink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	rec, err := f.svc.Upload(ctx, upload("u1", "my notes.txt", "x"))
	if err != nil {
		t.Fatal(err)
	}

	const n = 3
	for i := 0; i < n; i++ {
		link, err := f.svc.DownloadLink(ctx, "u1", rec.FileID)
		if err != nil {
			t.Fatalf("DownloadLink: %v", err)
		}
		if link.Filename != "my notes.txt" {
			t.Errorf("filename = %q", link.Filename)
		}
		if want := "https://bucket.example/u1/" + rec.FileID + "_my%20notes.txt"; link.URL != want {
			t.Errorf("url = %q, want %q", link.URL, want)
		}
	}

	logs, _ := f.svc.Logs(ctx, "u1")
	if len(logs) != n+1 {
		t.Fatalf("logs = %d, want %d", len(logs), n+1)
	}
	for i := 0; i < n; i++ {
		if logs[i].Action != model.ActionDownload {
			t.Errorf("logs[%d].Action = %q", i, logs[i].Action)
		}
	}
	if logs[n].Action != model.ActionUpload {
		t.Errorf("oldest action = %q, want upload", logs[n].Action)
	}
}

func TestDownloadLinkErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	rec, err := f.svc.Upload(ctx, upload("alice", "a.txt", "x"))
	if err != nil {
		t.Fatal(err)
	}
	f.files.Put(model.FileRecord{UserID: "alice", FileID: "pending-1", Filename: "p.txt", Status: model.StatusPending})
	before := f.logs.Len()

	tests := []struct {
		name   string
		user   string
		fileID string
		kind   apperr.Kind
		msg    string
	}{
		{name: "unknown id", user: "alice", fileID: "nope", kind: apperr.KindNotFound, msg: "File not found"},
		{name: "other user's file", user: "bob", fileID: rec.FileID, kind: apperr.KindNotFound, msg: "File not found"},
		{name: "pending", user: "alice", fileID: "pending-1", kind: apperr.KindNotFound, msg: "File is not available yet"},
		{name: "no session", user: "", fileID: rec.FileID, kind: apperr.KindUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.DownloadLink(ctx, tt.user, tt.fileID)
			if apperr.KindOf(err) != tt.kind {
				t.Fatalf("KindOf = %q, want %q", apperr.KindOf(err), tt.kind)
			}
			if tt.msg != "" && apperr.MessageOf(err) != tt.msg {
				t.Errorf("message = %q", apperr.MessageOf(err))
			}
		})
	}
	if f.logs.Len() != before {
		t.Errorf("failed downloads were logged: %d -> %d", before, f.logs.Len())
	}
}

func TestLogsCappedAtFifty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	rec, err := f.svc.Upload(ctx, upload("u1", "a.txt", "x"))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 60; i++ {
		if _, err := f.svc.DownloadLink(ctx, "u1", rec.FileID); err != nil {
			t.Fatal(err)
		}
	}

	logs, err := f.svc.Logs(ctx, "u1")
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(logs) != model.MaxLogEntries {
		t.Fatalf("len = %d, want %d", len(logs), model.MaxLogEntries)
	}
	for i := 1; i < len(logs); i++ {
		if logs[i-1].Timestamp <= logs[i].Timestamp {
			t.Fatalf("not newest first at %d: %q then %q", i, logs[i-1].Timestamp, logs[i].Timestamp)
		}
	}

	empty, _ := f.svc.Logs(ctx, "nobody")
	if empty == nil || len(empty) != 0 {
		t.Errorf("empty logs = %#v", empty)
	}
}
