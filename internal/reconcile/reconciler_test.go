package reconcile_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sh3r4rd/mycloud/internal/model"
	"github.com/sh3r4rd/mycloud/internal/reconcile"
	"github.com/sh3r4rd/mycloud/internal/store/memstore"
)

var (
	epoch = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	later = epoch.Add(time.Hour)
)

// File IDs must be UUIDs for object keys to be recognised as uploads.
const (
	idLanded  = "0a6f6f0e-3c55-4c58-9d0e-5b2a1c9e7a01"
	idLost    = "0a6f6f0e-3c55-4c58-9d0e-5b2a1c9e7a02"
	idDone    = "0a6f6f0e-3c55-4c58-9d0e-5b2a1c9e7a03"
	idLegacy  = "0a6f6f0e-3c55-4c58-9d0e-5b2a1c9e7a04"
	idOrphan  = "0a6f6f0e-3c55-4c58-9d0e-5b2a1c9e7a05"
	idUnknown = "0a6f6f0e-3c55-4c58-9d0e-5b2a1c9e7a06"
)

type fixture struct {
	rec     *reconcile.Reconciler
	objects *memstore.ObjectStore
	files   *memstore.FileTable
	logs    *memstore.LogTable
}

// newFixture builds a reconciler whose clock reads now, over stores whose
// objects are stamped at epoch.
func newFixture(t *testing.T, now time.Time) fixture {
	t.Helper()
	f := fixture{
		objects: memstore.NewObjectStore("http://local", func() time.Time { return epoch }),
		files:   memstore.NewFileTable(),
		logs:    memstore.NewLogTable(),
	}
	f.rec = reconcile.New(reconcile.Dependencies{
		Objects: f.objects,
		Files:   f.files,
		Logs:    f.logs,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Grace:   15 * time.Minute,
		Now:     func() time.Time { return now },
	})
	return f
}

func (f fixture) seed(t *testing.T, userID, fileID, name, status string, withObject bool) model.FileRecord {
	t.Helper()
	rec := model.FileRecord{
		UserID:     userID,
		FileID:     fileID,
		Filename:   name,
		UploadTime: model.FormatTimestamp(epoch),
		Size:       "1",
		StorageKey: model.StorageKey(userID, fileID, name),
		Status:     status,
	}
	f.files.Put(rec)
	if withObject {
		if err := f.objects.Put(context.Background(), rec.StorageKey, strings.NewReader("x"), 1, ""); err != nil {
			t.Fatal(err)
		}
	}
	return rec
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, later)

	landed := f.seed(t, "u1", idLanded, "a.txt", model.StatusPending, true)
	lost := f.seed(t, "u1", idLost, "b.txt", model.StatusPending, false)
	done := f.seed(t, "u1", idDone, "c.txt", model.StatusUploaded, true)
	legacy := f.seed(t, "u2", idLegacy, "d.txt", "", true)
	orphanKey := model.StorageKey("u3", idOrphan, "e.txt")
	// Objects other writers put in the bucket.
	foreign := []string{"not-a-storage-key", "backups/2024_01.tar", "a/b_c", "storecheck/test-file.txt"}
	for _, key := range append([]string{orphanKey}, foreign...) {
		if err := f.objects.Put(ctx, key, strings.NewReader("x"), 1, ""); err != nil {
			t.Fatal(err)
		}
	}

	report, err := f.rec.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	want := reconcile.Report{Finalized: 1, Abandoned: 1, Orphans: 1}
	if report != want {
		t.Fatalf("report = %+v, want %+v", report, want)
	}

	got, err := f.files.Get(ctx, "u1", landed.FileID)
	if err != nil || got.Status != model.StatusUploaded {
		t.Errorf("landed = %+v, %v", got, err)
	}
	logs, _ := f.logs.Recent(ctx, "u1", 0)
	if len(logs) != 1 || logs[0].FileID != landed.FileID || logs[0].Timestamp != landed.UploadTime {
		t.Errorf("logs = %+v", logs)
	}
	if _, err := f.files.Get(ctx, "u1", lost.FileID); err == nil {
		t.Error("abandoned record still present")
	}
	for _, key := range append([]string{done.StorageKey, legacy.StorageKey}, foreign...) {
		if ok, _ := f.objects.Exists(ctx, key); !ok {
			t.Errorf("object %s removed", key)
		}
	}
	if ok, _ := f.objects.Exists(ctx, orphanKey); ok {
		t.Error("orphan object kept")
	}

	again, err := f.rec.Sweep(ctx)
	if err != nil || again != (reconcile.Report{}) {
		t.Errorf("second sweep = %+v, %v", again, err)
	}
}

func TestSweepLeavesRecentWorkAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, epoch.Add(time.Minute))

	f.seed(t, "u1", idLost, "a.txt", model.StatusPending, false)
	if err := f.objects.Put(ctx, model.StorageKey("u1", idOrphan, "b.txt"), strings.NewReader("x"), 1, ""); err != nil {
		t.Fatal(err)
	}

	report, err := f.rec.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report != (reconcile.Report{}) {
		t.Errorf("report = %+v, want nothing touched", report)
	}
	if f.files.Len() != 1 || f.objects.Len() != 1 {
		t.Errorf("files=%d objects=%d", f.files.Len(), f.objects.Len())
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, later)
	f.seed(t, "u1", idLost, "a.txt", model.StatusPending, false)
	f.files.FailOn("delete", errors.New("throttled"))
	orphan := model.StorageKey("u9", idOrphan, "z.txt")
	if err := f.objects.Put(ctx, orphan, strings.NewReader("x"), 1, ""); err != nil {
		t.Fatal(err)
	}

	report, err := f.rec.Sweep(ctx)
	if err == nil {
		t.Fatal("expected joined error")
	}
	if report.Orphans != 1 {
		t.Errorf("orphans = %d, want the object pass to still run", report.Orphans)
	}
}

func TestHandleObjectCreated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, epoch)
	pending := f.seed(t, "u1", idLanded, "my file.txt", model.StatusPending, true)
	done := f.seed(t, "u1", idDone, "b.txt", model.StatusUploaded, true)

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{name: "pending record", key: pending.StorageKey, want: true},
		{name: "already finalized", key: pending.StorageKey, want: false},
		{name: "uploaded record", key: done.StorageKey, want: false},
		{name: "unknown record", key: model.StorageKey("u1", idUnknown, "x.txt"), want: false},
		{name: "foreign key", key: "reports/2026.csv", want: false},
		{name: "foreign key shaped like an upload", key: "backups/2024_01.tar", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.rec.HandleObjectCreated(ctx, tt.key)
			if err != nil {
				t.Fatalf("HandleObjectCreated: %v", err)
			}
			if got != tt.want {
				t.Errorf("finalized = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLambdaHandlerS3Notification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, epoch)
	rec := f.seed(t, "u1", idLanded, "my file.txt", model.StatusPending, true)

	payload := `{"Records":[
		{"eventSource":"aws:s3","eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"b"},"object":{"key":"u1/` + idLanded + `_my+file.txt","size":1}}},
		{"eventSource":"aws:s3","eventName":"ObjectRemoved:Delete","s3":{"bucket":{"name":"b"},"object":{"key":"u1/` + idDone + `_x.txt"}}}
	]}`
	report, err := f.rec.LambdaHandler(ctx, json.RawMessage(payload))
	if err != nil {
		t.Fatalf("LambdaHandler: %v", err)
	}
	if report.Finalized != 1 {
		t.Fatalf("report = %+v", report)
	}
	got, _ := f.files.Get(ctx, rec.UserID, rec.FileID)
	if got.Status != model.StatusUploaded {
		t.Errorf("status = %q", got.Status)
	}
}

func TestLambdaHandlerScheduledEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, later)
	f.seed(t, "u1", idLost, "a.txt", model.StatusPending, false)

	payload := `{"version":"0","id":"1","detail-type":"Scheduled Event","source":"aws.events","time":"2026-06-01T09:00:00Z","region":"ap-south-1","resources":[],"detail":{}}`
	report, err := f.rec.LambdaHandler(ctx, json.RawMessage(payload))
	if err != nil {
		t.Fatalf("LambdaHandler: %v", err)
	}
	if report.Abandoned != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	f := newFixture(t, later)
	f.seed(t, "u1", idLost, "a.txt", model.StatusPending, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.rec.Run(ctx, 5*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for f.files.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("sweep never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run = %v", err)
	}
}
