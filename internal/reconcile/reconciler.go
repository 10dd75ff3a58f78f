// Package reconcile closes uploads left half-done by a crash or a failed
// compensation. A PENDING record whose object landed is finalized; one whose
// object never arrived is dropped, and so are objects no record points at.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sh3r4rd/mycloud/internal/model"
	"github.com/sh3r4rd/mycloud/internal/store"
)

const DefaultGrace = 15 * time.Minute

type Dependencies struct {
	Objects store.ObjectStore
	Files   store.FileRepository
	Logs    store.ActivityLog
	Logger  *slog.Logger
	// Grace is how old a pending record or unreferenced object must be
	// before it is touched, so in-flight uploads are left alone.
	Grace time.Duration
	Now   func() time.Time
}

// Reconciler repairs uploads whose saga did not complete.
type Reconciler struct {
	objects store.ObjectStore
	files   store.FileRepository
	logs    store.ActivityLog
	logger  *slog.Logger
	grace   time.Duration
	now     func() time.Time
}

// Report counts what one sweep changed.
type Report struct {
	Finalized int `json:"finalized"`
	Abandoned int `json:"abandoned"`
	Orphans   int `json:"orphans"`
}

// New returns a Reconciler. Grace defaults to DefaultGrace and Now to time.Now.
func New(deps Dependencies) *Reconciler {
	r := &Reconciler{
		objects: deps.Objects,
		files:   deps.Files,
		logs:    deps.Logs,
		logger:  deps.Logger,
		grace:   deps.Grace,
		now:     deps.Now,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.grace <= 0 {
		r.grace = DefaultGrace
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Sweep makes one pass over pending records and then over stored objects. It
// keeps going past individual failures and returns them joined.
func (r *Reconciler) Sweep(ctx context.Context) (Report, error) {
	var (
		report Report
		errs   []error
	)
	cutoff := r.now().Add(-r.grace)

	pending, err := r.files.ListPending(ctx)
	if err != nil {
		return report, fmt.Errorf("list pending records: %w", err)
	}
	for _, rec := range pending {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if uploaded, err := model.ParseTimestamp(rec.UploadTime); err == nil && uploaded.After(cutoff) {
			continue
		}
		exists, err := r.objects.Exists(ctx, rec.StorageKey)
		if err != nil {
			errs = append(errs, fmt.Errorf("check object %s: %w", rec.StorageKey, err))
			continue
		}
		if exists {
			if err := r.finalize(ctx, rec); err != nil {
				errs = append(errs, err)
				continue
			}
			report.Finalized++
			continue
		}
		if err := r.files.Delete(ctx, rec.UserID, rec.FileID); err != nil {
			errs = append(errs, fmt.Errorf("delete abandoned record %s/%s: %w", rec.UserID, rec.FileID, err))
			continue
		}
		r.logger.InfoContext(ctx, "abandoned upload removed", "user_id", rec.UserID, "file_id", rec.FileID)
		report.Abandoned++
	}

	objects, err := r.objects.List(ctx, "")
	if err != nil {
		errs = append(errs, fmt.Errorf("list objects: %w", err))
		return report, errors.Join(errs...)
	}
	for _, obj := range objects {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if obj.LastModified.After(cutoff) {
			continue
		}
		userID, fileID, _, ok := model.ParseStorageKey(obj.Key)
		if !ok {
			continue
		}
		_, err := r.files.Get(ctx, userID, fileID)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			errs = append(errs, fmt.Errorf("look up record for %s: %w", obj.Key, err))
			continue
		}
		if err := r.objects.Delete(ctx, obj.Key); err != nil {
			errs = append(errs, fmt.Errorf("delete orphan %s: %w", obj.Key, err))
			continue
		}
		r.logger.InfoContext(ctx, "orphaned object removed", "key", obj.Key, "size", obj.Size)
		report.Orphans++
	}

	return report, errors.Join(errs...)
}

// HandleObjectCreated finalizes the pending record behind key and reports
// whether it did. Keys outside the storage layout, unknown records and
// records already finalized are left alone.
func (r *Reconciler) HandleObjectCreated(ctx context.Context, key string) (bool, error) {
	userID, fileID, _, ok := model.ParseStorageKey(key)
	if !ok {
		r.logger.DebugContext(ctx, "ignoring foreign object key", "key", key)
		return false, nil
	}
	rec, err := r.files.Get(ctx, userID, fileID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load record for %s: %w", key, err)
	}
	if rec.Ready() {
		return false, nil
	}
	if err := r.finalize(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

// Run sweeps every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	r.logger.InfoContext(ctx, "reconciler started", "interval", interval.String(), "grace", r.grace.String())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report, err := r.Sweep(ctx)
			if err != nil {
				r.logger.WarnContext(ctx, "reconcile sweep incomplete", "error", err)
			}
			if report != (Report{}) {
				r.logger.InfoContext(ctx, "reconcile sweep",
					"finalized", report.Finalized, "abandoned", report.Abandoned, "orphans", report.Orphans)
			}
		}
	}
}

// finalize marks rec uploaded and writes the upload event keyed by the
// record's upload time, so repeating it overwrites rather than duplicates.
func (r *Reconciler) finalize(ctx context.Context, rec model.FileRecord) error {
	if err := r.files.MarkUploaded(ctx, rec.UserID, rec.FileID); err != nil {
		return fmt.Errorf("finalize %s/%s: %w", rec.UserID, rec.FileID, err)
	}
	if err := r.logs.Append(ctx, model.ActivityLogEntry{
		UserID:    rec.UserID,
		Timestamp: rec.UploadTime,
		Action:    model.ActionUpload,
		FileID:    rec.FileID,
		Filename:  rec.Filename,
	}); err != nil {
		return fmt.Errorf("log finalized upload %s/%s: %w", rec.UserID, rec.FileID, err)
	}
	r.logger.InfoContext(ctx, "pending upload finalized", "user_id", rec.UserID, "file_id", rec.FileID)
	return nil
}
