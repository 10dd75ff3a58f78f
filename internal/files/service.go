// Package files orchestrates uploads, listings, download links and activity
// logs across the object store and the two metadata tables.
package files

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sh3r4rd/mycloud/internal/apperr"
	"github.com/sh3r4rd/mycloud/internal/model"
	"github.com/sh3r4rd/mycloud/internal/store"
)

// idempotencyNamespace scopes file IDs derived from client idempotency keys.
var idempotencyNamespace = uuid.MustParse("5b0c7c4e-3f1a-4d51-9a7e-6f3f1d2a8c90")

// Dependencies are the stores and knobs a Service runs on. Now and NewID
// default to time.Now and random UUIDs.
type Dependencies struct {
	Objects store.ObjectStore
	Files   store.FileRepository
	Logs    store.ActivityLog
	Logger  *slog.Logger
	// MaxUploadBytes rejects larger parts when positive.
	MaxUploadBytes int64
	Now            func() time.Time
	NewID          func() string
}

// Service implements upload, listing, download links and activity logs for
// one user partition at a time.
type Service struct {
	objects        store.ObjectStore
	files          store.FileRepository
	logs           store.ActivityLog
	logger         *slog.Logger
	maxUploadBytes int64
	now            func() time.Time
	newID          func() string
}

// NewService returns a Service over deps.
func NewService(deps Dependencies) *Service {
	s := &Service{
		objects:        deps.Objects,
		files:          deps.Files,
		logs:           deps.Logs,
		logger:         deps.Logger,
		maxUploadBytes: deps.MaxUploadBytes,
		now:            deps.Now,
		newID:          deps.NewID,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// DownloadLink is the result of a download-link request.
type DownloadLink struct {
	URL      string
	Filename string
}

// Upload stores one file. The metadata row is written first as PENDING so an
// interrupted upload is always discoverable by the reconciler, then the object
// is stored, the row is marked UPLOADED and an upload event is logged.
func (s *Service) Upload(ctx context.Context, in model.UploadRequest) (model.FileRecord, error) {
	const op = "files.Upload"
	if in.UserID == "" {
		return model.FileRecord{}, apperr.New(apperr.KindUnauthorized, op, "")
	}
	if in.Filename == "" {
		return model.FileRecord{}, apperr.New(apperr.KindInvalid, op, "No file selected")
	}
	if in.Body == nil {
		return model.FileRecord{}, apperr.New(apperr.KindInvalid, op, "No file uploaded")
	}
	if s.maxUploadBytes > 0 && in.Size > s.maxUploadBytes {
		return model.FileRecord{}, apperr.New(apperr.KindInvalid, op,
			fmt.Sprintf("File exceeds the %d byte upload limit", s.maxUploadBytes))
	}

	fileID := s.newID()
	if in.IdempotencyKey != "" {
		fileID = uuid.NewSHA1(idempotencyNamespace, []byte(in.UserID+"\x00"+in.IdempotencyKey)).String()
	}
	size := in.Size
	if size < 0 {
		size = 0
	}
	rec := model.FileRecord{
		UserID:      in.UserID,
		FileID:      fileID,
		Filename:    in.Filename,
		UploadTime:  model.FormatTimestamp(s.now()),
		Size:        strconv.FormatInt(size, 10),
		StorageKey:  model.StorageKey(in.UserID, fileID, in.Filename),
		Status:      model.StatusPending,
		ContentType: in.ContentType,
	}

	err := s.files.CreatePending(ctx, rec)
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		existing, getErr := s.files.Get(ctx, in.UserID, fileID)
		if getErr != nil {
			return model.FileRecord{}, fmt.Errorf("%s: load existing %s: %w", op, fileID, getErr)
		}
		// A reused key must describe the same file, or the new body would be
		// stored under the first request's name.
		if existing.Filename != in.Filename {
			return model.FileRecord{}, apperr.New(apperr.KindInvalid, op,
				"Idempotency key was already used for a different file")
		}
		if existing.Ready() {
			s.logger.InfoContext(ctx, "upload replayed", "user_id", in.UserID, "file_id", fileID)
			return existing, nil
		}
		s.logger.InfoContext(ctx, "resuming pending upload", "user_id", in.UserID, "file_id", fileID)
		rec = existing
	case err != nil:
		return model.FileRecord{}, fmt.Errorf("%s: write metadata: %w", op, err)
	}

	if err := s.objects.Put(ctx, rec.StorageKey, in.Body, in.Size, in.ContentType); err != nil {
		if delErr := s.files.Delete(context.WithoutCancel(ctx), rec.UserID, rec.FileID); delErr != nil {
			s.logger.WarnContext(ctx, "pending record left for reconciler",
				"user_id", rec.UserID, "file_id", rec.FileID, "error", delErr)
		}
		return model.FileRecord{}, fmt.Errorf("%s: store object: %w", op, err)
	}

	if err := s.files.MarkUploaded(ctx, rec.UserID, rec.FileID); err != nil {
		s.logger.WarnContext(ctx, "object stored but record still pending",
			"user_id", rec.UserID, "file_id", rec.FileID, "error", err)
		return model.FileRecord{}, fmt.Errorf("%s: finalize metadata: %w", op, err)
	}
	rec.Status = model.StatusUploaded

	if err := s.logs.Append(ctx, model.ActivityLogEntry{
		UserID:    rec.UserID,
		Timestamp: rec.UploadTime,
		Action:    model.ActionUpload,
		FileID:    rec.FileID,
		Filename:  rec.Filename,
	}); err != nil {
		return model.FileRecord{}, fmt.Errorf("%s: log activity: %w", op, err)
	}

	s.logger.InfoContext(ctx, "file uploaded", "user_id", rec.UserID, "file_id", rec.FileID, "size", rec.Size)
	return rec, nil
}

// List returns every record in the user's partition in store order.
func (s *Service) List(ctx context.Context, userID string) ([]model.FileRecord, error) {
	const op = "files.List"
	if userID == "" {
		return nil, apperr.New(apperr.KindUnauthorized, op, "")
	}
	records, err := s.files.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if records == nil {
		records = []model.FileRecord{}
	}
	return records, nil
}

// DownloadLink resolves fileID within the user's partition and logs the
// request. The event means the link was handed out, not that it was used.
func (s *Service) DownloadLink(ctx context.Context, userID, fileID string) (DownloadLink, error) {
	const op = "files.DownloadLink"
	if userID == "" {
		return DownloadLink{}, apperr.New(apperr.KindUnauthorized, op, "")
	}
	if fileID == "" {
		return DownloadLink{}, apperr.New(apperr.KindNotFound, op, "File not found")
	}

	rec, err := s.files.Get(ctx, userID, fileID)
	if errors.Is(err, store.ErrNotFound) {
		return DownloadLink{}, apperr.New(apperr.KindNotFound, op, "File not found")
	}
	if err != nil {
		return DownloadLink{}, fmt.Errorf("%s: %w", op, err)
	}
	if !rec.Ready() {
		return DownloadLink{}, apperr.New(apperr.KindNotFound, op, "File is not available yet")
	}

	link, err := s.objects.URL(ctx, rec.StorageKey)
	if err != nil {
		return DownloadLink{}, fmt.Errorf("%s: build url: %w", op, err)
	}

	if err := s.logs.Append(ctx, model.ActivityLogEntry{
		UserID:    userID,
		Timestamp: model.FormatTimestamp(s.now()),
		Action:    model.ActionDownload,
		FileID:    rec.FileID,
		Filename:  rec.Filename,
	}); err != nil {
		return DownloadLink{}, fmt.Errorf("%s: log activity: %w", op, err)
	}
	return DownloadLink{URL: link, Filename: rec.Filename}, nil
}

// Logs returns the user's most recent activity, newest first.
func (s *Service) Logs(ctx context.Context, userID string) ([]model.ActivityLogEntry, error) {
	const op = "files.Logs"
	if userID == "" {
		return nil, apperr.New(apperr.KindUnauthorized, op, "")
	}
	entries, err := s.logs.Recent(ctx, userID, model.MaxLogEntries)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if entries == nil {
		entries = []model.ActivityLogEntry{}
	}
	return entries, nil
}
