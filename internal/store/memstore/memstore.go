// Package memstore provides in-process implementations of the store ports for
// local development and tests.
package memstore

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sh3r4rd/mycloud/internal/model"
	"github.com/sh3r4rd/mycloud/internal/store"
)

// faults lets tests make a named operation fail.
type faults struct {
	mu   sync.Mutex
	errs map[string]error
}

// FailOn makes every later call of op return err. A nil err clears it.
func (f *faults) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[string]error)
	}
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

func (f *faults) check(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[op]
}

type object struct {
	data        []byte
	contentType string
	modified    time.Time
}

// ObjectStore keeps objects in a map.
type ObjectStore struct {
	faults
	mu      sync.RWMutex
	objects map[string]object
	baseURL string
	now     func() time.Time
	puts    int
}

var _ store.ObjectStore = (*ObjectStore)(nil)

// NewObjectStore returns an empty store whose URLs start with baseURL. now
// stamps LastModified and defaults to time.Now.
func NewObjectStore(baseURL string, now func() time.Time) *ObjectStore {
	if now == nil {
		now = time.Now
	}
	return &ObjectStore{objects: make(map[string]object), baseURL: strings.TrimRight(baseURL, "/"), now: now}
}

func (s *ObjectStore) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	if err := s.check("put"); err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: data, contentType: contentType, modified: s.now()}
	s.puts++
	return nil
}

func (s *ObjectStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if err := s.check("get"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *ObjectStore) Delete(_ context.Context, key string) error {
	if err := s.check("delete"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *ObjectStore) Exists(_ context.Context, key string) (bool, error) {
	if err := s.check("exists"); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *ObjectStore) List(_ context.Context, prefix string) ([]store.ObjectInfo, error) {
	if err := s.check("list"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.ObjectInfo
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, store.ObjectInfo{Key: key, Size: int64(len(obj.data)), LastModified: obj.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *ObjectStore) URL(_ context.Context, key string) (string, error) {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/" + strings.Join(parts, "/"), nil
}

// Puts counts successful Put calls.
func (s *ObjectStore) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}

// Len is the number of stored objects.
func (s *ObjectStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// FileTable keeps FileRecords in a map keyed by user and file ID.
type FileTable struct {
	faults
	mu   sync.RWMutex
	rows map[string]map[string]model.FileRecord
}

var _ store.FileRepository = (*FileTable)(nil)

// NewFileTable returns an empty table.
func NewFileTable() *FileTable {
	return &FileTable{rows: make(map[string]map[string]model.FileRecord)}
}

func (t *FileTable) CreatePending(_ context.Context, rec model.FileRecord) error {
	if err := t.check("create"); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	part := t.rows[rec.UserID]
	if part == nil {
		part = make(map[string]model.FileRecord)
		t.rows[rec.UserID] = part
	}
	if _, exists := part[rec.FileID]; exists {
		return store.ErrAlreadyExists
	}
	rec.Status = model.StatusPending
	part[rec.FileID] = rec
	return nil
}

func (t *FileTable) MarkUploaded(_ context.Context, userID, fileID string) error {
	if err := t.check("mark"); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.rows[userID][fileID]
	if !ok {
		return store.ErrNotFound
	}
	rec.Status = model.StatusUploaded
	t.rows[userID][fileID] = rec
	return nil
}

func (t *FileTable) Get(_ context.Context, userID, fileID string) (model.FileRecord, error) {
	if err := t.check("get"); err != nil {
		return model.FileRecord{}, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.rows[userID][fileID]
	if !ok {
		return model.FileRecord{}, store.ErrNotFound
	}
	return rec, nil
}

// ListByUser returns the partition ordered by file_id, like a DynamoDB query.
func (t *FileTable) ListByUser(_ context.Context, userID string) ([]model.FileRecord, error) {
	if err := t.check("list"); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.FileRecord, 0, len(t.rows[userID]))
	for _, rec := range t.rows[userID] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileID < out[j].FileID })
	return out, nil
}

func (t *FileTable) ListPending(_ context.Context) ([]model.FileRecord, error) {
	if err := t.check("pending"); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []model.FileRecord
	for _, part := range t.rows {
		for _, rec := range part {
			if rec.Status == model.StatusPending {
				out = append(out, rec)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadTime < out[j].UploadTime })
	return out, nil
}

func (t *FileTable) Delete(_ context.Context, userID, fileID string) error {
	if err := t.check("delete"); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rows[userID], fileID)
	return nil
}

// Put writes rec as-is, bypassing the pending protocol. Tests use it to seed
// rows in arbitrary states.
func (t *FileTable) Put(rec model.FileRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rows[rec.UserID] == nil {
		t.rows[rec.UserID] = make(map[string]model.FileRecord)
	}
	t.rows[rec.UserID][rec.FileID] = rec
}

// Len is the number of records across all partitions.
func (t *FileTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, part := range t.rows {
		n += len(part)
	}
	return n
}

// LogTable keeps activity entries per user.
type LogTable struct {
	faults
	mu   sync.RWMutex
	rows map[string]map[string]model.ActivityLogEntry
}

var _ store.ActivityLog = (*LogTable)(nil)

// NewLogTable returns an empty log.
func NewLogTable() *LogTable {
	return &LogTable{rows: make(map[string]map[string]model.ActivityLogEntry)}
}

func (t *LogTable) Append(_ context.Context, entry model.ActivityLogEntry) error {
	if err := t.check("append"); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rows[entry.UserID] == nil {
		t.rows[entry.UserID] = make(map[string]model.ActivityLogEntry)
	}
	t.rows[entry.UserID][entry.Timestamp] = entry
	return nil
}

func (t *LogTable) Recent(_ context.Context, userID string, limit int) ([]model.ActivityLogEntry, error) {
	if err := t.check("recent"); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.ActivityLogEntry, 0, len(t.rows[userID]))
	for _, e := range t.rows[userID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *LogTable) Delete(_ context.Context, userID, timestamp string) error {
	if err := t.check("delete"); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rows[userID], timestamp)
	return nil
}

// Len is the number of entries across all partitions.
func (t *LogTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, part := range t.rows {
		n += len(part)
	}
	return n
}
