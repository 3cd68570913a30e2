package certificate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore stores artifacts in memory (test/dev only).
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data []byte
	meta ArtifactMeta
}

// NewMemoryStore creates an in-memory artifact store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// Put stores an artifact.
func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error) {
	_ = ctx
	if key == "" {
		return ArtifactRef{}, NewError(KindValidation, "artifact key is required", nil)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ArtifactRef{}, err
	}
	meta.Size = int64(len(data))
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	s.mu.Lock()
	s.objects[key] = memoryObject{data: data, meta: meta}
	s.mu.Unlock()

	return ArtifactRef{Key: key, Meta: meta}, nil
}

// Open reads an artifact.
func (s *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, ArtifactMeta, error) {
	_ = ctx
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ArtifactMeta{}, NewError(KindNotFound, fmt.Sprintf("artifact %q not found", key), nil)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.meta, nil
}

// Delete removes an artifact.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// SignedURL is not supported by the memory store.
func (s *MemoryStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	_ = ctx
	_ = key
	_ = ttl
	return "", NewError(KindNotImpl, "signed URLs not supported by memory store", nil)
}

// Keys returns stored keys in sorted order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// StoreSink delivers files into an ArtifactStore under Prefix.
type StoreSink struct {
	Store  ArtifactStore
	Prefix string
	Now    func() time.Time
}

// Deliver writes the file to the store keyed by prefix, a unique segment and
// the filename.
func (s StoreSink) Deliver(ctx context.Context, file File) (ArtifactRef, error) {
	if s.Store == nil {
		return ArtifactRef{}, NewError(KindValidation, "artifact store is required", nil)
	}
	if file.Body == nil {
		return ArtifactRef{}, NewError(KindValidation, "file body is required", nil)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	key := uuid.NewString() + "/" + file.Filename
	if s.Prefix != "" {
		key = s.Prefix + "/" + key
	}
	return s.Store.Put(ctx, key, file.Body, ArtifactMeta{
		ContentType: file.ContentType,
		Size:        file.Size,
		Filename:    file.Filename,
		CreatedAt:   now(),
	})
}

// MemoryTracker stores export records in memory (test/dev only).
type MemoryTracker struct {
	mu      sync.RWMutex
	records map[string]ExportRecord
}

// NewMemoryTracker creates an in-memory tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{records: make(map[string]ExportRecord)}
}

// Start creates a new record.
func (t *MemoryTracker) Start(ctx context.Context, record ExportRecord) (string, error) {
	_ = ctx
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.State == "" {
		record.State = StateRunning
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	t.mu.Lock()
	t.records[record.ID] = record
	t.mu.Unlock()
	return record.ID, nil
}

// Complete marks the export as completed.
func (t *MemoryTracker) Complete(ctx context.Context, id string, outcome ExportOutcome) error {
	_ = ctx

	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.records[id]
	if !ok {
		return NewError(KindNotFound, fmt.Sprintf("export %q not found", id), nil)
	}
	record.State = StateCompleted
	record.Bytes = outcome.Bytes
	record.QRReplaced = outcome.QRReplaced
	record.QRFailed = outcome.QRFailed
	record.Artifact = outcome.Artifact
	record.CompletedAt = time.Now()
	t.records[id] = record
	return nil
}

// Fail records failure state.
func (t *MemoryTracker) Fail(ctx context.Context, id string, err error) error {
	_ = ctx

	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.records[id]
	if !ok {
		return NewError(KindNotFound, fmt.Sprintf("export %q not found", id), nil)
	}
	record.State = StateFailed
	if err != nil {
		record.Error = err.Error()
	}
	record.CompletedAt = time.Now()
	t.records[id] = record
	return nil
}

// Status returns a record by ID.
func (t *MemoryTracker) Status(ctx context.Context, id string) (ExportRecord, error) {
	_ = ctx
	t.mu.RLock()
	record, ok := t.records[id]
	t.mu.RUnlock()
	if !ok {
		return ExportRecord{}, NewError(KindNotFound, fmt.Sprintf("export %q not found", id), nil)
	}
	return record, nil
}

// List returns records matching a filter, newest first.
func (t *MemoryTracker) List(ctx context.Context, filter RecordFilter) ([]ExportRecord, error) {
	_ = ctx
	result := []ExportRecord{}

	t.mu.RLock()
	for _, record := range t.records {
		if !filter.Matches(record) {
			continue
		}
		result = append(result, record)
	}
	t.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Matches reports whether a record passes the filter.
func (f RecordFilter) Matches(record ExportRecord) bool {
	if f.DocumentID != "" && record.DocumentID != f.DocumentID {
		return false
	}
	if f.CertificateID != "" && record.CertificateID != f.CertificateID {
		return false
	}
	if f.State != "" && record.State != f.State {
		return false
	}
	if !f.Since.IsZero() && record.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && record.CreatedAt.After(f.Until) {
		return false
	}
	return true
}
