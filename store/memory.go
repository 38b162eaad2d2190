package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alimasry/go-docops/ops"
)

type docRecord struct {
	info    DocumentInfo
	history []ops.Operation
}

// MemoryStore is an in-memory implementation of DocumentStore.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*docRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*docRecord)}
}

func (s *MemoryStore) Create(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[id]; exists {
		return fmt.Errorf("document %q: %w", id, ErrExists)
	}
	now := time.Now()
	s.docs[id] = &docRecord{
		info: DocumentInfo{
			ID:        id,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	info := rec.info
	info.Snapshot = info.Snapshot.clone()
	return &info, nil
}

// List returns every document ordered by id.
func (s *MemoryStore) List(_ context.Context) ([]DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]DocumentInfo, 0, len(s.docs))
	for _, rec := range s.docs {
		info := rec.info
		info.Snapshot = info.Snapshot.clone()
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, id string, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	if snap.Version < rec.info.Snapshot.Version {
		return fmt.Errorf("document %q: snapshot version %d is older than %d", id, snap.Version, rec.info.Snapshot.Version)
	}
	rec.info.Snapshot = snap.clone()
	rec.info.UpdatedAt = time.Now()
	return nil
}

// AppendOperation records op as the operation that brought the document to
// version. Versions must be appended in order.
func (s *MemoryStore) AppendOperation(_ context.Context, id string, op ops.Operation, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	if version != len(rec.history)+1 {
		return fmt.Errorf("document %q: append version %d, have %d operations", id, version, len(rec.history))
	}
	rec.history = append(rec.history, op)
	rec.info.Version = version
	rec.info.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) GetOperations(_ context.Context, id string, fromVersion int) ([]ops.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	if fromVersion < 0 || fromVersion > len(rec.history) {
		return nil, fmt.Errorf("invalid version %d", fromVersion)
	}
	return cloneLog(rec.history[fromVersion:]), nil
}
