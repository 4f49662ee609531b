package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	record   Record
	encoding []byte
}

// MemoryStore implements Store with an in-memory map.
// Encodings are copied on the way in and out.
type MemoryStore struct {
	entries map[string]*memoryEntry
	closed  bool
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
	}
}

// Save stores a copy of encoding.
func (s *MemoryStore) Save(ctx context.Context, name string, encoding []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ctxErr(ctx, "memory", "save", name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ConnectionError("memory", "save", name, errClosed)
	}

	now := time.Now().UTC()
	entry, ok := s.entries[name]
	if !ok {
		entry = &memoryEntry{record: Record{Name: name, ID: uuid.NewString(), CreatedAt: now}}
		s.entries[name] = entry
	}
	entry.encoding = append([]byte(nil), encoding...)
	entry.record.Checksum = Checksum(encoding)
	entry.record.Size = len(encoding)
	entry.record.UpdatedAt = now
	return nil
}

// Load returns a copy of the stored encoding.
func (s *MemoryStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctxErr(ctx, "memory", "load", name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ConnectionError("memory", "load", name, errClosed)
	}

	entry, ok := s.entries[name]
	if !ok {
		return nil, NotFound("memory", "load", name)
	}
	return append([]byte(nil), entry.encoding...), nil
}

// Delete removes a rule.
func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	if err := ctxErr(ctx, "memory", "delete", name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ConnectionError("memory", "delete", name, errClosed)
	}

	if _, ok := s.entries[name]; !ok {
		return NotFound("memory", "delete", name)
	}
	delete(s.entries, name)
	return nil
}

// List returns the stored records sorted by name.
func (s *MemoryStore) List(ctx context.Context) ([]Record, error) {
	if err := ctxErr(ctx, "memory", "list", ""); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ConnectionError("memory", "list", "", errClosed)
	}

	records := make([]Record, 0, len(s.entries))
	for _, entry := range s.entries {
		records = append(records, entry.record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
	return records, nil
}

// Close drops the stored rules. Later calls fail with a connection error.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
	return nil
}
