package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/regwatch-id/bpk-crawler/internal/regwatch"
)

// RegulationStore keeps processed regulations in memory, keyed by natural
// key. It doubles as the DedupChecker for tests and local runs.
type RegulationStore struct {
	mu     sync.RWMutex
	byKey  map[string]regwatch.RegulationDocument
	byHash map[string]string
	ids    map[string]string
	nextID int
}

// NewRegulationStore constructs a RegulationStore.
func NewRegulationStore() *RegulationStore {
	return &RegulationStore{
		byKey:  make(map[string]regwatch.RegulationDocument),
		byHash: make(map[string]string),
		ids:    make(map[string]string),
	}
}

// Upsert inserts or replaces the document under its natural key and returns
// a stable row ID.
func (s *RegulationStore) Upsert(_ context.Context, doc regwatch.RegulationDocument) (string, error) {
	key := doc.NaturalKey()
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byKey[key]; ok && prev.ContentHash != "" {
		delete(s.byHash, prev.ContentHash)
	}
	s.byKey[key] = doc
	if doc.ContentHash != "" {
		s.byHash[doc.ContentHash] = key
	}
	id, ok := s.ids[key]
	if !ok {
		s.nextID++
		id = fmt.Sprintf("reg-%d", s.nextID)
		s.ids[key] = id
	}
	return id, nil
}

// Exists reports whether a regulation with the natural key is persisted.
func (s *RegulationStore) Exists(_ context.Context, naturalKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byKey[naturalKey]
	return ok, nil
}

// ExistsContent reports whether any persisted regulation has the content hash.
func (s *RegulationStore) ExistsContent(_ context.Context, contentHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byHash[contentHash]
	return ok, nil
}

// Get returns the stored document for a natural key.
func (s *RegulationStore) Get(_ context.Context, naturalKey string) (regwatch.RegulationDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.byKey[naturalKey]
	if !ok {
		return regwatch.RegulationDocument{}, regwatch.ErrNotFound
	}
	return doc, nil
}

// Len returns the number of persisted regulations.
func (s *RegulationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}
