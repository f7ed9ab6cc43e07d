package anchor

import (
	"context"
	"sync"

	id "proofdeck/pkg/domain"
	"proofdeck/pkg/sentinel"
)

// Store persists anchor records keyed by credential id.
// Error Contract:
// - Get returns sentinel.ErrNotFound when the credential has no anchor
// - Put overwrites an existing record for the same credential
type Store interface {
	Put(ctx context.Context, record *Record) error
	Get(ctx context.Context, credID id.CredentialID) (*Record, error)
}

// InMemoryStore keeps anchor records in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.CredentialID]*Record
}

// NewInMemoryStore constructs an empty anchor store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.CredentialID]*Record)}
}

func (s *InMemoryStore) Put(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyRecord := *record
	s.records[record.CredentialID] = &copyRecord
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, credID id.CredentialID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[credID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyRecord := *record
	return &copyRecord, nil
}
