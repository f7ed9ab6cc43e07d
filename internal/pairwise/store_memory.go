package pairwise

import (
	"context"
	"sync"

	id "proofdeck/pkg/domain"
	"proofdeck/pkg/sentinel"
)

// InMemoryStore keeps pairwise entries in memory, with a secondary index by
// derived identifier so reverse lookups stay O(1) as the table grows.
type InMemoryStore struct {
	mu         sync.RWMutex
	byPair     map[id.DID]*Entry
	byMasterAud map[string]*Entry
}

// NewInMemoryStore constructs an empty in-memory pairwise store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byPair:      make(map[id.DID]*Entry),
		byMasterAud: make(map[string]*Entry),
	}
}

func forwardKey(master id.DID, audience string) string {
	return string(master) + "|" + audience
}

func (s *InMemoryStore) Get(_ context.Context, master id.DID, audience string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.byMasterAud[forwardKey(master, audience)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyEntry := *entry
	return &copyEntry, nil
}

func (s *InMemoryStore) Put(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyEntry := *entry
	s.byMasterAud[forwardKey(entry.MasterDID, entry.Audience)] = &copyEntry
	s.byPair[entry.PairwiseDID] = &copyEntry
	return nil
}

func (s *InMemoryStore) FindByPairwise(_ context.Context, pairwise id.DID) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.byPair[pairwise]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyEntry := *entry
	return &copyEntry, nil
}
