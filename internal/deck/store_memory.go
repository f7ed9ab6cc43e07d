package deck

import (
	"context"
	"sync"

	id "proofdeck/pkg/domain"
	"proofdeck/pkg/sentinel"
)

// Store defines persistence for deck definitions and holder instances.
// Error Contract:
// - Get methods return sentinel.ErrNotFound when the record does not exist
// - Put methods return nil on success or a wrapped error on failure
type Store interface {
	PutDefinition(ctx context.Context, def *Definition) error
	GetDefinition(ctx context.Context, deckID id.DeckID) (*Definition, error)
	ListDefinitions(ctx context.Context) ([]*Definition, error)
	PutInstance(ctx context.Context, inst *Instance) error
	GetInstance(ctx context.Context, instanceID id.InstanceID) (*Instance, error)
}

// InMemoryStore keeps decks and instances in memory.
type InMemoryStore struct {
	mu        sync.RWMutex
	defs      map[id.DeckID]*Definition
	defOrder  []id.DeckID
	instances map[id.InstanceID]*Instance
}

// NewInMemoryStore constructs an empty in-memory deck store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		defs:      make(map[id.DeckID]*Definition),
		instances: make(map[id.InstanceID]*Instance),
	}
}

func (s *InMemoryStore) PutDefinition(_ context.Context, def *Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.defs[def.DeckID]; !exists {
		s.defOrder = append(s.defOrder, def.DeckID)
	}
	copyDef := *def
	s.defs[def.DeckID] = &copyDef
	return nil
}

func (s *InMemoryStore) GetDefinition(_ context.Context, deckID id.DeckID) (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[deckID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyDef := *def
	return &copyDef, nil
}

func (s *InMemoryStore) ListDefinitions(_ context.Context) ([]*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Definition, 0, len(s.defOrder))
	for _, deckID := range s.defOrder {
		copyDef := *s.defs[deckID]
		out = append(out, &copyDef)
	}
	return out, nil
}

func (s *InMemoryStore) PutInstance(_ context.Context, inst *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyInst := *inst
	if inst.Sources != nil {
		sources := make(map[id.PermissionID]SourceRef, len(inst.Sources))
		for k, v := range inst.Sources {
			sources[k] = v
		}
		copyInst.Sources = sources
	}
	s.instances[inst.InstanceID] = &copyInst
	return nil
}

func (s *InMemoryStore) GetInstance(_ context.Context, instanceID id.InstanceID) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[instanceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyInst := *inst
	return &copyInst, nil
}
