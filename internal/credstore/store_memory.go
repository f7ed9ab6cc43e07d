package credstore

import (
	"context"
	"sync"

	"proofdeck/internal/vc"
	id "proofdeck/pkg/domain"
	"proofdeck/pkg/sentinel"
)

// InMemoryStore keeps credentials in memory. Views by subject and issuer are
// computed by linear scan; this is a local holder-side cache, not an index
// under load.
type InMemoryStore struct {
	mu    sync.RWMutex
	creds map[id.CredentialID]*vc.Credential
	order []id.CredentialID
}

// NewInMemoryStore constructs an empty in-memory credential store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{creds: make(map[id.CredentialID]*vc.Credential)}
}

func (s *InMemoryStore) Save(_ context.Context, cred *vc.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.creds[cred.ID]; !exists {
		s.order = append(s.order, cred.ID)
	}
	copyCred := cloneCredential(cred)
	s.creds[cred.ID] = copyCred
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, credID id.CredentialID) (*vc.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[credID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneCredential(cred), nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject id.DID) ([]*vc.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*vc.Credential
	for _, credID := range s.order {
		if cred := s.creds[credID]; cred != nil && cred.Subject == subject {
			out = append(out, cloneCredential(cred))
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListByIssuer(_ context.Context, issuer id.DID) ([]*vc.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*vc.Credential
	for _, credID := range s.order {
		if cred := s.creds[credID]; cred != nil && cred.Issuer == issuer {
			out = append(out, cloneCredential(cred))
		}
	}
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, credID id.CredentialID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.creds[credID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.creds, credID)
	for i, existing := range s.order {
		if existing == credID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func cloneCredential(cred *vc.Credential) *vc.Credential {
	copyCred := *cred
	if cred.Claims != nil {
		claims := make(map[string]any, len(cred.Claims))
		for k, v := range cred.Claims {
			claims[k] = v
		}
		copyCred.Claims = claims
	}
	if cred.Proof != nil {
		proof := *cred.Proof
		copyCred.Proof = &proof
	}
	if cred.ExpiresAt != nil {
		expiry := *cred.ExpiresAt
		copyCred.ExpiresAt = &expiry
	}
	return &copyCred
}
