package protocol

import (
	"context"
	"sync"

	"proofdeck/contracts/proof"
	id "proofdeck/pkg/domain"
	"proofdeck/pkg/sentinel"
)

// Store persists protocol artifacts across the exchange lifecycle.
// Error Contract:
// - Get* returns sentinel.ErrNotFound when no artifact exists for the id
// - Save* overwrites silently; artifact ids are minted once and never reused
type Store interface {
	SaveRequest(ctx context.Context, req *proof.ProofRequest) error
	GetRequest(ctx context.Context, requestID id.RequestID) (*proof.ProofRequest, error)
	SaveGrant(ctx context.Context, grant *proof.ConsentGrant) error
	GetGrant(ctx context.Context, grantID id.GrantID) (*proof.ConsentGrant, error)
	SaveResponse(ctx context.Context, resp *proof.ProofResponse) error
	GetResponse(ctx context.Context, proofID id.ProofID) (*proof.ProofResponse, error)
	SaveReceipt(ctx context.Context, receipt *proof.Receipt) error
	GetReceiptByProof(ctx context.Context, proofID id.ProofID) (*proof.Receipt, error)
}

// InMemoryStore keeps protocol artifacts in process memory. Values are copied
// on write and read so callers cannot mutate stored state.
type InMemoryStore struct {
	mu        sync.RWMutex
	requests  map[id.RequestID]*proof.ProofRequest
	grants    map[id.GrantID]*proof.ConsentGrant
	responses map[id.ProofID]*proof.ProofResponse
	receipts  map[id.ProofID]*proof.Receipt
}

// NewInMemoryStore constructs an empty artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		requests:  make(map[id.RequestID]*proof.ProofRequest),
		grants:    make(map[id.GrantID]*proof.ConsentGrant),
		responses: make(map[id.ProofID]*proof.ProofResponse),
		receipts:  make(map[id.ProofID]*proof.Receipt),
	}
}

func (s *InMemoryStore) SaveRequest(_ context.Context, req *proof.ProofRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.RequestID] = cloneRequest(req)
	return nil
}

func (s *InMemoryStore) GetRequest(_ context.Context, requestID id.RequestID) (*proof.ProofRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRequest(req), nil
}

func (s *InMemoryStore) SaveGrant(_ context.Context, grant *proof.ConsentGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grant.GrantID] = cloneGrant(grant)
	return nil
}

func (s *InMemoryStore) GetGrant(_ context.Context, grantID id.GrantID) (*proof.ConsentGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grant, ok := s.grants[grantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneGrant(grant), nil
}

func (s *InMemoryStore) SaveResponse(_ context.Context, resp *proof.ProofResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[resp.ProofID] = cloneResponse(resp)
	return nil
}

func (s *InMemoryStore) GetResponse(_ context.Context, proofID id.ProofID) (*proof.ProofResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp, ok := s.responses[proofID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneResponse(resp), nil
}

func (s *InMemoryStore) SaveReceipt(_ context.Context, receipt *proof.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyReceipt := *receipt
	s.receipts[receipt.ProofID] = &copyReceipt
	return nil
}

func (s *InMemoryStore) GetReceiptByProof(_ context.Context, proofID id.ProofID) (*proof.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	receipt, ok := s.receipts[proofID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyReceipt := *receipt
	return &copyReceipt, nil
}

func cloneRequest(req *proof.ProofRequest) *proof.ProofRequest {
	copyReq := *req
	copyReq.RequiredPermissions = append([]id.PermissionID(nil), req.RequiredPermissions...)
	return &copyReq
}

func cloneGrant(grant *proof.ConsentGrant) *proof.ConsentGrant {
	copyGrant := *grant
	copyGrant.Permissions = append([]id.PermissionID(nil), grant.Permissions...)
	return &copyGrant
}

func cloneResponse(resp *proof.ProofResponse) *proof.ProofResponse {
	copyResp := *resp
	copyResp.SatisfiedPermissions = append([]id.PermissionID(nil), resp.SatisfiedPermissions...)
	if resp.Binding.CredentialID != nil {
		credID := *resp.Binding.CredentialID
		copyResp.Binding.CredentialID = &credID
	}
	return &copyResp
}
