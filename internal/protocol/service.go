// Package protocol drives the artifact lifecycle of a disclosure exchange:
// ProofRequest(issued) -> ConsentGrant(signed) -> ProofResponse(bound) ->
// Receipt(anchored). Each step validates the artifact it consumes before
// minting the next one; verification of a finished response is the verify
// package's job.
package protocol

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"proofdeck/contracts/proof"
	"proofdeck/internal/audit"
	"proofdeck/internal/canonical"
	"proofdeck/internal/credstore"
	"proofdeck/internal/deck"
	"proofdeck/internal/issuer"
	"proofdeck/internal/pairwise"
	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
	"proofdeck/pkg/sentinel"
)

// DefaultRequestTTL bounds a request's validity when the caller does not
// pick one.
const DefaultRequestTTL = 5 * time.Minute

// Option configures the Service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) { s.clock = clk }
}

// WithAuditor attaches an audit publisher for lifecycle events.
func WithAuditor(auditor *audit.Publisher) Option {
	return func(s *Service) { s.auditor = auditor }
}

// WithPairwise enables per-audience prover identities. When set, the prover
// id on a response is the holder's pairwise DID for the request audience
// instead of the master DID.
func WithPairwise(manager *pairwise.Manager) Option {
	return func(s *Service) { s.pairwise = manager }
}

// Service owns the request/grant/response/receipt state machine.
type Service struct {
	store    Store
	eval     *deck.Evaluator
	issuer   *issuer.Service
	creds    credstore.Store
	pairwise *pairwise.Manager
	clock    clock.Clock
	logger   *slog.Logger
	auditor  *audit.Publisher
}

// NewService constructs the protocol service.
func NewService(store Store, eval *deck.Evaluator, iss *issuer.Service, creds credstore.Store, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:  store,
		eval:   eval,
		issuer: iss,
		creds:  creds,
		clock:  clock.New(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// MintRequest issues a fresh ProofRequest for the audience. The nonce comes
// from the system entropy source; a ttl of zero means DefaultRequestTTL.
func (s *Service) MintRequest(ctx context.Context, audience string, required []id.PermissionID, ttl time.Duration) (*proof.ProofRequest, error) {
	if ttl <= 0 {
		ttl = DefaultRequestTTL
	}
	nonce, err := NewNonce()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "nonce generation failed")
	}

	now := s.clock.Now().UTC()
	req := &proof.ProofRequest{
		RequestID:           id.RequestID(uuid.New()),
		RequiredPermissions: required,
		Nonce:               nonce,
		Audience:            audience,
		IssuedAt:            now,
		ExpiresAt:           now.Add(ttl),
		Version:             proof.Version,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.SaveRequest(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to persist proof request")
	}

	s.emit(ctx, audit.Event{
		Action:    audit.ActionRequestIssued,
		Actor:     audience,
		Audience:  audience,
		RequestID: req.RequestID.String(),
		Decision:  audit.DecisionIssued,
		Timestamp: now,
	})
	if s.logger != nil {
		s.logger.Info("proof request minted",
			"request_id", req.RequestID.String(),
			"audience", audience,
			"permissions", len(required),
		)
	}
	return req, nil
}

// GrantConsent resolves the request's permissions against the holder's deck
// and, when every one is satisfiable, signs a ConsentGrant restating the
// request's binding context. An unsatisfiable request is denied with the
// missing permissions named, never partially granted.
func (s *Service) GrantConsent(ctx context.Context, requestID id.RequestID, deckID id.DeckID, holder id.DID) (*proof.ConsentGrant, error) {
	req, err := s.request(ctx, requestID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	if !now.Before(req.ExpiresAt) {
		return nil, dErrors.New(dErrors.CodeTemporalInvalid, "proof request expired")
	}

	eval, err := s.eval.Resolve(ctx, deckID, holder, req.RequiredPermissions)
	if err != nil {
		return nil, err
	}
	if !eval.Covers(req.RequiredPermissions) {
		s.emit(ctx, audit.Event{
			Action:    audit.ActionConsentDenied,
			Actor:     id.Truncated(holder.String()),
			Audience:  req.Audience,
			RequestID: req.RequestID.String(),
			Decision:  audit.DecisionDenied,
			Reason:    "unsatisfied: " + joinPermissions(eval.Unsatisfied),
			Timestamp: now,
		})
		return nil, dErrors.New(dErrors.CodeCoverageIncomplete,
			"cannot satisfy permissions: "+joinPermissions(eval.Unsatisfied))
	}

	issuerID, err := s.issuer.IssuerID()
	if err != nil {
		return nil, err
	}
	grant := &proof.ConsentGrant{
		GrantID:     id.GrantID(uuid.New()),
		RequestID:   req.RequestID,
		Audience:    req.Audience,
		Nonce:       req.Nonce,
		Permissions: req.RequiredPermissions,
		Signer:      proof.Signer{Type: proof.SignerDID, ID: issuerID.String()},
		IssuedAt:    now,
		ExpiresAt:   req.ExpiresAt,
		Version:     proof.Version,
	}

	hash, err := canonical.RequestHash(grant.SigningBase())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "grant not hashable")
	}
	signature, err := s.issuer.SignGrantHash(hash, grant.Audience, grant.IssuedAt, grant.ExpiresAt)
	if err != nil {
		return nil, err
	}
	grant.Signature = signature

	if err := grant.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.SaveGrant(ctx, grant); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to persist consent grant")
	}

	s.emit(ctx, audit.Event{
		Action:    audit.ActionConsentGranted,
		Actor:     id.Truncated(holder.String()),
		Audience:  req.Audience,
		RequestID: req.RequestID.String(),
		Decision:  audit.DecisionGranted,
		Timestamp: now,
	})
	return grant, nil
}

// VerifyGrant checks a grant against its originating request: binding
// context must match field for field, and the signature must verify for the
// stated signer.
func (s *Service) VerifyGrant(ctx context.Context, grant *proof.ConsentGrant) error {
	if err := grant.Validate(); err != nil {
		return err
	}
	req, err := s.request(ctx, grant.RequestID)
	if err != nil {
		return err
	}
	if grant.Nonce != req.Nonce || grant.Audience != req.Audience {
		return dErrors.New(dErrors.CodeBindingMismatch, "grant does not restate the request's nonce and audience")
	}

	hash, err := canonical.RequestHash(grant.SigningBase())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "grant not hashable")
	}
	return s.issuer.VerifyGrantHash(grant.Signature, hash, grant.Audience)
}

// BuildResponse turns a verified grant into a bound ProofResponse. The
// binding hash is recomputed from the stored request; satisfiedPermissions
// lists only permissions that still resolve at response time.
func (s *Service) BuildResponse(ctx context.Context, grantID id.GrantID, deckID id.DeckID, holder id.DID) (*proof.ProofResponse, error) {
	grant, err := s.grant(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if err := s.VerifyGrant(ctx, grant); err != nil {
		return nil, err
	}
	req, err := s.request(ctx, grant.RequestID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	if !now.Before(grant.ExpiresAt) {
		return nil, dErrors.New(dErrors.CodeTemporalInvalid, "consent grant expired")
	}

	eval, err := s.eval.Resolve(ctx, deckID, holder, grant.Permissions)
	if err != nil {
		return nil, err
	}
	satisfied := make([]id.PermissionID, 0, len(grant.Permissions))
	for _, perm := range grant.Permissions {
		if _, ok := eval.Satisfied[perm]; ok {
			satisfied = append(satisfied, perm)
		}
	}
	if len(satisfied) == 0 {
		return nil, dErrors.New(dErrors.CodeCoverageIncomplete, "no granted permission resolves to evidence")
	}

	requestHash, err := canonical.RequestHash(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "request not hashable")
	}
	binding := proof.Binding{RequestHash: requestHash}
	if err := s.attachCredential(ctx, &binding, eval, satisfied); err != nil {
		return nil, err
	}

	resp := &proof.ProofResponse{
		ProofID:              id.ProofID(uuid.New()),
		RequestID:            req.RequestID,
		Audience:             req.Audience,
		Nonce:                req.Nonce,
		SatisfiedPermissions: satisfied,
		Verified:             eval.Covers(req.RequiredPermissions),
		Binding:              binding,
		Prover:               proof.Signer{Type: proof.SignerDID, ID: s.proverID(ctx, holder, req.Audience)},
		IssuedAt:             now,
		ExpiresAt:            req.ExpiresAt,
		Version:              proof.Version,
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.SaveResponse(ctx, resp); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to persist proof response")
	}

	s.emit(ctx, audit.Event{
		Action:    audit.ActionProofGenerated,
		Actor:     id.Truncated(resp.Prover.ID),
		Audience:  req.Audience,
		RequestID: req.RequestID.String(),
		Decision:  audit.DecisionIssued,
		Timestamp: now,
	})
	if s.logger != nil {
		s.logger.Info("proof response built",
			"proof_id", resp.ProofID.String(),
			"request_id", req.RequestID.String(),
			"satisfied", len(satisfied),
		)
	}
	return resp, nil
}

// RecordReceipt stores an anchoring receipt for a bound response. The
// receipt's requestHash is taken from the response binding, so a receipt can
// never reference a hash the response does not carry.
func (s *Service) RecordReceipt(ctx context.Context, proofID id.ProofID, txHash string) (*proof.Receipt, error) {
	resp, err := s.Response(ctx, proofID)
	if err != nil {
		return nil, err
	}
	receipt := &proof.Receipt{
		TxHash:      txHash,
		RequestID:   resp.RequestID,
		ProofID:     resp.ProofID,
		RequestHash: resp.Binding.RequestHash,
		Timestamp:   s.clock.Now().UTC(),
		Type:        proof.ReceiptType,
	}
	if err := receipt.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.SaveReceipt(ctx, receipt); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to persist receipt")
	}

	s.emit(ctx, audit.Event{
		Action:    audit.ActionAnchorRecorded,
		Actor:     resp.Audience,
		Audience:  resp.Audience,
		RequestID: resp.RequestID.String(),
		Decision:  audit.DecisionAnchored,
		Timestamp: receipt.Timestamp,
	})
	return receipt, nil
}

// Request returns a stored proof request.
func (s *Service) Request(ctx context.Context, requestID id.RequestID) (*proof.ProofRequest, error) {
	return s.request(ctx, requestID)
}

// Response returns a stored proof response.
func (s *Service) Response(ctx context.Context, proofID id.ProofID) (*proof.ProofResponse, error) {
	resp, err := s.store.GetResponse(ctx, proofID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown proof response")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to read proof response")
	}
	return resp, nil
}

// Receipt returns the anchoring receipt for a response, when one exists.
func (s *Service) Receipt(ctx context.Context, proofID id.ProofID) (*proof.Receipt, error) {
	receipt, err := s.store.GetReceiptByProof(ctx, proofID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no receipt for proof")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to read receipt")
	}
	return receipt, nil
}

func (s *Service) request(ctx context.Context, requestID id.RequestID) (*proof.ProofRequest, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown proof request")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to read proof request")
	}
	return req, nil
}

func (s *Service) grant(ctx context.Context, grantID id.GrantID) (*proof.ConsentGrant, error) {
	grant, err := s.store.GetGrant(ctx, grantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown consent grant")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to read consent grant")
	}
	return grant, nil
}

// attachCredential fills the credential half of the binding when a single
// credential backs every satisfied permission. Mixed-evidence responses
// carry only the request hash.
func (s *Service) attachCredential(ctx context.Context, binding *proof.Binding, eval *deck.Evaluation, satisfied []id.PermissionID) error {
	var ref string
	for _, perm := range satisfied {
		source := eval.Satisfied[perm]
		if ref == "" {
			ref = source.Ref
			continue
		}
		if source.Ref != ref {
			return nil
		}
	}
	credID, err := id.ParseCredentialID(ref)
	if err != nil {
		// Non-credential evidence refs (attestations, on-chain) are left unbound.
		return nil
	}
	cred, err := s.creds.Get(ctx, credID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "evidence credential disappeared")
		}
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to read evidence credential")
	}
	hash, err := s.issuer.ComputeCredentialHash(cred)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "credential not hashable")
	}
	binding.CredentialID = &credID
	binding.CredentialHash = hash
	return nil
}

// proverID resolves the identity presented to the audience. With a pairwise
// manager configured the master DID never appears on the wire.
func (s *Service) proverID(ctx context.Context, holder id.DID, audience string) string {
	if s.pairwise == nil {
		return holder.String()
	}
	pw, err := s.pairwise.GetOrCreate(ctx, holder, audience)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("pairwise derivation failed, falling back to master DID", "error", err)
		}
		return holder.String()
	}
	return pw.String()
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.Requester = audit.RequesterFromContext(ctx)
	_ = s.auditor.Emit(ctx, event)
}

func joinPermissions(perms []id.PermissionID) string {
	parts := make([]string, len(perms))
	for i, perm := range perms {
		parts[i] = perm.String()
	}
	return strings.Join(parts, ", ")
}
