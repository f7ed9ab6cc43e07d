package issuer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"proofdeck/internal/audit"
	"proofdeck/internal/canonical"
	"proofdeck/internal/vc"
	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
	"proofdeck/pkg/sentinel"
)

// CredentialStore is the persistence slot for issued credentials. The full
// store lives in the credstore package; the issuer only needs Save.
type CredentialStore interface {
	Save(ctx context.Context, cred *vc.Credential) error
}

// Option configures the Service.
type Option func(*Service)

// WithScheme overrides the signing scheme. Defaults to Ed25519.
func WithScheme(scheme Scheme) Option {
	return func(s *Service) { s.scheme = scheme }
}

// WithClock overrides the time source, for tests.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) { s.clock = clk }
}

// WithAuditor attaches an audit publisher for issuance events.
func WithAuditor(auditor *audit.Publisher) Option {
	return func(s *Service) { s.auditor = auditor }
}

// Service owns the issuer keypair lifecycle and credential issuance.
// It must be initialized before any signing operation; calls made earlier
// fail with CodeNotInitialized.
type Service struct {
	keys   KeyStore
	creds  CredentialStore
	scheme Scheme
	clock  clock.Clock
	logger *slog.Logger
	auditor *audit.Publisher

	mu sync.RWMutex
	kp *KeyPair
}

// NewService constructs an uninitialized issuer service.
func NewService(keys KeyStore, creds CredentialStore, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		keys:   keys,
		creds:  creds,
		scheme: Ed25519Scheme{},
		clock:  clock.New(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Initialize loads the persisted keypair or generates and persists a fresh
// one. Load failures other than "not found" are surfaced so the caller can
// choose between starting fresh and aborting.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kp != nil {
		return nil
	}

	kp, err := s.keys.Load(ctx)
	switch {
	case err == nil:
		s.kp = kp
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		// Fall through to generation.
	default:
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to load issuer keypair")
	}

	kp, err = GenerateKeyPair(s.clock.Now())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate issuer keypair")
	}
	if err := s.keys.Save(ctx, kp); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to persist issuer keypair")
	}
	s.kp = kp
	if s.logger != nil {
		s.logger.Info("issuer initialized", "issuer_id", id.Truncated(kp.IssuerID.String()))
	}
	return nil
}

// IssuerID returns the derived issuer identifier.
func (s *Service) IssuerID() (id.DID, error) {
	kp, err := s.keypair()
	if err != nil {
		return "", err
	}
	return kp.IssuerID, nil
}

// PublicKey returns the issuer's public key bytes.
func (s *Service) PublicKey() ([]byte, error) {
	kp, err := s.keypair()
	if err != nil {
		return nil, err
	}
	return kp.PublicKey, nil
}

// IssueCredential builds, signs, validates, and persists a credential for
// the subject. expiresIn of zero means the credential never expires.
func (s *Service) IssueCredential(ctx context.Context, subject id.DID, claims map[string]any, expiresIn time.Duration) (*vc.Credential, error) {
	kp, err := s.keypair()
	if err != nil {
		return nil, err
	}
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject required")
	}

	now := s.clock.Now().UTC()
	cred := &vc.Credential{
		ID:       id.CredentialID(uuid.New()),
		Issuer:   kp.IssuerID,
		Subject:  subject,
		IssuedAt: now,
		Claims:   claims,
		Version:  vc.Version,
	}
	if expiresIn > 0 {
		expiry := now.Add(expiresIn)
		cred.ExpiresAt = &expiry
	}

	// Malformed claims fail validation before any signature work.
	if err := cred.Validate(); err != nil {
		return nil, err
	}

	signature, err := s.signEnvelope(kp, cred)
	if err != nil {
		return nil, err
	}
	cred.Proof = &vc.Proof{
		Type:               s.scheme.Type(),
		Created:            now,
		VerificationMethod: kp.IssuerID.String(),
		Signature:          signature,
	}

	if err := s.creds.Save(ctx, cred); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to persist credential")
	}

	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionCredentialIssued,
		Subject:   id.Truncated(subject.String()),
		Actor:     id.Truncated(kp.IssuerID.String()),
		Decision:  audit.DecisionIssued,
		Timestamp: now,
	})
	if s.logger != nil {
		s.logger.Info("credential issued",
			"credential_id", cred.ID.String(),
			"subject", id.Truncated(subject.String()),
			"claims", len(claims),
		)
	}
	return cred, nil
}

// VerifyCredentialSignature recomputes the expected signature from the
// credential's own fields and the issuer public key. Any field tamper,
// including issuer mismatch, flips the result to false - never to an error,
// so verification call sites can report instead of crash.
func (s *Service) VerifyCredentialSignature(cred *vc.Credential) bool {
	kp, err := s.keypair()
	if err != nil {
		return false
	}
	if cred == nil || cred.Proof == nil {
		return false
	}
	if cred.Issuer != kp.IssuerID {
		return false
	}
	data, err := signingBase(cred)
	if err != nil {
		return false
	}
	return s.scheme.Verify(kp.PublicKey, data, cred.Proof.Signature)
}

// ComputeCredentialHash is the canonical hash over the full credential
// including its proof block, used for anchoring and response binding.
func (s *Service) ComputeCredentialHash(cred *vc.Credential) (string, error) {
	return canonical.RequestHash(cred)
}

// Sign signs arbitrary data with the issuer key. Used to back consent-grant
// signatures for signer.type "did".
func (s *Service) Sign(data []byte) (string, error) {
	kp, err := s.keypair()
	if err != nil {
		return "", err
	}
	return s.scheme.Sign(kp, data)
}

// VerifySignature checks a signature produced by Sign.
func (s *Service) VerifySignature(data []byte, signature string) bool {
	kp, err := s.keypair()
	if err != nil {
		return false
	}
	return s.scheme.Verify(kp.PublicKey, data, signature)
}

func (s *Service) keypair() (*KeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.kp == nil {
		return nil, dErrors.New(dErrors.CodeNotInitialized, "issuer not initialized")
	}
	return s.kp, nil
}

func (s *Service) signEnvelope(kp *KeyPair, cred *vc.Credential) (string, error) {
	data, err := signingBase(cred)
	if err != nil {
		return "", err
	}
	sig, err := s.scheme.Sign(kp, data)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "credential signing failed")
	}
	return sig, nil
}

// signingBase is the canonical hash of the fields covered by the credential
// signature. The credential ID is excluded: the signature binds content, the
// ID binds storage.
func signingBase(cred *vc.Credential) ([]byte, error) {
	envelope := map[string]any{
		"issuer":    cred.Issuer,
		"subject":   cred.Subject,
		"issuedAt":  cred.IssuedAt,
		"expiresAt": cred.ExpiresAt,
		"claims":    cred.Claims,
		"version":   cred.Version,
	}
	hash, err := canonical.RequestHash(envelope)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "credential envelope not hashable")
	}
	return []byte(hash), nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, event)
}
