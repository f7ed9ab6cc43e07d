// Package proof hosts the stable wire DTOs of the consent-proof exchange.
// These shapes are persisted and exchanged as JSON; field sets are frozen
// per version tag, and artifacts carrying an unknown version are rejected
// rather than coerced.
package proof

import (
	"fmt"
	"time"

	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
	"proofdeck/pkg/validation"
)

// Version is the wire schema tag stamped on every artifact below. Schema
// evolution happens by version bump, never by silent field drift.
const Version = "0.1"

// SignerType selects which key material backs a signature.
type SignerType string

const (
	SignerDID  SignerType = "did"
	SignerXRPL SignerType = "xrpl"
)

// Signer identifies the signing identity on a grant or response.
type Signer struct {
	Type SignerType `json:"type" validate:"required,oneof=did xrpl"`
	ID   string     `json:"id" validate:"required,notblank"`
}

// ProofRequest is the verifier's ask: which permissions must be proven, to
// which audience, under which nonce. The request is not self-authenticating;
// its integrity is established only once a response binds to its canonical
// hash.
type ProofRequest struct {
	RequestID           id.RequestID      `json:"requestId" validate:"required"`
	RequiredPermissions []id.PermissionID `json:"requiredPermissions" validate:"required,min=1,dive,notblank"`
	Nonce               string            `json:"nonce" validate:"required,min=32,max=64"`
	Audience            string            `json:"audience" validate:"required,notblank"`
	IssuedAt            time.Time         `json:"issuedAt" validate:"required"`
	ExpiresAt           time.Time         `json:"expiresAt" validate:"required"`
	Version             string            `json:"version" validate:"required"`
}

// Validate checks schema constraints that hold independent of clock time.
func (r *ProofRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	if err := checkVersion(r.Version); err != nil {
		return err
	}
	if r.RequestID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "request_id is required")
	}
	if !r.ExpiresAt.After(r.IssuedAt) {
		return dErrors.New(dErrors.CodeValidation, "expires_at must be after issued_at")
	}
	return nil
}

// ValidAt reports whether the request is inside its validity window,
// tolerating the given clock skew on both edges.
func (r *ProofRequest) ValidAt(now time.Time, skew time.Duration) bool {
	return !now.Add(skew).Before(r.IssuedAt) && now.Before(r.ExpiresAt.Add(skew))
}

// ConsentGrant is the holder's signed authorization. It restates the
// request's nonce and audience so the signature covers the full binding
// context, not just the permission list.
type ConsentGrant struct {
	GrantID     id.GrantID        `json:"grantId" validate:"required"`
	RequestID   id.RequestID      `json:"requestId" validate:"required"`
	Audience    string            `json:"audience" validate:"required,notblank"`
	Nonce       string            `json:"nonce" validate:"required,min=32,max=64"`
	Permissions []id.PermissionID `json:"permissions" validate:"required,min=1,dive,notblank"`
	Signer      Signer            `json:"signer" validate:"required"`
	Signature   string            `json:"signature" validate:"required,notblank"`
	IssuedAt    time.Time         `json:"issuedAt" validate:"required"`
	ExpiresAt   time.Time         `json:"expiresAt" validate:"required"`
	Version     string            `json:"version" validate:"required"`
}

// Validate checks schema constraints. Signature verification and
// request/grant cross-checks happen in the protocol service, which has the
// originating request at hand.
func (g *ConsentGrant) Validate() error {
	if err := validation.Validate(g); err != nil {
		return err
	}
	if err := checkVersion(g.Version); err != nil {
		return err
	}
	if g.GrantID.IsNil() || g.RequestID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "grant_id and request_id are required")
	}
	if !g.ExpiresAt.After(g.IssuedAt) {
		return dErrors.New(dErrors.CodeValidation, "expires_at must be after issued_at")
	}
	return nil
}

// SigningBase is the payload the grant signature covers: everything except
// the signature itself. Canonicalized before signing so key order cannot
// change the signed bytes.
func (g *ConsentGrant) SigningBase() map[string]any {
	return map[string]any{
		"grantId":     g.GrantID,
		"requestId":   g.RequestID,
		"audience":    g.Audience,
		"nonce":       g.Nonce,
		"permissions": g.Permissions,
		"signer":      g.Signer,
		"issuedAt":    g.IssuedAt,
		"expiresAt":   g.ExpiresAt,
		"version":     g.Version,
	}
}

// Binding ties a response to the exact request that solicited it, and
// optionally to the single credential that served as evidence.
type Binding struct {
	RequestHash    string           `json:"requestHash" validate:"required,notblank"`
	CredentialID   *id.CredentialID `json:"credentialId,omitempty"`
	CredentialHash string           `json:"credentialHash,omitempty"`
}

// ProofResponse is the holder's bound answer. Verified reflects the
// holder's local self-check only; verifiers must re-run the full pipeline.
type ProofResponse struct {
	ProofID              id.ProofID        `json:"proofId" validate:"required"`
	RequestID            id.RequestID      `json:"requestId" validate:"required"`
	Audience             string            `json:"audience" validate:"required,notblank"`
	Nonce                string            `json:"nonce" validate:"required,min=32,max=64"`
	SatisfiedPermissions []id.PermissionID `json:"satisfiedPermissions" validate:"required,min=1,dive,notblank"`
	Verified             bool              `json:"verified"`
	Binding              Binding           `json:"binding" validate:"required"`
	Prover               Signer            `json:"prover" validate:"required"`
	IssuedAt             time.Time         `json:"issuedAt" validate:"required"`
	ExpiresAt            time.Time         `json:"expiresAt" validate:"required"`
	Version              string            `json:"version" validate:"required"`
}

// Validate checks schema constraints only; binding, temporal, replay and
// coverage checks run in the verification pipeline.
func (p *ProofResponse) Validate() error {
	if err := validation.Validate(p); err != nil {
		return err
	}
	if err := checkVersion(p.Version); err != nil {
		return err
	}
	if p.ProofID.IsNil() || p.RequestID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "proof_id and request_id are required")
	}
	if !p.ExpiresAt.After(p.IssuedAt) {
		return dErrors.New(dErrors.CodeValidation, "expires_at must be after issued_at")
	}
	if p.Binding.CredentialID != nil && p.Binding.CredentialHash == "" {
		return dErrors.New(dErrors.CodeValidation, "credential_hash is required when credential_id is set")
	}
	return nil
}

// ValidAt reports whether the response is inside its validity window,
// tolerating the given clock skew.
func (p *ProofResponse) ValidAt(now time.Time, skew time.Duration) bool {
	return !now.Add(skew).Before(p.IssuedAt) && now.Before(p.ExpiresAt.Add(skew))
}

// ReceiptType is the only receipt kind the protocol emits today.
const ReceiptType = "proof_generated"

// Receipt records the anchoring of a bound response on an external ledger.
type Receipt struct {
	TxHash      string       `json:"txHash" validate:"required,notblank"`
	RequestID   id.RequestID `json:"requestId" validate:"required"`
	ProofID     id.ProofID   `json:"proofId" validate:"required"`
	RequestHash string       `json:"requestHash" validate:"required,notblank"`
	Timestamp   time.Time    `json:"timestamp" validate:"required"`
	Type        string       `json:"type" validate:"required,eq=proof_generated"`
}

// Validate checks schema constraints. The requestHash cross-check against
// the bound response happens where both artifacts are in hand.
func (r *Receipt) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	if r.RequestID.IsNil() || r.ProofID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "request_id and proof_id are required")
	}
	return nil
}

func checkVersion(v string) error {
	if v != Version {
		return dErrors.New(dErrors.CodeVersionMismatch,
			fmt.Sprintf("unsupported artifact version %q, want %q", v, Version))
	}
	return nil
}
