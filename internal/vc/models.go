// Package vc defines the verifiable credential record shared by the issuer,
// the holder-side store, and the anchor coordinator.
package vc

import (
	"time"

	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
)

// Version is the fixed protocol tag carried by every credential. Artifacts
// with any other tag are rejected so schema evolution happens by version
// bump, not silent drift.
const Version = "0.1"

// Proof is the signature block attached to an issued credential.
type Proof struct {
	Type               string    `json:"type" validate:"required"`
	Created            time.Time `json:"created" validate:"required"`
	VerificationMethod string    `json:"verificationMethod" validate:"required"`
	Signature          string    `json:"signature" validate:"required"`
}

// Credential is a signed claim set from an issuer about a subject.
// Claim values are booleans, strings, or numbers. A claim is "truthy" when it
// is boolean true, a non-empty string, or any number - zero included. That
// rule governs permission grants, so it must not drift.
type Credential struct {
	ID        id.CredentialID `json:"id"`
	Issuer    id.DID          `json:"issuer" validate:"required"`
	Subject   id.DID          `json:"subject" validate:"required"`
	IssuedAt  time.Time       `json:"issuedAt" validate:"required"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
	Claims    map[string]any  `json:"claims" validate:"required"`
	Proof     *Proof          `json:"proof,omitempty"`
	Version   string          `json:"version" validate:"required"`
}

// Validate checks the structural invariants that validator tags cannot
// express.
func (c *Credential) Validate() error {
	if c.ID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "credential ID required")
	}
	if c.Version != Version {
		return dErrors.New(dErrors.CodeVersionMismatch, "unsupported credential version")
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(c.IssuedAt) {
		return dErrors.New(dErrors.CodeValidation, "expiresAt must be after issuedAt")
	}
	if c.Claims == nil {
		return dErrors.New(dErrors.CodeValidation, "claims required")
	}
	for key, value := range c.Claims {
		if !ValidClaimValue(value) {
			return dErrors.New(dErrors.CodeValidation, "claim "+key+" must be a boolean, string, or number")
		}
	}
	return nil
}

// IsValidAt reports whether the credential is unexpired at the given time.
// A credential with no expiry never expires.
func (c *Credential) IsValidAt(now time.Time) bool {
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}

// ValidClaimValue reports whether v is an allowed claim value type.
// json decoding yields float64 for all numbers; int variants cover
// programmatic construction.
func ValidClaimValue(v any) bool {
	switch v.(type) {
	case bool, string, float64, float32, int, int32, int64:
		return true
	default:
		return false
	}
}

// Truthy reports whether a claim value satisfies a required claim.
// Boolean false, the empty string, and nil are the only falsy values;
// numeric zero is truthy.
func Truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	default:
		return v != nil
	}
}
