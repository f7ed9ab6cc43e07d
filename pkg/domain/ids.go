// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "proofdeck/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a RequestID where a ProofID is expected.
type (
	RequestID    uuid.UUID
	GrantID      uuid.UUID
	ProofID      uuid.UUID
	CredentialID uuid.UUID
	InstanceID   uuid.UUID
)

// DeckID is a human-assigned deck identifier (e.g. "kyc-basic").
type DeckID string

// DID is a decentralized identifier string (e.g. "did:key:z6Mk...", "did:pair:ab12...").
type DID string

// PermissionID names one disclosable claim type within a deck (e.g. "kyc.over18").
type PermissionID string

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseRequestID(s string) (RequestID, error) {
	id, err := parseUUID(s, "request ID")
	return RequestID(id), err
}

func ParseGrantID(s string) (GrantID, error) {
	id, err := parseUUID(s, "grant ID")
	return GrantID(id), err
}

func ParseProofID(s string) (ProofID, error) {
	id, err := parseUUID(s, "proof ID")
	return ProofID(id), err
}

func ParseCredentialID(s string) (CredentialID, error) {
	id, err := parseUUID(s, "credential ID")
	return CredentialID(id), err
}

func ParseInstanceID(s string) (InstanceID, error) {
	id, err := parseUUID(s, "instance ID")
	return InstanceID(id), err
}

// ParseDID validates the generic did:<method>:<id> shape. Method-specific
// validation belongs to the resolver.
func ParseDID(s string) (DID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "DID cannot be empty")
	}
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] != "did" || parts[1] == "" || parts[2] == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid DID format")
	}
	return DID(s), nil
}

// String methods - for logging and debugging.

func (id RequestID) String() string    { return uuid.UUID(id).String() }
func (id GrantID) String() string      { return uuid.UUID(id).String() }
func (id ProofID) String() string      { return uuid.UUID(id).String() }
func (id CredentialID) String() string { return uuid.UUID(id).String() }
func (id InstanceID) String() string   { return uuid.UUID(id).String() }
func (id DeckID) String() string       { return string(id) }
func (d DID) String() string           { return string(d) }
func (p PermissionID) String() string  { return string(p) }

// IsNil checks - used for service-layer validation.

func (id RequestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id GrantID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ProofID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id CredentialID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id InstanceID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// Method reports the DID method prefix ("key", "pair", "xrpl"), or "" when
// the DID is malformed.
func (d DID) Method() string {
	parts := strings.SplitN(string(d), ":", 3)
	if len(parts) != 3 {
		return ""
	}
	return parts[1]
}

// Truncated returns a display-safe prefix of the identifier. Reports and logs
// use it so full identifiers never leak into diagnostics.
func Truncated(s string) string {
	const keep = 12
	if len(s) <= keep {
		return s
	}
	return s[:keep] + "…"
}

// parseUUID is the shared validation logic.
// Nil UUIDs are allowed here; use IsNil() at the service layer for business
// validation so store lookups can return proper "not found" errors.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
