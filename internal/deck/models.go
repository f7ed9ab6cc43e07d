// Package deck holds permission decks: named, versioned templates of what an
// issuer or app can ask a holder to disclose, and the holder-side instances
// mapping permissions to evidence sources.
package deck

import (
	"time"

	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
)

// EvidenceType identifies how a permission is proven.
type EvidenceType string

const (
	EvidenceZK          EvidenceType = "zk"
	EvidenceVC          EvidenceType = "vc"
	EvidenceOnChain     EvidenceType = "onchain"
	EvidenceAttestation EvidenceType = "attestation"
)

// IsValid reports whether the evidence type is one of the known values.
func (e EvidenceType) IsValid() bool {
	switch e {
	case EvidenceZK, EvidenceVC, EvidenceOnChain, EvidenceAttestation:
		return true
	}
	return false
}

// PrivacyLevel bounds how much of the underlying claim a disclosure reveals.
type PrivacyLevel string

const (
	PrivacyBooleanOnly PrivacyLevel = "boolean-only"
	PrivacyRange       PrivacyLevel = "range"
	PrivacyFields      PrivacyLevel = "fields"
)

// IsValid reports whether the privacy level is one of the known values.
func (p PrivacyLevel) IsValid() bool {
	switch p {
	case PrivacyBooleanOnly, PrivacyRange, PrivacyFields:
		return true
	}
	return false
}

// IssuerPolicy restricts which issuers may back a permission.
// When both allow and deny are present, deny takes precedence.
type IssuerPolicy struct {
	Allow    []id.DID `yaml:"allow" json:"allow,omitempty"`
	Deny     []id.DID `yaml:"deny" json:"deny,omitempty"`
	MinTrust int      `yaml:"minTrust" json:"minTrust,omitempty"`
}

// Permits reports whether an issuer with the given trust score may back a
// permission under this policy.
func (p *IssuerPolicy) Permits(issuer id.DID, trust int) bool {
	if p == nil {
		return true
	}
	for _, denied := range p.Deny {
		if denied == issuer {
			return false
		}
	}
	if len(p.Allow) > 0 {
		allowed := false
		for _, a := range p.Allow {
			if a == issuer {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	return trust >= p.MinTrust
}

// PermissionDefinition describes one disclosable claim type.
// RequiredClaims lists the claim keys a backing credential must carry with
// truthy values; when empty, the permission id itself is the required claim.
type PermissionDefinition struct {
	ID               id.PermissionID `yaml:"id" json:"id"`
	EvidenceType     EvidenceType    `yaml:"evidenceType" json:"evidenceType"`
	PrivacyLevel     PrivacyLevel    `yaml:"privacyLevel" json:"privacyLevel"`
	RequiredClaims   []string        `yaml:"requiredClaims" json:"requiredClaims,omitempty"`
	IssuerPolicy     *IssuerPolicy   `yaml:"issuerPolicy" json:"issuerPolicy,omitempty"`
	FreshnessSeconds int64           `yaml:"freshnessSeconds" json:"freshnessSeconds,omitempty"`
}

// ClaimKeys returns the claim keys this permission requires.
func (p *PermissionDefinition) ClaimKeys() []string {
	if len(p.RequiredClaims) > 0 {
		return p.RequiredClaims
	}
	return []string{string(p.ID)}
}

// Definition is a named, versioned template of permissions.
type Definition struct {
	DeckID      id.DeckID              `yaml:"deckId" json:"deckId"`
	Name        string                 `yaml:"name" json:"name"`
	Version     string                 `yaml:"version" json:"version"`
	Issuer      id.DID                 `yaml:"issuer" json:"issuer"`
	Permissions []PermissionDefinition `yaml:"permissions" json:"permissions"`
}

// Validate checks deck invariants: non-empty id, unique permission ids, and
// known enum values throughout.
func (d *Definition) Validate() error {
	if d.DeckID == "" {
		return dErrors.New(dErrors.CodeValidation, "deck id required")
	}
	if len(d.Permissions) == 0 {
		return dErrors.New(dErrors.CodeValidation, "deck "+string(d.DeckID)+" has no permissions")
	}
	seen := make(map[id.PermissionID]bool, len(d.Permissions))
	for i := range d.Permissions {
		perm := &d.Permissions[i]
		if perm.ID == "" {
			return dErrors.New(dErrors.CodeValidation, "deck "+string(d.DeckID)+" has a permission without an id")
		}
		if seen[perm.ID] {
			return dErrors.New(dErrors.CodeValidation, "duplicate permission id "+string(perm.ID)+" in deck "+string(d.DeckID))
		}
		seen[perm.ID] = true
		if !perm.EvidenceType.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "permission "+string(perm.ID)+" has unknown evidence type")
		}
		if !perm.PrivacyLevel.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "permission "+string(perm.ID)+" has unknown privacy level")
		}
	}
	return nil
}

// Permission returns the definition for the given permission id.
func (d *Definition) Permission(permID id.PermissionID) (*PermissionDefinition, bool) {
	for i := range d.Permissions {
		if d.Permissions[i].ID == permID {
			return &d.Permissions[i], true
		}
	}
	return nil, false
}

// SourceRef points at the evidence satisfying a permission. Type determines
// how Ref is dereferenced: a credential id, a transaction hash, or an
// attestation id.
type SourceRef struct {
	Type     EvidenceType      `json:"type"`
	Ref      string            `json:"ref"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Instance is a holder's instantiation of a deck: which evidence backs which
// permission. Sources keys are always a subset of the deck's permission ids;
// unsatisfied permissions have no entry.
type Instance struct {
	InstanceID id.InstanceID                  `json:"instanceId"`
	DeckID     id.DeckID                      `json:"deckId"`
	OwnerDID   id.DID                         `json:"ownerDid"`
	Sources    map[id.PermissionID]SourceRef  `json:"sources"`
	CreatedAt  time.Time                      `json:"createdAt"`
}
