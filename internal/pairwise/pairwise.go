// Package pairwise derives deterministic per-audience identifiers from a
// master identity so relying parties cannot correlate one holder across
// contexts.
package pairwise

import (
	"time"

	"proofdeck/internal/canonical"
	id "proofdeck/pkg/domain"
)

// MethodPrefix tags derived identifiers with their DID method.
const MethodPrefix = "did:pair:"

// derivedBits is the truncation width of the derivation digest.
// 128 bits keeps identifiers short while collisions stay negligible.
const derivedHexChars = 32

// Entry is the persisted mapping from (master, audience) to the derived
// identifier. Persisted rows are authoritative over recomputation so already
// issued identifiers survive future tuning of the derivation.
type Entry struct {
	MasterDID   id.DID    `json:"master_did"`
	Audience    string    `json:"audience"`
	PairwiseDID id.DID    `json:"pairwise_did"`
	CreatedAt   time.Time `json:"created_at"`
}

// Derive computes the pairwise identifier for (master, audience).
// Pure and deterministic: same inputs always yield the same output.
func Derive(master id.DID, audience string) id.DID {
	digest := canonical.Digest(string(master) + "|" + audience)
	return id.DID(MethodPrefix + digest[:derivedHexChars])
}
