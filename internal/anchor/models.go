// Package anchor records credential hashes on an external ledger and checks
// credentials against those records offline.
package anchor

import (
	"time"

	id "proofdeck/pkg/domain"
)

// Record is the persisted anchoring outcome for one credential, keyed by
// credential id.
type Record struct {
	CredentialID   id.CredentialID `json:"credentialId"`
	CredentialHash string          `json:"credentialHash"`
	TxHash         string          `json:"txHash"`
	Network        string          `json:"network"`
	AnchoredAt     time.Time       `json:"anchoredAt"`
}

// Result carries the anchoring outcome. Submission failure populates Err
// instead of aborting, so callers decide whether anchoring is mandatory or
// best-effort for their flow.
type Result struct {
	Record *Record `json:"record,omitempty"`
	Err    string  `json:"error,omitempty"`
}

// OK reports whether anchoring succeeded.
func (r *Result) OK() bool {
	return r.Err == "" && r.Record != nil
}
