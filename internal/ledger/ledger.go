// Package ledger is the external anchoring boundary. The protocol depends
// only on getting a transaction hash back on success or an explicit failure;
// it never inspects ledger transaction internals.
package ledger

import (
	"context"
	"time"
)

// Tx is the slice of a ledger transaction the protocol cares about.
type Tx struct {
	Hash        string    `json:"hash"`
	Network     string    `json:"network"`
	Payload     []byte    `json:"payload"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Client is the ledger collaborator contract.
// Error Contract:
// - Submit and Fetch on a client that is not connected return a domain error
//   with CodeCapabilityUnavailable; callers treat this as a capability check,
//   not a fatal condition
// - Fetch returns sentinel.ErrNotFound for an unknown transaction hash
type Client interface {
	Connect(ctx context.Context, network string) error
	Submit(ctx context.Context, signedTx []byte) (string, error)
	Fetch(ctx context.Context, txHash string) (*Tx, error)
}
