// Package wallet is the external signing boundary backing signer.type
// "xrpl" grants. Not every environment has one; callers must treat
// unavailability as a capability check and fall back to locally-held
// signing identities.
package wallet

import (
	"context"

	dErrors "proofdeck/pkg/domain-errors"
)

// Wallet exposes externally-held signing keys.
// Error Contract:
// - operations on an unavailable wallet return a domain error with
//   CodeCapabilityUnavailable; this is recoverable, never fatal
// - SignData returns CodeNotFound for an address the wallet does not hold
type Wallet interface {
	Available() bool
	Addresses(ctx context.Context) ([]string, error)
	SignData(ctx context.Context, address string, payload []byte) (string, error)
}

// ErrUnavailable is the canonical capability failure for wallet operations.
func ErrUnavailable() error {
	return dErrors.New(dErrors.CodeCapabilityUnavailable, "wallet not available in this environment")
}

// Unavailable is the wallet used where no external signer exists. Every
// operation fails the capability check.
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

func (Unavailable) Addresses(context.Context) ([]string, error) {
	return nil, ErrUnavailable()
}

func (Unavailable) SignData(context.Context, string, []byte) (string, error) {
	return "", ErrUnavailable()
}
