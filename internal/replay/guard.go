// Package replay is the nonce admission cache. A (audience, nonce) pair is
// admitted exactly once within its TTL; admission is the protocol's only
// mutating verification step, so the has-then-add sequence must be atomic
// per key.
package replay

import (
	"context"
	"time"
)

// Key builds the admission key for an audience and nonce.
func Key(audience, nonce string) string {
	return audience + ":" + nonce
}

// Guard is the admission-control boundary.
// Error Contract:
// - Admit returns sentinel.ErrAlreadyUsed when the key is already admitted
//   and unexpired; the check and the insert are atomic per key
// - Has never mutates
type Guard interface {
	Admit(ctx context.Context, key string, ttl time.Duration) error
	Has(ctx context.Context, key string) (bool, error)
}
