// Package credstore is the holder-side credential cache: storage indexed by
// credential id with derived views by subject and issuer, plus the claim
// matcher that deck evaluation builds on.
package credstore

import (
	"context"

	"proofdeck/internal/vc"
	id "proofdeck/pkg/domain"
)

// Store defines persistence for held credentials.
// Error Contract:
// - Get returns sentinel.ErrNotFound when the credential does not exist
// - List methods return empty slices, not errors, when nothing matches
// - Save returns nil on success or a wrapped error on failure
type Store interface {
	Save(ctx context.Context, cred *vc.Credential) error
	Get(ctx context.Context, credID id.CredentialID) (*vc.Credential, error)
	ListBySubject(ctx context.Context, subject id.DID) ([]*vc.Credential, error)
	ListByIssuer(ctx context.Context, issuer id.DID) ([]*vc.Credential, error)
	Delete(ctx context.Context, credID id.CredentialID) error
}
