package credstore

import (
	"context"
	"sort"

	"github.com/benbjohnson/clock"

	"proofdeck/internal/vc"
	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
)

// Matcher resolves required claims against held credentials.
type Matcher struct {
	store Store
	clock clock.Clock
}

// NewMatcher constructs a Matcher over the given store.
func NewMatcher(store Store, clk clock.Clock) *Matcher {
	if clk == nil {
		clk = clock.New()
	}
	return &Matcher{store: store, clock: clk}
}

// ValidCredentials returns the subject's credentials whose expiry is absent
// or strictly in the future, ordered most-recently-issued first. The
// ordering is deliberate: it keeps first-match resolution stable regardless
// of how the underlying storage returns rows.
func (m *Matcher) ValidCredentials(ctx context.Context, subject id.DID) ([]*vc.Credential, error) {
	creds, err := m.store.ListBySubject(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list credentials")
	}
	now := m.clock.Now()
	valid := creds[:0]
	for _, cred := range creds {
		if cred.IsValidAt(now) {
			valid = append(valid, cred)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].IssuedAt.After(valid[j].IssuedAt)
	})
	return valid, nil
}

// FindWithClaims returns the first valid credential whose claim set contains
// every required claim key with a truthy value. Conjunctive and first-match:
// claims are never combined across credentials, and candidates beyond the
// first match are not ranked. Returns CodeNotFound when nothing satisfies
// all required claims.
func (m *Matcher) FindWithClaims(ctx context.Context, subject id.DID, requiredClaims []string) (*vc.Credential, error) {
	if len(requiredClaims) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "required claims must not be empty")
	}
	valid, err := m.ValidCredentials(ctx, subject)
	if err != nil {
		return nil, err
	}
	for _, cred := range valid {
		if HasAllClaims(cred, requiredClaims) {
			return cred, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "no credential satisfies the required claims")
}

// HasAllClaims reports whether the credential carries every required claim
// key with a truthy value.
func HasAllClaims(cred *vc.Credential, required []string) bool {
	for _, key := range required {
		value, ok := cred.Claims[key]
		if !ok || !vc.Truthy(value) {
			return false
		}
	}
	return true
}
