package credstore

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proofdeck/internal/vc"
	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
)

const (
	holderDID = id.DID("did:key:z6MkHolder")
	otherDID  = id.DID("did:key:z6MkOther")
	issuerDID = id.DID("did:pdk:0123456789abcdef0123456789abcdef")
)

func newCredential(subject id.DID, issuedAt time.Time, expiresAt *time.Time, claims map[string]any) *vc.Credential {
	return &vc.Credential{
		ID:        id.CredentialID(uuid.New()),
		Issuer:    issuerDID,
		Subject:   subject,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Claims:    claims,
		Version:   vc.Version,
	}
}

func testMatcher(t *testing.T) (*Matcher, *InMemoryStore, *clock.Mock) {
	t.Helper()
	store := NewInMemoryStore()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewMatcher(store, mock), store, mock
}

func TestValidCredentialsFiltersExpired(t *testing.T) {
	matcher, store, mock := testMatcher(t)
	now := mock.Now()

	expired := now.Add(-time.Minute)
	live := now.Add(time.Hour)
	require.NoError(t, store.Save(context.Background(), newCredential(holderDID, now.Add(-2*time.Hour), &expired, map[string]any{"a": true})))
	require.NoError(t, store.Save(context.Background(), newCredential(holderDID, now.Add(-time.Hour), &live, map[string]any{"b": true})))
	require.NoError(t, store.Save(context.Background(), newCredential(holderDID, now.Add(-time.Hour), nil, map[string]any{"c": true})))

	valid, err := matcher.ValidCredentials(context.Background(), holderDID)
	require.NoError(t, err)
	assert.Len(t, valid, 2)
}

func TestValidCredentialsOrdersMostRecentFirst(t *testing.T) {
	matcher, store, mock := testMatcher(t)
	now := mock.Now()

	older := newCredential(holderDID, now.Add(-3*time.Hour), nil, map[string]any{"k": "old"})
	newer := newCredential(holderDID, now.Add(-time.Hour), nil, map[string]any{"k": "new"})
	// Insertion order is oldest-last on purpose; ordering must not depend on it.
	require.NoError(t, store.Save(context.Background(), newer))
	require.NoError(t, store.Save(context.Background(), older))

	valid, err := matcher.ValidCredentials(context.Background(), holderDID)
	require.NoError(t, err)
	require.Len(t, valid, 2)
	assert.Equal(t, "new", valid[0].Claims["k"])
	assert.Equal(t, "old", valid[1].Claims["k"])
}

func TestFindWithClaimsConjunction(t *testing.T) {
	matcher, store, mock := testMatcher(t)
	cred := newCredential(holderDID, mock.Now().Add(-time.Hour), nil, map[string]any{
		"over18":  true,
		"country": "US",
	})
	require.NoError(t, store.Save(context.Background(), cred))

	found, err := matcher.FindWithClaims(context.Background(), holderDID, []string{"over18", "country"})
	require.NoError(t, err)
	assert.Equal(t, cred.ID, found.ID)

	_, err = matcher.FindWithClaims(context.Background(), holderDID, []string{"over18", "income"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestFindWithClaimsTruthiness(t *testing.T) {
	matcher, store, mock := testMatcher(t)
	cred := newCredential(holderDID, mock.Now().Add(-time.Hour), nil, map[string]any{
		"flagFalse":   false,
		"emptyString": "",
		"zeroNumber":  float64(0),
	})
	require.NoError(t, store.Save(context.Background(), cred))

	_, err := matcher.FindWithClaims(context.Background(), holderDID, []string{"flagFalse"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound), "boolean false is falsy")

	_, err = matcher.FindWithClaims(context.Background(), holderDID, []string{"emptyString"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound), "empty string is falsy")

	// Numeric zero is truthy; this governs permission grants and must not drift.
	found, err := matcher.FindWithClaims(context.Background(), holderDID, []string{"zeroNumber"})
	require.NoError(t, err)
	assert.Equal(t, cred.ID, found.ID)
}

func TestFindWithClaimsDoesNotCombineCredentials(t *testing.T) {
	matcher, store, mock := testMatcher(t)
	now := mock.Now()
	require.NoError(t, store.Save(context.Background(), newCredential(holderDID, now.Add(-time.Hour), nil, map[string]any{"over18": true})))
	require.NoError(t, store.Save(context.Background(), newCredential(holderDID, now.Add(-time.Hour), nil, map[string]any{"country": "US"})))

	_, err := matcher.FindWithClaims(context.Background(), holderDID, []string{"over18", "country"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestStoreViews(t *testing.T) {
	_, store, mock := testMatcher(t)
	now := mock.Now()

	mine := newCredential(holderDID, now, nil, map[string]any{"a": true})
	theirs := newCredential(otherDID, now, nil, map[string]any{"b": true})
	require.NoError(t, store.Save(context.Background(), mine))
	require.NoError(t, store.Save(context.Background(), theirs))

	bySubject, err := store.ListBySubject(context.Background(), holderDID)
	require.NoError(t, err)
	require.Len(t, bySubject, 1)
	assert.Equal(t, mine.ID, bySubject[0].ID)

	byIssuer, err := store.ListByIssuer(context.Background(), issuerDID)
	require.NoError(t, err)
	assert.Len(t, byIssuer, 2)

	got, err := store.Get(context.Background(), mine.ID)
	require.NoError(t, err)
	// Stores hand out copies; mutating the result must not affect storage.
	got.Claims["a"] = false
	again, err := store.Get(context.Background(), mine.ID)
	require.NoError(t, err)
	assert.Equal(t, true, again.Claims["a"])
}
