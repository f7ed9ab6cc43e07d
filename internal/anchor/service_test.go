package anchor

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proofdeck/internal/ledger"
	"proofdeck/internal/vc"
	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
)

func testCredential(claims map[string]any) *vc.Credential {
	return &vc.Credential{
		ID:       id.CredentialID(uuid.New()),
		Issuer:   id.DID("did:pdk:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Subject:  id.DID("did:key:z6MkHolder"),
		IssuedAt: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		Claims:   claims,
		Version:  vc.Version,
	}
}

func testCoordinator(t *testing.T) (*Coordinator, *ledger.StubClient) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	client := ledger.NewStubClient(mock)
	require.NoError(t, client.Connect(context.Background(), "stubnet"))
	return NewCoordinator(NewInMemoryStore(), client, "stubnet", nil, WithClock(mock)), client
}

func TestAnchorThenVerify(t *testing.T) {
	coord, _ := testCoordinator(t)
	cred := testCredential(map[string]any{"over18": true})

	result := coord.AnchorCredential(context.Background(), cred)
	require.True(t, result.OK(), result.Err)
	assert.Equal(t, cred.ID, result.Record.CredentialID)
	assert.NotEmpty(t, result.Record.TxHash)
	assert.Equal(t, "stubnet", result.Record.Network)

	assert.NoError(t, coord.VerifyAnchor(cred, result.Record))
}

func TestVerifyAnchorDetectsClaimChange(t *testing.T) {
	coord, _ := testCoordinator(t)
	cred := testCredential(map[string]any{"over18": true})
	result := coord.AnchorCredential(context.Background(), cred)
	require.True(t, result.OK())

	tampered := *cred
	tampered.Claims = map[string]any{"over18": false}
	err := coord.VerifyAnchor(&tampered, result.Record)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBindingMismatch))
}

func TestVerifyAnchorDetectsWrongCredential(t *testing.T) {
	coord, _ := testCoordinator(t)
	cred := testCredential(map[string]any{"over18": true})
	result := coord.AnchorCredential(context.Background(), cred)
	require.True(t, result.OK())

	other := testCredential(map[string]any{"over18": true})
	err := coord.VerifyAnchor(other, result.Record)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBindingMismatch))
}

func TestAnchorFailureIsAResultNotAnError(t *testing.T) {
	coord, client := testCoordinator(t)
	client.Disconnect()

	result := coord.AnchorCredential(context.Background(), testCredential(map[string]any{"over18": true}))
	assert.False(t, result.OK())
	assert.Contains(t, result.Err, "ledger submission failed")

	// Nothing was persisted for the failed anchoring.
	_, err := coord.RecordFor(context.Background(), id.CredentialID(uuid.New()))
	assert.Error(t, err)
}

func TestStubLedgerHashesAreDeterministic(t *testing.T) {
	mock := clock.NewMock()
	client := ledger.NewStubClient(mock)
	require.NoError(t, client.Connect(context.Background(), "stubnet"))

	h1, err := client.Submit(context.Background(), []byte("payload"))
	require.NoError(t, err)
	h2, err := client.Submit(context.Background(), []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	tx, err := client.Fetch(context.Background(), h1)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), tx.Payload)
}
