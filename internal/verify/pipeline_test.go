package verify

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proofdeck/contracts/proof"
	"proofdeck/internal/anchor"
	"proofdeck/internal/credstore"
	"proofdeck/internal/deck"
	"proofdeck/internal/issuer"
	"proofdeck/internal/ledger"
	"proofdeck/internal/protocol"
	"proofdeck/internal/replay"
	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
)

const (
	testAudience = "app1"
	testDeckID   = id.DeckID("kyc-basic")
	holderDID    = id.DID("did:key:z6MkHolder")
)

type fixture struct {
	pipeline *Pipeline
	guard    *replay.InMemoryGuard
	protocol *protocol.Service
	issuer   *issuer.Service
	creds    *credstore.InMemoryStore
	anchors  *anchor.InMemoryStore
	clock    *clock.Mock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))

	creds := credstore.NewInMemoryStore()
	iss := issuer.NewService(issuer.NewInMemoryKeyStore(), creds, nil, issuer.WithClock(mock))
	require.NoError(t, iss.Initialize(context.Background()))
	issuerID, err := iss.IssuerID()
	require.NoError(t, err)

	deckStore := deck.NewInMemoryStore()
	require.NoError(t, deckStore.PutDefinition(context.Background(), &deck.Definition{
		DeckID:  testDeckID,
		Name:    "Basic KYC",
		Version: "1",
		Issuer:  issuerID,
		Permissions: []deck.PermissionDefinition{
			{
				ID:             "kyc.over18",
				EvidenceType:   deck.EvidenceVC,
				PrivacyLevel:   deck.PrivacyBooleanOnly,
				RequiredClaims: []string{"over18"},
			},
		},
	}))
	eval := deck.NewEvaluator(deckStore, credstore.NewMatcher(creds, mock), nil, deck.WithEvaluatorClock(mock))
	proto := protocol.NewService(protocol.NewInMemoryStore(), eval, iss, creds, nil, protocol.WithClock(mock))

	guard := replay.NewInMemoryGuard(mock)
	t.Cleanup(guard.Close)
	anchors := anchor.NewInMemoryStore()

	return &fixture{
		pipeline: NewPipeline(guard, creds, anchors, nil, WithClock(mock)),
		guard:    guard,
		protocol: proto,
		issuer:   iss,
		creds:    creds,
		anchors:  anchors,
		clock:    mock,
	}
}

// boundResponse walks the full exchange and returns a valid bound response
// with its originating request.
func (f *fixture) boundResponse(t *testing.T) (*proof.ProofResponse, *proof.ProofRequest) {
	t.Helper()
	_, err := f.issuer.IssueCredential(context.Background(), holderDID,
		map[string]any{"over18": true}, 24*time.Hour)
	require.NoError(t, err)

	req, err := f.protocol.MintRequest(context.Background(), testAudience,
		[]id.PermissionID{"kyc.over18"}, 5*time.Minute)
	require.NoError(t, err)
	grant, err := f.protocol.GrantConsent(context.Background(), req.RequestID, testDeckID, holderDID)
	require.NoError(t, err)
	resp, err := f.protocol.BuildResponse(context.Background(), grant.GrantID, testDeckID, holderDID)
	require.NoError(t, err)
	return resp, req
}

func checkByName(t *testing.T, report *Report, name string) Check {
	t.Helper()
	for _, check := range report.Checks {
		if check.Name == name {
			return check
		}
	}
	t.Fatalf("report has no %q check", name)
	return Check{}
}

func TestEndToEndVerification(t *testing.T) {
	f := newFixture(t)
	resp, req := f.boundResponse(t)

	report := f.pipeline.Verify(context.Background(), resp, req)
	assert.True(t, report.OK)
	assert.Len(t, report.Checks, 6)
	assert.Empty(t, report.Failures())
}

func TestTamperedBindingFailsExactlyOneCheck(t *testing.T) {
	f := newFixture(t)
	resp, req := f.boundResponse(t)

	flipped := *resp
	hash := []byte(resp.Binding.RequestHash)
	if hash[0] == 'a' {
		hash[0] = 'b'
	} else {
		hash[0] = 'a'
	}
	flipped.Binding.RequestHash = string(hash)

	report := f.pipeline.Verify(context.Background(), &flipped, req)
	assert.False(t, report.OK)
	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, CheckBinding, failures[0].Name)
	assert.Equal(t, dErrors.CodeBindingMismatch, failures[0].Code)

	// All other checks are individually reported as passed.
	for _, name := range []string{CheckSchema, CheckTemporal, CheckReplay, CheckCoverage, CheckCredential} {
		assert.True(t, checkByName(t, report, name).Passed, name)
	}
}

func TestReplayIsRejectedOnSecondVerification(t *testing.T) {
	f := newFixture(t)
	resp, req := f.boundResponse(t)

	first := f.pipeline.Verify(context.Background(), resp, req)
	require.True(t, first.OK)

	second := f.pipeline.Verify(context.Background(), resp, req)
	assert.False(t, second.OK)
	failures := second.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, CheckReplay, failures[0].Name)
	assert.Equal(t, dErrors.CodeReplayDetected, failures[0].Code)
}

func TestFailedVerificationDoesNotBurnNonce(t *testing.T) {
	f := newFixture(t)
	resp, req := f.boundResponse(t)

	flipped := *resp
	flipped.Binding.RequestHash = resp.Binding.RequestHash[:63] + "x"
	report := f.pipeline.Verify(context.Background(), &flipped, req)
	require.False(t, report.OK)

	// The nonce was not admitted, so the untampered response still verifies.
	report = f.pipeline.Verify(context.Background(), resp, req)
	assert.True(t, report.OK)
}

func TestExpiredResponseFailsTemporalOnly(t *testing.T) {
	f := newFixture(t)
	resp, req := f.boundResponse(t)

	f.clock.Add(6 * time.Minute)
	report := f.pipeline.Verify(context.Background(), resp, req)
	assert.False(t, report.OK)
	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, CheckTemporal, failures[0].Name)
	assert.Equal(t, dErrors.CodeTemporalInvalid, failures[0].Code)
}

func TestSkewToleranceAcceptsSlightlyStaleResponse(t *testing.T) {
	f := newFixture(t)
	resp, req := f.boundResponse(t)

	// 10s past expiry is inside the default 30s tolerance.
	f.clock.Add(5*time.Minute + 10*time.Second)
	report := f.pipeline.Verify(context.Background(), resp, req)
	assert.True(t, report.OK)
}

func TestCoverageGapIsItemized(t *testing.T) {
	f := newFixture(t)
	resp, req := f.boundResponse(t)

	trimmed := *resp
	trimmed.SatisfiedPermissions = []id.PermissionID{"kyc.residency"}
	report := f.pipeline.Verify(context.Background(), &trimmed, req)
	assert.False(t, report.OK)
	coverage := checkByName(t, report, CheckCoverage)
	assert.False(t, coverage.Passed)
	assert.Contains(t, coverage.Error, "kyc.over18")
}

func TestCredentialHashMismatchFailsCredentialCheck(t *testing.T) {
	f := newFixture(t)
	resp, req := f.boundResponse(t)
	require.NotNil(t, resp.Binding.CredentialID)

	forged := *resp
	forged.Binding.CredentialHash = resp.Binding.RequestHash // any wrong hash
	report := f.pipeline.Verify(context.Background(), &forged, req)
	assert.False(t, report.OK)
	credential := checkByName(t, report, CheckCredential)
	assert.False(t, credential.Passed)
	assert.Equal(t, dErrors.CodeBindingMismatch, credential.Code)
}

func TestAnchoredCredentialIsCheckedAgainstRecord(t *testing.T) {
	f := newFixture(t)
	resp, req := f.boundResponse(t)
	require.NotNil(t, resp.Binding.CredentialID)

	cred, err := f.creds.Get(context.Background(), *resp.Binding.CredentialID)
	require.NoError(t, err)

	client := ledger.NewStubClient(f.clock)
	require.NoError(t, client.Connect(context.Background(), "stubnet"))
	coord := anchor.NewCoordinator(f.anchors, client, "stubnet", nil, anchor.WithClock(f.clock))
	result := coord.AnchorCredential(context.Background(), cred)
	require.True(t, result.OK(), result.Err)

	report := f.pipeline.Verify(context.Background(), resp, req)
	assert.True(t, report.OK)

	// A stale anchor record turns the credential check into a failure.
	stale := *result.Record
	stale.CredentialHash = resp.Binding.RequestHash
	require.NoError(t, f.anchors.Put(context.Background(), &stale))

	// New exchange over the same credential.
	req2, err := f.protocol.MintRequest(context.Background(), testAudience,
		[]id.PermissionID{"kyc.over18"}, 5*time.Minute)
	require.NoError(t, err)
	grant2, err := f.protocol.GrantConsent(context.Background(), req2.RequestID, testDeckID, holderDID)
	require.NoError(t, err)
	fresh, err := f.protocol.BuildResponse(context.Background(), grant2.GrantID, testDeckID, holderDID)
	require.NoError(t, err)

	report = f.pipeline.Verify(context.Background(), fresh, req2)
	assert.False(t, report.OK)
	credential := checkByName(t, report, CheckCredential)
	assert.False(t, credential.Passed)
}

func TestReportNeverRevealsClaimValues(t *testing.T) {
	f := newFixture(t)
	resp, req := f.boundResponse(t)
	report := f.pipeline.Verify(context.Background(), resp, req)

	for _, check := range report.Checks {
		assert.NotContains(t, check.Error, "over18")
		assert.NotContains(t, check.Error, "true")
	}
	// Identifiers in the report header are truncated for display.
	assert.Contains(t, report.ProofID, "…")
}
