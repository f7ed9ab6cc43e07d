package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proofdeck/contracts/proof"
	"proofdeck/internal/anchor"
	"proofdeck/internal/credstore"
	"proofdeck/internal/deck"
	"proofdeck/internal/didresolver"
	"proofdeck/internal/issuer"
	"proofdeck/internal/ledger"
	"proofdeck/internal/platform/health"
	"proofdeck/internal/protocol"
	"proofdeck/internal/replay"
	"proofdeck/internal/verify"
	"proofdeck/internal/wallet"
	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
)

const (
	testHolder   = "did:key:z6MkHolderHTTP"
	testAudience = "app1"
	testDeckID   = "kyc-basic"
)

type serverFixture struct {
	server *httptest.Server
	clock  *clock.Mock
}

func newServer(t *testing.T) *serverFixture {
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

	proto := protocol.NewService(protocol.NewInMemoryStore(), eval, iss, creds, nil,
		protocol.WithClock(mock))
	pipeline := verify.NewPipeline(replay.NewInMemoryGuard(mock), creds, nil, nil,
		verify.WithClock(mock))

	stub := ledger.NewStubClient(mock)
	require.NoError(t, stub.Connect(context.Background(), "stubnet"))
	anchors := anchor.NewCoordinator(anchor.NewInMemoryStore(), stub, "stubnet", nil,
		anchor.WithClock(mock))

	wstub, err := wallet.NewStub([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, iss, proto, pipeline, deckStore, eval, creds, anchors,
		wstub, didresolver.New(), nil)
	router := NewRouter(h, health.New("test"), logger)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &serverFixture{server: srv, clock: mock}
}

func (f *serverFixture) post(t *testing.T, path string, body any, into any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp
}

func (f *serverFixture) get(t *testing.T, path string, into any) *http.Response {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp
}

func (f *serverFixture) issueCredential(t *testing.T) map[string]any {
	t.Helper()
	var cred map[string]any
	resp := f.post(t, "/issuer/credentials", map[string]any{
		"subject":          testHolder,
		"claims":           map[string]any{"over18": true},
		"expiresInSeconds": 86400,
	}, &cred)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return cred
}

func TestFullExchangeOverHTTP(t *testing.T) {
	f := newServer(t)
	f.issueCredential(t)

	var req proof.ProofRequest
	resp := f.post(t, "/requests", map[string]any{
		"audience":            testAudience,
		"requiredPermissions": []string{"kyc.over18"},
		"ttlSeconds":          300,
	}, &req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Len(t, req.Nonce, 48)

	var grant proof.ConsentGrant
	resp = f.post(t, "/grants", map[string]any{
		"requestId": req.RequestID.String(),
		"deckId":    testDeckID,
		"holder":    testHolder,
	}, &grant)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, grant.Signature)

	var proofResp proof.ProofResponse
	resp = f.post(t, "/proofs", map[string]any{
		"grantId": grant.GrantID.String(),
		"deckId":  testDeckID,
		"holder":  testHolder,
	}, &proofResp)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, proofResp.Verified)

	var report verify.Report
	resp = f.post(t, "/verify", map[string]any{"response": proofResp}, &report)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, report.OK)
	assert.Len(t, report.Checks, 6)
}

func TestVerifyRejectionStillAnswers200(t *testing.T) {
	f := newServer(t)
	f.issueCredential(t)

	var req proof.ProofRequest
	f.post(t, "/requests", map[string]any{
		"audience":            testAudience,
		"requiredPermissions": []string{"kyc.over18"},
		"ttlSeconds":          300,
	}, &req)
	var grant proof.ConsentGrant
	f.post(t, "/grants", map[string]any{
		"requestId": req.RequestID.String(), "deckId": testDeckID, "holder": testHolder,
	}, &grant)
	var proofResp proof.ProofResponse
	f.post(t, "/proofs", map[string]any{
		"grantId": grant.GrantID.String(), "deckId": testDeckID, "holder": testHolder,
	}, &proofResp)

	// Tampered binding: still an HTTP 200, just a failed report.
	proofResp.Binding.RequestHash = "x" + proofResp.Binding.RequestHash[1:]
	var report verify.Report
	resp := f.post(t, "/verify", map[string]any{"response": proofResp}, &report)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, report.OK)
}

func TestErrorEnvelope(t *testing.T) {
	f := newServer(t)

	var envelope map[string]string
	resp := f.get(t, fmt.Sprintf("/requests/%s", uuid.NewString()), &envelope)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(dErrors.CodeNotFound), envelope["error"])

	resp = f.post(t, "/requests", map[string]any{"audience": testAudience, "ttlSeconds": 300}, &envelope)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(dErrors.CodeValidation), envelope["error"])
}

func TestConsentDeniedMapsToForbidden(t *testing.T) {
	f := newServer(t)
	// No credential issued: the deck cannot cover the requested permission.
	var req proof.ProofRequest
	f.post(t, "/requests", map[string]any{
		"audience":            testAudience,
		"requiredPermissions": []string{"kyc.over18"},
		"ttlSeconds":          300,
	}, &req)

	var envelope map[string]string
	resp := f.post(t, "/grants", map[string]any{
		"requestId": req.RequestID.String(), "deckId": testDeckID, "holder": testHolder,
	}, &envelope)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, string(dErrors.CodeCoverageIncomplete), envelope["error"])
}

func TestIssueCredentialRejectsMalformedSubject(t *testing.T) {
	f := newServer(t)
	var envelope map[string]string
	resp := f.post(t, "/issuer/credentials", map[string]any{
		"subject":          "not-a-did",
		"claims":           map[string]any{"over18": true},
		"expiresInSeconds": 3600,
	}, &envelope)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(dErrors.CodeInvalidInput), envelope["error"])
}

func TestAnchorRoundTripOverHTTP(t *testing.T) {
	f := newServer(t)
	cred := f.issueCredential(t)
	credID, ok := cred["id"].(string)
	require.True(t, ok)

	var result anchor.Result
	resp := f.post(t, "/anchors", map[string]any{"credentialId": credID}, &result)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, result.Record)
	assert.NotEmpty(t, result.Record.TxHash)

	var record anchor.Record
	resp = f.get(t, "/anchors/"+credID, &record)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, result.Record.TxHash, record.TxHash)
}

func TestDeckEndpoints(t *testing.T) {
	f := newServer(t)
	f.issueCredential(t)

	var defs []*deck.Definition
	resp := f.get(t, "/decks", &defs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, defs, 1)

	var eval deck.Evaluation
	resp = f.get(t, "/decks/"+testDeckID+"/evaluation?holder="+testHolder, &eval)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, eval.Covers([]id.PermissionID{"kyc.over18"}))
}

func TestWalletAddresses(t *testing.T) {
	f := newServer(t)
	var body map[string][]string
	resp := f.get(t, "/wallet/addresses", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["addresses"], 3)
}
