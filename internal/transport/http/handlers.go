package httptransport

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"proofdeck/contracts/proof"
	jsonutil "proofdeck/internal/transport/http/json"
	"proofdeck/internal/transport/http/shared"
	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
)

func decodeBody(r *http.Request, into any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed request body")
	}
	return nil
}

func (h *Handler) handleIssuerInfo(w http.ResponseWriter, r *http.Request) {
	issuerID, err := h.issuer.IssuerID()
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	pub, err := h.issuer.PublicKey()
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]string{
		"issuerId":  issuerID.String(),
		"publicKey": hex.EncodeToString(pub),
	})
}

type issueCredentialRequest struct {
	Subject          string         `json:"subject"`
	Claims           map[string]any `json:"claims"`
	ExpiresInSeconds int64          `json:"expiresInSeconds"`
}

func (h *Handler) handleIssueCredential(w http.ResponseWriter, r *http.Request) {
	var body issueCredentialRequest
	if err := decodeBody(r, &body); err != nil {
		shared.WriteError(w, err)
		return
	}
	if _, err := h.resolver.Resolve(r.Context(), body.Subject); err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "subject is not a resolvable DID"))
		return
	}
	subject, err := id.ParseDID(body.Subject)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	cred, err := h.issuer.IssueCredential(r.Context(), subject, body.Claims,
		time.Duration(body.ExpiresInSeconds)*time.Second)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.CredentialsIssued.Inc()
	}
	jsonutil.WriteJSON(w, http.StatusCreated, cred)
}

type mintRequestRequest struct {
	Audience            string   `json:"audience"`
	RequiredPermissions []string `json:"requiredPermissions"`
	TTLSeconds          int64    `json:"ttlSeconds"`
}

func (h *Handler) handleMintRequest(w http.ResponseWriter, r *http.Request) {
	var body mintRequestRequest
	if err := decodeBody(r, &body); err != nil {
		shared.WriteError(w, err)
		return
	}
	perms := make([]id.PermissionID, len(body.RequiredPermissions))
	for i, p := range body.RequiredPermissions {
		perms[i] = id.PermissionID(p)
	}

	req, err := h.protocol.MintRequest(r.Context(), body.Audience, perms,
		time.Duration(body.TTLSeconds)*time.Second)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RequestsMinted.Inc()
	}
	jsonutil.WriteJSON(w, http.StatusCreated, req)
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	req, err := h.protocol.Request(r.Context(), requestID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, req)
}

type grantConsentRequest struct {
	RequestID string `json:"requestId"`
	DeckID    string `json:"deckId"`
	Holder    string `json:"holder"`
}

func (h *Handler) handleGrantConsent(w http.ResponseWriter, r *http.Request) {
	var body grantConsentRequest
	if err := decodeBody(r, &body); err != nil {
		shared.WriteError(w, err)
		return
	}
	requestID, err := id.ParseRequestID(body.RequestID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	holder, err := id.ParseDID(body.Holder)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	grant, err := h.protocol.GrantConsent(r.Context(), requestID, id.DeckID(body.DeckID), holder)
	if err != nil {
		if h.metrics != nil && dErrors.HasCode(err, dErrors.CodeCoverageIncomplete) {
			h.metrics.IncrementConsent("denied")
		}
		shared.WriteError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncrementConsent("granted")
	}
	jsonutil.WriteJSON(w, http.StatusCreated, grant)
}

type buildProofRequest struct {
	GrantID string `json:"grantId"`
	DeckID  string `json:"deckId"`
	Holder  string `json:"holder"`
}

func (h *Handler) handleBuildProof(w http.ResponseWriter, r *http.Request) {
	var body buildProofRequest
	if err := decodeBody(r, &body); err != nil {
		shared.WriteError(w, err)
		return
	}
	grantID, err := id.ParseGrantID(body.GrantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	holder, err := id.ParseDID(body.Holder)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	resp, err := h.protocol.BuildResponse(r.Context(), grantID, id.DeckID(body.DeckID), holder)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ProofsGenerated.Inc()
	}
	jsonutil.WriteJSON(w, http.StatusCreated, resp)
}

type verifyRequest struct {
	Response *proof.ProofResponse `json:"response"`
	Request  *proof.ProofRequest  `json:"request,omitempty"`
}

// handleVerify always answers 200 with the full report; a rejected proof is
// a successful verification call.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var body verifyRequest
	if err := decodeBody(r, &body); err != nil {
		shared.WriteError(w, err)
		return
	}
	if body.Response == nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "response is required"))
		return
	}
	req := body.Request
	if req == nil {
		stored, err := h.protocol.Request(r.Context(), body.Response.RequestID)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		req = stored
	}

	report := h.pipeline.Verify(r.Context(), body.Response, req)
	jsonutil.WriteJSON(w, http.StatusOK, report)
}

type anchorRequest struct {
	CredentialID string `json:"credentialId"`
}

func (h *Handler) handleAnchorCredential(w http.ResponseWriter, r *http.Request) {
	if h.anchors == nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeCapabilityUnavailable, "anchoring not configured"))
		return
	}
	var body anchorRequest
	if err := decodeBody(r, &body); err != nil {
		shared.WriteError(w, err)
		return
	}
	credID, err := id.ParseCredentialID(body.CredentialID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	cred, err := h.creds.Get(r.Context(), credID)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "unknown credential"))
		return
	}

	result := h.anchors.AnchorCredential(r.Context(), cred)
	if h.metrics != nil {
		if result.OK() {
			h.metrics.IncrementAnchor("anchored")
		} else {
			h.metrics.IncrementAnchor("failed")
		}
	}
	status := http.StatusCreated
	if !result.OK() {
		status = http.StatusBadGateway
	}
	jsonutil.WriteJSON(w, status, result)
}

func (h *Handler) handleGetAnchor(w http.ResponseWriter, r *http.Request) {
	if h.anchors == nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeCapabilityUnavailable, "anchoring not configured"))
		return
	}
	credID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	record, err := h.anchors.RecordFor(r.Context(), credID)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "no anchor for credential"))
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, record)
}

type recordReceiptRequest struct {
	ProofID string `json:"proofId"`
	TxHash  string `json:"txHash"`
}

func (h *Handler) handleRecordReceipt(w http.ResponseWriter, r *http.Request) {
	var body recordReceiptRequest
	if err := decodeBody(r, &body); err != nil {
		shared.WriteError(w, err)
		return
	}
	proofID, err := id.ParseProofID(body.ProofID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	receipt, err := h.protocol.RecordReceipt(r.Context(), proofID, body.TxHash)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) handleListDecks(w http.ResponseWriter, r *http.Request) {
	defs, err := h.decks.ListDefinitions(r.Context())
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list decks"))
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, defs)
}

func (h *Handler) handleGetDeck(w http.ResponseWriter, r *http.Request) {
	def, err := h.decks.GetDefinition(r.Context(), id.DeckID(chi.URLParam(r, "deckID")))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "unknown deck"))
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, def)
}

// handleEvaluateDeck reports which deck permissions the holder can satisfy.
// The evaluation exposes evidence references only, never claim values.
func (h *Handler) handleEvaluateDeck(w http.ResponseWriter, r *http.Request) {
	holder, err := id.ParseDID(r.URL.Query().Get("holder"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	eval, err := h.evaluator.Evaluate(r.Context(), id.DeckID(chi.URLParam(r, "deckID")), holder)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, eval)
}

func (h *Handler) handleWalletAddresses(w http.ResponseWriter, r *http.Request) {
	addrs, err := h.wallet.Addresses(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{"addresses": addrs})
}
