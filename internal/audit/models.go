package audit

import "time"

// Event is emitted from protocol logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out. Events record which
// permissions were exercised, never claim values.
type Event struct {
	Timestamp time.Time
	Actor     string // truncated DID of the acting party
	Subject   string // truncated DID the action is about
	Audience  string
	RequestID string
	Action    string
	Decision  string
	Reason    string
	Requester string // display string of the requesting client, when known
}

// Event actions.
const (
	ActionCredentialIssued = "credential_issued"
	ActionRequestIssued    = "proof_request_issued"
	ActionConsentGranted   = "consent_granted"
	ActionConsentDenied    = "consent_denied"
	ActionProofGenerated   = "proof_generated"
	ActionProofVerified    = "proof_verified"
	ActionProofRejected    = "proof_rejected"
	ActionAnchorRecorded   = "anchor_recorded"
)

// Event decisions.
const (
	DecisionIssued   = "issued"
	DecisionGranted  = "granted"
	DecisionDenied   = "denied"
	DecisionVerified = "verified"
	DecisionRejected = "rejected"
	DecisionAnchored = "anchored"
)
