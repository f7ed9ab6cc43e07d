package verify

import (
	"time"

	dErrors "proofdeck/pkg/domain-errors"
)

// Check names, in pipeline order.
const (
	CheckSchema     = "schema"
	CheckBinding    = "binding"
	CheckTemporal   = "temporal"
	CheckReplay     = "replay"
	CheckCoverage   = "coverage"
	CheckCredential = "credential"
)

// Check is one named pipeline step outcome. Error carries the failure
// description; it names identifiers and permission ids, never claim values.
type Check struct {
	Name   string       `json:"name"`
	Passed bool         `json:"passed"`
	Code   dErrors.Code `json:"code,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// Report is the structured verification outcome. OK is the conjunction of
// all checks; a failed pipeline still reports every check so the caller gets
// full diagnostics in one round trip.
type Report struct {
	OK         bool      `json:"ok"`
	ProofID    string    `json:"proofId"`
	RequestID  string    `json:"requestId"`
	VerifiedAt time.Time `json:"verifiedAt"`
	Checks     []Check   `json:"checks"`
}

func (r *Report) pass(name string) {
	r.Checks = append(r.Checks, Check{Name: name, Passed: true})
}

func (r *Report) fail(name string, code dErrors.Code, msg string) {
	r.OK = false
	r.Checks = append(r.Checks, Check{Name: name, Passed: false, Code: code, Error: msg})
}

// failCheck flips an already-recorded check to failed, used when replay
// admission loses a race after its read-side check passed.
func (r *Report) failCheck(name string, code dErrors.Code, msg string) {
	for i := range r.Checks {
		if r.Checks[i].Name == name {
			r.Checks[i] = Check{Name: name, Passed: false, Code: code, Error: msg}
			r.OK = false
			return
		}
	}
	r.fail(name, code, msg)
}

// Failures returns the failed checks.
func (r *Report) Failures() []Check {
	var out []Check
	for _, check := range r.Checks {
		if !check.Passed {
			out = append(out, check)
		}
	}
	return out
}
