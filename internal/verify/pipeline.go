// Package verify runs the verifier-side pipeline over a bound
// ProofResponse. Checks accumulate into a structured report instead of
// stopping at the first failure; replay admission is the pipeline's only
// mutating step and runs last, so a nonce is never burned on an otherwise
// invalid submission.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"proofdeck/contracts/proof"
	"proofdeck/internal/anchor"
	"proofdeck/internal/audit"
	"proofdeck/internal/canonical"
	"proofdeck/internal/credstore"
	"proofdeck/internal/replay"
	"proofdeck/internal/verify/metrics"
	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
	"proofdeck/pkg/sentinel"
)

// DefaultClockSkew is the tolerance applied to issuedAt/expiresAt
// comparisons when the caller does not configure one.
const DefaultClockSkew = 30 * time.Second

// minAdmissionTTL keeps a just-admitted nonce alive even when the response
// is about to expire.
const minAdmissionTTL = time.Second

// Option configures the Pipeline.
type Option func(*Pipeline)

// WithClock overrides the time source, for tests.
func WithClock(clk clock.Clock) Option {
	return func(p *Pipeline) { p.clock = clk }
}

// WithClockSkew overrides the temporal tolerance.
func WithClockSkew(skew time.Duration) Option {
	return func(p *Pipeline) { p.skew = skew }
}

// WithAuditor attaches an audit publisher for verification outcomes.
func WithAuditor(auditor *audit.Publisher) Option {
	return func(p *Pipeline) { p.auditor = auditor }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline is the verifier-side check sequence.
type Pipeline struct {
	guard   replay.Guard
	creds   credstore.Store
	anchors anchor.Store
	clock   clock.Clock
	skew    time.Duration
	logger  *slog.Logger
	auditor *audit.Publisher
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewPipeline constructs a Pipeline. The anchor store may be nil when
// anchoring is not configured; bound credentials are then checked by hash
// only.
func NewPipeline(guard replay.Guard, creds credstore.Store, anchors anchor.Store, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		guard:   guard,
		creds:   creds,
		anchors: anchors,
		clock:   clock.New(),
		skew:    DefaultClockSkew,
		logger:  logger,
		tracer:  otel.Tracer("proofdeck/verify"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Verify runs every check over the response and its originating request and
// returns the accumulated report. The report never carries claim values;
// identifiers are truncated for display.
func (p *Pipeline) Verify(ctx context.Context, resp *proof.ProofResponse, req *proof.ProofRequest) *Report {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "verify.pipeline")
	defer span.End()

	now := p.clock.Now().UTC()
	report := &Report{
		OK:         true,
		ProofID:    id.Truncated(resp.ProofID.String()),
		RequestID:  id.Truncated(resp.RequestID.String()),
		VerifiedAt: now,
	}

	p.checkSchema(report, resp, req)
	p.checkBinding(report, resp, req)
	p.checkTemporal(report, resp, req, now)
	p.checkReplaySeen(ctx, report, resp)
	p.checkCoverage(report, resp, req)
	p.checkCredential(ctx, report, resp)

	if report.OK {
		p.admit(ctx, report, resp, now)
	}

	span.SetAttributes(
		attribute.Bool("verify.ok", report.OK),
		attribute.Int("verify.failed_checks", len(report.Failures())),
	)
	p.finish(ctx, report, resp, start)
	return report
}

func (p *Pipeline) checkSchema(report *Report, resp *proof.ProofResponse, req *proof.ProofRequest) {
	if err := resp.Validate(); err != nil {
		report.fail(CheckSchema, dErrors.CodeOf(err), "response: "+err.Error())
		return
	}
	if req == nil {
		report.fail(CheckSchema, dErrors.CodeValidation, "originating request not supplied")
		return
	}
	if err := req.Validate(); err != nil {
		report.fail(CheckSchema, dErrors.CodeOf(err), "request: "+err.Error())
		return
	}
	report.pass(CheckSchema)
}

func (p *Pipeline) checkBinding(report *Report, resp *proof.ProofResponse, req *proof.ProofRequest) {
	if req == nil {
		report.fail(CheckBinding, dErrors.CodeBindingMismatch, "no request to bind against")
		return
	}
	if resp.RequestID != req.RequestID || resp.Nonce != req.Nonce || resp.Audience != req.Audience {
		report.fail(CheckBinding, dErrors.CodeBindingMismatch, "response does not restate the request's identity fields")
		return
	}
	hash, err := canonical.RequestHash(req)
	if err != nil {
		report.fail(CheckBinding, dErrors.CodeInternal, "request not hashable")
		return
	}
	if resp.Binding.RequestHash != hash {
		report.fail(CheckBinding, dErrors.CodeBindingMismatch, "binding.requestHash diverges from the recomputed request hash")
		return
	}
	report.pass(CheckBinding)
}

func (p *Pipeline) checkTemporal(report *Report, resp *proof.ProofResponse, req *proof.ProofRequest, now time.Time) {
	var problems []string
	if req != nil && !req.ValidAt(now, p.skew) {
		problems = append(problems, fmt.Sprintf("request outside validity window (now %s, expires %s)",
			now.Format(time.RFC3339), req.ExpiresAt.Format(time.RFC3339)))
	}
	if !resp.ValidAt(now, p.skew) {
		problems = append(problems, fmt.Sprintf("response outside validity window (now %s, expires %s)",
			now.Format(time.RFC3339), resp.ExpiresAt.Format(time.RFC3339)))
	}
	if len(problems) > 0 {
		report.fail(CheckTemporal, dErrors.CodeTemporalInvalid, strings.Join(problems, "; "))
		return
	}
	report.pass(CheckTemporal)
}

// checkReplaySeen is the read side only; admission happens in admit once the
// whole pipeline is green.
func (p *Pipeline) checkReplaySeen(ctx context.Context, report *Report, resp *proof.ProofResponse) {
	seen, err := p.guard.Has(ctx, replay.Key(resp.Audience, resp.Nonce))
	if err != nil {
		report.fail(CheckReplay, dErrors.CodePersistence, "replay guard unavailable: "+err.Error())
		return
	}
	if seen {
		report.fail(CheckReplay, dErrors.CodeReplayDetected, "audience and nonce already admitted")
		return
	}
	report.pass(CheckReplay)
}

func (p *Pipeline) checkCoverage(report *Report, resp *proof.ProofResponse, req *proof.ProofRequest) {
	if req == nil {
		report.fail(CheckCoverage, dErrors.CodeCoverageIncomplete, "no request to check coverage against")
		return
	}
	satisfied := make(map[id.PermissionID]struct{}, len(resp.SatisfiedPermissions))
	for _, perm := range resp.SatisfiedPermissions {
		satisfied[perm] = struct{}{}
	}
	var missing []string
	for _, perm := range req.RequiredPermissions {
		if _, ok := satisfied[perm]; !ok {
			missing = append(missing, perm.String())
		}
	}
	if len(missing) > 0 {
		report.fail(CheckCoverage, dErrors.CodeCoverageIncomplete, "unsatisfied permissions: "+strings.Join(missing, ", "))
		return
	}
	report.pass(CheckCoverage)
}

// checkCredential recomputes the bound credential's hash and, when an anchor
// record exists, compares it against the anchored value. Responses with no
// bound credential pass trivially.
func (p *Pipeline) checkCredential(ctx context.Context, report *Report, resp *proof.ProofResponse) {
	if resp.Binding.CredentialID == nil {
		report.pass(CheckCredential)
		return
	}
	credID := *resp.Binding.CredentialID
	cred, err := p.creds.Get(ctx, credID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			report.fail(CheckCredential, dErrors.CodeBindingMismatch, "bound credential "+id.Truncated(credID.String())+" not found")
			return
		}
		report.fail(CheckCredential, dErrors.CodePersistence, "credential store unavailable: "+err.Error())
		return
	}
	hash, err := canonical.RequestHash(cred)
	if err != nil {
		report.fail(CheckCredential, dErrors.CodeInternal, "credential not hashable")
		return
	}
	if hash != resp.Binding.CredentialHash {
		report.fail(CheckCredential, dErrors.CodeBindingMismatch, "credential hash diverges from binding.credentialHash")
		return
	}

	if p.anchors == nil {
		report.pass(CheckCredential)
		return
	}
	record, err := p.anchors.Get(ctx, credID)
	if errors.Is(err, sentinel.ErrNotFound) {
		// Unanchored credentials are fine; the hash check above stands alone.
		report.pass(CheckCredential)
		return
	}
	if err != nil {
		report.fail(CheckCredential, dErrors.CodePersistence, "anchor store unavailable: "+err.Error())
		return
	}
	if record.CredentialID != credID || record.CredentialHash != hash {
		report.fail(CheckCredential, dErrors.CodeBindingMismatch, "credential diverges from its anchored record")
		return
	}
	report.pass(CheckCredential)
}

// admit burns the nonce. TTL equals the remaining validity window of the
// response, so an expired response can never hold its nonce hostage.
func (p *Pipeline) admit(ctx context.Context, report *Report, resp *proof.ProofResponse, now time.Time) {
	ttl := resp.ExpiresAt.Add(p.skew).Sub(now)
	if ttl < minAdmissionTTL {
		ttl = minAdmissionTTL
	}
	err := p.guard.Admit(ctx, replay.Key(resp.Audience, resp.Nonce), ttl)
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		report.failCheck(CheckReplay, dErrors.CodeReplayDetected, "audience and nonce already admitted")
		return
	}
	if err != nil {
		report.failCheck(CheckReplay, dErrors.CodePersistence, "replay guard unavailable: "+err.Error())
	}
}

func (p *Pipeline) finish(ctx context.Context, report *Report, resp *proof.ProofResponse, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveVerification(start, report.OK)
		for _, check := range report.Failures() {
			p.metrics.IncrementCheckFailure(check.Name)
		}
	}
	if p.logger != nil {
		p.logger.Info("proof verified",
			"proof_id", report.ProofID,
			"ok", report.OK,
			"failed_checks", len(report.Failures()),
		)
	}
	if p.auditor == nil {
		return
	}
	event := audit.Event{
		Actor:     id.Truncated(resp.Prover.ID),
		Audience:  resp.Audience,
		RequestID: resp.RequestID.String(),
		Timestamp: report.VerifiedAt,
		Requester: audit.RequesterFromContext(ctx),
	}
	if report.OK {
		event.Action = audit.ActionProofVerified
		event.Decision = audit.DecisionVerified
	} else {
		event.Action = audit.ActionProofRejected
		event.Decision = audit.DecisionRejected
		var names []string
		for _, check := range report.Failures() {
			names = append(names, check.Name)
		}
		event.Reason = strings.Join(names, ", ")
	}
	_ = p.auditor.Emit(ctx, event)
}
