package anchor

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"proofdeck/internal/audit"
	"proofdeck/internal/canonical"
	"proofdeck/internal/ledger"
	"proofdeck/internal/vc"
	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
)

// CoordinatorOption configures the Coordinator.
type CoordinatorOption func(*Coordinator)

// WithClock overrides the time source, for tests.
func WithClock(clk clock.Clock) CoordinatorOption {
	return func(c *Coordinator) { c.clock = clk }
}

// WithAuditor attaches an audit publisher for anchoring events.
func WithAuditor(auditor *audit.Publisher) CoordinatorOption {
	return func(c *Coordinator) { c.auditor = auditor }
}

// Coordinator anchors credential hashes through the ledger client and
// verifies credentials against stored records.
type Coordinator struct {
	store   Store
	ledger  ledger.Client
	network string
	clock   clock.Clock
	logger  *slog.Logger
	auditor *audit.Publisher
	tracer  trace.Tracer
}

// NewCoordinator constructs a Coordinator submitting to the given network.
func NewCoordinator(store Store, client ledger.Client, network string, logger *slog.Logger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:   store,
		ledger:  client,
		network: network,
		clock:   clock.New(),
		logger:  logger,
		tracer:  otel.Tracer("proofdeck/anchor"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AnchorCredential hashes the credential, submits an anchoring transaction,
// and persists the record. Submission failure comes back inside the Result
// rather than as an error, so callers choose between mandatory and
// best-effort anchoring.
func (c *Coordinator) AnchorCredential(ctx context.Context, cred *vc.Credential) *Result {
	ctx, span := c.tracer.Start(ctx, "anchor.credential",
		trace.WithAttributes(attribute.String("credential_id", id.Truncated(cred.ID.String()))))
	defer span.End()

	hash, err := canonical.RequestHash(cred)
	if err != nil {
		return &Result{Err: "credential not hashable: " + err.Error()}
	}

	payload, err := json.Marshal(map[string]string{
		"credentialId":   cred.ID.String(),
		"credentialHash": hash,
	})
	if err != nil {
		return &Result{Err: "encode anchor payload: " + err.Error()}
	}
	txHash, err := c.ledger.Submit(ctx, payload)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("anchor submission failed",
				"credential_id", id.Truncated(cred.ID.String()),
				"error", err,
			)
		}
		return &Result{Err: "ledger submission failed: " + err.Error()}
	}

	record := &Record{
		CredentialID:   cred.ID,
		CredentialHash: hash,
		TxHash:         txHash,
		Network:        c.network,
		AnchoredAt:     c.clock.Now().UTC(),
	}
	if err := c.store.Put(ctx, record); err != nil {
		// The transaction is on the ledger but the local record is lost;
		// surface it so the caller can retry the persistence half.
		return &Result{Err: "persist anchor record: " + err.Error()}
	}

	if c.auditor != nil {
		_ = c.auditor.Emit(ctx, audit.Event{
			Action:    audit.ActionAnchorRecorded,
			Subject:   id.Truncated(cred.Subject.String()),
			Actor:     id.Truncated(cred.Issuer.String()),
			Decision:  audit.DecisionAnchored,
			Timestamp: record.AnchoredAt,
		})
	}
	return &Result{Record: record}
}

// VerifyAnchor checks a credential against an anchor record: credential ids
// must match and the recomputed hash must equal the stored one. This is a
// pure offline check, independent of ledger availability.
func (c *Coordinator) VerifyAnchor(cred *vc.Credential, record *Record) error {
	if record.CredentialID != cred.ID {
		return dErrors.New(dErrors.CodeBindingMismatch, "anchor references a different credential")
	}
	hash, err := canonical.RequestHash(cred)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "credential not hashable")
	}
	if hash != record.CredentialHash {
		return dErrors.New(dErrors.CodeBindingMismatch, "credential hash diverges from anchored value")
	}
	return nil
}

// RecordFor returns the stored anchor record for a credential, when one exists.
func (c *Coordinator) RecordFor(ctx context.Context, credID id.CredentialID) (*Record, error) {
	return c.store.Get(ctx, credID)
}
