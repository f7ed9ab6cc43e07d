package deck

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"proofdeck/internal/credstore"
	"proofdeck/internal/vc"
	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
	"proofdeck/pkg/sentinel"
)

// CredentialSource supplies the holder's valid credentials, ordered
// most-recently-issued first. Satisfied by credstore.Matcher.
type CredentialSource interface {
	ValidCredentials(ctx context.Context, subject id.DID) ([]*vc.Credential, error)
}

// Evaluation is the result of resolving deck permissions against held
// credentials. Satisfied maps permission ids to their evidence source;
// permissions with no acceptable source appear in Unsatisfied and get no
// sources entry.
type Evaluation struct {
	DeckID      id.DeckID
	Satisfied   map[id.PermissionID]SourceRef
	Unsatisfied []id.PermissionID
}

// Covers reports whether every required permission was satisfied.
func (e *Evaluation) Covers(required []id.PermissionID) bool {
	for _, perm := range required {
		if _, ok := e.Satisfied[perm]; !ok {
			return false
		}
	}
	return true
}

// EvaluatorOption configures the Evaluator.
type EvaluatorOption func(*Evaluator)

// WithIssuerTrust supplies trust scores consulted by issuer minTrust policies.
// Unknown issuers score zero.
func WithIssuerTrust(trust map[id.DID]int) EvaluatorOption {
	return func(e *Evaluator) { e.trust = trust }
}

// WithEvaluatorClock overrides the time source, for tests.
func WithEvaluatorClock(clk clock.Clock) EvaluatorOption {
	return func(e *Evaluator) { e.clock = clk }
}

// Evaluator resolves deck permissions to evidence sources.
type Evaluator struct {
	store  Store
	creds  CredentialSource
	trust  map[id.DID]int
	clock  clock.Clock
	logger *slog.Logger
}

// NewEvaluator constructs an Evaluator over the deck store and credential source.
func NewEvaluator(store Store, creds CredentialSource, logger *slog.Logger, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		store:  store,
		creds:  creds,
		clock:  clock.New(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate resolves every permission in the deck for the holder.
func (e *Evaluator) Evaluate(ctx context.Context, deckID id.DeckID, holder id.DID) (*Evaluation, error) {
	def, err := e.definition(ctx, deckID)
	if err != nil {
		return nil, err
	}
	permIDs := make([]id.PermissionID, 0, len(def.Permissions))
	for i := range def.Permissions {
		permIDs = append(permIDs, def.Permissions[i].ID)
	}
	return e.resolve(ctx, def, holder, permIDs)
}

// Resolve evaluates only the requested permissions. Permission ids not
// defined in the deck come back unsatisfied rather than erroring, so a
// verifier asking for the impossible gets a coverage failure, not a crash.
func (e *Evaluator) Resolve(ctx context.Context, deckID id.DeckID, holder id.DID, required []id.PermissionID) (*Evaluation, error) {
	def, err := e.definition(ctx, deckID)
	if err != nil {
		return nil, err
	}
	return e.resolve(ctx, def, holder, required)
}

// BuildInstance evaluates the full deck and persists a holder instance whose
// sources cover exactly the satisfied permissions.
func (e *Evaluator) BuildInstance(ctx context.Context, deckID id.DeckID, holder id.DID) (*Instance, error) {
	eval, err := e.Evaluate(ctx, deckID, holder)
	if err != nil {
		return nil, err
	}
	inst := &Instance{
		InstanceID: id.InstanceID(uuid.New()),
		DeckID:     deckID,
		OwnerDID:   holder,
		Sources:    eval.Satisfied,
		CreatedAt:  e.clock.Now().UTC(),
	}
	if err := e.store.PutInstance(ctx, inst); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to persist deck instance")
	}
	return inst, nil
}

func (e *Evaluator) definition(ctx context.Context, deckID id.DeckID) (*Definition, error) {
	def, err := e.store.GetDefinition(ctx, deckID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown deck "+string(deckID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to read deck definition")
	}
	return def, nil
}

func (e *Evaluator) resolve(ctx context.Context, def *Definition, holder id.DID, required []id.PermissionID) (*Evaluation, error) {
	candidates, err := e.creds.ValidCredentials(ctx, holder)
	if err != nil {
		return nil, err
	}

	eval := &Evaluation{
		DeckID:    def.DeckID,
		Satisfied: make(map[id.PermissionID]SourceRef),
	}
	now := e.clock.Now()
	for _, permID := range required {
		perm, ok := def.Permission(permID)
		if !ok {
			eval.Unsatisfied = append(eval.Unsatisfied, permID)
			continue
		}
		source, ok := e.findSource(perm, candidates, now)
		if !ok {
			eval.Unsatisfied = append(eval.Unsatisfied, permID)
			if e.logger != nil {
				e.logger.Debug("permission unsatisfied",
					"deck_id", def.DeckID,
					"permission", permID,
				)
			}
			continue
		}
		eval.Satisfied[permID] = source
	}
	return eval, nil
}

// findSource returns the first acceptable evidence source for the
// permission: claims match, issuer passes allow/deny/minTrust, and the
// credential is within the freshness window when one is set.
func (e *Evaluator) findSource(perm *PermissionDefinition, candidates []*vc.Credential, now time.Time) (SourceRef, bool) {
	claims := perm.ClaimKeys()
	for _, cred := range candidates {
		if !credstore.HasAllClaims(cred, claims) {
			continue
		}
		if !perm.IssuerPolicy.Permits(cred.Issuer, e.trust[cred.Issuer]) {
			continue
		}
		if perm.FreshnessSeconds > 0 {
			age := now.Sub(cred.IssuedAt)
			if age > time.Duration(perm.FreshnessSeconds)*time.Second {
				continue
			}
		}
		return SourceRef{
			Type: perm.EvidenceType,
			Ref:  cred.ID.String(),
		}, true
	}
	return SourceRef{}, false
}
