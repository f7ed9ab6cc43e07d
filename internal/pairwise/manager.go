package pairwise

import (
	"context"
	"errors"
	"log/slog"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/singleflight"

	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
	"proofdeck/pkg/sentinel"
)

// Store defines persistence for pairwise entries.
// Error Contract:
// - Get and FindByPairwise return sentinel.ErrNotFound when no entry exists
// - Put returns nil on success or a wrapped error on failure
type Store interface {
	Get(ctx context.Context, master id.DID, audience string) (*Entry, error)
	Put(ctx context.Context, entry *Entry) error
	FindByPairwise(ctx context.Context, pairwise id.DID) (*Entry, error)
}

// Manager memoizes pairwise derivations in a persistent lookup. Stored rows
// win over recomputation, so identifiers already handed out never change.
type Manager struct {
	store  Store
	clock  clock.Clock
	logger *slog.Logger
	group  singleflight.Group
}

// NewManager constructs a Manager over the given store.
func NewManager(store Store, clk clock.Clock, logger *slog.Logger) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	return &Manager{store: store, clock: clk, logger: logger}
}

// GetOrCreate returns the persisted pairwise identifier for (master,
// audience), deriving and storing one on first use. Idempotent: a second
// call with the same inputs returns the previously stored identifier.
// Concurrent calls for the same pair collapse into a single derivation.
func (m *Manager) GetOrCreate(ctx context.Context, master id.DID, audience string) (id.DID, error) {
	if master == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "master DID required")
	}
	if audience == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "audience required")
	}

	key := string(master) + "|" + audience
	v, err, _ := m.group.Do(key, func() (any, error) {
		existing, err := m.store.Get(ctx, master, audience)
		if err == nil {
			return existing.PairwiseDID, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return id.DID(""), dErrors.Wrap(err, dErrors.CodePersistence, "failed to read pairwise entry")
		}

		entry := &Entry{
			MasterDID:   master,
			Audience:    audience,
			PairwiseDID: Derive(master, audience),
			CreatedAt:   m.clock.Now().UTC(),
		}
		if err := m.store.Put(ctx, entry); err != nil {
			return id.DID(""), dErrors.Wrap(err, dErrors.CodePersistence, "failed to persist pairwise entry")
		}
		if m.logger != nil {
			m.logger.Debug("pairwise identifier created",
				"audience", audience,
				"pairwise_did", id.Truncated(entry.PairwiseDID.String()),
			)
		}
		return entry.PairwiseDID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(id.DID), nil
}

// FindMaster resolves a pairwise identifier back to its (master, audience)
// pair via the lookup store. Returns CodeNotFound when unknown.
func (m *Manager) FindMaster(ctx context.Context, pairwise id.DID) (id.DID, string, error) {
	entry, err := m.store.FindByPairwise(ctx, pairwise)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", "", dErrors.New(dErrors.CodeNotFound, "unknown pairwise identifier")
		}
		return "", "", dErrors.Wrap(err, dErrors.CodePersistence, "failed to read pairwise entry")
	}
	return entry.MasterDID, entry.Audience, nil
}
