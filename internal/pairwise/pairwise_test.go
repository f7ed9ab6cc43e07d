package pairwise

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
)

const masterDID = id.DID("did:key:z6MkTestMaster")

func TestDeriveIsDeterministic(t *testing.T) {
	a := Derive(masterDID, "app1")
	b := Derive(masterDID, "app1")
	assert.Equal(t, a, b)
}

func TestDeriveDiffersByAudience(t *testing.T) {
	a := Derive(masterDID, "app1")
	b := Derive(masterDID, "app2")
	assert.NotEqual(t, a, b)
}

func TestDeriveShape(t *testing.T) {
	derived := Derive(masterDID, "app1")
	require.True(t, strings.HasPrefix(string(derived), MethodPrefix))
	// 128 bits of digest = 32 hex characters after the method prefix.
	assert.Len(t, strings.TrimPrefix(string(derived), MethodPrefix), 32)
	assert.Equal(t, "pair", derived.Method())
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	mgr := NewManager(NewInMemoryStore(), clock.NewMock(), nil)

	first, err := mgr.GetOrCreate(context.Background(), masterDID, "app1")
	require.NoError(t, err)
	second, err := mgr.GetOrCreate(context.Background(), masterDID, "app1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGetOrCreatePersistedRowsWinOverRecomputation(t *testing.T) {
	// A row stored under an older derivation scheme must be returned
	// verbatim instead of being recomputed.
	store := NewInMemoryStore()
	legacy := &Entry{
		MasterDID:   masterDID,
		Audience:    "app1",
		PairwiseDID: id.DID("did:pair:legacyvalue0000000000000000000000"),
	}
	require.NoError(t, store.Put(context.Background(), legacy))

	mgr := NewManager(store, clock.NewMock(), nil)
	got, err := mgr.GetOrCreate(context.Background(), masterDID, "app1")
	require.NoError(t, err)
	assert.Equal(t, legacy.PairwiseDID, got)
	assert.NotEqual(t, Derive(masterDID, "app1"), got)
}

func TestGetOrCreateValidatesInputs(t *testing.T) {
	mgr := NewManager(NewInMemoryStore(), clock.NewMock(), nil)

	_, err := mgr.GetOrCreate(context.Background(), "", "app1")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = mgr.GetOrCreate(context.Background(), masterDID, "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestGetOrCreateConcurrentCallsAgree(t *testing.T) {
	mgr := NewManager(NewInMemoryStore(), clock.NewMock(), nil)

	const callers = 16
	results := make([]id.DID, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := mgr.GetOrCreate(context.Background(), masterDID, "app1")
			require.NoError(t, err)
			results[i] = got
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Equal(t, results[0], results[i])
	}
}

func TestFindMasterRoundTrip(t *testing.T) {
	mgr := NewManager(NewInMemoryStore(), clock.NewMock(), nil)

	derived, err := mgr.GetOrCreate(context.Background(), masterDID, "app1")
	require.NoError(t, err)

	master, audience, err := mgr.FindMaster(context.Background(), derived)
	require.NoError(t, err)
	assert.Equal(t, masterDID, master)
	assert.Equal(t, "app1", audience)
}

func TestFindMasterUnknown(t *testing.T) {
	mgr := NewManager(NewInMemoryStore(), clock.NewMock(), nil)

	_, _, err := mgr.FindMaster(context.Background(), id.DID("did:pair:ffffffffffffffffffffffffffffffff"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
