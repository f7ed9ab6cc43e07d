package replay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proofdeck/pkg/sentinel"
)

func TestAdmitThenHas(t *testing.T) {
	mock := clock.NewMock()
	guard := NewInMemoryGuard(mock)
	defer guard.Close()

	key := Key("aud1", "nonce1")
	require.NoError(t, guard.Admit(context.Background(), key, 60*time.Second))

	ok, err := guard.Has(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSecondAdmitIsRejected(t *testing.T) {
	mock := clock.NewMock()
	guard := NewInMemoryGuard(mock)
	defer guard.Close()

	key := Key("aud1", "nonce1")
	require.NoError(t, guard.Admit(context.Background(), key, 60*time.Second))
	err := guard.Admit(context.Background(), key, 60*time.Second)
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
}

func TestKeyExpiresAfterTTL(t *testing.T) {
	mock := clock.NewMock()
	guard := NewInMemoryGuard(mock)
	defer guard.Close()

	key := Key("aud1", "nonce1")
	require.NoError(t, guard.Admit(context.Background(), key, 60*time.Second))

	mock.Add(59 * time.Second)
	ok, err := guard.Has(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.Add(2 * time.Second)
	ok, err = guard.Has(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)

	// Once expired, the key is eligible for reuse.
	assert.NoError(t, guard.Admit(context.Background(), key, 60*time.Second))
}

func TestDifferentAudiencesDoNotCollide(t *testing.T) {
	mock := clock.NewMock()
	guard := NewInMemoryGuard(mock)
	defer guard.Close()

	require.NoError(t, guard.Admit(context.Background(), Key("aud1", "nonce1"), time.Minute))
	assert.NoError(t, guard.Admit(context.Background(), Key("aud2", "nonce1"), time.Minute))
}

func TestConcurrentAdmissionIsLinearized(t *testing.T) {
	mock := clock.NewMock()
	guard := NewInMemoryGuard(mock)
	defer guard.Close()

	const attempts = 32
	key := Key("aud1", "nonce1")
	var admitted int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := guard.Admit(context.Background(), key, time.Minute); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, admitted, "exactly one concurrent attempt may win")
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	mock := clock.NewMock()
	guard := NewInMemoryGuard(mock)
	defer guard.Close()

	require.NoError(t, guard.Admit(context.Background(), Key("aud1", "n1"), time.Second))
	mock.Add(cleanupInterval + time.Second)

	assert.Eventually(t, func() bool {
		guard.mu.Lock()
		defer guard.mu.Unlock()
		return len(guard.entries) == 0
	}, time.Second, 10*time.Millisecond)
}
