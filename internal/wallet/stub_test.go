package wallet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "proofdeck/pkg/domain-errors"
)

func TestStubDerivationIsDeterministic(t *testing.T) {
	first, err := NewStub([]byte("seed"))
	require.NoError(t, err)
	second, err := NewStub([]byte("seed"))
	require.NoError(t, err)

	a1, err := first.Addresses(context.Background())
	require.NoError(t, err)
	a2, err := second.Addresses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.Len(t, a1, addressCount)
	for _, addr := range a1 {
		assert.Equal(t, byte('r'), addr[0])
	}
}

func TestDifferentSeedsDeriveDifferentAddresses(t *testing.T) {
	first, err := NewStub([]byte("seed-a"))
	require.NoError(t, err)
	second, err := NewStub([]byte("seed-b"))
	require.NoError(t, err)

	a1, _ := first.Addresses(context.Background())
	a2, _ := second.Addresses(context.Background())
	assert.NotEqual(t, a1[0], a2[0])
}

func TestSignAndVerify(t *testing.T) {
	wallet, err := NewStub([]byte("seed"))
	require.NoError(t, err)
	addrs, err := wallet.Addresses(context.Background())
	require.NoError(t, err)

	payload := []byte("bound payload")
	sig, err := wallet.SignData(context.Background(), addrs[0], payload)
	require.NoError(t, err)
	assert.True(t, wallet.VerifyData(addrs[0], payload, sig))
	assert.False(t, wallet.VerifyData(addrs[0], []byte("other payload"), sig))
	assert.False(t, wallet.VerifyData(addrs[1], payload, sig))
}

func TestSignUnknownAddress(t *testing.T) {
	wallet, err := NewStub([]byte("seed"))
	require.NoError(t, err)
	_, err = wallet.SignData(context.Background(), "rUnknown", []byte("x"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestUnavailableWalletIsACapabilityCheck(t *testing.T) {
	var w Wallet = Unavailable{}
	assert.False(t, w.Available())
	_, err := w.Addresses(context.Background())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeCapabilityUnavailable))
	_, err = w.SignData(context.Background(), "r", nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeCapabilityUnavailable))
}
