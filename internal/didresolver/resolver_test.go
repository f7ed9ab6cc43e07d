package didresolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proofdeck/internal/issuer"
	"proofdeck/internal/pairwise"
	"proofdeck/internal/wallet"
	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
)

func TestResolveBuiltinMethods(t *testing.T) {
	r := New()

	tests := []struct {
		name string
		did  string
	}{
		{"pdk", "did:pdk:0123456789abcdef0123456789abcdef"},
		{"pair", "did:pair:0123456789abcdef0123456789abcdef"},
		{"key", "did:key:z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK"},
		{"xrpl", "did:xrpl:rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := r.Resolve(context.Background(), tt.did)
			require.NoError(t, err)
			assert.Equal(t, tt.name, doc.Method)
			assert.Equal(t, id.DID(tt.did), doc.DID)
		})
	}
}

func TestResolveRejectsMalformedAndUnknown(t *testing.T) {
	r := New()

	for _, raw := range []string{
		"not-a-did",
		"did:pdk:tooshort",
		"did:pdk:ZZZZ56789abcdef0123456789abcdef0",
		"did:unknown:whatever",
	} {
		_, err := r.Resolve(context.Background(), raw)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound), raw)
	}
}

func TestResolveDerivedIdentifiers(t *testing.T) {
	r := New()

	// Issuer ids and pairwise ids resolve as produced by their packages.
	kp, err := issuer.GenerateKeyPair(time.Now())
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), kp.IssuerID.String())
	assert.NoError(t, err)

	pw := pairwise.Derive("did:key:z6MkHolder", "app1")
	_, err = r.Resolve(context.Background(), pw.String())
	assert.NoError(t, err)

	// Stub wallet addresses fit the xrpl shape.
	stub, err := wallet.NewStub([]byte("seed"))
	require.NoError(t, err)
	addrs, err := stub.Addresses(context.Background())
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "did:xrpl:"+addrs[0])
	assert.NoError(t, err)
}

func TestRegisterCustomMethod(t *testing.T) {
	r := New()
	r.Register("web", func(_ context.Context, did id.DID, methodID string) (*Document, error) {
		return &Document{DID: did, Method: "web", MethodID: methodID}, nil
	})

	doc, err := r.Resolve(context.Background(), "did:web:example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", doc.MethodID)
}
