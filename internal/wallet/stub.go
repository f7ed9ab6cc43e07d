package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"proofdeck/internal/canonical"
	dErrors "proofdeck/pkg/domain-errors"
)

// addressCount is the number of derived accounts a stub wallet exposes.
const addressCount = 3

// Stub derives a fixed set of Ed25519 accounts from a seed via HKDF, so a
// demo environment gets stable addresses across restarts. Addresses carry
// an r prefix after the ledger convention they stand in for.
type Stub struct {
	keys      map[string]ed25519.PrivateKey
	addresses []string
}

// NewStub expands the seed into addressCount deterministic accounts.
func NewStub(seed []byte) (*Stub, error) {
	if len(seed) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "wallet seed required")
	}
	s := &Stub{keys: make(map[string]ed25519.PrivateKey, addressCount)}
	for i := 0; i < addressCount; i++ {
		reader := hkdf.New(sha256.New, seed, nil, []byte(fmt.Sprintf("account-%d", i)))
		keySeed := make([]byte, ed25519.SeedSize)
		if _, err := io.ReadFull(reader, keySeed); err != nil {
			return nil, fmt.Errorf("derive account %d: %w", i, err)
		}
		priv := ed25519.NewKeyFromSeed(keySeed)
		addr := deriveAddress(priv.Public().(ed25519.PublicKey))
		s.keys[addr] = priv
		s.addresses = append(s.addresses, addr)
	}
	return s, nil
}

func (s *Stub) Available() bool { return true }

func (s *Stub) Addresses(context.Context) ([]string, error) {
	return append([]string(nil), s.addresses...), nil
}

// SignData signs the payload with the key behind the address. Signatures
// are hex-encoded.
func (s *Stub) SignData(_ context.Context, address string, payload []byte) (string, error) {
	priv, ok := s.keys[address]
	if !ok {
		return "", dErrors.New(dErrors.CodeNotFound, "wallet does not hold address "+address)
	}
	return hex.EncodeToString(ed25519.Sign(priv, payload)), nil
}

// VerifyData checks a signature produced by SignData for the address.
func (s *Stub) VerifyData(address string, payload []byte, signature string) bool {
	priv, ok := s.keys[address]
	if !ok {
		return false
	}
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return ed25519.Verify(priv.Public().(ed25519.PublicKey), payload, sig)
}

func deriveAddress(pub ed25519.PublicKey) string {
	return "r" + canonical.Digest(hex.EncodeToString(pub))[:32]
}
