package issuer

import (
	"crypto/ed25519"
	"encoding/hex"

	"proofdeck/internal/canonical"
)

// Scheme is the injectable signing capability. The protocol state machine
// only ever sees opaque signatures, so a deployment can swap algorithms
// without touching request/grant/response handling.
type Scheme interface {
	// Type names the proof type recorded in credential proof blocks.
	Type() string
	// Sign produces a signature over data with the issuer's key material.
	Sign(kp *KeyPair, data []byte) (string, error)
	// Verify reports whether signature matches data under the public key.
	// Mismatches are a boolean result, never an error.
	Verify(pub []byte, data []byte, signature string) bool
}

// Ed25519Scheme signs with Ed25519. This is the default.
type Ed25519Scheme struct{}

func (Ed25519Scheme) Type() string { return "Ed25519Signature2020" }

func (Ed25519Scheme) Sign(kp *KeyPair, data []byte) (string, error) {
	return hex.EncodeToString(ed25519.Sign(kp.PrivateKey, data)), nil
}

func (Ed25519Scheme) Verify(pub []byte, data []byte, signature string) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), data, sig)
}

// DigestScheme derives a pseudo-signature from a hash of the public key and
// the data. It authenticates nothing - anyone holding the public key can
// forge it - and exists only for fixtures that need deterministic signatures
// without fresh key material. Never enable it outside tests.
type DigestScheme struct{}

func (DigestScheme) Type() string { return "Sha256DigestBinding" }

func (DigestScheme) Sign(kp *KeyPair, data []byte) (string, error) {
	return canonical.Digest(hex.EncodeToString(kp.PublicKey) + string(data)), nil
}

func (DigestScheme) Verify(pub []byte, data []byte, signature string) bool {
	return canonical.Digest(hex.EncodeToString(pub)+string(data)) == signature
}
