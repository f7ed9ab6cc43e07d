package protocol

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// nonceBytes yields 48 hex characters, inside the 32-64 range the wire
// schema enforces.
const nonceBytes = 24

// NewNonce draws a fresh request nonce from the system entropy source.
func NewNonce() (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("draw nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
