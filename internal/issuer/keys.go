package issuer

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"proofdeck/internal/canonical"
	id "proofdeck/pkg/domain"
	"proofdeck/pkg/sentinel"
)

// DIDMethodPrefix namespaces issuer identifiers derived from public keys.
const DIDMethodPrefix = "did:pdk:"

// KeyPair is the issuer's signing identity. The private key never leaves the
// issuer's process boundary; only IssuerID and PublicKey appear on the wire.
type KeyPair struct {
	PublicKey  ed25519.PublicKey  `json:"public_key"`
	PrivateKey ed25519.PrivateKey `json:"private_key"`
	IssuerID   id.DID             `json:"issuer_id"`
	CreatedAt  time.Time          `json:"created_at"`
}

// GenerateKeyPair creates a fresh Ed25519 keypair with a derived issuer ID.
func GenerateKeyPair(now time.Time) (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &KeyPair{
		PublicKey:  pub,
		PrivateKey: priv,
		IssuerID:   DeriveIssuerID(pub),
		CreatedAt:  now.UTC(),
	}, nil
}

// DeriveIssuerID is a pure function of the public key: the namespace prefix
// plus the first 128 bits of its digest.
func DeriveIssuerID(pub ed25519.PublicKey) id.DID {
	return id.DID(DIDMethodPrefix + canonical.Digest(hex.EncodeToString(pub))[:32])
}

// KeyStore persists the issuer keypair.
// Error Contract:
// - Load returns sentinel.ErrNotFound when no keypair has been persisted
// - Save returns nil on success or a wrapped error on failure; failures are
//   surfaced, never swallowed
type KeyStore interface {
	Load(ctx context.Context) (*KeyPair, error)
	Save(ctx context.Context, kp *KeyPair) error
}

// InMemoryKeyStore holds a keypair in memory for tests and ephemeral issuers.
type InMemoryKeyStore struct {
	mu sync.RWMutex
	kp *KeyPair
}

// NewInMemoryKeyStore constructs an empty in-memory key store.
func NewInMemoryKeyStore() *InMemoryKeyStore {
	return &InMemoryKeyStore{}
}

func (s *InMemoryKeyStore) Load(_ context.Context) (*KeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.kp == nil {
		return nil, sentinel.ErrNotFound
	}
	copyKP := *s.kp
	return &copyKP, nil
}

func (s *InMemoryKeyStore) Save(_ context.Context, kp *KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyKP := *kp
	s.kp = &copyKP
	return nil
}

// FileKeyStore persists the keypair as a JSON file. Read or parse failures
// are reported to the caller, who decides between starting fresh and
// aborting; this store never swallows them.
type FileKeyStore struct {
	path string
}

// NewFileKeyStore constructs a key store backed by the file at path.
func NewFileKeyStore(path string) *FileKeyStore {
	return &FileKeyStore{path: path}
}

func (s *FileKeyStore) Load(_ context.Context) (*KeyPair, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read keypair file: %w", err)
	}
	var kp KeyPair
	if err := json.Unmarshal(raw, &kp); err != nil {
		return nil, fmt.Errorf("parse keypair file: %w", err)
	}
	return &kp, nil
}

func (s *FileKeyStore) Save(_ context.Context, kp *KeyPair) error {
	raw, err := json.Marshal(kp)
	if err != nil {
		return fmt.Errorf("encode keypair: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write keypair file: %w", err)
	}
	return nil
}
