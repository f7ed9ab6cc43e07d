package ledger

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"

	"proofdeck/internal/canonical"
	dErrors "proofdeck/pkg/domain-errors"
	"proofdeck/pkg/sentinel"
)

// StubClient is an in-process ledger for tests and demo flows. Transaction
// hashes are deterministic functions of the payload, so repeated runs anchor
// to reproducible identifiers.
type StubClient struct {
	mu        sync.Mutex
	network   string
	connected bool
	txs       map[string]*Tx
	clock     clock.Clock
}

// NewStubClient constructs a disconnected stub ledger.
func NewStubClient(clk clock.Clock) *StubClient {
	if clk == nil {
		clk = clock.New()
	}
	return &StubClient{
		txs:   make(map[string]*Tx),
		clock: clk,
	}
}

func (c *StubClient) Connect(_ context.Context, network string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.network = network
	c.connected = true
	return nil
}

// Disconnect drops the connection; later submissions fail the capability
// check until Connect is called again.
func (c *StubClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *StubClient) Submit(_ context.Context, signedTx []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return "", dErrors.New(dErrors.CodeCapabilityUnavailable, "ledger not connected")
	}
	hash := strings.ToUpper(canonical.Digest(hex.EncodeToString(signedTx)))
	c.txs[hash] = &Tx{
		Hash:        hash,
		Network:     c.network,
		Payload:     append([]byte(nil), signedTx...),
		SubmittedAt: c.clock.Now().UTC(),
	}
	return hash, nil
}

func (c *StubClient) Fetch(_ context.Context, txHash string) (*Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil, dErrors.New(dErrors.CodeCapabilityUnavailable, "ledger not connected")
	}
	tx, ok := c.txs[txHash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyTx := *tx
	return &copyTx, nil
}
