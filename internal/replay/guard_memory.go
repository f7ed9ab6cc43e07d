package replay

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"proofdeck/pkg/sentinel"
)

const cleanupInterval = 5 * time.Minute

// InMemoryGuard keeps admissions in memory. One lock covers the whole cache;
// contention is low because admission happens once per verification.
// Entries are never mutated, only created and deleted.
type InMemoryGuard struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
	clock   clock.Clock
	done    chan struct{}
	once    sync.Once
}

// NewInMemoryGuard constructs a guard with a background sweep of expired
// entries. Pass a mock clock in tests to step TTLs without sleeping.
func NewInMemoryGuard(clk clock.Clock) *InMemoryGuard {
	if clk == nil {
		clk = clock.New()
	}
	g := &InMemoryGuard{
		entries: make(map[string]time.Time),
		clock:   clk,
		done:    make(chan struct{}),
	}
	go g.sweep()
	return g
}

// Admit records the key unless it is already present and unexpired.
func (g *InMemoryGuard) Admit(_ context.Context, key string, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if expiry, ok := g.entries[key]; ok && expiry.After(now) {
		return sentinel.ErrAlreadyUsed
	}
	g.entries[key] = now.Add(ttl)
	return nil
}

// Has reports whether the key is currently admitted.
func (g *InMemoryGuard) Has(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	expiry, ok := g.entries[key]
	return ok && expiry.After(g.clock.Now()), nil
}

// Close stops the background sweep.
func (g *InMemoryGuard) Close() {
	g.once.Do(func() { close(g.done) })
}

func (g *InMemoryGuard) sweep() {
	ticker := g.clock.Ticker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			g.mu.Lock()
			now := g.clock.Now()
			for key, expiry := range g.entries {
				if !expiry.After(now) {
					delete(g.entries, key)
				}
			}
			g.mu.Unlock()
		}
	}
}
