// Package didresolver validates identifier shapes by DID method. It is a
// local registry, never consulted on the hot verification path, so adding a
// network-backed method later cannot slow verification down.
package didresolver

import (
	"context"
	"regexp"
	"sync"

	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
)

// Document is the minimal resolution result: the identifier and its method.
// Methods that carry key material inline (pdk) expose it as the method
// specific id.
type Document struct {
	DID      id.DID `json:"did"`
	Method   string `json:"method"`
	MethodID string `json:"methodId"`
}

// MethodFunc validates the method-specific part of an identifier and
// returns its document.
type MethodFunc func(ctx context.Context, did id.DID, methodID string) (*Document, error)

// Resolver maps method prefixes to handlers.
type Resolver struct {
	mu      sync.RWMutex
	methods map[string]MethodFunc
}

// New returns a resolver with the built-in methods registered: pdk
// (digest-derived issuer ids), pair (pairwise audience ids), key
// (multibase-encoded public keys), and xrpl (ledger account ids).
func New() *Resolver {
	r := &Resolver{methods: make(map[string]MethodFunc)}
	r.Register("pdk", shapeMethod(hexShape32))
	r.Register("pair", shapeMethod(hexShape32))
	r.Register("key", shapeMethod(multibaseShape))
	r.Register("xrpl", shapeMethod(xrplShape))
	return r
}

// Register adds or replaces a method handler.
func (r *Resolver) Register(method string, fn MethodFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[method] = fn
}

// Resolve validates the identifier against its method's shape.
// Unregistered methods and malformed identifiers come back as not found,
// matching the external-boundary contract.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*Document, error) {
	did, err := id.ParseDID(raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "unresolvable identifier")
	}
	method := did.Method()

	r.mu.RLock()
	fn, ok := r.methods[method]
	r.mu.RUnlock()
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown DID method "+method)
	}
	return fn(ctx, did, methodSpecificID(raw, method))
}

var (
	hexShape32     = regexp.MustCompile(`^[0-9a-f]{32}$`)
	multibaseShape = regexp.MustCompile(`^z[1-9A-HJ-NP-Za-km-z]{8,}$`)
	xrplShape      = regexp.MustCompile(`^r[0-9A-Za-z]{24,40}$`)
)

func shapeMethod(shape *regexp.Regexp) MethodFunc {
	return func(_ context.Context, did id.DID, methodID string) (*Document, error) {
		if !shape.MatchString(methodID) {
			return nil, dErrors.New(dErrors.CodeNotFound, "malformed identifier for method "+did.Method())
		}
		return &Document{DID: did, Method: did.Method(), MethodID: methodID}, nil
	}
}

func methodSpecificID(raw, method string) string {
	return raw[len("did:")+len(method)+1:]
}
