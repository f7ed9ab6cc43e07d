// Package httptransport is the thin HTTP layer. Handlers decode, delegate
// to domain services, and encode; protocol semantics never live here.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proofdeck/internal/anchor"
	"proofdeck/internal/credstore"
	"proofdeck/internal/deck"
	"proofdeck/internal/didresolver"
	"proofdeck/internal/issuer"
	"proofdeck/internal/platform/health"
	"proofdeck/internal/platform/metrics"
	"proofdeck/internal/platform/middleware"
	"proofdeck/internal/protocol"
	"proofdeck/internal/verify"
	"proofdeck/internal/wallet"
)

// Handler bundles the domain services behind the HTTP surface. Anchors may
// be nil when no ledger network is configured.
type Handler struct {
	logger    *slog.Logger
	issuer    *issuer.Service
	protocol  *protocol.Service
	pipeline  *verify.Pipeline
	decks     deck.Store
	evaluator *deck.Evaluator
	creds     credstore.Store
	anchors   *anchor.Coordinator
	wallet    wallet.Wallet
	resolver  *didresolver.Resolver
	metrics   *metrics.Metrics
}

// NewHandler constructs the HTTP handler set.
func NewHandler(
	logger *slog.Logger,
	iss *issuer.Service,
	proto *protocol.Service,
	pipeline *verify.Pipeline,
	decks deck.Store,
	evaluator *deck.Evaluator,
	creds credstore.Store,
	anchors *anchor.Coordinator,
	w wallet.Wallet,
	resolver *didresolver.Resolver,
	m *metrics.Metrics,
) *Handler {
	if w == nil {
		w = wallet.Unavailable{}
	}
	return &Handler{
		logger:    logger,
		issuer:    iss,
		protocol:  proto,
		pipeline:  pipeline,
		decks:     decks,
		evaluator: evaluator,
		creds:     creds,
		anchors:   anchors,
		wallet:    w,
		resolver:  resolver,
		metrics:   m,
	}
}

// NewRouter wires all endpoints with the middleware stack.
func NewRouter(h *Handler, healthHandler *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Requester)
	if h.metrics != nil {
		r.Use(middleware.Latency(h.metrics))
	}

	r.Get("/issuer", h.handleIssuerInfo)
	r.Post("/issuer/credentials", h.handleIssueCredential)

	r.Post("/requests", h.handleMintRequest)
	r.Get("/requests/{requestID}", h.handleGetRequest)

	r.Post("/grants", h.handleGrantConsent)
	r.Post("/proofs", h.handleBuildProof)
	r.Post("/verify", h.handleVerify)

	r.Post("/anchors", h.handleAnchorCredential)
	r.Get("/anchors/{credentialID}", h.handleGetAnchor)
	r.Post("/receipts", h.handleRecordReceipt)

	r.Get("/decks", h.handleListDecks)
	r.Get("/decks/{deckID}", h.handleGetDeck)
	r.Get("/decks/{deckID}/evaluation", h.handleEvaluateDeck)

	r.Get("/wallet/addresses", h.handleWalletAddresses)

	r.Handle("/metrics", promhttp.Handler())
	if healthHandler != nil {
		healthHandler.Register(r)
	}
	return r
}
