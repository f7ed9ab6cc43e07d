package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"proofdeck/internal/anchor"
	"proofdeck/internal/audit"
	"proofdeck/internal/credstore"
	"proofdeck/internal/deck"
	"proofdeck/internal/didresolver"
	"proofdeck/internal/issuer"
	"proofdeck/internal/ledger"
	"proofdeck/internal/pairwise"
	"proofdeck/internal/platform/config"
	"proofdeck/internal/platform/health"
	"proofdeck/internal/platform/kafka/producer"
	platformmetrics "proofdeck/internal/platform/metrics"
	platformredis "proofdeck/internal/platform/redis"
	"proofdeck/internal/platform/sqlite"
	"proofdeck/internal/protocol"
	"proofdeck/internal/replay"
	httptransport "proofdeck/internal/transport/http"
	"proofdeck/internal/verify"
	verifymetrics "proofdeck/internal/verify/metrics"
	"proofdeck/internal/wallet"
)

// app holds the wired dependency graph and everything that needs closing.
type app struct {
	Router http.Handler

	db       *sql.DB
	auditor  *audit.Publisher
	producer *producer.Producer
	redis    *goredis.Client
}

// buildApp assembles stores, services, and the HTTP surface from config.
// Optional collaborators (Redis, Kafka, ledger anchoring, wallet) are wired
// only when configured; everything degrades to in-process substitutes.
func buildApp(ctx context.Context, cfg config.Server, log *slog.Logger) (*app, error) {
	a := &app{}

	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	a.db = db

	creds, err := credstore.NewSQLiteStore(db)
	if err != nil {
		return nil, fmt.Errorf("credential store: %w", err)
	}
	pairStore, err := pairwise.NewSQLiteStore(db)
	if err != nil {
		return nil, fmt.Errorf("pairwise store: %w", err)
	}
	anchorStore, err := anchor.NewSQLiteStore(db)
	if err != nil {
		return nil, fmt.Errorf("anchor store: %w", err)
	}

	healthHandler := health.New(cfg.Environment)
	healthHandler.RegisterCheck("sqlite", db.Ping)

	auditor, err := a.buildAuditor(ctx, cfg, log, healthHandler)
	if err != nil {
		return nil, err
	}
	a.auditor = auditor

	iss := issuer.NewService(issuer.NewFileKeyStore(cfg.KeyPath), creds, log,
		issuer.WithAuditor(auditor))
	if err := iss.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize issuer: %w", err)
	}

	deckStore := deck.NewInMemoryStore()
	if err := loadDecks(ctx, deckStore, cfg.DecksPath, log); err != nil {
		return nil, err
	}
	evaluator := deck.NewEvaluator(deckStore, credstore.NewMatcher(creds, nil), log)

	proto := protocol.NewService(protocol.NewInMemoryStore(), evaluator, iss, creds, log,
		protocol.WithAuditor(auditor),
		protocol.WithPairwise(pairwise.NewManager(pairStore, nil, log)))

	guard, err := a.buildGuard(ctx, cfg, healthHandler)
	if err != nil {
		return nil, err
	}
	pipeline := verify.NewPipeline(guard, creds, anchorStore, log,
		verify.WithClockSkew(cfg.ClockSkew),
		verify.WithAuditor(auditor),
		verify.WithMetrics(verifymetrics.New()))

	var anchors *anchor.Coordinator
	if cfg.AnchoringEnabled() {
		client := ledger.NewStubClient(nil)
		if err := client.Connect(ctx, cfg.LedgerNetwork); err != nil {
			return nil, fmt.Errorf("connect ledger: %w", err)
		}
		anchors = anchor.NewCoordinator(anchorStore, client, cfg.LedgerNetwork, log,
			anchor.WithAuditor(auditor))
	}

	var w wallet.Wallet = wallet.Unavailable{}
	if cfg.WalletSeed != "" {
		stub, err := wallet.NewStub([]byte(cfg.WalletSeed))
		if err != nil {
			return nil, fmt.Errorf("wallet: %w", err)
		}
		w = stub
	}

	handler := httptransport.NewHandler(log, iss, proto, pipeline, deckStore, evaluator,
		creds, anchors, w, didresolver.New(), platformmetrics.New())
	a.Router = httptransport.NewRouter(handler, healthHandler, log)
	return a, nil
}

// buildAuditor routes audit events through Kafka when brokers are configured,
// otherwise into the in-memory store.
func (a *app) buildAuditor(ctx context.Context, cfg config.Server, log *slog.Logger, h *health.Handler) (*audit.Publisher, error) {
	var store audit.Store = audit.NewInMemoryStore()
	if cfg.KafkaBrokers != "" {
		prod, err := producer.New(producer.Config{
			Brokers:         cfg.KafkaBrokers,
			Acks:            "all",
			Retries:         3,
			DeliveryTimeout: 10 * time.Second,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		a.producer = prod
		kafkaStore, err := audit.NewKafkaStore(prod, cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("kafka audit store: %w", err)
		}
		store = kafkaStore
		h.RegisterCheck("kafka", func() error {
			hctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if !prod.Healthy(hctx) {
				return fmt.Errorf("kafka unreachable")
			}
			return nil
		})
	}
	return audit.NewPublisher(store,
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log)), nil
}

// buildGuard uses Redis for replay tracking when configured so multiple
// verifier instances share one nonce set.
func (a *app) buildGuard(ctx context.Context, cfg config.Server, h *health.Handler) (replay.Guard, error) {
	if cfg.RedisAddr == "" {
		return replay.NewInMemoryGuard(nil), nil
	}
	client, err := platformredis.New(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.redis = client
	platformredis.CollectPoolStats(client)
	h.RegisterCheck("redis", func() error {
		hctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return client.Ping(hctx).Err()
	})
	return replay.NewRedisGuard(client), nil
}

// loadDecks loads deck definitions from the configured YAML file. A missing
// file is not fatal; the server starts with no decks registered.
func loadDecks(ctx context.Context, store *deck.InMemoryStore, path string, log *slog.Logger) error {
	defs, err := deck.LoadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("deck file not found, starting with no decks", "path", path)
			return nil
		}
		return fmt.Errorf("load decks: %w", err)
	}
	for i := range defs {
		if err := store.PutDefinition(ctx, &defs[i]); err != nil {
			return fmt.Errorf("register deck %s: %w", defs[i].DeckID, err)
		}
	}
	log.Info("decks loaded", "count", len(defs), "path", path)
	return nil
}

// Close releases resources in reverse dependency order.
func (a *app) Close() {
	if a.auditor != nil {
		a.auditor.Close()
	}
	if a.producer != nil {
		a.producer.Flush(5 * time.Second)
		_ = a.producer.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
