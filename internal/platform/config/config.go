package config

import (
	"os"
	"strings"
	"time"
)

// Defaults applied when the environment leaves a knob unset.
var (
	DefaultRequestTTL = 5 * time.Minute
	DefaultClockSkew  = 30 * time.Second
)

// Server captures process-level configuration. Optional collaborators
// (Redis replay guard, Kafka audit sink, ledger anchoring) stay disabled
// when their addresses are empty.
type Server struct {
	Addr          string
	Environment   string
	SQLitePath    string
	KeyPath       string
	DecksPath     string
	RequestTTL    time.Duration
	ClockSkew     time.Duration
	LedgerNetwork string
	RedisAddr     string
	KafkaBrokers  string
	KafkaTopic    string
	WalletSeed    string
	AdminToken    string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:          envOr("PROOFDECK_ADDR", ":8080"),
		Environment:   envOr("PROOFDECK_ENV", "development"),
		SQLitePath:    envOr("PROOFDECK_SQLITE_PATH", "proofdeck.db"),
		KeyPath:       envOr("PROOFDECK_KEY_PATH", "issuer-key.json"),
		DecksPath:     envOr("PROOFDECK_DECKS_PATH", "decks.yaml"),
		RequestTTL:    DefaultRequestTTL,
		ClockSkew:     DefaultClockSkew,
		LedgerNetwork: envOr("PROOFDECK_LEDGER_NETWORK", ""),
		RedisAddr:     envOr("PROOFDECK_REDIS_ADDR", ""),
		KafkaBrokers:  envOr("PROOFDECK_KAFKA_BROKERS", ""),
		KafkaTopic:    envOr("PROOFDECK_KAFKA_TOPIC", "proofdeck.audit"),
		WalletSeed:    envOr("PROOFDECK_WALLET_SEED", ""),
		AdminToken:    envOr("PROOFDECK_ADMIN_TOKEN", ""),
	}
	if ttl, err := time.ParseDuration(os.Getenv("PROOFDECK_REQUEST_TTL")); err == nil && ttl > 0 {
		cfg.RequestTTL = ttl
	}
	if skew, err := time.ParseDuration(os.Getenv("PROOFDECK_CLOCK_SKEW")); err == nil && skew >= 0 {
		cfg.ClockSkew = skew
	}
	return cfg
}

// AnchoringEnabled reports whether a ledger network is configured.
func (s Server) AnchoringEnabled() bool {
	return strings.TrimSpace(s.LedgerNetwork) != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
