package anchor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	id "proofdeck/pkg/domain"
	"proofdeck/pkg/sentinel"
)

// SQLiteStore persists anchor records in the local database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the anchors table if needed and returns the store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS anchors (
	credential_id TEXT PRIMARY KEY,
	credential_hash TEXT NOT NULL,
	tx_hash TEXT NOT NULL,
	network TEXT NOT NULL,
	anchored_at INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate anchors: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, record *Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO anchors (credential_id, credential_hash, tx_hash, network, anchored_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(credential_id) DO UPDATE SET
			credential_hash = excluded.credential_hash,
			tx_hash = excluded.tx_hash,
			network = excluded.network,
			anchored_at = excluded.anchored_at`,
		record.CredentialID.String(), record.CredentialHash, record.TxHash,
		record.Network, record.AnchoredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert anchor: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, credID id.CredentialID) (*Record, error) {
	var (
		record     Record
		credIDStr  string
		anchoredAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT credential_id, credential_hash, tx_hash, network, anchored_at
		 FROM anchors WHERE credential_id = ?`, credID.String(),
	).Scan(&credIDStr, &record.CredentialHash, &record.TxHash, &record.Network, &anchoredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get anchor: %w", err)
	}
	parsed, err := id.ParseCredentialID(credIDStr)
	if err != nil {
		return nil, fmt.Errorf("decode anchor row: %w", err)
	}
	record.CredentialID = parsed
	record.AnchoredAt = time.Unix(0, anchoredAt).UTC()
	return &record, nil
}
