package pairwise

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	id "proofdeck/pkg/domain"
	"proofdeck/pkg/sentinel"
)

// SQLiteStore persists pairwise entries in the local database. The pairwise
// column is indexed so reverse lookups do not scan.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the pairwise table if needed and returns the store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS pairwise_entries (
	master_did TEXT NOT NULL,
	audience TEXT NOT NULL,
	pairwise_did TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (master_did, audience)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_pairwise_did ON pairwise_entries(pairwise_did);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate pairwise_entries: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, master id.DID, audience string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT master_did, audience, pairwise_did, created_at FROM pairwise_entries WHERE master_did = ? AND audience = ?`,
		string(master), audience,
	)
	return scanEntry(row)
}

func (s *SQLiteStore) Put(ctx context.Context, entry *Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pairwise_entries (master_did, audience, pairwise_did, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(master_did, audience) DO NOTHING`,
		string(entry.MasterDID), entry.Audience, string(entry.PairwiseDID), entry.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert pairwise entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindByPairwise(ctx context.Context, pairwise id.DID) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT master_did, audience, pairwise_did, created_at FROM pairwise_entries WHERE pairwise_did = ?`,
		string(pairwise),
	)
	return scanEntry(row)
}

func scanEntry(row *sql.Row) (*Entry, error) {
	var entry Entry
	var master, pair string
	var createdAt int64
	err := row.Scan(&master, &entry.Audience, &pair, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan pairwise entry: %w", err)
	}
	entry.MasterDID = id.DID(master)
	entry.PairwiseDID = id.DID(pair)
	entry.CreatedAt = time.Unix(0, createdAt).UTC()
	return &entry, nil
}
