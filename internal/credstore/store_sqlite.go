package credstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"proofdeck/internal/vc"
	id "proofdeck/pkg/domain"
	"proofdeck/pkg/sentinel"
)

// SQLiteStore persists credentials in the local database. The full record is
// stored as JSON; subject, issuer, and issuance time are lifted into columns
// for the derived views.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the credentials table if needed and returns the store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	id TEXT PRIMARY KEY,
	subject TEXT NOT NULL,
	issuer TEXT NOT NULL,
	issued_at INTEGER NOT NULL,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_credentials_subject ON credentials(subject);
CREATE INDEX IF NOT EXISTS idx_credentials_issuer ON credentials(issuer);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate credentials: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, cred *vc.Credential) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO credentials (id, subject, issuer, issued_at, payload)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`,
		cred.ID.String(), cred.Subject.String(), cred.Issuer.String(), cred.IssuedAt.UnixNano(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, credID id.CredentialID) (*vc.Credential, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM credentials WHERE id = ?`, credID.String(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return decodeCredential(payload)
}

func (s *SQLiteStore) ListBySubject(ctx context.Context, subject id.DID) ([]*vc.Credential, error) {
	return s.list(ctx, `SELECT payload FROM credentials WHERE subject = ? ORDER BY issued_at`, subject.String())
}

func (s *SQLiteStore) ListByIssuer(ctx context.Context, issuer id.DID) ([]*vc.Credential, error) {
	return s.list(ctx, `SELECT payload FROM credentials WHERE issuer = ? ORDER BY issued_at`, issuer.String())
}

func (s *SQLiteStore) Delete(ctx context.Context, credID id.CredentialID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, credID.String())
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) list(ctx context.Context, query, arg string) ([]*vc.Credential, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []*vc.Credential
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		cred, err := decodeCredential(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, cred)
	}
	return out, rows.Err()
}

func decodeCredential(payload string) (*vc.Credential, error) {
	var cred vc.Credential
	if err := json.Unmarshal([]byte(payload), &cred); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	return &cred, nil
}
