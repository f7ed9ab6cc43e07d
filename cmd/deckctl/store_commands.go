package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"proofdeck/internal/anchor"
	"proofdeck/internal/credstore"
	"proofdeck/internal/issuer"
	"proofdeck/internal/ledger"
	"proofdeck/internal/platform/sqlite"
	id "proofdeck/pkg/domain"
)

// newIssueCmd issues a credential into the server's sqlite store using the
// same keypair file the server signs with.
func newIssueCmd() *cobra.Command {
	var (
		dbPath    string
		keyPath   string
		subject   string
		claimsRaw string
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a credential into the local store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			holder, err := id.ParseDID(subject)
			if err != nil {
				return err
			}
			var claims map[string]any
			if err := json.Unmarshal([]byte(claimsRaw), &claims); err != nil {
				return fmt.Errorf("parse claims: %w", err)
			}

			db, err := sqlite.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			creds, err := credstore.NewSQLiteStore(db)
			if err != nil {
				return err
			}

			iss := issuer.NewService(issuer.NewFileKeyStore(keyPath), creds, nil)
			if err := iss.Initialize(cmd.Context()); err != nil {
				return err
			}
			cred, err := iss.IssueCredential(cmd.Context(), holder, claims, ttl)
			if err != nil {
				return err
			}
			printArtifact(cmd, "credential", cred)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "proofdeck.db", "sqlite database path")
	cmd.Flags().StringVar(&keyPath, "key", "issuer-key.json", "issuer keypair file")
	cmd.Flags().StringVar(&subject, "subject", "", "holder DID (required)")
	cmd.Flags().StringVar(&claimsRaw, "claims", "{}", "claims as a JSON object")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "credential validity; 0 for no expiry")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

// newVerifyAnchorCmd re-checks a stored anchor record against the stored
// credential, offline.
func newVerifyAnchorCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "verify-anchor <credential-id>",
		Short: "Check a stored anchor record against its credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			credID, err := id.ParseCredentialID(args[0])
			if err != nil {
				return err
			}

			db, err := sqlite.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			creds, err := credstore.NewSQLiteStore(db)
			if err != nil {
				return err
			}
			anchors, err := anchor.NewSQLiteStore(db)
			if err != nil {
				return err
			}

			cred, err := creds.Get(cmd.Context(), credID)
			if err != nil {
				return fmt.Errorf("load credential: %w", err)
			}
			coordinator := anchor.NewCoordinator(anchors, ledger.NewStubClient(nil), "", nil)
			record, err := coordinator.RecordFor(cmd.Context(), credID)
			if err != nil {
				return fmt.Errorf("load anchor record: %w", err)
			}
			if err := coordinator.VerifyAnchor(cred, record); err != nil {
				return fmt.Errorf("anchor check failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "anchor %s verifies against credential %s\n",
				record.TxHash, credID)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "proofdeck.db", "sqlite database path")
	return cmd
}
