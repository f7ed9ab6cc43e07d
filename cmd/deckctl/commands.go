package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"proofdeck/internal/credstore"
	"proofdeck/internal/deck"
	"proofdeck/internal/issuer"
	"proofdeck/internal/protocol"
	"proofdeck/internal/replay"
	"proofdeck/internal/verify"
	id "proofdeck/pkg/domain"
)

func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint <decks.yaml>",
		Short: "Validate a deck definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := deck.LoadFile(args[0])
			if err != nil {
				return err
			}
			for _, def := range defs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, version %s): %d permissions\n",
					def.DeckID, def.Name, def.Version, len(def.Permissions))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d deck(s) valid\n", len(defs))
			return nil
		},
	}
}

func newKeygenCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen <path>",
		Short: "Generate an issuer keypair file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, pass --force to overwrite", path)
			}
			kp, err := issuer.GenerateKeyPair(time.Now())
			if err != nil {
				return err
			}
			if err := issuer.NewFileKeyStore(path).Save(cmd.Context(), kp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "issuer %s written to %s\n", kp.IssuerID, path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing keypair file")
	return cmd
}

// newDemoCmd runs issuance, request, consent, proof, and verification in one
// process and prints each artifact, so operators can see the whole exchange
// without standing up a server.
func newDemoCmd() *cobra.Command {
	var (
		decksPath string
		deckID    string
		audience  string
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a full proof exchange in-process",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDemo(cmd, decksPath, id.DeckID(deckID), audience)
		},
	}
	cmd.Flags().StringVar(&decksPath, "decks", "decks.yaml", "deck definition file")
	cmd.Flags().StringVar(&deckID, "deck", "kyc-basic", "deck to grant from")
	cmd.Flags().StringVar(&audience, "audience", "demo-verifier", "requesting audience")
	return cmd
}

func runDemo(cmd *cobra.Command, decksPath string, deckID id.DeckID, audience string) error {
	ctx := context.Background()
	const holder = id.DID("did:key:z6MkDemoHolder")

	creds := credstore.NewInMemoryStore()
	iss := issuer.NewService(issuer.NewInMemoryKeyStore(), creds, nil)
	if err := iss.Initialize(ctx); err != nil {
		return err
	}

	defs, err := deck.LoadFile(decksPath)
	if err != nil {
		return err
	}
	deckStore := deck.NewInMemoryStore()
	var required []id.PermissionID
	claims := map[string]any{}
	for i := range defs {
		if err := deckStore.PutDefinition(ctx, &defs[i]); err != nil {
			return err
		}
		if defs[i].DeckID != deckID {
			continue
		}
		for _, perm := range defs[i].Permissions {
			required = append(required, perm.ID)
			for _, claim := range perm.RequiredClaims {
				claims[claim] = "demo"
			}
		}
	}
	if len(required) == 0 {
		return fmt.Errorf("deck %s not found in %s or has no permissions", deckID, decksPath)
	}

	if _, err := iss.IssueCredential(ctx, holder, claims, 24*time.Hour); err != nil {
		return err
	}

	evaluator := deck.NewEvaluator(deckStore, credstore.NewMatcher(creds, nil), nil)
	proto := protocol.NewService(protocol.NewInMemoryStore(), evaluator, iss, creds, nil)

	req, err := proto.MintRequest(ctx, audience, required, 5*time.Minute)
	if err != nil {
		return err
	}
	printArtifact(cmd, "proof request", req)

	grant, err := proto.GrantConsent(ctx, req.RequestID, deckID, holder)
	if err != nil {
		return err
	}
	printArtifact(cmd, "consent grant", grant)

	resp, err := proto.BuildResponse(ctx, grant.GrantID, deckID, holder)
	if err != nil {
		return err
	}
	printArtifact(cmd, "proof response", resp)

	pipeline := verify.NewPipeline(replay.NewInMemoryGuard(nil), creds, nil, nil)
	report := pipeline.Verify(ctx, resp, req)
	printArtifact(cmd, "verification report", report)

	if !report.OK {
		return fmt.Errorf("demo exchange failed verification")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "exchange verified")
	return nil
}

func printArtifact(cmd *cobra.Command, label string, v any) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "--- %s: <unprintable: %v>\n", label, err)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "--- %s\n%s\n", label, raw)
}
