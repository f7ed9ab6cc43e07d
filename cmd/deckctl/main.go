// deckctl is the operator companion to the proofdeck server: it lints deck
// files, generates issuer keys, and runs a full local proof exchange for
// demos and smoke checks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "deckctl",
		Short:         "Operator tooling for proofdeck",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newLintCmd(), newKeygenCmd(), newDemoCmd(), newIssueCmd(), newVerifyAnchorCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
