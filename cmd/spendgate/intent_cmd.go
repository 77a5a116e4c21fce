package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/ledgerline/spendgate/pkg/intentid"
)

// runDeriveIntentCmd implements `spendgate derive-intent`.
//
// Pure offline derivation, no credentials and no network: the same inputs
// always yield the same token, which is what makes caller-side retries safe.
//
// Exit codes:
//
//	0 = token derived
//	4 = usage error
func runDeriveIntentCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("derive-intent", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		executionID string
		itemIndex   int
		operation   string
		jsonOutput  bool
	)

	cmd.StringVar(&executionID, "execution", "", "Execution identity (REQUIRED)")
	cmd.IntVar(&itemIndex, "index", 0, "Item index within the execution")
	cmd.StringVar(&operation, "operation", "", "Operation name (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 4
	}
	if executionID == "" || operation == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --execution and --operation are required")
		cmd.Usage()
		return 4
	}

	id, err := intentid.Derive(executionID, itemIndex, operation)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 4
	}

	if jsonOutput {
		printJSON(stdout, map[string]any{
			"intent_id": id,
			"execution": executionID,
			"index":     itemIndex,
			"operation": operation,
		})
	} else {
		_, _ = fmt.Fprintln(stdout, id)
	}
	return 0
}
