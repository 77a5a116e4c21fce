package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/ledgerline/spendgate/pkg/gate"
	"github.com/ledgerline/spendgate/pkg/transport"
)

// runBudgetCmd implements `spendgate budget`.
//
// Queries the mandate's live budget windows and prints utilization.
//
// Exit codes:
//
//	0 = snapshot retrieved
//	3 = query failed (unavailable, rejected request, bad credentials)
//	4 = usage error
func runBudgetCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("budget", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		profile     string
		profilesDir string
		timeout     time.Duration
		jsonOutput  bool
		verbose     bool
	)

	cmd.StringVar(&profile, "profile", "", "Named credential profile instead of the environment")
	cmd.StringVar(&profilesDir, "profiles-dir", ".", "Directory holding profile_<name>.yaml files")
	cmd.DurationVar(&timeout, "timeout", 30*time.Second, "HTTP timeout")
	cmd.BoolVar(&jsonOutput, "json", false, "Output snapshot as JSON")
	cmd.BoolVar(&verbose, "verbose", false, "Log at debug level")

	if err := cmd.Parse(args); err != nil {
		return 4
	}

	creds, err := loadCredentials(profile, profilesDir)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}

	g, err := gate.New(gate.Config{
		Credentials: creds,
		Sender:      transport.NewClient(transport.WithTimeout(timeout)),
		Logger:      newLogger(stderr, verbose),
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}

	snap, err := g.BudgetSnapshot(context.Background())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}

	if jsonOutput {
		printJSON(stdout, snap)
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "Mandate: %s (%s)\n", snap.MandateID, snap.Status)
	_, _ = fmt.Fprintf(stdout, "Spending allowed: %t\n", snap.SpendAllowed)
	_, _ = fmt.Fprintf(stdout, "Daily:   %s of %s used (%d%%), %s remaining\n",
		formatCents(snap.DailySpentCents, snap.Currency),
		formatCents(snap.DailyLimitCents, snap.Currency),
		snap.PercentUsedDaily(),
		formatCents(snap.DailyRemainingCents, snap.Currency))
	_, _ = fmt.Fprintf(stdout, "Monthly: %s of %s used (%d%%), %s remaining\n",
		formatCents(snap.MonthlySpentCents, snap.Currency),
		formatCents(snap.MonthlyLimitCents, snap.Currency),
		snap.PercentUsedMonthly(),
		formatCents(snap.MonthlyRemainingCents, snap.Currency))
	return 0
}
