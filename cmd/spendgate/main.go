package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ledgerline/spendgate/pkg/credentials"
)

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, separated from main for testing.
//
// Exit codes across subcommands:
//
//	0 = success (authorize: approved)
//	1 = authorize: denied
//	2 = authorize: insufficient budget
//	3 = runtime failure (unavailable, rejected request, bad credentials)
//	4 = usage error
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 4
	}

	switch args[1] {
	case "authorize":
		return runAuthorizeCmd(args[2:], stdout, stderr)
	case "budget":
		return runBudgetCmd(args[2:], stdout, stderr)
	case "derive-intent":
		return runDeriveIntentCmd(args[2:], stdout, stderr)
	case "inspect-key":
		return runInspectKeyCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 4
	}
}

// ANSI Colors
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorGreen = "\033[32m"
	ColorCyan  = "\033[36m"
	ColorGray  = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sSpendGate%s\n", ColorBold+ColorCyan, ColorReset)
	fmt.Fprintf(w, "%sSigned, idempotent spend authorization for autonomous agents.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  spendgate <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "AUTHORIZATION")
	printCommand(w, "authorize", "Evaluate one spend (--amount, --currency, --vendor)")
	printCommand(w, "budget", "Query the mandate's live budget")

	printSection(w, "UTILITIES")
	printCommand(w, "derive-intent", "Derive the idempotency token offline")
	printCommand(w, "inspect-key", "Show agent id and public key for a secret")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sCredentials come from SPENDGATE_AGENT_SECRET, SPENDGATE_API_URL,%s\n", ColorGray, ColorReset)
	fmt.Fprintf(w, "%sSPENDGATE_MANDATE_ID, or a --profile YAML file.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-14s%s %s\n", ColorGreen, name, ColorReset, desc)
}

// loadCredentials resolves the credential set: a named YAML profile when
// requested, the environment otherwise.
func loadCredentials(profile, profilesDir string) (credentials.Credentials, error) {
	if profile != "" {
		p, err := credentials.LoadProfile(profilesDir, profile)
		if err != nil {
			return credentials.Credentials{}, err
		}
		return p.Credentials()
	}
	return credentials.EnvProvider{}.Credentials()
}

// formatCents renders integer cents as major units. Budget math stays in
// cents everywhere; this is display only.
func formatCents(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, currency)
}

func printJSON(w io.Writer, v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	_, _ = fmt.Fprintln(w, string(data))
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
