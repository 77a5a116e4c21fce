package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/spendgate/pkg/classify"
	"github.com/ledgerline/spendgate/pkg/gate"
	"github.com/ledgerline/spendgate/pkg/observability"
	"github.com/ledgerline/spendgate/pkg/transport"
)

// runAuthorizeCmd implements `spendgate authorize`.
//
// Evaluates one spend: budget pre-check, signed authorize call, outcome.
// A fresh execution identity is generated when --execution is omitted, so a
// bare invocation is always a new intent; pass --execution/--index to make
// a retry idempotent.
//
// Exit codes:
//
//	0 = approved
//	1 = denied
//	2 = insufficient budget (no authorize call was made)
//	3 = no decision (unavailable, rejected request, bad credentials)
//	4 = usage error
func runAuthorizeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("authorize", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		amountCents  int64
		currency     string
		vendorID     string
		executionID  string
		itemIndex    int
		operation    string
		category     string
		purpose      string
		ttlSeconds   int
		profile      string
		profilesDir  string
		skipCheck    bool
		strict       bool
		timeout      time.Duration
		jsonOutput   bool
		verbose      bool
		otelEnabled  bool
		otlpEndpoint string
	)

	cmd.Int64Var(&amountCents, "amount", 0, "Amount in cents (REQUIRED)")
	cmd.StringVar(&currency, "currency", "", "3-letter ISO 4217 currency code (REQUIRED)")
	cmd.StringVar(&vendorID, "vendor", "", "Vendor identifier (REQUIRED)")
	cmd.StringVar(&executionID, "execution", "", "Execution identity; random when omitted")
	cmd.IntVar(&itemIndex, "index", 0, "Item index within the execution")
	cmd.StringVar(&operation, "operation", "cli.authorize", "Operation name for intent derivation")
	cmd.StringVar(&category, "category", "", "Unsigned spend category")
	cmd.StringVar(&purpose, "purpose", "", "Unsigned spend purpose")
	cmd.IntVar(&ttlSeconds, "ttl", 0, "Request TTL in seconds (default 300)")
	cmd.StringVar(&profile, "profile", "", "Named credential profile instead of the environment")
	cmd.StringVar(&profilesDir, "profiles-dir", ".", "Directory holding profile_<name>.yaml files")
	cmd.BoolVar(&skipCheck, "skip-budget-check", false, "Send straight to authorize without the budget pre-check")
	cmd.BoolVar(&strict, "strict", false, "Validate the outgoing payload against the wire schema")
	cmd.DurationVar(&timeout, "timeout", 30*time.Second, "HTTP timeout")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	cmd.BoolVar(&verbose, "verbose", false, "Log at debug level")
	cmd.BoolVar(&otelEnabled, "otel", false, "Export traces and metrics over OTLP")
	cmd.StringVar(&otlpEndpoint, "otlp-endpoint", "localhost:4317", "OTLP gRPC endpoint")

	if err := cmd.Parse(args); err != nil {
		return 4
	}
	if amountCents <= 0 || currency == "" || vendorID == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --amount, --currency, and --vendor are required")
		cmd.Usage()
		return 4
	}
	if executionID == "" {
		executionID = uuid.NewString()
	}

	creds, err := loadCredentials(profile, profilesDir)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}

	ctx := context.Background()

	var obs *observability.Provider
	if otelEnabled {
		obs, err = observability.New(ctx, &observability.Config{
			ServiceName:    "spendgate",
			ServiceVersion: "1.0.0",
			Environment:    "cli",
			OTLPEndpoint:   otlpEndpoint,
			SampleRate:     1.0,
			BatchTimeout:   time.Second,
			Enabled:        true,
			Insecure:       true,
		})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: telemetry init failed: %v\n", err)
			return 3
		}
		defer func() { _ = obs.Shutdown(ctx) }()
	}

	sendOpts := []transport.ClientOption{transport.WithTimeout(timeout)}
	if obs != nil {
		sendOpts = append(sendOpts, transport.WithTracer(obs.Tracer()))
	}

	g, err := gate.New(gate.Config{
		Credentials:     creds,
		Sender:          transport.NewClient(sendOpts...),
		SkipBudgetCheck: skipCheck,
		StrictWire:      strict,
		Observability:   obs,
		Logger:          newLogger(stderr, verbose),
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}

	res, err := g.EvaluateItem(ctx, gate.Item{
		ExecutionID: executionID,
		ItemIndex:   itemIndex,
		Operation:   operation,
		AmountCents: amountCents,
		Currency:    currency,
		VendorID:    vendorID,
		Category:    category,
		Purpose:     purpose,
		TTLSeconds:  ttlSeconds,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 3
	}

	switch outcome := res.Outcome.(type) {
	case classify.Approved:
		if jsonOutput {
			printJSON(stdout, map[string]any{
				"outcome":               "approved",
				"intent_id":             res.IntentID,
				"decision_id":           outcome.DecisionID,
				"amount_cents":          amountCents,
				"currency":              currency,
				"seal":                  outcome.Seal,
				"payment_instruction":   outcome.PaymentInstruction,
				"limits_after_approval": outcome.RemainingLimits,
				"expires_at":            outcome.ExpiresAt,
			})
		} else {
			_, _ = fmt.Fprintf(stdout, "✅ APPROVED %s\n", outcome.DecisionID)
			_, _ = fmt.Fprintf(stdout, "   Intent:  %s\n", res.IntentID)
			_, _ = fmt.Fprintf(stdout, "   Amount:  %s\n", formatCents(amountCents, currency))
			if outcome.RemainingLimits != nil {
				_, _ = fmt.Fprintf(stdout, "   Daily remaining:   %s\n", formatCents(outcome.RemainingLimits.DailyRemainingCents, currency))
				_, _ = fmt.Fprintf(stdout, "   Monthly remaining: %s\n", formatCents(outcome.RemainingLimits.MonthlyRemainingCents, currency))
			}
			if outcome.ExpiresAt != nil {
				_, _ = fmt.Fprintf(stdout, "   Expires: %s\n", outcome.ExpiresAt.Format(time.RFC3339))
			}
		}
		return 0

	case classify.Denied:
		if jsonOutput {
			out := map[string]any{
				"outcome":     "denied",
				"intent_id":   res.IntentID,
				"reason_code": outcome.ReasonCode,
				"message":     outcome.Message,
			}
			if outcome.Hint != "" {
				out["hint"] = outcome.Hint
			}
			if outcome.AvailableCents != nil {
				out["available_cents"] = *outcome.AvailableCents
			}
			printJSON(stdout, out)
		} else {
			_, _ = fmt.Fprintf(stdout, "❌ DENIED (%s)\n", outcome.ReasonCode)
			if outcome.Message != "" {
				_, _ = fmt.Fprintf(stdout, "   %s\n", outcome.Message)
			}
			if outcome.Hint != "" {
				_, _ = fmt.Fprintf(stdout, "   Hint: %s\n", outcome.Hint)
			}
			if outcome.AvailableCents != nil {
				_, _ = fmt.Fprintf(stdout, "   Available: %s\n", formatCents(*outcome.AvailableCents, currency))
			}
		}
		return 1

	case classify.InsufficientBudget:
		if jsonOutput {
			printJSON(stdout, map[string]any{
				"outcome":         "insufficient_budget",
				"remaining_cents": outcome.RemainingCents,
				"required_cents":  outcome.RequiredCents,
			})
		} else {
			_, _ = fmt.Fprintln(stdout, "⚠️ INSUFFICIENT BUDGET (no authorize call made)")
			_, _ = fmt.Fprintf(stdout, "   Remaining: %s\n", formatCents(outcome.RemainingCents, currency))
			_, _ = fmt.Fprintf(stdout, "   Required:  %s\n", formatCents(outcome.RequiredCents, currency))
		}
		return 2

	default:
		_, _ = fmt.Fprintf(stderr, "Error: unexpected outcome %T\n", res.Outcome)
		return 3
	}
}
