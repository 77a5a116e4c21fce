package main

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ledgerline/spendgate/pkg/agentkey"
	"github.com/ledgerline/spendgate/pkg/credentials"
	"github.com/ledgerline/spendgate/pkg/intentid"
)

func mintSecret(agentID string, seed []byte) string {
	payload := agentID + ":" + hex.EncodeToString(seed)
	return agentkey.SecretPrefix + base64.StdEncoding.EncodeToString([]byte(payload))
}

var testSeed = []byte("0123456789abcdef0123456789abcdef")

const activeBudgetBody = `{
	"mandate_id": "mandate-7",
	"currency": "EUR",
	"status": "active",
	"daily": {"limit_cents": 100000, "spent_cents": 45000, "remaining_cents": 55000},
	"monthly": {"limit_cents": 1000000, "spent_cents": 100000, "remaining_cents": 900000},
	"spend_allowed": true
}`

const drainedBudgetBody = `{
	"mandate_id": "mandate-7",
	"currency": "EUR",
	"status": "active",
	"daily": {"limit_cents": 100000, "spent_cents": 100000, "remaining_cents": 0},
	"monthly": {"limit_cents": 1000000, "spent_cents": 100000, "remaining_cents": 900000},
	"spend_allowed": true
}`

const approvedBody = `{
	"decision": "APPROVED",
	"decision_id": "dec-9f2c",
	"amount_cents": 5000,
	"currency": "EUR",
	"executable": true,
	"seal": {
		"algorithm": "ed25519",
		"key_id": "notary-1",
		"signature": "c2lnbmF0dXJl",
		"payload_hash": "deadbeef",
		"timestamp": "2026-03-01T10:00:00Z"
	},
	"limits_after_approval": {"daily_remaining_cents": 50000, "monthly_remaining_cents": 420000}
}`

const deniedBody = `{
	"decision": "DENIED",
	"decision_id": "dec-31bb",
	"reason_code": "DAILY_LIMIT_EXCEEDED",
	"amount_cents": 5000,
	"currency": "EUR",
	"executable": false,
	"denial": {"message": "Daily spending limit exceeded", "actionable": {"available_cents": 4200}}
}`

func newStubService(t *testing.T, budgetBody string, authorizeStatus int, authorizeBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/mandates/mandate-7/budget", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, budgetBody)
	})
	mux.HandleFunc("POST /v1/authorizations", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(authorizeStatus)
		_, _ = io.WriteString(w, authorizeBody)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setEnvCredentials(t *testing.T, apiURL string) {
	t.Helper()
	t.Setenv(credentials.EnvAgentSecret, mintSecret("agent-7", testSeed))
	t.Setenv(credentials.EnvAPIURL, apiURL)
	t.Setenv(credentials.EnvMandateID, "mandate-7")
}

func run(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = Run(append([]string{"spendgate"}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_NoArgs(t *testing.T) {
	code, _, stderr := run()
	if code != 4 {
		t.Fatalf("exit = %d, want 4", code)
	}
	if !strings.Contains(stderr, "USAGE") {
		t.Errorf("usage not printed: %q", stderr)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, stderr := run("frobnicate")
	if code != 4 {
		t.Fatalf("exit = %d, want 4", code)
	}
	if !strings.Contains(stderr, "Unknown command") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRun_Help(t *testing.T) {
	code, stdout, _ := run("help")
	if code != 0 {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(stdout, "authorize") || !strings.Contains(stdout, "derive-intent") {
		t.Errorf("help is missing commands: %q", stdout)
	}
}

func TestDeriveIntent_Deterministic(t *testing.T) {
	code1, out1, _ := run("derive-intent", "--execution", "exec-2001", "--index", "3", "--operation", "vendor.payout")
	code2, out2, _ := run("derive-intent", "--execution", "exec-2001", "--index", "3", "--operation", "vendor.payout")

	if code1 != 0 || code2 != 0 {
		t.Fatalf("exits = %d, %d, want 0", code1, code2)
	}
	if out1 != out2 {
		t.Errorf("derivation not deterministic: %q vs %q", out1, out2)
	}

	want, err := intentid.Derive("exec-2001", 3, "vendor.payout")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out1) != want {
		t.Errorf("token = %q, want %q", strings.TrimSpace(out1), want)
	}
}

func TestDeriveIntent_MissingFlags(t *testing.T) {
	code, _, stderr := run("derive-intent", "--index", "3")
	if code != 4 {
		t.Fatalf("exit = %d, want 4", code)
	}
	if !strings.Contains(stderr, "required") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestInspectKey(t *testing.T) {
	secret := mintSecret("agent-7", testSeed)
	t.Setenv(credentials.EnvAgentSecret, secret)

	code, stdout, _ := run("inspect-key")
	if code != 0 {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(stdout, "agent-7") {
		t.Errorf("agent id missing: %q", stdout)
	}
	if !strings.Contains(stdout, "ed25519") {
		t.Errorf("algorithm missing: %q", stdout)
	}
	// The seed must never surface, in any encoding it went in as.
	if strings.Contains(stdout, hex.EncodeToString(testSeed)) {
		t.Error("hex seed leaked to output")
	}
	if strings.Contains(stdout, secret) {
		t.Error("raw secret leaked to output")
	}
}

func TestInspectKey_MissingSecret(t *testing.T) {
	t.Setenv(credentials.EnvAgentSecret, "")

	code, _, stderr := run("inspect-key")
	if code != 3 {
		t.Fatalf("exit = %d, want 3", code)
	}
	if !strings.Contains(stderr, credentials.EnvAgentSecret) {
		t.Errorf("stderr should name the env var: %q", stderr)
	}
}

func TestAuthorize_MissingFlags(t *testing.T) {
	code, _, stderr := run("authorize", "--amount", "5000")
	if code != 4 {
		t.Fatalf("exit = %d, want 4", code)
	}
	if !strings.Contains(stderr, "required") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestAuthorize_Approved(t *testing.T) {
	srv := newStubService(t, activeBudgetBody, http.StatusOK, approvedBody)
	setEnvCredentials(t, srv.URL)

	code, stdout, _ := run("authorize", "--amount", "5000", "--currency", "EUR", "--vendor", "vendor-acme")
	if code != 0 {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(stdout, "APPROVED") || !strings.Contains(stdout, "dec-9f2c") {
		t.Errorf("stdout = %q", stdout)
	}
	if !strings.Contains(stdout, "50.00 EUR") {
		t.Errorf("amount not rendered: %q", stdout)
	}
}

func TestAuthorize_DeniedJSON(t *testing.T) {
	srv := newStubService(t, activeBudgetBody, http.StatusOK, deniedBody)
	setEnvCredentials(t, srv.URL)

	code, stdout, _ := run("authorize", "--amount", "5000", "--currency", "EUR", "--vendor", "vendor-acme", "--json")
	if code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if out["outcome"] != "denied" {
		t.Errorf("outcome = %v", out["outcome"])
	}
	if out["reason_code"] != "DAILY_LIMIT_EXCEEDED" {
		t.Errorf("reason_code = %v", out["reason_code"])
	}
}

func TestAuthorize_InsufficientBudget(t *testing.T) {
	srv := newStubService(t, drainedBudgetBody, http.StatusOK, approvedBody)
	setEnvCredentials(t, srv.URL)

	code, stdout, _ := run("authorize", "--amount", "5000", "--currency", "EUR", "--vendor", "vendor-acme")
	if code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}
	if !strings.Contains(stdout, "INSUFFICIENT") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestAuthorize_Unavailable(t *testing.T) {
	srv := newStubService(t, activeBudgetBody, http.StatusServiceUnavailable, "")
	setEnvCredentials(t, srv.URL)

	code, stdout, stderr := run("authorize", "--amount", "5000", "--currency", "EUR", "--vendor", "vendor-acme")
	if code != 3 {
		t.Fatalf("exit = %d, want 3", code)
	}
	if stdout != "" {
		t.Errorf("no outcome channel may be populated, got %q", stdout)
	}
	if !strings.Contains(stderr, "no authorization occurred") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestBudget_Text(t *testing.T) {
	srv := newStubService(t, activeBudgetBody, http.StatusOK, approvedBody)
	setEnvCredentials(t, srv.URL)

	code, stdout, _ := run("budget")
	if code != 0 {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(stdout, "mandate-7") {
		t.Errorf("mandate missing: %q", stdout)
	}
	if !strings.Contains(stdout, "(45%)") {
		t.Errorf("daily utilization missing: %q", stdout)
	}
	if !strings.Contains(stdout, "550.00 EUR") {
		t.Errorf("daily remaining missing: %q", stdout)
	}
}

func TestBudget_MissingCredentials(t *testing.T) {
	t.Setenv(credentials.EnvAgentSecret, "")
	t.Setenv(credentials.EnvAPIURL, "")
	t.Setenv(credentials.EnvMandateID, "")

	code, _, stderr := run("budget")
	if code != 3 {
		t.Fatalf("exit = %d, want 3", code)
	}
	if stderr == "" {
		t.Error("expected an error message")
	}
}
