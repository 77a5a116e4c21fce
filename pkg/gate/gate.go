// Package gate orchestrates spend authorization end to end: an optional
// budget pre-check, the signed authorize call, and routing of the classified
// outcome. Approved, Denied, and InsufficientBudget are the three normal
// channels a caller branches on; everything else is fatal for the item and
// means no authorization exists.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ledgerline/spendgate/pkg/agentkey"
	"github.com/ledgerline/spendgate/pkg/budget"
	"github.com/ledgerline/spendgate/pkg/classify"
	"github.com/ledgerline/spendgate/pkg/credentials"
	"github.com/ledgerline/spendgate/pkg/intentid"
	"github.com/ledgerline/spendgate/pkg/observability"
	"github.com/ledgerline/spendgate/pkg/request"
	"github.com/ledgerline/spendgate/pkg/signing"
	"github.com/ledgerline/spendgate/pkg/transport"
	"github.com/ledgerline/spendgate/pkg/wire"
)

// ErrUnavailable marks every condition under which no definitive decision
// exists: transport failure, server error, replay mismatch, protocol
// violation. Callers match it with errors.Is.
var ErrUnavailable = errors.New("authorization unavailable")

// UnavailableError is the fatal form of an Unavailable outcome. It is never
// folded into Denied or InsufficientBudget: those are policy outcomes, this
// is the absence of one.
type UnavailableError struct {
	Outcome classify.Unavailable
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("authorization unavailable (%s): %s; no authorization occurred and the protected action must not proceed",
		e.Outcome.Cause, e.Outcome.Detail)
}

// Unwrap exposes ErrUnavailable and, when the response itself violated the
// protocol, the specific violation sentinel.
func (e *UnavailableError) Unwrap() []error {
	errs := []error{ErrUnavailable}
	if e.Outcome.Violation != nil {
		errs = append(errs, e.Outcome.Violation)
	}
	return errs
}

// Config assembles a Gate from one credential set.
type Config struct {
	Credentials credentials.Credentials

	// Sender carries the HTTP exchanges. Defaults to transport.NewClient().
	Sender transport.Sender

	// SkipBudgetCheck sends every item straight to the authorize call
	// without querying the budget first.
	SkipBudgetCheck bool

	// StrictWire validates each outgoing payload against the embedded
	// authorize schema before it is released to transport.
	StrictWire bool

	// Observability attaches per-item spans and outcome counters when set.
	Observability *observability.Provider

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Gate evaluates spend items against a remote decision service under one
// credential set. The parsed key material is immutable, so a Gate is safe
// for concurrent use.
type Gate struct {
	key          *agentkey.KeyMaterial
	builder      *request.Builder
	sender       transport.Sender
	authorizeURL string
	budgetURL    string
	notaryKey    string
	minimumCents int64
	skipCheck    bool
	obs          *observability.Provider
	logger       *slog.Logger
}

// New validates the credentials, parses the agent secret once, and builds
// the gate. A malformed secret is fatal for the whole credential set.
func New(cfg Config) (*Gate, error) {
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}
	key, err := agentkey.Parse(cfg.Credentials.AgentSecret)
	if err != nil {
		return nil, err
	}

	var opts []request.Option
	if cfg.StrictWire {
		opts = append(opts, request.WithStrictValidation())
	}

	sender := cfg.Sender
	if sender == nil {
		sender = transport.NewClient()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := strings.TrimRight(cfg.Credentials.APIURL, "/")
	return &Gate{
		key:          key,
		builder:      request.NewBuilder(key, cfg.Credentials.MandateID, opts...),
		sender:       sender,
		authorizeURL: base + "/v1/authorizations",
		budgetURL:    base + "/v1/mandates/" + url.PathEscape(cfg.Credentials.MandateID) + "/budget",
		notaryKey:    cfg.Credentials.NotaryPublicKey,
		minimumCents: cfg.Credentials.MinimumBalanceCents,
		skipCheck:    cfg.SkipBudgetCheck,
		obs:          cfg.Observability,
		logger:       logger.With("component", "gate"),
	}, nil
}

// AgentID returns the agent identity bound to this gate.
func (g *Gate) AgentID() string {
	return g.key.AgentID()
}

// Item is one spend to evaluate. ExecutionID, ItemIndex, and Operation
// identify the workflow step and determine the intent id; the remaining
// fields describe the spend itself.
type Item struct {
	ExecutionID string
	ItemIndex   int
	Operation   string

	AmountCents int64
	Currency    string
	VendorID    string
	Category    string
	Purpose     string
	TTLSeconds  int
}

// ItemResult is a terminal outcome for one item. IntentID is empty when the
// budget pre-check short-circuited before any request existed.
type ItemResult struct {
	Item     Item
	IntentID string
	Outcome  classify.Outcome
}

// EvaluateItem runs one item through the gate. The three normal channels
// come back as an ItemResult: Approved, Denied, or InsufficientBudget (the
// pre-check short-circuit, which issues no authorize call). A fatal
// condition comes back as an error instead: local validation failure, a
// *classify.ClientRequestError, or an *UnavailableError. Exactly one
// network attempt is made per item; retry policy belongs to the caller,
// made safe by the deterministic intent id.
func (g *Gate) EvaluateItem(ctx context.Context, item Item) (*ItemResult, error) {
	if g.obs == nil {
		return g.evaluateItem(ctx, item)
	}

	ctx, done := g.obs.TrackItem(ctx, "spendgate.gate.evaluate_item",
		attribute.String("spendgate.operation", item.Operation),
		attribute.String("spendgate.vendor_id", item.VendorID),
	)
	res, err := g.evaluateItem(ctx, item)
	done(err)
	switch {
	case res != nil:
		g.obs.RecordOutcome(ctx, res.Outcome.Label())
	case errors.Is(err, ErrUnavailable):
		g.obs.RecordOutcome(ctx, classify.Unavailable{}.Label())
	}
	return res, err
}

func (g *Gate) evaluateItem(ctx context.Context, item Item) (*ItemResult, error) {
	if !g.skipCheck {
		snap, err := g.BudgetSnapshot(ctx)
		if err != nil {
			return nil, err
		}
		threshold := g.minimumCents
		if threshold <= 0 {
			threshold = item.AmountCents
		}
		if !snap.SpendOpen() || snap.DailyRemainingCents < threshold {
			g.logger.InfoContext(ctx, "budget pre-check short-circuit",
				"remaining_cents", snap.DailyRemainingCents,
				"required_cents", threshold,
				"status", snap.Status,
			)
			return &ItemResult{Item: item, Outcome: classify.InsufficientBudget{
				RemainingCents: snap.DailyRemainingCents,
				RequiredCents:  threshold,
			}}, nil
		}
	}

	intentID, err := intentid.Derive(item.ExecutionID, item.ItemIndex, item.Operation)
	if err != nil {
		return nil, err
	}

	signed, err := g.builder.Build(request.Input{
		IntentID:    intentID,
		AmountCents: item.AmountCents,
		Currency:    item.Currency,
		VendorID:    item.VendorID,
		TTLSeconds:  item.TTLSeconds,
		Category:    item.Category,
		Purpose:     item.Purpose,
	})
	if err != nil {
		return nil, err
	}
	payload, err := signed.Payload()
	if err != nil {
		return nil, err
	}

	result, sendErr := g.sender.Send(ctx, http.MethodPost, g.authorizeURL, signed.Headers(), payload)
	outcome, err := classify.Classify(result, sendErr)
	if err != nil {
		return nil, err
	}

	switch oc := outcome.(type) {
	case classify.Unavailable:
		uerr := &UnavailableError{Outcome: oc}
		g.logger.WarnContext(ctx, "authorization unavailable",
			"cause", oc.Cause.String(),
			"detail", oc.Detail,
			"intent_id", intentID,
		)
		return nil, uerr

	case classify.Approved:
		if verr := g.verifySeal(oc, signed); verr != nil {
			uerr := &UnavailableError{Outcome: classify.Unavailable{
				Cause:     classify.CauseServer,
				Detail:    verr.Error(),
				Status:    result.Status,
				Violation: verr,
			}}
			g.logger.WarnContext(ctx, "seal verification failed", "intent_id", intentID, "error", verr)
			return nil, uerr
		}
	}

	g.logger.InfoContext(ctx, "item evaluated",
		"outcome", outcome.Label(),
		"intent_id", intentID,
		"vendor_id", item.VendorID,
		"amount_cents", item.AmountCents,
	)
	return &ItemResult{Item: item, IntentID: intentID, Outcome: outcome}, nil
}

// verifySeal checks the approval seal against the request that was actually
// sent when a notary public key is configured. Without one, the seal is
// carried through unverified.
func (g *Gate) verifySeal(a classify.Approved, signed *request.Signed) error {
	if g.notaryKey == "" || a.Seal == nil {
		return nil
	}
	return signing.VerifySeal(g.notaryKey, a.Seal.Signature, a.Seal.PayloadHash, signed.PayloadHash())
}

// EvaluateAll evaluates items in order, stopping at the first fatal error or
// context cancellation. Completed results are returned alongside the error;
// Denied and InsufficientBudget are outcomes, not errors, and never stop the
// batch. There is no continue-on-failure mode: a fatal item always surfaces.
func (g *Gate) EvaluateAll(ctx context.Context, items []Item) ([]*ItemResult, error) {
	results := make([]*ItemResult, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := g.EvaluateItem(ctx, item)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// BudgetSnapshot queries the mandate's live budget and verifies its window
// arithmetic. Failures are fail-closed: an unreachable service, a non-200
// status, a malformed body, and inconsistent arithmetic all come back as
// errors, because no spend decision may be based on a snapshot we cannot
// trust. 4xx is the exception and surfaces as a *classify.ClientRequestError.
func (g *Gate) BudgetSnapshot(ctx context.Context) (*budget.Snapshot, error) {
	headers := map[string]string{request.HeaderAgentID: g.key.AgentID()}
	res, sendErr := g.sender.Send(ctx, http.MethodGet, g.budgetURL, headers, nil)
	if sendErr != nil {
		return nil, &UnavailableError{Outcome: classify.Unavailable{
			Cause:  classify.CauseNetwork,
			Detail: sendErr.Error(),
		}}
	}

	if res.Status != http.StatusOK {
		if res.Status >= 400 && res.Status < 500 {
			return nil, classify.ClientError(res)
		}
		return nil, &UnavailableError{Outcome: classify.Unavailable{
			Cause:  classify.CauseServer,
			Detail: fmt.Sprintf("budget query returned %d %s", res.Status, http.StatusText(res.Status)),
			Status: res.Status,
		}}
	}

	decoded, err := wire.DecodeBudgetResponse(res.Body)
	if err != nil {
		return nil, &UnavailableError{Outcome: classify.Unavailable{
			Cause:  classify.CauseServer,
			Detail: fmt.Sprintf("malformed budget body: %v", err),
			Status: res.Status,
		}}
	}

	snap := budget.FromWire(decoded)
	if err := snap.Check(); err != nil {
		return nil, &UnavailableError{Outcome: classify.Unavailable{
			Cause:  classify.CauseServer,
			Detail: err.Error(),
			Status: res.Status,
		}}
	}
	return snap, nil
}
