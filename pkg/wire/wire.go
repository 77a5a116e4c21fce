// Package wire defines the authorize and budget wire contract: response
// shapes, the decision vocabulary, and normalization of the two overlapping
// field vocabularies deployed services emit.
package wire

import (
	"encoding/json"
	"fmt"
)

// Decision values the service renders. Anything else is unrecognized and
// handled fail-closed by the classifier.
const (
	DecisionApproved = "APPROVED"
	DecisionDenied   = "DENIED"
)

// Seal is the notarization artifact attached to an approval.
type Seal struct {
	Algorithm   string `json:"algorithm"`
	KeyID       string `json:"key_id"`
	Signature   string `json:"signature"`
	PayloadHash string `json:"payload_hash"`
	Timestamp   string `json:"timestamp"`
}

// PaymentInstruction carries the transfer details for an approved spend.
type PaymentInstruction struct {
	RecipientIBAN string `json:"recipient_iban"`
	RecipientName string `json:"recipient_name"`
	RecipientBIC  string `json:"recipient_bic"`
	Reference     string `json:"reference"`
}

// DenialActionable holds machine-actionable denial context.
type DenialActionable struct {
	AvailableCents int64 `json:"available_cents"`
}

// Denial explains a DENIED decision.
type Denial struct {
	Message     string            `json:"message"`
	Hint        string            `json:"hint,omitempty"`
	Actionable  *DenialActionable `json:"actionable,omitempty"`
	FailedCheck string            `json:"failed_check,omitempty"`
}

// Limits reports remaining budget after an approval.
type Limits struct {
	DailyRemainingCents   int64 `json:"daily_remaining_cents"`
	MonthlyRemainingCents int64 `json:"monthly_remaining_cents"`
}

// AuthorizeDecision is the normalized 200 response body of an authorize call.
type AuthorizeDecision struct {
	Decision            string              `json:"decision"`
	DecisionID          string              `json:"decision_id"`
	ReasonCode          string              `json:"reason_code,omitempty"`
	AmountCents         int64               `json:"amount_cents"`
	Currency            string              `json:"currency"`
	Executable          bool                `json:"executable"`
	Seal                *Seal               `json:"seal,omitempty"`
	PaymentInstruction  *PaymentInstruction `json:"payment_instruction,omitempty"`
	Denial              *Denial             `json:"denial,omitempty"`
	LimitsAfterApproval *Limits             `json:"limits_after_approval,omitempty"`
	EvaluatedAt         string              `json:"evaluated_at,omitempty"`
	ExpiresAt           string              `json:"expires_at,omitempty"`
}

// authorizeDecisionAliases is the superset both response vocabularies fit
// into. Normalization prefers the primary name when both are present.
type authorizeDecisionAliases struct {
	AuthorizeDecision
	AuthorizationID string              `json:"authorization_id,omitempty"`
	NotarySeal      *Seal               `json:"notary_seal,omitempty"`
	Payment         *PaymentInstruction `json:"payment,omitempty"`
}

// DecodeAuthorizeDecision parses a 200 authorize body, accepting either
// vocabulary and returning the normalized form.
func DecodeAuthorizeDecision(body []byte) (*AuthorizeDecision, error) {
	var raw authorizeDecisionAliases
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("wire: decode authorize response: %w", err)
	}

	out := raw.AuthorizeDecision
	if out.DecisionID == "" {
		out.DecisionID = raw.AuthorizationID
	}
	if out.Seal == nil {
		out.Seal = raw.NotarySeal
	}
	if out.PaymentInstruction == nil {
		out.PaymentInstruction = raw.Payment
	}
	return &out, nil
}

// Window is one budget window of the budget query response.
type Window struct {
	LimitCents     int64 `json:"limit_cents"`
	SpentCents     int64 `json:"spent_cents"`
	RemainingCents int64 `json:"remaining_cents"`
}

// BudgetResponse is the budget query response body.
type BudgetResponse struct {
	MandateID    string `json:"mandate_id"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	Daily        Window `json:"daily"`
	Monthly      Window `json:"monthly"`
	SpendAllowed bool   `json:"spend_allowed"`
}

// DecodeBudgetResponse parses a budget query body.
func DecodeBudgetResponse(body []byte) (*BudgetResponse, error) {
	var out BudgetResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("wire: decode budget response: %w", err)
	}
	return &out, nil
}

// Problem is an RFC 7807 error body, which the service uses for 4xx
// responses. All fields are optional on the wire.
type Problem struct {
	Type      string `json:"type,omitempty"`
	Title     string `json:"title,omitempty"`
	Status    int    `json:"status,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// DecodeProblem parses a problem body. A non-JSON body is not an error at
// this layer; the caller falls back to the raw status.
func DecodeProblem(body []byte) (*Problem, bool) {
	var p Problem
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, false
	}
	if p.Title == "" && p.Detail == "" && p.Code == "" {
		return nil, false
	}
	return &p, true
}
