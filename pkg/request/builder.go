// Package request assembles signed authorization payloads. The fields that
// participate in the signature and the unsigned auxiliary fields live in
// separate types and meet only at final payload serialization, so nothing
// unsigned can leak into the canonicalization step.
package request

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/text/currency"

	"github.com/ledgerline/spendgate/pkg/agentkey"
	"github.com/ledgerline/spendgate/pkg/canonical"
	"github.com/ledgerline/spendgate/pkg/wire"
)

// DefaultTTLSeconds bounds request freshness when the caller does not
// override it.
const DefaultTTLSeconds = 300

// Auth headers carried alongside the payload.
const (
	HeaderContentType = "Content-Type"
	HeaderAgentID     = "X-Agent-Id"
	HeaderSignature   = "X-Agent-Signature"
)

// Local validation failures, fatal per item.
var (
	ErrInvalidTTL      = errors.New("ttl_seconds must be a positive integer")
	ErrInvalidAmount   = errors.New("amount_cents must be a positive integer")
	ErrInvalidCurrency = errors.New("currency must be a 3-letter uppercase ISO 4217 code")
)

var currencyForm = regexp.MustCompile(`^[A-Z]{3}$`)

// SignedFields is the exact field set that gets canonicalized and signed.
// No field may be added here after signing.
type SignedFields struct {
	IntentID    string `json:"intent_id"`
	AgentID     string `json:"agent_id"`
	MandateID   string `json:"mandate_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	VendorID    string `json:"vendor_id"`
	Nonce       string `json:"nonce"`
	TTLSeconds  int    `json:"ttl_seconds"`
}

// AuxiliaryFields travel in the payload but never in the signature.
type AuxiliaryFields struct {
	Category string `json:"category,omitempty"`
	Purpose  string `json:"purpose,omitempty"`
}

// Input is one spend to authorize.
type Input struct {
	IntentID    string
	AmountCents int64
	Currency    string
	VendorID    string
	TTLSeconds  int // 0 means DefaultTTLSeconds
	Category    string
	Purpose     string
}

// Builder binds key material and a mandate and produces transport-ready
// signed requests. Safe for concurrent use.
type Builder struct {
	key       *agentkey.KeyMaterial
	mandateID string
	strict    bool
	nonce     func() (string, error)
}

// Option configures a Builder.
type Option func(*Builder)

// WithStrictValidation validates every final payload against the authorize
// wire schema before it is released to transport.
func WithStrictValidation() Option {
	return func(b *Builder) { b.strict = true }
}

// WithNonceSource replaces the random nonce generator. For tests.
func WithNonceSource(fn func() (string, error)) Option {
	return func(b *Builder) { b.nonce = fn }
}

// NewBuilder constructs a Builder for one credential set.
func NewBuilder(key *agentkey.KeyMaterial, mandateID string, opts ...Option) *Builder {
	b := &Builder{
		key:       key,
		mandateID: mandateID,
		nonce:     randomNonce,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Signed is a fully assembled, signed request. Canonical holds the exact
// bytes the signature covers; the payload is derived from it plus the
// auxiliary fields.
type Signed struct {
	Fields    SignedFields
	Aux       AuxiliaryFields
	Canonical []byte
	Signature string

	strict bool
}

// Build validates the input, assembles the signed field set, canonicalizes
// and signs it. A fresh nonce is drawn per call; the canonical bytes are
// computed fresh, never cached across builds.
func (b *Builder) Build(in Input) (*Signed, error) {
	if in.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, in.AmountCents)
	}
	if !currencyForm.MatchString(in.Currency) {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidCurrency, in.Currency)
	}
	if _, err := currency.ParseISO(in.Currency); err != nil {
		return nil, fmt.Errorf("%w: %q is not a recognized code", ErrInvalidCurrency, in.Currency)
	}
	if in.VendorID == "" {
		return nil, fmt.Errorf("request: vendor id is required")
	}
	if in.IntentID == "" {
		return nil, fmt.Errorf("request: intent id is required")
	}

	ttl := in.TTLSeconds
	if ttl == 0 {
		ttl = DefaultTTLSeconds
	}
	if ttl < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTTL, in.TTLSeconds)
	}

	nonce, err := b.nonce()
	if err != nil {
		return nil, fmt.Errorf("request: nonce generation failed: %w", err)
	}

	fields := SignedFields{
		IntentID:    in.IntentID,
		AgentID:     b.key.AgentID(),
		MandateID:   b.mandateID,
		AmountCents: in.AmountCents,
		Currency:    in.Currency,
		VendorID:    in.VendorID,
		Nonce:       nonce,
		TTLSeconds:  ttl,
	}

	canon, err := canonical.EncodeStrict(fields)
	if err != nil {
		return nil, fmt.Errorf("request: canonicalize signed fields: %w", err)
	}

	return &Signed{
		Fields:    fields,
		Aux:       AuxiliaryFields{Category: in.Category, Purpose: in.Purpose},
		Canonical: canon,
		Signature: b.key.Signer().Sign(canon),
		strict:    b.strict,
	}, nil
}

// Payload merges the signed fields with the auxiliary fields into the final
// request body. The merge happens here and nowhere earlier; the signature
// was computed before the auxiliary fields existed in any serialized form.
func (s *Signed) Payload() ([]byte, error) {
	base, err := json.Marshal(s.Fields)
	if err != nil {
		return nil, fmt.Errorf("request: marshal signed fields: %w", err)
	}

	merged := make(map[string]json.RawMessage)
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, fmt.Errorf("request: remarshal signed fields: %w", err)
	}
	if s.Aux.Category != "" {
		merged["category"], _ = json.Marshal(s.Aux.Category)
	}
	if s.Aux.Purpose != "" {
		merged["purpose"], _ = json.Marshal(s.Aux.Purpose)
	}

	payload, err := canonical.Encode(merged)
	if err != nil {
		return nil, fmt.Errorf("request: encode payload: %w", err)
	}

	if s.strict {
		if err := wire.ValidateAuthorizeRequest(payload); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// Headers returns the transport headers for this request.
func (s *Signed) Headers() map[string]string {
	return map[string]string{
		HeaderContentType: "application/json",
		HeaderAgentID:     s.Fields.AgentID,
		HeaderSignature:   s.Signature,
	}
}

// PayloadHash is the SHA-256 hex digest of the canonical signed fields.
// An approval seal's payload hash must match it.
func (s *Signed) PayloadHash() string {
	return canonical.HashBytes(s.Canonical)
}

// randomNonce draws 18 random bytes and encodes them as base64. Collisions
// are negligible at this size; the nonce is independent of the intent id so
// a retried intent still carries a fresh nonce.
func randomNonce() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
