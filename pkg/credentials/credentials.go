// Package credentials resolves the agent secret, API base URL, and mandate
// binding a gate runs under. Two providers: process environment and YAML
// profiles. The secret is treated as opaque here; parsing it is the key
// material layer's job.
package credentials

import (
	"errors"
	"fmt"
	"net/url"
	"os"
)

// Environment variables read by the env provider.
const (
	EnvAgentSecret = "SPENDGATE_AGENT_SECRET"
	EnvAPIURL      = "SPENDGATE_API_URL"
	EnvMandateID   = "SPENDGATE_MANDATE_ID"
)

// DefaultAPIURL is used when no API URL is configured.
const DefaultAPIURL = "https://api.ledgerline.dev"

// ErrIncomplete reports missing or unusable credential fields.
var ErrIncomplete = errors.New("incomplete credentials")

// Credentials is one resolved credential set.
type Credentials struct {
	AgentSecret string
	APIURL      string
	MandateID   string

	// NotaryPublicKey enables client-side seal verification when set
	// (base64 Ed25519 public key of the service's notary).
	NotaryPublicKey string

	// MinimumBalanceCents, when positive, replaces the requested amount as
	// the budget pre-check threshold.
	MinimumBalanceCents int64
}

// Validate checks the set is usable: secret and mandate present, API URL
// parseable http(s).
func (c Credentials) Validate() error {
	if c.AgentSecret == "" {
		return fmt.Errorf("%w: agent secret is required", ErrIncomplete)
	}
	if c.MandateID == "" {
		return fmt.Errorf("%w: mandate id is required", ErrIncomplete)
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: api url %q is not a valid http(s) URL", ErrIncomplete, c.APIURL)
	}
	return nil
}

// String redacts the secret.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials(api=%s mandate=%s secret=[redacted])", c.APIURL, c.MandateID)
}

// GoString redacts under %#v as well.
func (c Credentials) GoString() string {
	return c.String()
}

// Provider yields a credential set.
type Provider interface {
	Credentials() (Credentials, error)
}

// EnvProvider reads credentials from the process environment.
type EnvProvider struct{}

// Credentials loads and validates the environment credential set. The API
// URL falls back to DefaultAPIURL when unset.
func (EnvProvider) Credentials() (Credentials, error) {
	apiURL := os.Getenv(EnvAPIURL)
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	c := Credentials{
		AgentSecret: os.Getenv(EnvAgentSecret),
		APIURL:      apiURL,
		MandateID:   os.Getenv(EnvMandateID),
	}
	if err := c.Validate(); err != nil {
		return Credentials{}, err
	}
	return c, nil
}
