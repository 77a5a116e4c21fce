// Package agentkey parses agent secrets into verifiable signing material.
//
// An agent secret is a single opaque string handed to the workflow host:
//
//	agsk_<base64(agentID ":" hex(seed))>
//
// The seed is a 32-byte Ed25519 seed. Key material never round-trips back to
// a string: String and GoString redact, and nothing here persists or logs
// the seed.
package agentkey

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerline/spendgate/pkg/signing"
)

// SecretPrefix marks a string as an agent secret.
const SecretPrefix = "agsk_"

// ErrMalformedSecret covers every parse failure: wrong prefix, bad base64,
// missing separator, bad hex, wrong seed length. Messages describe the shape
// of the failure and never echo secret content.
var ErrMalformedSecret = errors.New("malformed agent secret")

// KeyMaterial is the parsed form of an agent secret: the public agent
// identity plus a ready-to-use signer. Immutable and safe to share.
type KeyMaterial struct {
	agentID string
	signer  *signing.Signer
}

// Parse validates and decodes an agent secret. The signer is constructed
// exactly once, here.
func Parse(secret string) (*KeyMaterial, error) {
	if !strings.HasPrefix(secret, SecretPrefix) {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrMalformedSecret, SecretPrefix)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, SecretPrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not valid base64", ErrMalformedSecret)
	}

	agentID, hexSeed, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil, fmt.Errorf("%w: payload is missing the agent id separator", ErrMalformedSecret)
	}
	if agentID == "" {
		return nil, fmt.Errorf("%w: empty agent id", ErrMalformedSecret)
	}

	seed, err := hex.DecodeString(hexSeed)
	if err != nil {
		return nil, fmt.Errorf("%w: seed is not valid hex", ErrMalformedSecret)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed is %d bytes, want %d", ErrMalformedSecret, len(seed), ed25519.SeedSize)
	}

	signer, err := signing.NewSigner(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSecret, err)
	}

	return &KeyMaterial{agentID: agentID, signer: signer}, nil
}

// AgentID returns the public agent identity carried in the secret.
func (k *KeyMaterial) AgentID() string {
	return k.agentID
}

// Signer returns the signer derived from the secret's seed.
func (k *KeyMaterial) Signer() *signing.Signer {
	return k.signer
}

// PublicKey returns the base64 Ed25519 public key, for registration and
// out-of-band verification flows.
func (k *KeyMaterial) PublicKey() string {
	return k.signer.PublicKey()
}

// String redacts. The agent id is public; the seed is not.
func (k *KeyMaterial) String() string {
	return fmt.Sprintf("KeyMaterial(agent=%s seed=[redacted])", k.agentID)
}

// GoString redacts under %#v as well.
func (k *KeyMaterial) GoString() string {
	return k.String()
}
