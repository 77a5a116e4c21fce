// Package signing produces and verifies detached Ed25519 signatures over
// canonical payload bytes.
package signing

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
)

// Signer holds an Ed25519 keypair derived from a 32-byte seed. Safe for
// concurrent use; signing is deterministic for a given key and message.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewSigner derives the keypair from seed. The seed must be exactly
// ed25519.SeedSize bytes; it is never truncated or padded.
func NewSigner(seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// Sign returns the base64 detached signature over data. The constructor
// validated the key, so signing cannot fail.
func (s *Signer) Sign(data []byte) string {
	sig := ed25519.Sign(s.priv, data)
	return base64.StdEncoding.EncodeToString(sig)
}

// PublicKey returns the base64 public key.
func (s *Signer) PublicKey() string {
	return base64.StdEncoding.EncodeToString(s.pub)
}

// PublicKeyBytes returns the raw public key.
func (s *Signer) PublicKeyBytes() []byte {
	return s.pub
}

// Verify checks a base64 signature against a base64 public key.
func Verify(pubB64, sigB64 string, data []byte) (bool, error) {
	pub, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		return false, fmt.Errorf("invalid public key base64: %w", err)
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false, fmt.Errorf("invalid signature base64: %w", err)
	}

	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key size")
	}

	return ed25519.Verify(ed25519.PublicKey(pub), data, sig), nil
}

// Seal verification failures.
var (
	ErrSealHashMismatch = errors.New("seal payload hash does not match request payload")
	ErrSealSignature    = errors.New("seal signature verification failed")
)

// VerifySeal checks an approval seal against the request it claims to cover:
// the seal's payload hash must equal the canonical hash of the signed fields
// that were sent, and the seal signature must verify under the notary key.
// The signing base for a seal is its payload hash string.
func VerifySeal(notaryPubB64, sealSigB64, sealPayloadHash, sentPayloadHash string) error {
	if sealPayloadHash != sentPayloadHash {
		return fmt.Errorf("%w: seal covers %s, request hashed to %s",
			ErrSealHashMismatch, sealPayloadHash, sentPayloadHash)
	}
	ok, err := Verify(notaryPubB64, sealSigB64, []byte(sealPayloadHash))
	if err != nil {
		return fmt.Errorf("seal verification: %w", err)
	}
	if !ok {
		return ErrSealSignature
	}
	return nil
}
