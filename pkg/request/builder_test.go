package request_test

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/spendgate/pkg/agentkey"
	"github.com/ledgerline/spendgate/pkg/request"
	"github.com/ledgerline/spendgate/pkg/signing"
)

const fixedNonce = "q83vEjzkXo0Zq83vEjzkXo0Z"

func testKey(t *testing.T) *agentkey.KeyMaterial {
	t.Helper()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 7)
	}
	secret := agentkey.SecretPrefix + base64.StdEncoding.EncodeToString(
		[]byte("acme-procure-7:"+hex.EncodeToString(seed)))
	km, err := agentkey.Parse(secret)
	require.NoError(t, err)
	return km
}

func fixedNonceSource() (string, error) { return fixedNonce, nil }

func validInput() request.Input {
	return request.Input{
		IntentID:    "0f81c96e-9e7a-4f00-9a0d-6f8a3bb1d001",
		AmountCents: 5000,
		Currency:    "EUR",
		VendorID:    "vendor-acme",
		Category:    "software",
		Purpose:     "build runner licences",
	}
}

func TestBuild_AssemblesSignedFields(t *testing.T) {
	km := testKey(t)
	b := request.NewBuilder(km, "mandate-42", request.WithNonceSource(fixedNonceSource))

	signed, err := b.Build(validInput())
	require.NoError(t, err)

	assert.Equal(t, "0f81c96e-9e7a-4f00-9a0d-6f8a3bb1d001", signed.Fields.IntentID)
	assert.Equal(t, "acme-procure-7", signed.Fields.AgentID)
	assert.Equal(t, "mandate-42", signed.Fields.MandateID)
	assert.Equal(t, int64(5000), signed.Fields.AmountCents)
	assert.Equal(t, "EUR", signed.Fields.Currency)
	assert.Equal(t, fixedNonce, signed.Fields.Nonce)
	assert.Equal(t, request.DefaultTTLSeconds, signed.Fields.TTLSeconds)
	assert.NotEmpty(t, signed.Signature)
	assert.NotEmpty(t, signed.Canonical)
}

func TestBuild_TTLDefaultAndOverride(t *testing.T) {
	b := request.NewBuilder(testKey(t), "mandate-42", request.WithNonceSource(fixedNonceSource))

	in := validInput()
	signed, err := b.Build(in)
	require.NoError(t, err)
	assert.Equal(t, 300, signed.Fields.TTLSeconds)

	in.TTLSeconds = 60
	signed, err = b.Build(in)
	require.NoError(t, err)
	assert.Equal(t, 60, signed.Fields.TTLSeconds)

	in.TTLSeconds = -1
	_, err = b.Build(in)
	require.ErrorIs(t, err, request.ErrInvalidTTL)
}

func TestBuild_RejectsBadAmount(t *testing.T) {
	b := request.NewBuilder(testKey(t), "mandate-42")

	for _, amount := range []int64{0, -1, -5000} {
		in := validInput()
		in.AmountCents = amount
		_, err := b.Build(in)
		require.ErrorIs(t, err, request.ErrInvalidAmount, "amount %d", amount)
	}
}

func TestBuild_RejectsBadCurrency(t *testing.T) {
	b := request.NewBuilder(testKey(t), "mandate-42")

	for _, code := range []string{"", "eur", "EU", "EURO", "E1R", "ZZZ"} {
		in := validInput()
		in.Currency = code
		_, err := b.Build(in)
		require.ErrorIs(t, err, request.ErrInvalidCurrency, "currency %q", code)
	}
}

func TestBuild_RequiresVendorAndIntent(t *testing.T) {
	b := request.NewBuilder(testKey(t), "mandate-42")

	in := validInput()
	in.VendorID = ""
	_, err := b.Build(in)
	require.Error(t, err)

	in = validInput()
	in.IntentID = ""
	_, err = b.Build(in)
	require.Error(t, err)
}

func TestBuild_SignatureVerifies(t *testing.T) {
	km := testKey(t)
	b := request.NewBuilder(km, "mandate-42", request.WithNonceSource(fixedNonceSource))

	signed, err := b.Build(validInput())
	require.NoError(t, err)

	ok, err := signing.Verify(km.PublicKey(), signed.Signature, signed.Canonical)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuild_SignatureDeterministicForSameFields(t *testing.T) {
	b := request.NewBuilder(testKey(t), "mandate-42", request.WithNonceSource(fixedNonceSource))

	s1, err := b.Build(validInput())
	require.NoError(t, err)
	s2, err := b.Build(validInput())
	require.NoError(t, err)

	assert.Equal(t, s1.Canonical, s2.Canonical)
	assert.Equal(t, s1.Signature, s2.Signature)
}

func TestBuild_AuxiliaryFieldsNeverChangeSignature(t *testing.T) {
	b := request.NewBuilder(testKey(t), "mandate-42", request.WithNonceSource(fixedNonceSource))

	withAux := validInput()
	bare := validInput()
	bare.Category = ""
	bare.Purpose = ""

	s1, err := b.Build(withAux)
	require.NoError(t, err)
	s2, err := b.Build(bare)
	require.NoError(t, err)

	// Identical signature input, identical signature
	assert.Equal(t, s2.Signature, s1.Signature)
	assert.Equal(t, s2.Canonical, s1.Canonical)

	// But the payloads differ: aux fields ride along unsigned
	p1, err := s1.Payload()
	require.NoError(t, err)
	p2, err := s2.Payload()
	require.NoError(t, err)
	assert.NotEqual(t, p2, p1)
	assert.Contains(t, string(p1), `"category":"software"`)
	assert.NotContains(t, string(p2), "category")
}

func TestBuild_CanonicalExcludesAuxFields(t *testing.T) {
	b := request.NewBuilder(testKey(t), "mandate-42", request.WithNonceSource(fixedNonceSource))

	signed, err := b.Build(validInput())
	require.NoError(t, err)

	assert.NotContains(t, string(signed.Canonical), "category")
	assert.NotContains(t, string(signed.Canonical), "purpose")
}

func TestPayload_ContainsEverySignedField(t *testing.T) {
	b := request.NewBuilder(testKey(t), "mandate-42", request.WithNonceSource(fixedNonceSource))

	signed, err := b.Build(validInput())
	require.NoError(t, err)
	payload, err := signed.Payload()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(payload, &m))
	for _, field := range []string{
		"intent_id", "agent_id", "mandate_id", "amount_cents",
		"currency", "vendor_id", "nonce", "ttl_seconds", "category", "purpose",
	} {
		assert.Contains(t, m, field)
	}
}

func TestHeaders(t *testing.T) {
	km := testKey(t)
	b := request.NewBuilder(km, "mandate-42", request.WithNonceSource(fixedNonceSource))

	signed, err := b.Build(validInput())
	require.NoError(t, err)

	h := signed.Headers()
	assert.Equal(t, "application/json", h[request.HeaderContentType])
	assert.Equal(t, "acme-procure-7", h[request.HeaderAgentID])
	assert.Equal(t, signed.Signature, h[request.HeaderSignature])
}

func TestBuild_FreshNoncePerRequest(t *testing.T) {
	b := request.NewBuilder(testKey(t), "mandate-42")

	s1, err := b.Build(validInput())
	require.NoError(t, err)
	s2, err := b.Build(validInput())
	require.NoError(t, err)

	assert.NotEqual(t, s2.Fields.Nonce, s1.Fields.Nonce)
	assert.NotEqual(t, s2.Signature, s1.Signature)
}

func TestBuild_StrictModeValidatesPayload(t *testing.T) {
	km := testKey(t)

	good := request.NewBuilder(km, "mandate-42",
		request.WithStrictValidation(), request.WithNonceSource(fixedNonceSource))
	signed, err := good.Build(validInput())
	require.NoError(t, err)
	_, err = signed.Payload()
	require.NoError(t, err)

	// A nonce below the schema's minimum length must be caught in strict mode
	shortNonce := request.NewBuilder(km, "mandate-42",
		request.WithStrictValidation(),
		request.WithNonceSource(func() (string, error) { return "tooshort", nil }))
	signed, err = shortNonce.Build(validInput())
	require.NoError(t, err)
	_, err = signed.Payload()
	require.Error(t, err)
}

func TestPayloadHash_MatchesCanonical(t *testing.T) {
	b := request.NewBuilder(testKey(t), "mandate-42", request.WithNonceSource(fixedNonceSource))

	signed, err := b.Build(validInput())
	require.NoError(t, err)

	hash := signed.PayloadHash()
	assert.Len(t, hash, 64)

	again, err := b.Build(validInput())
	require.NoError(t, err)
	assert.Equal(t, hash, again.PayloadHash())
}
