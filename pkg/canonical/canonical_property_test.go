//go:build property
// +build property

package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// reparse decodes canonical bytes without losing number precision.
func reparse(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// TestEncodeDeterministic verifies the encoding is byte-stable.
// Property: Encode(v) == Encode(v) for any encodable value
func TestEncodeDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("encoding is byte-stable", prop.ForAll(
		func(id string, amount int64, vendor string, executable bool) bool {
			v := map[string]any{
				"intent_id":    id,
				"amount_cents": amount,
				"vendor_id":    vendor,
				"executable":   executable,
			}
			b1, err1 := Encode(v)
			b2, err2 := Encode(v)
			if err1 != nil || err2 != nil {
				return false
			}
			return bytes.Equal(b1, b2)
		},
		gen.AlphaString(),
		gen.Int64Range(0, 1<<53-1),
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestEncodeIdempotent verifies canonical output is a fixed point.
// Property: Encode(parse(Encode(v))) == Encode(v)
func TestEncodeIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("re-encoding the canonical form changes nothing", prop.ForAll(
		func(id string, amount int64, note string) bool {
			v := map[string]any{
				"b": id,
				"a": map[string]any{"z": amount, "y": note},
				"c": []any{id, amount},
			}
			first, err := Encode(v)
			if err != nil {
				return false
			}
			decoded, err := reparse(first)
			if err != nil {
				return false
			}
			second, err := Encode(decoded)
			if err != nil {
				return false
			}
			return bytes.Equal(first, second)
		},
		gen.AlphaString(),
		gen.Int64Range(0, 1<<53-1),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// TestEncodeKeyOrderIndependent verifies member order in the source text
// never reaches the canonical form.
func TestEncodeKeyOrderIndependent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("key order never affects the encoding", prop.ForAll(
		func(ka, kb string, va, vb int64) bool {
			if ka == kb {
				return true
			}
			ab, err := reparse([]byte(fmt.Sprintf(`{%q: %d, %q: %d}`, ka, va, kb, vb)))
			if err != nil {
				return false
			}
			ba, err := reparse([]byte(fmt.Sprintf(`{%q: %d, %q: %d}`, kb, vb, ka, va)))
			if err != nil {
				return false
			}
			b1, err1 := Encode(ab)
			b2, err2 := Encode(ba)
			if err1 != nil || err2 != nil {
				return false
			}
			return bytes.Equal(b1, b2)
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.Int64Range(0, 1<<53-1),
		gen.Int64Range(0, 1<<53-1),
	))

	properties.TestingRun(t)
}

// TestEncodeIntegerAmounts verifies minor-unit amounts render as plain
// decimal integers, never in exponent or fractional notation.
func TestEncodeIntegerAmounts(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("integer minor units survive verbatim", prop.ForAll(
		func(amount int64) bool {
			b, err := Encode(map[string]any{"amount_cents": amount})
			if err != nil {
				return false
			}
			return string(b) == fmt.Sprintf(`{"amount_cents":%d}`, amount)
		},
		gen.Int64Range(0, 1<<53-1),
	))

	properties.TestingRun(t)
}
