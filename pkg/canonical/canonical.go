// Package canonical produces RFC 8785 (JSON Canonicalization Scheme) byte
// forms for signing and hashing of authorization payloads.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/gowebpki/jcs"
)

// ErrNonCanonicalValue reports a value that has no stable canonical form:
// NaN, infinity, or a number carrying a fractional or exponent part where an
// integer minor-unit amount is required. Values are never coerced.
var ErrNonCanonicalValue = errors.New("value has no canonical form")

// Encode returns the RFC 8785 canonical JSON representation of v.
//
// Key features:
// 1. Map keys are sorted lexicographically by UTF-16 code units per RFC 8785.
// 2. No insignificant whitespace, no HTML escaping.
// 3. Array order is preserved.
//
// NaN and infinity are rejected before serialization rather than surfacing
// as an opaque marshal failure.
func Encode(v any) ([]byte, error) {
	if containsNonFinite(reflect.ValueOf(v)) {
		return nil, fmt.Errorf("%w: NaN or infinity", ErrNonCanonicalValue)
	}

	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: pre-marshal failed: %w", err)
	}

	out, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("canonical: transform failed: %w", err)
	}
	return out, nil
}

// EncodeStrict is Encode with the signing policy applied: every number in v
// must be an integer token. Monetary fields travel as integer minor units;
// a fractional or exponent form means the caller skipped the conversion, so
// it fails rather than being silently reformatted.
func EncodeStrict(v any) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: pre-marshal failed: %w", err)
	}

	var generic any
	decoder := json.NewDecoder(bytes.NewReader(intermediate))
	decoder.UseNumber()
	if err := decoder.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical: intermediate decode failed: %w", err)
	}
	if err := checkIntegerNumbers(generic); err != nil {
		return nil, err
	}

	out, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("canonical: transform failed: %w", err)
	}
	return out, nil
}

// Hash returns the SHA-256 hex digest of the canonical JSON representation of v.
func Hash(v any) (string, error) {
	b, err := Encode(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the SHA-256 hash of raw bytes and returns a hex string.
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func containsNonFinite(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		return math.IsNaN(f) || math.IsInf(f, 0)
	case reflect.Map:
		for _, key := range v.MapKeys() {
			if containsNonFinite(v.MapIndex(key)) {
				return true
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if containsNonFinite(v.Index(i)) {
				return true
			}
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if containsNonFinite(v.Field(i)) {
				return true
			}
		}
	case reflect.Ptr, reflect.Interface:
		if !v.IsNil() {
			return containsNonFinite(v.Elem())
		}
	}
	return false
}

func checkIntegerNumbers(v any) error {
	switch t := v.(type) {
	case json.Number:
		if strings.ContainsAny(t.String(), ".eE") {
			return fmt.Errorf("%w: non-integer number %q", ErrNonCanonicalValue, t.String())
		}
	case map[string]any:
		for _, elem := range t {
			if err := checkIntegerNumbers(elem); err != nil {
				return err
			}
		}
	case []any:
		for _, elem := range t {
			if err := checkIntegerNumbers(elem); err != nil {
				return err
			}
		}
	}
	return nil
}
