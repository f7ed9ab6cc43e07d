// Package canonical produces the byte-stable JSON form and SHA-256 digests
// that every binding and signature in the protocol is computed over.
//
// The canonical form is: object keys sorted alphabetically at every depth,
// arrays in original order, primitives as encoding/json renders them, no
// insignificant whitespace. Determinism is the load-bearing property - two
// structurally equal values must hash identically regardless of key
// insertion order or the Go type they started as.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	dErrors "proofdeck/pkg/domain-errors"
)

// Canonicalize serializes v into the canonical text form.
func Canonicalize(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "value is not JSON-serializable")
	}

	// Round-trip through a generic decode so struct field order, map
	// iteration, and custom marshalers all collapse into one shape.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "canonical re-decode failed")
	}

	var sb strings.Builder
	if err := write(&sb, generic); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Digest computes the lowercase hex SHA-256 of the given text.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// RequestHash is the canonical hash: Digest(Canonicalize(v)).
func RequestHash(v any) (string, error) {
	text, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return Digest(text), nil
}

func write(sb *strings.Builder, v any) error {
	switch val := v.(type) {
	case nil:
		sb.WriteString("null")
	case bool:
		if val {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case json.Number:
		sb.WriteString(val.String())
	case string:
		return writeEncoded(sb, val)
	case []any:
		sb.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := write(sb, item); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := writeEncoded(sb, k); err != nil {
				return err
			}
			sb.WriteByte(':')
			if err := write(sb, val[k]); err != nil {
				return err
			}
		}
		sb.WriteByte('}')
	default:
		return dErrors.New(dErrors.CodeInternal, "unexpected value kind in canonical form")
	}
	return nil
}

// writeEncoded renders a string with encoding/json escaping so the canonical
// form matches what standard marshaling produces for the same text.
func writeEncoded(sb *strings.Builder, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "string encoding failed")
	}
	sb.Write(b)
	return nil
}
