// Package canon implements the deterministic JSON encoding used for every
// hash computed by the core: payload hashes, attestation chain hashes,
// checkpoint fingerprints, inclusion-proof linkage hashes, and transparency
// log chain hashes all depend on byte-exact agreement across
// implementations, so this package owns the one canonical representation.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Marshal renders v as canonical JSON: object keys sorted lexicographically
// at every nesting level, no insignificant whitespace, and numbers rendered
// in their minimal decimal form. v is first round-tripped through
// encoding/json to obtain a generic value tree (map[string]any, []any,
// string, float64/json.Number, bool, nil), then re-encoded deterministically.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal input: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var generic any
	if err := decoder.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canon: decode intermediate: %w", err)
	}
	var buf bytes.Buffer
	if err := encodeValue(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustMarshal behaves like Marshal but panics on error. It is intended for
// call sites where v's shape is controlled entirely by this codebase (no
// user-controlled types), such as constructing the payload hashed inside an
// attestation chain.
func MustMarshal(v any) []byte {
	out, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return out
}

// Hash returns the SHA-256 digest of the canonical JSON encoding of v.
func Hash(v any) ([32]byte, error) {
	encoded, err := Marshal(v)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(encoded), nil
}

// HashHex is Hash rendered as a lowercase hex string, the form used
// throughout the core for payload_hash, chain_hash, checkpoint_hash, and
// linkage_hash fields.
func HashHex(v any) (string, error) {
	sum, err := Hash(v)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum[:]), nil
}

// ChainHex SHA-256-hashes the concatenation of the given byte slices in
// order. It is the primitive used to build H(a || b || ...) chaining
// relations: attestation chain hashes, checkpoint hashes,
// transparency/inclusion linkage hashes.
func ChainHex(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		return encodeNumber(buf, val)
	case string:
		encodeString(buf, val)
		return nil
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeString(buf, k)
			buf.WriteByte(':')
			if err := encodeValue(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("canon: unsupported value type %T", v)
	}
}

// encodeNumber renders a json.Number in its minimal canonical decimal form:
// integers without a trailing ".0", floats via strconv's shortest
// round-tripping representation, never scientific notation for integral
// magnitudes the wire format commonly carries (ids, basis points, cents).
func encodeNumber(buf *bytes.Buffer, n json.Number) error {
	if i, err := n.Int64(); err == nil {
		buf.WriteString(strconv.FormatInt(i, 10))
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("canon: invalid number %q: %w", n.String(), err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("canon: number %q is not finite", n.String())
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

func encodeString(buf *bytes.Buffer, s string) {
	// json.Marshal already produces the fixed escaping rules the core
	// commits to (HTML-unsafe escapes included, for stability across Go
	// versions); re-encoding a bare string reuses that escaper exactly.
	encoded, _ := json.Marshal(s)
	buf.Write(encoded)
}
