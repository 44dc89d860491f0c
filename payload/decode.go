package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/titanous/json5"
)

// maxExactInt is the largest integer a float64 holds without rounding.
const maxExactInt = 1 << 53

// Decode parses a raw source body into an untyped tree.
//
// Embedded page state is frequently a JavaScript literal rather than strict
// JSON (unquoted keys, single quotes, trailing commas), so the decoder is
// json5, which accepts strict JSON unchanged. Empty input yields (nil, nil):
// the source is unavailable, not malformed.
//
// Numbers decode to float64, except integer literals beyond 2^53, which stay
// json.Number so long numeric ids keep every digit.
func Decode(raw []byte) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("undefined")) {
		return nil, nil
	}
	dec := json5.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("payload: decode: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("trailing data after value")
		}
		return nil, fmt.Errorf("payload: decode: %w", err)
	}
	return numbers(v)
}

// DecodeString is Decode for string input.
func DecodeString(raw string) (any, error) {
	return Decode([]byte(raw))
}

// numbers rewrites json5.Number leaves in place.
func numbers(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, c := range t {
			n, err := numbers(c)
			if err != nil {
				return nil, err
			}
			t[k] = n
		}
	case []any:
		for i, c := range t {
			n, err := numbers(c)
			if err != nil {
				return nil, err
			}
			t[i] = n
		}
	case json5.Number:
		return number(t)
	}
	return v, nil
}

func number(n json5.Number) (any, error) {
	s := n.String()
	if isDecimalInt(s) {
		if i, err := n.Int64(); err != nil || i > maxExactInt || i < -maxExactInt {
			return json.Number(strings.TrimPrefix(s, "+")), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("payload: decode: number %q: %w", s, err)
	}
	return f, nil
}

// isDecimalInt reports whether s is a base-10 integer literal.
func isDecimalInt(s string) bool {
	s = strings.TrimLeft(s, "+-")
	if s == "" || (len(s) > 1 && (s[1] == 'x' || s[1] == 'X')) {
		return false
	}
	return strings.Trim(s, "0123456789") == ""
}
