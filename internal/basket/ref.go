package basket

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// maxExactInt is the largest magnitude at which every float64 integer is
// exact.
const maxExactInt = 1 << 53

// Ref names the entries to remove from a basket. A key Ref matches entries by
// product id or basket id. A numeric Ref additionally doubles as a position in
// the basket; see Store.Remove for how the two readings are resolved.
type Ref struct {
	key     string
	index   int
	numeric bool
}

// KeyRef returns a Ref that matches entries by product id or basket id.
func KeyRef(key string) Ref {
	return Ref{key: key, index: -1}
}

// NumericRef returns a Ref for a number, which is read as an index unless an
// entry carries that number as its id.
func NumericRef(n int) Ref {
	return Ref{key: strconv.Itoa(n), index: n, numeric: true}
}

// ParseRef decodes a JSON identifier. JSON numbers become numeric refs and
// JSON strings become key refs. A number is judged by value, so 1, 1.0 and
// 1e0 are the same ref. A fractional number can never address a position,
// so it only matches by id.
func ParseRef(raw json.RawMessage) (Ref, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Ref{}, fmt.Errorf("identifier is required")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Ref{}, fmt.Errorf("decode identifier: %w", err)
		}
		return KeyRef(s), nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return Ref{}, fmt.Errorf("identifier must be a string or a number: %w", err)
	}
	if i, err := strconv.Atoi(n.String()); err == nil {
		return NumericRef(i), nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err == nil && f == math.Trunc(f) && math.Abs(f) <= maxExactInt {
		return NumericRef(int(f)), nil
	}
	return Ref{key: n.String(), index: -1, numeric: true}, nil
}

// Key returns the textual form of the ref.
func (r Ref) Key() string { return r.key }

// IsNumeric reports whether the ref was built from a number.
func (r Ref) IsNumeric() bool { return r.numeric }

func (r Ref) String() string {
	if r.numeric {
		return "#" + r.key
	}
	return r.key
}
