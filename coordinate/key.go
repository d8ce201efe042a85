package coordinate

import (
	"fmt"
	"strconv"
	"strings"
)

// Key is the canonical fixed-precision encoding of a Vector, e.g.
// "[0.123][-0.456][0.000]...". It is deterministic: two vectors that are equal
// after rounding always encode to the same key. Keys are used as the primary
// key of the persistent store.
type Key string

// Encode rounds v to Precision decimals and encodes it into a Key.
// Encoding is pure and total over finite axis values.
func Encode(v Vector) Key {
	r := v.Round()
	var b strings.Builder
	b.Grow(Dimensions * 9)
	for _, x := range r {
		b.WriteByte('[')
		b.WriteString(strconv.FormatFloat(x, 'f', Precision, 64))
		b.WriteByte(']')
	}
	return Key(b.String())
}

// Decode parses a Key back into a Vector. The result carries exactly the
// rounded axis values embedded in the key, so Encode(k.Decode()) == k.
func (k Key) Decode() (Vector, error) {
	s := string(k)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return Vector{}, fmt.Errorf("coordinate: malformed key %q", s)
	}
	parts := strings.Split(s[1:len(s)-1], "][")
	if len(parts) != Dimensions {
		return Vector{}, fmt.Errorf("coordinate: key %q has %d axes, want %d", s, len(parts), Dimensions)
	}
	var v Vector
	for i, p := range parts {
		x, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return Vector{}, fmt.Errorf("coordinate: invalid axis %s in key %q: %w", Axes[i], s, err)
		}
		v[i] = x
	}
	return v, nil
}

// String implements fmt.Stringer.
func (k Key) String() string { return string(k) }
