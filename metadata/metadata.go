// Package metadata provides the caller-supplied metadata attached to memory
// records and a Roaring-Bitmap-backed equality index used for filtered search.
package metadata

import "fmt"

// Metadata is an arbitrary string-keyed map of caller-supplied values.
// No fixed schema is assumed.
type Metadata map[string]any

// Sanitize returns a copy of m with every value reduced to a safe,
// codec-friendly type: strings, bools, and numbers pass through, nested maps
// are sanitized recursively, slices become string slices, and everything else
// is stringified. A nil map sanitizes to nil.
func (m Metadata) Sanitize() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			out[k] = val
		case Metadata:
			out[k] = val.Sanitize()
		case map[string]any:
			out[k] = Metadata(val).Sanitize()
		case []string:
			cp := make([]string, len(val))
			copy(cp, val)
			out[k] = cp
		case []any:
			ss := make([]string, len(val))
			for i, item := range val {
				ss[i] = fmt.Sprint(item)
			}
			out[k] = ss
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// Clone returns a deep copy of m.
func (m Metadata) Clone() Metadata {
	return m.Sanitize()
}
