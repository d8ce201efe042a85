package codec

import "encoding/json"

// JSON is a Codec backed by the standard library encoder. It trades speed for
// zero dependencies and exists mainly for debugging persisted files by hand.
type JSON struct{}

// Marshal implements Codec.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal implements Codec.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name implements Codec.
func (JSON) Name() string { return "json" }
