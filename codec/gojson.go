package codec

import gojson "github.com/goccy/go-json"

// Default is the codec used when none is configured.
var Default Codec = GoJSON{}

// GoJSON is a Codec backed by goccy/go-json. Wire-compatible with JSON but
// considerably faster on the record shapes this store persists.
type GoJSON struct{}

// Marshal implements Codec.
func (GoJSON) Marshal(v any) ([]byte, error) { return gojson.Marshal(v) }

// Unmarshal implements Codec.
func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }

// Name implements Codec.
func (GoJSON) Name() string { return "go-json" }
