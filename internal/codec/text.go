package codec

import (
	"fmt"

	gojson "github.com/goccy/go-json"
)

// Text is the human-readable JSON codec backed by github.com/goccy/go-json.
// Missing values are written as null and integer codes as JSON numbers, so
// the output cannot be read back into the native types. It is export-only.
type Text struct{}

// Marshal encodes the value as indented JSON.
func (Text) Marshal(v any) ([]byte, error) {
	b, err := gojson.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("codec: json encode: %w", err)
	}
	return b, nil
}

// Unmarshal always fails with ErrExportOnly.
func (Text) Unmarshal([]byte, any) error { return ErrExportOnly }

// Name returns "json".
func (Text) Name() string { return NameJSON }

// ExportOnly returns true.
func (Text) ExportOnly() bool { return true }
