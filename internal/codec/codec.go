// Package codec serializes the persisted index files and site dumps.
//
// The codec name doubles as the file extension. Changing the codec of an
// existing database means rebuilding it: blobs written by one codec cannot be
// read by another.
package codec

import (
	"fmt"

	errs "github.com/ebasdb/ebasdb/internal/errors"
)

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error

	// Name is the stable codec name, also used as the file extension
	Name() string

	// ExportOnly reports whether the codec loses information and therefore
	// cannot hold a canonical index.
	ExportOnly() bool
}

// Built-in codec names.
const (
	NameZstd   = "zst"
	NameSnappy = "sz"
	NameLZ4    = "lz4"
	NameBinary = "bin"
	NameJSON   = "json"
)

// DefaultName is the codec used when none is configured.
const DefaultName = NameZstd

// ErrExportOnly is returned when reading through an export-only codec.
var ErrExportOnly = errs.NewStorageError(errs.CodeExportOnlyCodec, "codec: export-only codec cannot be read back", nil)

// Names lists the built-in codecs.
func Names() []string {
	return []string{NameZstd, NameSnappy, NameLZ4, NameBinary, NameJSON}
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case NameZstd:
		return Compressed{compressor: zstdCompressor{}}, true
	case NameSnappy:
		return Compressed{compressor: snappyCompressor{}}, true
	case NameLZ4:
		return Compressed{compressor: lz4Compressor{}}, true
	case NameBinary:
		return Binary{}, true
	case NameJSON:
		return Text{}, true
	default:
		return nil, false
	}
}

// Canonical returns the named codec and fails for unknown or export-only
// codecs.
func Canonical(name string) (Codec, error) {
	c, ok := ByName(name)
	if !ok {
		return nil, errs.NewValidationError(errs.CodeInvalidConfig, fmt.Sprintf("codec: unknown codec %q", name))
	}
	if c.ExportOnly() {
		return nil, errs.NewStorageError(errs.CodeExportOnlyCodec,
			fmt.Sprintf("codec: %q is export-only and cannot hold the index", name), nil)
	}
	return c, nil
}

func corrupt(name string, err error) error {
	return errs.NewStorageError(errs.CodeCorruptBlob, fmt.Sprintf("codec: %s: failed to decode blob", name), err)
}
