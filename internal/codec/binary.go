package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Binary is the uncompressed gob codec. It preserves every float64 bit
// pattern, NaN included.
type Binary struct{}

// Marshal encodes v with gob.
func (Binary) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("codec: gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes gob data into v.
func (Binary) Unmarshal(data []byte, v any) error {
	if err := decodeGob(data, v); err != nil {
		return corrupt(NameBinary, err)
	}
	return nil
}

func decodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// Name returns "bin".
func (Binary) Name() string { return NameBinary }

// ExportOnly returns false.
func (Binary) ExportOnly() bool { return false }

// compressor is a block compression algorithm.
type compressor interface {
	name() string
	compress(src []byte) ([]byte, error)
	decompress(src []byte) ([]byte, error)
}

// Compressed is a gob codec whose output is compressed as one block.
type Compressed struct {
	compressor compressor
}

// Marshal encodes v with gob and compresses the result.
func (c Compressed) Marshal(v any) ([]byte, error) {
	raw, err := Binary{}.Marshal(v)
	if err != nil {
		return nil, err
	}
	out, err := c.compressor.compress(raw)
	if err != nil {
		return nil, fmt.Errorf("codec: %s compress: %w", c.Name(), err)
	}
	return out, nil
}

// Unmarshal decompresses data and decodes it into v.
func (c Compressed) Unmarshal(data []byte, v any) error {
	raw, err := c.compressor.decompress(data)
	if err != nil {
		return corrupt(c.Name(), err)
	}
	if err := decodeGob(raw, v); err != nil {
		return corrupt(c.Name(), err)
	}
	return nil
}

// Name returns the compressor name.
func (c Compressed) Name() string { return c.compressor.name() }

// ExportOnly returns false.
func (Compressed) ExportOnly() bool { return false }
