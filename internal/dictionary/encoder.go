package dictionary

import (
	"fmt"
	"sync"

	errs "github.com/ebasdb/ebasdb/internal/errors"
	"github.com/ebasdb/ebasdb/pkg/types"
)

var (
	// ErrAlreadyEncoded is returned when an index holding encoded entries is
	// passed to an encoder.
	ErrAlreadyEncoded = errs.NewValidationError(errs.CodeAlreadyEncoded, "dictionary: index is already encoded")

	// ErrNotEncoded is returned when decoding an entry that holds raw labels.
	ErrNotEncoded = errs.NewValidationError(errs.CodeNotEncoded, "dictionary: index is not encoded")

	// ErrEncoderUsed is returned on the second call to Encoder.Encode.
	ErrEncoderUsed = errs.NewValidationError(errs.CodeEncoderUsed, "dictionary: encoder already used")
)

// Encoder rewrites the categorical fields of a site index into dictionary
// codes. An Encoder is single-use.
type Encoder struct {
	dict *Dictionary
	once sync.Once
}

// NewEncoder creates an encoder backed by dict.
func NewEncoder(dict *Dictionary) *Encoder {
	return &Encoder{dict: dict}
}

// Encode replaces the site, matrix, component, unit, res_code and meta values
// of every entry with their codes. All codes are resolved before any entry is
// touched, so a lookup failure leaves the index unchanged.
func (e *Encoder) Encode(idx types.SiteIndex) error {
	first := false
	e.once.Do(func() { first = true })
	if !first {
		return ErrEncoderUsed
	}

	var entries []*types.ContentEntry
	var codes []types.Codes
	err := idx.Walk(func(site *types.Site, file string, entry *types.ContentEntry) error {
		if entry.Encoded {
			return ErrAlreadyEncoded
		}
		c, err := e.dict.encodeLabels(entry.Labels)
		if err != nil {
			return fmt.Errorf("dictionary: encode %s/%s/%s: %w", site.ID, file, entry.Var, err)
		}
		entries = append(entries, entry)
		codes = append(codes, c)
		return nil
	})
	if err != nil {
		return err
	}

	for i, entry := range entries {
		entry.Codes = codes[i]
		entry.Labels = types.Labels{}
		entry.Encoded = true
	}
	return nil
}

// Decode restores the raw labels of every entry of an encoded index. Like
// Encode it resolves everything before mutating.
func Decode(dict *Dictionary, idx types.SiteIndex) error {
	var entries []*types.ContentEntry
	var labels []types.Labels
	err := idx.Walk(func(site *types.Site, file string, entry *types.ContentEntry) error {
		if !entry.Encoded {
			return ErrNotEncoded
		}
		l, err := dict.DecodeCodes(entry.Codes)
		if err != nil {
			return fmt.Errorf("dictionary: decode %s/%s/%s: %w", site.ID, file, entry.Var, err)
		}
		entries = append(entries, entry)
		labels = append(labels, l)
		return nil
	})
	if err != nil {
		return err
	}

	for i, entry := range entries {
		entry.Labels = labels[i]
		entry.Codes = types.Codes{}
		entry.Encoded = false
	}
	return nil
}

func (d *Dictionary) encodeLabels(l types.Labels) (types.Codes, error) {
	var c types.Codes
	fields := []struct {
		domain Domain
		value  string
		dst    *int32
	}{
		{DomainSite, l.Site, &c.Site},
		{DomainMatrix, l.Matrix, &c.Matrix},
		{DomainComponent, l.Component, &c.Component},
		{DomainUnit, l.Unit, &c.Unit},
		{DomainResCode, l.ResCode, &c.ResCode},
		{DomainMeta, l.Meta, &c.Meta},
	}
	for _, f := range fields {
		code, err := d.EncodeValue(f.domain, f.value)
		if err != nil {
			return types.Codes{}, err
		}
		*f.dst = code
	}
	return c, nil
}

// DecodeCodes maps a full code set back to labels.
func (d *Dictionary) DecodeCodes(c types.Codes) (types.Labels, error) {
	var l types.Labels
	fields := []struct {
		domain Domain
		code   int32
		dst    *string
	}{
		{DomainSite, c.Site, &l.Site},
		{DomainMatrix, c.Matrix, &l.Matrix},
		{DomainComponent, c.Component, &l.Component},
		{DomainUnit, c.Unit, &l.Unit},
		{DomainResCode, c.ResCode, &l.ResCode},
		{DomainMeta, c.Meta, &l.Meta},
	}
	for _, f := range fields {
		v, err := d.Decode(f.domain, f.code)
		if err != nil {
			return types.Labels{}, err
		}
		*f.dst = v
	}
	return l, nil
}
