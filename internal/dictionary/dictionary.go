// Package dictionary implements the value index: a bijective mapping between
// the recurring categorical strings of the site index (matrix, unit,
// resolution code, component, site id, meta flag) and compact integer codes.
//
// A Dictionary is immutable once built. Codes are assigned by enumerating
// each domain's distinct values in sorted order, so two builds over the same
// value set always produce the same encoding.
package dictionary

import (
	"fmt"
	"slices"

	errs "github.com/ebasdb/ebasdb/internal/errors"
	"github.com/ebasdb/ebasdb/pkg/types"
)

// Domain names a categorical value domain.
type Domain string

const (
	DomainMatrix    Domain = "matrix"
	DomainUnit      Domain = "unit"
	DomainResCode   Domain = "res_code"
	DomainComponent Domain = "component"
	DomainSite      Domain = "site"
	DomainMeta      Domain = "meta"
)

// Domains lists every domain in a stable order.
var Domains = []Domain{DomainMatrix, DomainUnit, DomainResCode, DomainComponent, DomainSite, DomainMeta}

// metaValues is the fixed meta domain. It is not derived from data.
var metaValues = []string{types.MetaEBAS, types.MetaNoEBAS}

// Mapping is the bijection of a single domain.
type Mapping struct {
	values []string
	codes  map[string]int32
}

// newMapping builds a mapping from a sorted, duplicate-free value list.
func newMapping(values []string) *Mapping {
	m := &Mapping{
		values: values,
		codes:  make(map[string]int32, len(values)),
	}
	for i, v := range values {
		m.codes[v] = int32(i)
	}
	return m
}

// Len returns the number of codes in the mapping.
func (m *Mapping) Len() int { return len(m.values) }

// Code returns the code of v.
func (m *Mapping) Code(v string) (int32, bool) {
	c, ok := m.codes[v]
	return c, ok
}

// Value returns the string behind code c.
func (m *Mapping) Value(c int32) (string, bool) {
	if c < 0 || int(c) >= len(m.values) {
		return "", false
	}
	return m.values[c], true
}

// Values returns a copy of the values in code order.
func (m *Mapping) Values() []string {
	return slices.Clone(m.values)
}

// Dictionary holds one Mapping per domain.
type Dictionary struct {
	domains map[Domain]*Mapping
}

// Build derives a dictionary from a site index whose entries are not yet
// encoded. The component, matrix, unit and res_code domains come from the
// content entries; the site domain from the index keys; meta is fixed.
func Build(idx types.SiteIndex) *Dictionary {
	return &Dictionary{
		domains: map[Domain]*Mapping{
			DomainMatrix:    newMapping(idx.Distinct("matrix")),
			DomainUnit:      newMapping(idx.Distinct("unit")),
			DomainResCode:   newMapping(idx.Distinct("res_code")),
			DomainComponent: newMapping(idx.Distinct("component")),
			DomainSite:      newMapping(idx.SiteIDs()),
			DomainMeta:      newMapping(slices.Clone(metaValues)),
		},
	}
}

// Mapping returns the mapping of a domain.
func (d *Dictionary) Mapping(domain Domain) (*Mapping, bool) {
	m, ok := d.domains[domain]
	return m, ok
}

// Len returns the number of codes in a domain, 0 for unknown domains.
func (d *Dictionary) Len(domain Domain) int {
	if m, ok := d.domains[domain]; ok {
		return m.Len()
	}
	return 0
}

// EncodeValue returns the code of value in domain.
func (d *Dictionary) EncodeValue(domain Domain, value string) (int32, error) {
	m, ok := d.domains[domain]
	if !ok {
		return 0, errs.NewLookupError(errs.CodeUnknownDomain, fmt.Sprintf("dictionary: unknown domain %q", domain))
	}
	c, ok := m.Code(value)
	if !ok {
		return 0, errs.NewLookupError(errs.CodeUnknownValue,
			fmt.Sprintf("dictionary: value %q not in domain %s", value, domain))
	}
	return c, nil
}

// Decode returns the string behind code in domain.
func (d *Dictionary) Decode(domain Domain, code int32) (string, error) {
	m, ok := d.domains[domain]
	if !ok {
		return "", errs.NewLookupError(errs.CodeUnknownDomain, fmt.Sprintf("dictionary: unknown domain %q", domain))
	}
	v, ok := m.Value(code)
	if !ok {
		return "", errs.NewLookupError(errs.CodeUnknownCode,
			fmt.Sprintf("dictionary: code %d not in domain %s", code, domain))
	}
	return v, nil
}

// Translate maps condition values to codes, dropping values the domain does
// not know. The result may be empty.
func (d *Dictionary) Translate(domain Domain, values []string) []int32 {
	m, ok := d.domains[domain]
	if !ok {
		return nil
	}
	codes := make([]int32, 0, len(values))
	for _, v := range values {
		if c, ok := m.Code(v); ok {
			codes = append(codes, c)
		}
	}
	return codes
}

// Equal reports whether two dictionaries assign identical codes.
func (d *Dictionary) Equal(other *Dictionary) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.domains) != len(other.domains) {
		return false
	}
	for domain, m := range d.domains {
		om, ok := other.domains[domain]
		if !ok || !slices.Equal(m.values, om.values) {
			return false
		}
	}
	return true
}

// Snapshot is the persisted form of a dictionary: each domain's values in
// code order.
type Snapshot struct {
	Domains map[string][]string `json:"domains" yaml:"domains"`
}

// Snapshot returns the persisted form of the dictionary.
func (d *Dictionary) Snapshot() Snapshot {
	s := Snapshot{Domains: make(map[string][]string, len(d.domains))}
	for domain, m := range d.domains {
		s.Domains[string(domain)] = m.Values()
	}
	return s
}

// FromSnapshot restores a dictionary and checks that every domain is present,
// sorted and duplicate-free, and that meta holds the fixed values.
func FromSnapshot(s Snapshot) (*Dictionary, error) {
	d := &Dictionary{domains: make(map[Domain]*Mapping, len(Domains))}
	for _, domain := range Domains {
		values, ok := s.Domains[string(domain)]
		if !ok {
			return nil, errs.NewStorageError(errs.CodeCorruptBlob,
				fmt.Sprintf("dictionary: snapshot is missing domain %s", domain), nil)
		}
		for i := 1; i < len(values); i++ {
			if values[i-1] >= values[i] {
				return nil, errs.NewStorageError(errs.CodeCorruptBlob,
					fmt.Sprintf("dictionary: domain %s is not sorted and unique at code %d", domain, i), nil)
			}
		}
		if domain == DomainMeta && !slices.Equal(values, metaValues) {
			return nil, errs.NewStorageError(errs.CodeCorruptBlob,
				fmt.Sprintf("dictionary: unexpected meta domain %v", values), nil)
		}
		d.domains[domain] = newMapping(slices.Clone(values))
	}
	return d, nil
}
