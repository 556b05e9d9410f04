package dictionary

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ebasdb/ebasdb/pkg/types"
)

// indexFromValues spreads the generated values over a few sites so that every
// value ends up in at least one content entry.
func indexFromValues(components, matrices, units []string) types.SiteIndex {
	idx := types.SiteIndex{}
	n := max(len(components), len(matrices), len(units))
	for i := 0; i < n; i++ {
		siteID := fmt.Sprintf("S%02d", i%3)
		site, ok := idx[siteID]
		if !ok {
			site = &types.Site{ID: siteID, Files: map[string]*types.FileRecord{}}
			idx[siteID] = site
		}
		file := fmt.Sprintf("%s.%d.nc", siteID, i)
		site.Files[file] = &types.FileRecord{Contents: []types.ContentEntry{{
			Var: fmt.Sprintf("v%d", i),
			Labels: types.Labels{
				Site:      siteID,
				Component: pick(components, i),
				Matrix:    pick(matrices, i),
				Unit:      pick(units, i),
				ResCode:   "1h",
				Meta:      types.MetaEBAS,
			},
		}}}
	}
	return idx
}

func pick(values []string, i int) string {
	if len(values) == 0 {
		return "none"
	}
	return values[i%len(values)]
}

// TestProperty_DictionaryBijection validates that every domain is a true
// bijection: decode(encode(v)) == v and codes exactly cover [0, k).
func TestProperty_DictionaryBijection(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("decode(encode(v)) == v for every value of every domain", prop.ForAll(
		func(components, matrices, units []string) bool {
			d := Build(indexFromValues(components, matrices, units))
			for _, domain := range Domains {
				m, ok := d.Mapping(domain)
				if !ok {
					return false
				}
				for _, v := range m.Values() {
					c, err := d.EncodeValue(domain, v)
					if err != nil {
						return false
					}
					back, err := d.Decode(domain, c)
					if err != nil || back != v {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("codes cover [0, k) without gaps or duplicates", prop.ForAll(
		func(components, matrices []string) bool {
			d := Build(indexFromValues(components, matrices, nil))
			for _, domain := range Domains {
				m, _ := d.Mapping(domain)
				seen := make(map[string]bool, m.Len())
				for c := int32(0); c < int32(m.Len()); c++ {
					v, err := d.Decode(domain, c)
					if err != nil || seen[v] {
						return false
					}
					seen[v] = true
				}
				if _, err := d.Decode(domain, int32(m.Len())); err == nil {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}

// TestProperty_DictionaryDeterminism validates that two builds over the same
// site index yield identical code assignments, regardless of the order the
// values were first seen in.
func TestProperty_DictionaryDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Build is deterministic", prop.ForAll(
		func(components, matrices []string) bool {
			a := Build(indexFromValues(components, matrices, nil))
			b := Build(indexFromValues(components, matrices, nil))
			return a.Equal(b)
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Identifier()),
	))

	properties.Property("Build ignores value order", prop.ForAll(
		func(components []string) bool {
			reversed := make([]string, len(components))
			for i, c := range components {
				reversed[len(components)-1-i] = c
			}
			a := Build(indexFromValues(components, []string{"air"}, nil))
			b := Build(indexFromValues(reversed, []string{"air"}, nil))
			ma, _ := a.Mapping(DomainComponent)
			mb, _ := b.Mapping(DomainComponent)
			va, vb := ma.Values(), mb.Values()
			if len(va) != len(vb) {
				return false
			}
			for i := range va {
				if va[i] != vb[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.Property("encode then decode restores the index", prop.ForAll(
		func(components, matrices, units []string) bool {
			idx := indexFromValues(components, matrices, units)
			want := indexFromValues(components, matrices, units)
			d := Build(idx)
			if err := NewEncoder(d).Encode(idx); err != nil {
				return false
			}
			if err := Decode(d, idx); err != nil {
				return false
			}
			ok := true
			_ = want.Walk(func(site *types.Site, file string, e *types.ContentEntry) error {
				got := idx[site.ID].Files[file].Contents[0]
				if got.Labels != e.Labels || got.Encoded {
					ok = false
				}
				return nil
			})
			return ok
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
