// Package query selects content records with a condition and joins their
// time series into a flat table.
//
// Selection runs in two stages. Site attribute predicates pick the sites.
// Within a site, component and matrix predicates are answered from posting
// bitmaps keyed by dictionary code, and stat and the time window are checked
// per record. Records whose interval overlaps the window survive; Join then
// trims the rows of each record to those contained in the window.
package query

import (
	"log/slog"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ebasdb/ebasdb/internal/dictionary"
	"github.com/ebasdb/ebasdb/internal/logging"
	"github.com/ebasdb/ebasdb/internal/recordstore"
	"github.com/ebasdb/ebasdb/pkg/types"
)

// postings indexes the records of one site by category code.
type postings struct {
	all       *roaring.Bitmap
	component map[int32]*roaring.Bitmap
	matrix    map[int32]*roaring.Bitmap
}

func newPostings(headers []types.Header) *postings {
	p := &postings{
		all:       roaring.New(),
		component: make(map[int32]*roaring.Bitmap),
		matrix:    make(map[int32]*roaring.Bitmap),
	}
	for _, h := range headers {
		id := uint32(h.ID)
		p.all.Add(id)
		addPosting(p.component, h.Codes.Component, id)
		addPosting(p.matrix, h.Codes.Matrix, id)
	}
	return p
}

func addPosting(m map[int32]*roaring.Bitmap, code int32, id uint32) {
	bm, ok := m[code]
	if !ok {
		bm = roaring.New()
		m[code] = bm
	}
	bm.Add(id)
}

// union returns the records carrying any of codes.
func union(m map[int32]*roaring.Bitmap, codes []int32) *roaring.Bitmap {
	out := roaring.New()
	for _, c := range codes {
		if bm, ok := m[c]; ok {
			out.Or(bm)
		}
	}
	return out
}

// Engine answers queries over a loaded database. It is read-only and safe
// for concurrent use.
type Engine struct {
	index    types.SiteIndex
	dict     *dictionary.Dictionary
	headers  recordstore.Headers
	payloads recordstore.Payloads
	postings map[string]*postings
	logger   *slog.Logger
}

// NewEngine indexes the loaded headers by category code.
func NewEngine(idx types.SiteIndex, dict *dictionary.Dictionary, headers recordstore.Headers, payloads recordstore.Payloads, logger *slog.Logger) *Engine {
	e := &Engine{
		index:    idx,
		dict:     dict,
		headers:  headers,
		payloads: payloads,
		postings: make(map[string]*postings, len(headers)),
		logger:   logging.OrNop(logger),
	}
	for site, hs := range headers {
		e.postings[site] = newPostings(hs)
	}
	return e
}

// Selection maps each surviving site to its surviving record ids, and
// carries the time window for the join.
type Selection struct {
	Sites map[string]*roaring.Bitmap
	St    *types.Timestamp
	Ed    *types.Timestamp
}

// SiteIDs returns the selected sites, sorted.
func (s *Selection) SiteIDs() []string {
	ids := make([]string, 0, len(s.Sites))
	for id := range s.Sites {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// IDs returns the selected record ids of a site in ascending order.
func (s *Selection) IDs(site string) []int {
	bm, ok := s.Sites[site]
	if !ok {
		return nil
	}
	ids := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		ids = append(ids, int(it.Next()))
	}
	return ids
}

// Count returns the number of selected records.
func (s *Selection) Count() int {
	n := 0
	for _, bm := range s.Sites {
		n += int(bm.GetCardinality())
	}
	return n
}

// Empty reports whether nothing was selected.
func (s *Selection) Empty() bool { return len(s.Sites) == 0 }

// Select evaluates cond against the index. Component and matrix values
// that the dictionary does not know are dropped from their predicate; a
// predicate left with no values matches nothing. No match is an empty
// selection. The only error is a window with st after ed, which is rejected
// with a validation error rather than answered with an empty selection.
func (e *Engine) Select(cond Condition) (*Selection, error) {
	if err := cond.Validate(); err != nil {
		return nil, err
	}
	sel := &Selection{Sites: make(map[string]*roaring.Bitmap), St: cond.St, Ed: cond.Ed}

	var components, matrices []int32
	if cond.Component != nil {
		components = e.dict.Translate(dictionary.DomainComponent, cond.Component)
		if len(components) == 0 {
			return sel, nil
		}
	}
	if cond.Matrix != nil {
		matrices = e.dict.Translate(dictionary.DomainMatrix, cond.Matrix)
		if len(matrices) == 0 {
			return sel, nil
		}
	}

	for _, id := range e.index.SiteIDs() {
		site := e.index[id]
		if !matchSite(site, cond) {
			continue
		}
		p, ok := e.postings[id]
		if !ok {
			continue
		}

		candidates := p.all.Clone()
		if cond.Component != nil {
			candidates.And(union(p.component, components))
		}
		if cond.Matrix != nil {
			candidates.And(union(p.matrix, matrices))
		}
		if candidates.IsEmpty() {
			continue
		}

		hs := e.headers[id]
		survivors := roaring.New()
		it := candidates.Iterator()
		for it.HasNext() {
			rid := it.Next()
			h := &hs[rid]
			if cond.Stat != nil && !slices.Contains(cond.Stat, h.Stat) {
				continue
			}
			if !overlaps(h, cond.St, cond.Ed) {
				continue
			}
			survivors.Add(rid)
		}
		if !survivors.IsEmpty() {
			sel.Sites[id] = survivors
		}
	}

	e.logger.Debug("query selected records", "sites", len(sel.Sites), "count", sel.Count())
	return sel, nil
}

func matchSite(site *types.Site, cond Condition) bool {
	return member(cond.ID, site.ID) &&
		member(cond.Name, site.Name) &&
		member(cond.LandUse, site.LandUse) &&
		member(cond.StationSetting, site.StationSetting) &&
		member(cond.Country, site.Country)
}

// member reports whether v is in values; an absent predicate always holds.
func member(values []string, v string) bool {
	return values == nil || slices.Contains(values, v)
}

// overlaps is the record selection test: the record interval must reach the
// window, not lie inside it.
func overlaps(h *types.Header, st, ed *types.Timestamp) bool {
	if st != nil && h.Ed < *st {
		return false
	}
	if ed != nil && h.St > *ed {
		return false
	}
	return true
}
