package siteindex

import (
	"fmt"
	"slices"

	"github.com/ebasdb/ebasdb/pkg/types"
)

// Merge folds partial indexes into a new index. Sites sharing an id are
// combined: their files are united, FileNum counts the distinct files, and
// every entry's component and matrix is listed in the site inventory under
// the file name. When partials carry different records for the same file,
// the record with the greater content key wins. The inventory is derived
// from the final files, so Merge is associative and the result does not
// depend on the order of the partials.
//
// Partials are not modified, but FileRecords are shared with the result.
func Merge(partials ...types.SiteIndex) types.SiteIndex {
	out := make(types.SiteIndex)
	for _, p := range partials {
		for _, id := range p.SiteIDs() {
			src := p[id]
			if src == nil {
				continue
			}
			dst, ok := out[id]
			if !ok {
				dst = newSite(src)
				out[id] = dst
			} else {
				fillAttributes(dst, src)
			}
			mergeFiles(dst, src)
		}
	}
	for _, site := range out {
		buildInventory(site)
	}
	return out
}

func newSite(src *types.Site) *types.Site {
	s := &types.Site{
		ID:         src.ID,
		Components: make(map[string][]string),
		Matrix:     make(map[string][]string),
		Files:      make(map[string]*types.FileRecord),
	}
	fillAttributes(s, src)
	return s
}

// fillAttributes copies station attributes that dst does not have yet.
func fillAttributes(dst, src *types.Site) {
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.Country == "" {
		dst.Country = src.Country
	}
	if dst.LandUse == "" {
		dst.LandUse = src.LandUse
	}
	if dst.StationSetting == "" {
		dst.StationSetting = src.StationSetting
	}
	if !dst.Alt.Valid {
		dst.Alt = src.Alt
	}
	if !dst.Lat.Valid {
		dst.Lat = src.Lat
	}
	if !dst.Lon.Valid {
		dst.Lon = src.Lon
	}
}

func mergeFiles(dst, src *types.Site) {
	for name, rec := range src.Files {
		cur, seen := dst.Files[name]
		if !seen || contentKey(rec) > contentKey(cur) {
			dst.Files[name] = rec
		}
	}
}

// contentKey renders a file record canonically for tie-breaking.
func contentKey(rec *types.FileRecord) string {
	if rec == nil {
		return ""
	}
	return fmt.Sprint(rec.Contents, rec.DetailAttrs)
}

// buildInventory recomputes FileNum and the component and matrix inventory
// from the site's files. Encoded entries contribute nothing.
func buildInventory(site *types.Site) {
	site.FileNum = len(site.Files)
	site.Components = make(map[string][]string)
	site.Matrix = make(map[string][]string)
	for _, name := range site.FileNames() {
		rec := site.Files[name]
		if rec == nil {
			continue
		}
		for i := range rec.Contents {
			e := &rec.Contents[i]
			if e.Encoded {
				continue
			}
			site.Components[e.Labels.Component] = appendUnique(site.Components[e.Labels.Component], name)
			site.Matrix[e.Labels.Matrix] = appendUnique(site.Matrix[e.Labels.Matrix], name)
		}
	}
}

func appendUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
