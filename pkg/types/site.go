// Package types provides the core data types of the EBAS index: sites, their
// files, the per-variable content entries and the time-series payloads.
package types

import (
	"encoding/json"
	"maps"
	"slices"
)

// Timestamp is a Unix timestamp in nanoseconds.
type Timestamp = int64

// Meta values describe which metadata convention a source file used.
const (
	MetaEBAS   = "ebas"
	MetaNoEBAS = "no_ebas"
)

// Site is one physical measurement station together with its file inventory.
type Site struct {
	// ID is the station code, e.g. "ES0010R". Unique across the index.
	ID string `json:"id" yaml:"id"`

	// Name is the human readable station name
	Name string `json:"name" yaml:"name"`

	// Country is derived from the first two characters of ID
	Country string `json:"country" yaml:"country"`

	LandUse        string `json:"land_use,omitempty" yaml:"land_use,omitempty"`
	StationSetting string `json:"station_setting,omitempty" yaml:"station_setting,omitempty"`

	Alt Coordinate `json:"alt" yaml:"alt"`
	Lat Coordinate `json:"lat" yaml:"lat"`
	Lon Coordinate `json:"lon" yaml:"lon"`

	// FileNum counts the files merged into this site
	FileNum int `json:"file_num" yaml:"file_num"`

	// Components maps a component name to the files that contain it
	Components map[string][]string `json:"components" yaml:"components"`

	// Matrix maps a matrix name to the files that contain it
	Matrix map[string][]string `json:"matrix" yaml:"matrix"`

	// Files maps a file name to its record
	Files map[string]*FileRecord `json:"files" yaml:"files"`
}

// Coordinate is an optional station coordinate. The zero value is missing,
// so a known 0 survives codecs that skip zero fields.
type Coordinate struct {
	Value float64
	Valid bool
}

// Coord returns a known coordinate.
func Coord(v float64) Coordinate {
	return Coordinate{Value: v, Valid: true}
}

// MarshalJSON writes a missing coordinate as null.
func (c Coordinate) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

// UnmarshalJSON reads a number or null.
func (c *Coordinate) UnmarshalJSON(b []byte) error {
	var v *float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v == nil {
		*c = Coordinate{}
		return nil
	}
	*c = Coord(*v)
	return nil
}

// FileRecord holds the variables extracted from one source file.
type FileRecord struct {
	Contents []ContentEntry `json:"contents" yaml:"contents"`

	// DetailAttrs holds the global attributes of the file. Only kept when
	// detail capture is enabled.
	DetailAttrs map[string]string `json:"detail_attrs,omitempty" yaml:"detail_attrs,omitempty"`
}

// FileNames returns the file names of the site in sorted order.
func (s *Site) FileNames() []string {
	return slices.Sorted(maps.Keys(s.Files))
}

// SiteIndex maps a site id to its Site.
type SiteIndex map[string]*Site

// SiteIDs returns the site ids in sorted order.
func (idx SiteIndex) SiteIDs() []string {
	return slices.Sorted(maps.Keys(idx))
}

// Walk visits every content entry of the index in a deterministic order
// (sites sorted by id, files sorted by name, entries in file order). The entry
// pointer refers to the stored entry, so fn may modify it in place.
func (idx SiteIndex) Walk(fn func(site *Site, file string, entry *ContentEntry) error) error {
	for _, id := range idx.SiteIDs() {
		site := idx[id]
		for _, name := range site.FileNames() {
			rec := site.Files[name]
			if rec == nil {
				continue
			}
			for i := range rec.Contents {
				if err := fn(site, name, &rec.Contents[i]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// EntryCount returns the number of content entries in the index.
func (idx SiteIndex) EntryCount() int {
	n := 0
	for _, site := range idx {
		for _, rec := range site.Files {
			if rec != nil {
				n += len(rec.Contents)
			}
		}
	}
	return n
}

// FileCount returns the number of files in the index.
func (idx SiteIndex) FileCount() int {
	n := 0
	for _, site := range idx {
		n += len(site.Files)
	}
	return n
}

// Distinct returns the sorted distinct raw values of a content attribute
// across all entries. attr is one of "matrix", "unit", "res_code",
// "component", "site", "meta", "stat" or "var". Encoded entries contribute
// nothing to the categorical attributes.
func (idx SiteIndex) Distinct(attr string) []string {
	set := make(map[string]struct{})
	for _, site := range idx {
		for _, rec := range site.Files {
			if rec == nil {
				continue
			}
			for i := range rec.Contents {
				v, ok := rec.Contents[i].attr(attr)
				if ok {
					set[v] = struct{}{}
				}
			}
		}
	}
	return slices.Sorted(maps.Keys(set))
}
