package adapter

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/ebasdb/ebasdb/pkg/types"
)

// Station metadata keys of the EBAS global metadata block.
const (
	keyStationCode    = "Station code"
	keyStationName    = "Station name"
	keyLandUse        = "Station land use"
	keyStationSetting = "Station setting"
	keyAltitude       = "Station altitude"
	keyLatitude       = "Station latitude"
	keyLongitude      = "Station longitude"
	keyResolutionCode = "Resolution code"
)

// Sidecar reads normalized extraction records that an external extractor
// wrote next to each raw file as "<file>.json".
//
// A record looks like:
//
//	{
//	  "ebas_metadata": {"Station code": "NO0002R", "Resolution code": "1h", ...},
//	  "time_bnds": [["2020-01-01T00:00:00Z", "2020-01-01T01:00:00Z"], ...],
//	  "variables": [{
//	    "name": "ozone_amean",
//	    "metadata": {"Matrix": "air", "Unit": "ug/m3", "Statistics": "arithmetic mean", "Component": "ozone"},
//	    "values": [[41.2, null, ...]],
//	    "qc": [[0, 999, ...]]
//	  }],
//	  "attributes": {"title": "..."}
//	}
//
// Variable metadata written with the "ebas_" key prefix is recorded with the
// ebas meta value; plain keys with no_ebas.
type Sidecar struct {
	rawDir string
}

// NewSidecar creates an adapter reading records from rawDir.
func NewSidecar(rawDir string) *Sidecar {
	return &Sidecar{rawDir: rawDir}
}

// List returns the raw files of the adapter's directory.
func (s *Sidecar) List() ([]string, error) {
	return ListRawFiles(s.rawDir)
}

type sidecarRecord struct {
	Metadata   map[string]any    `json:"ebas_metadata"`
	TimeBounds [][2]string       `json:"time_bnds"`
	Variables  []sidecarVariable `json:"variables"`
	Attributes map[string]any    `json:"attributes"`
}

type sidecarVariable struct {
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata"`
	Values   [][]*float64      `json:"values"`
	QC       [][]int           `json:"qc"`
}

func (s *Sidecar) read(file string) (*sidecarRecord, error) {
	data, err := os.ReadFile(filepath.Join(s.rawDir, file+".json"))
	if err != nil {
		return nil, fmt.Errorf("adapter: failed to read extraction record: %w", err)
	}
	var rec sidecarRecord
	if err := gojson.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("adapter: failed to parse extraction record: %w", err)
	}
	return &rec, nil
}

// Extract implements Adapter.
func (s *Sidecar) Extract(ctx context.Context, file string) (types.SiteIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := s.read(file)
	if err != nil {
		return nil, err
	}

	code, ok := rec.Metadata[keyStationCode].(string)
	if !ok || code == "" {
		return nil, fmt.Errorf("adapter: %s has no station code", file)
	}
	site := &types.Site{
		ID:             code,
		Name:           stringAttr(rec.Metadata, keyStationName),
		LandUse:        stringAttr(rec.Metadata, keyLandUse),
		StationSetting: stringAttr(rec.Metadata, keyStationSetting),
		Alt:            floatAttr(rec.Metadata, keyAltitude),
		Lat:            floatAttr(rec.Metadata, keyLatitude),
		Lon:            floatAttr(rec.Metadata, keyLongitude),
	}

	bounds, err := parseBounds(rec.TimeBounds)
	if err != nil {
		return nil, fmt.Errorf("adapter: %s: %w", file, err)
	}
	if len(bounds) == 0 {
		return nil, fmt.Errorf("adapter: %s has no time bounds", file)
	}
	st, ed := bounds[0].Start(), bounds[len(bounds)-1].End()
	resCode := stringAttr(rec.Metadata, keyResolutionCode)

	contents := make([]types.ContentEntry, 0, len(rec.Variables))
	for _, v := range rec.Variables {
		labels, stat, err := variableLabels(v.Metadata)
		if err != nil {
			return nil, fmt.Errorf("adapter: %s variable %s: %w", file, v.Name, err)
		}
		labels.Site = code
		labels.ResCode = resCode
		contents = append(contents, types.ContentEntry{
			Var:    v.Name,
			Stat:   stat,
			St:     st,
			Ed:     ed,
			Labels: labels,
		})
	}

	attrs := make(map[string]string, len(rec.Attributes))
	for k, v := range rec.Attributes {
		attrs[k] = fmt.Sprint(v)
	}
	site.Files = map[string]*types.FileRecord{
		file: {Contents: contents, DetailAttrs: attrs},
	}
	return types.SiteIndex{code: site}, nil
}

// Series implements Adapter.
func (s *Sidecar) Series(ctx context.Context, file, variable string) (*Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := s.read(file)
	if err != nil {
		return nil, err
	}
	bounds, err := parseBounds(rec.TimeBounds)
	if err != nil {
		return nil, fmt.Errorf("adapter: %s: %w", file, err)
	}
	for _, v := range rec.Variables {
		if v.Name != variable {
			continue
		}
		values := make([][]float64, len(v.Values))
		for r, rev := range v.Values {
			values[r] = make([]float64, len(rev))
			for i, x := range rev {
				if x == nil {
					values[r][i] = math.NaN()
				} else {
					values[r][i] = *x
				}
			}
		}
		return &Series{TimeBounds: bounds, Values: values, QC: v.QC}, nil
	}
	return nil, fmt.Errorf("adapter: %s has no variable %q", file, variable)
}

// variableLabels reads matrix, unit, component and statistics from either
// metadata convention.
func variableLabels(md map[string]string) (types.Labels, string, error) {
	if m, ok := md["Matrix"]; ok {
		return types.Labels{
			Matrix:    m,
			Unit:      md["Unit"],
			Component: md["Component"],
			Meta:      types.MetaNoEBAS,
		}, md["Statistics"], nil
	}
	if m, ok := md["ebas_matrix"]; ok {
		return types.Labels{
			Matrix:    m,
			Unit:      md["ebas_unit"],
			Component: md["ebas_component"],
			Meta:      types.MetaEBAS,
		}, md["ebas_statistics"], nil
	}
	return types.Labels{}, "", fmt.Errorf("no matrix in variable metadata")
}

func parseBounds(raw [][2]string) ([]types.Bound, error) {
	bounds := make([]types.Bound, len(raw))
	for i, b := range raw {
		st, err := time.Parse(time.RFC3339Nano, b[0])
		if err != nil {
			return nil, fmt.Errorf("bad time bound %d: %w", i, err)
		}
		ed, err := time.Parse(time.RFC3339Nano, b[1])
		if err != nil {
			return nil, fmt.Errorf("bad time bound %d: %w", i, err)
		}
		bounds[i] = types.Bound{st.UnixNano(), ed.UnixNano()}
	}
	return bounds, nil
}

func stringAttr(md map[string]any, key string) string {
	if v, ok := md[key].(string); ok {
		return v
	}
	return ""
}

// floatAttr accepts numbers and numeric strings such as "2080.0 m".
func floatAttr(md map[string]any, key string) types.Coordinate {
	switch v := md[key].(type) {
	case float64:
		return types.Coord(v)
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return types.Coord(f)
		}
	}
	return types.Coordinate{}
}
