package adapter

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebasdb/ebasdb/pkg/types"
)

const sampleRecord = `{
  "ebas_metadata": {
    "Station code": "NO0002R",
    "Station name": "Birkenes II",
    "Station land use": "Forest",
    "Station setting": "Rural",
    "Station altitude": "219.0 m",
    "Station latitude": 58.38853,
    "Resolution code": "1h"
  },
  "time_bnds": [
    ["2020-01-01T00:00:00Z", "2020-01-01T01:00:00Z"],
    ["2020-01-01T01:00:00Z", "2020-01-01T02:00:00Z"]
  ],
  "variables": [
    {
      "name": "ozone_amean",
      "metadata": {"Matrix": "air", "Unit": "ug/m3", "Statistics": "arithmetic mean", "Component": "ozone"},
      "values": [[40.0, 41.0], [40.5, null]],
      "qc": [[0, 0], [0, 999]]
    },
    {
      "name": "no2",
      "metadata": {"ebas_matrix": "air", "ebas_unit": "ug N/m3", "ebas_statistics": "arithmetic mean", "ebas_component": "nitrogen_dioxide"},
      "values": [[1.5, 2.5]],
      "qc": [[0, 0]]
    }
  ],
  "attributes": {"title": "Birkenes hourly", "revision": 3}
}`

func writeRecord(t *testing.T, dir, file, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte("raw"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, file+".json"), []byte(body), 0644))
}

func TestSidecarExtract(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "NO0002R.ozone.nc", sampleRecord)

	idx, err := NewSidecar(dir).Extract(context.Background(), "NO0002R.ozone.nc")
	require.NoError(t, err)
	require.Len(t, idx, 1)

	site := idx["NO0002R"]
	require.NotNil(t, site)
	assert.Equal(t, "Birkenes II", site.Name)
	assert.Equal(t, "Forest", site.LandUse)
	assert.Equal(t, "Rural", site.StationSetting)
	require.True(t, site.Alt.Valid)
	assert.InDelta(t, 219.0, site.Alt.Value, 1e-9)
	assert.True(t, site.Lat.Valid)
	assert.False(t, site.Lon.Valid)

	rec := site.Files["NO0002R.ozone.nc"]
	require.NotNil(t, rec)
	require.Len(t, rec.Contents, 2)

	st := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano()
	ed := time.Date(2020, 1, 1, 2, 0, 0, 0, time.UTC).UnixNano()

	ozone := rec.Contents[0]
	assert.Equal(t, "ozone_amean", ozone.Var)
	assert.Equal(t, "arithmetic mean", ozone.Stat)
	assert.Equal(t, st, ozone.St)
	assert.Equal(t, ed, ozone.Ed)
	assert.Equal(t, types.Labels{
		Site: "NO0002R", Matrix: "air", Unit: "ug/m3", Component: "ozone", ResCode: "1h", Meta: types.MetaNoEBAS,
	}, ozone.Labels)

	no2 := rec.Contents[1]
	assert.Equal(t, types.MetaEBAS, no2.Labels.Meta)
	assert.Equal(t, "nitrogen_dioxide", no2.Labels.Component)

	assert.Equal(t, "Birkenes hourly", rec.DetailAttrs["title"])
	assert.Equal(t, "3", rec.DetailAttrs["revision"])
}

func TestSidecarSeries(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "a.nc", sampleRecord)

	s, err := NewSidecar(dir).Series(context.Background(), "a.nc", "ozone_amean")
	require.NoError(t, err)
	require.Len(t, s.TimeBounds, 2)
	require.Len(t, s.Values, 2)
	assert.Equal(t, []float64{40.0, 41.0}, s.Values[0])
	assert.Equal(t, 40.5, s.Values[1][0])
	assert.True(t, math.IsNaN(s.Values[1][1]))
	assert.Equal(t, [][]int{{0, 0}, {0, 999}}, s.QC)

	_, err = NewSidecar(dir).Series(context.Background(), "a.nc", "missing")
	assert.Error(t, err)
}

func TestSidecarErrors(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "nocode.nc", `{"ebas_metadata": {}, "time_bnds": [["2020-01-01T00:00:00Z","2020-01-01T01:00:00Z"]]}`)
	writeRecord(t, dir, "nobounds.nc", `{"ebas_metadata": {"Station code": "X"}, "time_bnds": []}`)
	writeRecord(t, dir, "nomatrix.nc", `{"ebas_metadata": {"Station code": "X"},
		"time_bnds": [["2020-01-01T00:00:00Z","2020-01-01T01:00:00Z"]],
		"variables": [{"name": "v", "metadata": {"Unit": "m"}}]}`)
	writeRecord(t, dir, "garbage.nc", `{not json`)

	a := NewSidecar(dir)
	for _, f := range []string{"nocode.nc", "nobounds.nc", "nomatrix.nc", "garbage.nc", "absent.nc"} {
		_, err := a.Extract(context.Background(), f)
		assert.Error(t, err, f)
	}
}

func TestListRawFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.nc", "a.nc", "a.nc.json", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.nc"), 0755))

	files, err := ListRawFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.nc", "b.nc"}, files)

	var lister Lister = NewSidecar(dir)
	files, err = lister.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.nc", "b.nc"}, files)

	_, err = ListRawFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	m.Add("f.nc", MemoryFile{
		Site:     types.Site{ID: "ES0010R", Lat: types.Coord(41)},
		Contents: []types.ContentEntry{{Var: "o3", Labels: types.Labels{Component: "ozone"}}},
		Series: map[string]*Series{
			"o3": {TimeBounds: []types.Bound{{0, 1}}, Values: [][]float64{{1}}, QC: [][]int{{0}}},
		},
	})

	idx, err := m.Extract(context.Background(), "f.nc")
	require.NoError(t, err)
	idx["ES0010R"].Files["f.nc"].Contents[0].Labels.Component = "changed"
	idx["ES0010R"].Lat = types.Coord(0)

	again, err := m.Extract(context.Background(), "f.nc")
	require.NoError(t, err)
	assert.Equal(t, "ozone", again["ES0010R"].Files["f.nc"].Contents[0].Labels.Component)
	assert.Equal(t, types.Coord(41), again["ES0010R"].Lat)

	s, err := m.Series(context.Background(), "f.nc", "o3")
	require.NoError(t, err)
	s.Values[0][0] = 99
	s2, _ := m.Series(context.Background(), "f.nc", "o3")
	assert.Equal(t, 1.0, s2.Values[0][0])
}

func TestMemoryErrors(t *testing.T) {
	boom := errors.New("unreadable")
	m := NewMemory()
	m.Add("bad.nc", MemoryFile{Site: types.Site{ID: "X"}, Err: boom})

	_, err := m.Extract(context.Background(), "bad.nc")
	assert.ErrorIs(t, err, boom)
	_, err = m.Extract(context.Background(), "none.nc")
	assert.Error(t, err)
	_, err = m.Series(context.Background(), "bad.nc", "v")
	assert.Error(t, err)

	assert.Equal(t, []string{"bad.nc"}, m.Files())
}
