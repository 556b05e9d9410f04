package recordstore

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebasdb/ebasdb/internal/adapter"
	"github.com/ebasdb/ebasdb/internal/codec"
	errs "github.com/ebasdb/ebasdb/internal/errors"
	"github.com/ebasdb/ebasdb/internal/storage"
	"github.com/ebasdb/ebasdb/pkg/types"
)

func TestFilterQuality(t *testing.T) {
	got := FilterQuality([]float64{1, 2, 3, 4}, []int{0, 459, 0, 999}, NewQualitySet(459, 999))
	if len(got) != 4 {
		t.Fatalf("expected length 4, got %d", len(got))
	}
	if got[0] != 1 || got[2] != 3 {
		t.Errorf("valid values changed: %v", got)
	}
	if !math.IsNaN(got[1]) || !math.IsNaN(got[3]) {
		t.Errorf("flagged values not replaced: %v", got)
	}
}

func TestFilterQualityDoesNotMutateInput(t *testing.T) {
	val := []float64{1, 2}
	FilterQuality(val, []int{999, 999}, DefaultBadQC())
	if val[0] != 1 || val[1] != 2 {
		t.Errorf("input mutated: %v", val)
	}
	out := FilterQuality(val, nil, DefaultBadQC())
	if out[0] != 1 || out[1] != 2 {
		t.Errorf("nil qc must keep every value: %v", out)
	}
}

func TestDefaultBadQC(t *testing.T) {
	bad := DefaultBadQC()
	for _, f := range []int{459, 460, 599, 999} {
		if !bad.Contains(f) {
			t.Errorf("expected %d to be a bad flag", f)
		}
	}
	for _, f := range []int{0, 100, 247} {
		if bad.Contains(f) {
			t.Errorf("expected %d to be a valid flag", f)
		}
	}
	if len(bad) != 32 {
		t.Errorf("expected 32 bad flags, got %d", len(bad))
	}
}

func TestLastRevision(t *testing.T) {
	if got := LastRevision([][]int{{1, 2}, {3, 4}}); got[0] != 3 || got[1] != 4 {
		t.Errorf("expected last revision, got %v", got)
	}
	if got := LastRevision[float64](nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func encodedEntry(v string, component int32) types.ContentEntry {
	return types.ContentEntry{Var: v, Stat: "arithmetic mean", St: 0, Ed: 30, Encoded: true,
		Codes: types.Codes{Site: 0, Component: component}}
}

func newTestStore(t *testing.T, a adapter.Adapter) (*Store, storage.BlobStore) {
	t.Helper()
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	c, _ := codec.ByName(codec.NameZstd)
	s, err := New(blobs, c, a, Options{Workers: 2})
	require.NoError(t, err)
	return s, blobs
}

func testIndex() (types.SiteIndex, *adapter.Memory) {
	bounds := []types.Bound{{0, 10}, {10, 20}, {20, 30}}
	m := adapter.NewMemory()
	m.Add("A.1.nc", adapter.MemoryFile{Series: map[string]*adapter.Series{
		"o3":  {TimeBounds: bounds, Values: [][]float64{{9, 9, 9}, {1, 2, 3}}, QC: [][]int{{0, 0, 0}, {0, 999, 0}}},
		"no2": {TimeBounds: bounds, Values: [][]float64{{4, 5, 6}}, QC: [][]int{{0, 0, 0}}},
	}})
	m.Add("A.2.nc", adapter.MemoryFile{Series: map[string]*adapter.Series{
		"pm10": {TimeBounds: bounds, Values: [][]float64{{7, 8, 9}}},
	}})
	m.Add("B.1.nc", adapter.MemoryFile{Series: map[string]*adapter.Series{
		"o3": {TimeBounds: bounds, Values: [][]float64{{1, 2}}, QC: [][]int{{0, 0}}},
	}})
	m.Add("B.2.nc", adapter.MemoryFile{Series: map[string]*adapter.Series{
		"o3": {TimeBounds: bounds, Values: [][]float64{{1, 2, 3}}},
	}})

	idx := types.SiteIndex{
		"A": {ID: "A", Files: map[string]*types.FileRecord{
			"A.1.nc": {Contents: []types.ContentEntry{encodedEntry("o3", 1), encodedEntry("no2", 0)}},
			"A.2.nc": {Contents: []types.ContentEntry{encodedEntry("pm10", 2)}},
		}},
		"B": {ID: "B", Files: map[string]*types.FileRecord{
			"B.1.nc": {Contents: []types.ContentEntry{encodedEntry("o3", 1)}},
			"B.2.nc": {Contents: []types.ContentEntry{encodedEntry("o3", 1)}},
		}},
	}
	return idx, m
}

func TestMaterializeAndLoad(t *testing.T) {
	idx, m := testIndex()
	s, _ := newTestStore(t, m)
	ctx := context.Background()

	report, err := s.Materialize(ctx, idx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Sites)
	assert.Equal(t, 4, report.Records)

	// B.1.nc has a shape mismatch and is left out of B's dump
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "B", report.Failed[0].Site)
	assert.Equal(t, "B.1.nc", report.Failed[0].File)
	assert.Equal(t, errs.CodeShapeMismatch, errs.GetCode(report.Failed[0].Err))

	headers, payloads, err := s.Load(ctx, []string{"A", "B"})
	require.NoError(t, err)

	require.Len(t, headers["A"], 3)
	for i, h := range headers["A"] {
		assert.Equal(t, i, h.ID)
	}
	assert.Equal(t, "A.1.nc", headers["A"][0].File)
	assert.Equal(t, "o3", headers["A"][0].Var)
	assert.Equal(t, int32(1), headers["A"][0].Codes.Component)
	assert.Equal(t, "A.2.nc", headers["A"][2].File)

	o3 := payloads["A"][0]
	require.Equal(t, 3, o3.Len())
	assert.Equal(t, 1.0, o3.Val[0])
	assert.True(t, math.IsNaN(o3.Val[1]))
	assert.Equal(t, 3.0, o3.Val[2])
	assert.Equal(t, types.Bound{10, 20}, o3.TS[1])

	require.Len(t, headers["B"], 1)
	assert.Equal(t, "B.2.nc", headers["B"][0].File)
	assert.Equal(t, 0, headers["B"][0].ID)
}

func TestMaterializeSeriesFailure(t *testing.T) {
	idx, m := testIndex()
	idx["A"].Files["A.3.nc"] = &types.FileRecord{Contents: []types.ContentEntry{encodedEntry("missing", 0)}}
	s, _ := newTestStore(t, m)

	report, err := s.Materialize(context.Background(), idx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Sites)

	var files []string
	for _, f := range report.Failed {
		files = append(files, f.File)
	}
	assert.ElementsMatch(t, []string{"A.3.nc", "B.1.nc"}, files)
}

func TestMaterializeRejectsUnencoded(t *testing.T) {
	idx, m := testIndex()
	idx["A"].Files["A.2.nc"].Contents[0].Encoded = false
	s, _ := newTestStore(t, m)

	report, err := s.Materialize(context.Background(), idx)
	require.NoError(t, err)
	found := false
	for _, f := range report.Failed {
		if f.File == "A.2.nc" && errs.GetCode(f.Err) == errs.CodeNotEncoded {
			found = true
		}
	}
	assert.True(t, found, "expected A.2.nc to fail as not encoded: %+v", report.Failed)
}

func TestLoadMissingSite(t *testing.T) {
	s, _ := newTestStore(t, nil)
	_, _, err := s.Load(context.Background(), []string{"nowhere"})
	require.Error(t, err)
	assert.True(t, errs.IsStorage(err))
	assert.Equal(t, errs.CodeObjectNotFound, errs.GetCode(err))
}

func TestLoadCorruptDump(t *testing.T) {
	s, blobs := newTestStore(t, nil)
	ctx := context.Background()
	require.NoError(t, blobs.Put(ctx, s.Key("X"), []byte("garbage")))

	_, _, err := s.Load(ctx, []string{"X"})
	require.Error(t, err)
	assert.Equal(t, errs.CodeCorruptBlob, errs.GetCode(err))

	// A dump written under another site's key is rejected too
	require.NoError(t, s.Write(ctx, &SiteDump{Site: "Y"}))
	data, err := blobs.Get(ctx, s.Key("Y"))
	require.NoError(t, err)
	require.NoError(t, blobs.Put(ctx, s.Key("Z"), data))
	_, err = s.Read(ctx, "Z")
	assert.Equal(t, errs.CodeCorruptBlob, errs.GetCode(err))
}

func TestNewRejectsExportOnlyCodec(t *testing.T) {
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	c, _ := codec.ByName(codec.NameJSON)
	_, err = New(blobs, c, nil, Options{})
	assert.Equal(t, errs.CodeExportOnlyCodec, errs.GetCode(err))
}

func TestMaterializeWithoutAdapter(t *testing.T) {
	s, _ := newTestStore(t, nil)
	_, err := s.Materialize(context.Background(), types.SiteIndex{})
	assert.Error(t, err)
}

func TestRemoveStale(t *testing.T) {
	s, blobs := newTestStore(t, nil)
	ctx := context.Background()
	for _, id := range []string{"A", "B", "C"} {
		require.NoError(t, s.Write(ctx, &SiteDump{Site: id}))
	}
	require.NoError(t, blobs.Put(ctx, "A.bin", []byte("other codec")))

	removed, err := s.RemoveStale(ctx, []string{"A", "C"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	keys, err := blobs.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A.bin", "A.zst", "C.zst"}, keys)
}
