package codec

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/ebasdb/ebasdb/internal/errors"
	"github.com/ebasdb/ebasdb/pkg/types"
)

type dump struct {
	Headers  map[int]types.Header
	Payloads map[int]types.Payload
}

func sampleDump() dump {
	return dump{
		Headers: map[int]types.Header{
			0: {ID: 0, File: "a.nc", Var: "o3", Stat: "arithmetic mean", St: 1, Ed: 9, Codes: types.Codes{Site: 2, Component: 4}},
		},
		Payloads: map[int]types.Payload{
			0: {TS: []types.Bound{{1, 2}, {2, 3}, {3, 4}}, Val: []float64{1.25, math.NaN(), -3}},
		},
	}
}

func TestBinaryCodecsRoundTrip(t *testing.T) {
	for _, name := range []string{NameZstd, NameSnappy, NameLZ4, NameBinary} {
		t.Run(name, func(t *testing.T) {
			c, ok := ByName(name)
			require.True(t, ok)
			assert.Equal(t, name, c.Name())
			assert.False(t, c.ExportOnly())

			in := sampleDump()
			data, err := c.Marshal(in)
			require.NoError(t, err)

			var out dump
			require.NoError(t, c.Unmarshal(data, &out))
			assert.Equal(t, in.Headers, out.Headers)

			got := out.Payloads[0]
			assert.Equal(t, in.Payloads[0].TS, got.TS)
			require.Len(t, got.Val, 3)
			assert.Equal(t, 1.25, got.Val[0])
			assert.True(t, math.IsNaN(got.Val[1]))
			assert.Equal(t, -3.0, got.Val[2])
		})
	}
}

func TestCorruptBlob(t *testing.T) {
	for _, name := range []string{NameZstd, NameSnappy, NameLZ4, NameBinary} {
		c, _ := ByName(name)
		var out dump
		err := c.Unmarshal([]byte("definitely not a blob"), &out)
		require.Error(t, err, name)
		assert.True(t, errs.IsStorage(err), name)
		assert.Equal(t, errs.CodeCorruptBlob, errs.GetCode(err), name)
	}
}

func TestTextCodecIsExportOnly(t *testing.T) {
	c, ok := ByName(NameJSON)
	require.True(t, ok)
	assert.True(t, c.ExportOnly())

	data, err := c.Marshal(sampleDump())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "null"))
	assert.True(t, strings.Contains(string(data), `"arithmetic mean"`))

	var out dump
	err = c.Unmarshal(data, &out)
	assert.True(t, errors.Is(err, ErrExportOnly))
}

func TestCanonical(t *testing.T) {
	c, err := Canonical(DefaultName)
	require.NoError(t, err)
	assert.Equal(t, NameZstd, c.Name())

	_, err = Canonical(NameJSON)
	assert.Equal(t, errs.CodeExportOnlyCodec, errs.GetCode(err))

	_, err = Canonical("xz")
	assert.Equal(t, errs.CodeInvalidConfig, errs.GetCode(err))

	for _, n := range Names() {
		_, ok := ByName(n)
		assert.True(t, ok, n)
	}
}
