// Package adapter defines the boundary to the raw-file adapter: the external
// collaborator that opens a scientific data file and hands back a normalized
// extraction record (site metadata plus content entries) and, per variable,
// the time bounds and value/QC arrays.
package adapter

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/ebasdb/ebasdb/pkg/types"
)

// Adapter extracts index and payload data from raw files.
type Adapter interface {
	// Extract returns {site_id: Site} for one raw file. The Site holds
	// exactly one entry in Files, keyed by file, with raw (unencoded)
	// content entries.
	Extract(ctx context.Context, file string) (types.SiteIndex, error)

	// Series returns the time bounds and value/QC arrays of one variable.
	Series(ctx context.Context, file, variable string) (*Series, error)
}

// Lister is implemented by adapters that know their raw files.
type Lister interface {
	List() ([]string, error)
}

// Series is the raw time series of one variable. Values and QC are
// revision-major: the outer slice holds one slice per revision, oldest first.
// Files that were never revised carry a single revision.
type Series struct {
	TimeBounds []types.Bound
	Values     [][]float64
	QC         [][]int
}

// RawExtension is the extension of raw data files.
const RawExtension = ".nc"

// ListRawFiles returns the names of the raw data files in dir, sorted.
func ListRawFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("adapter: failed to list raw directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), RawExtension) {
			continue
		}
		files = append(files, e.Name())
	}
	slices.Sort(files)
	return files, nil
}
