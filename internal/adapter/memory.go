package adapter

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/ebasdb/ebasdb/pkg/types"
)

// MemoryFile is one raw file held by a Memory adapter.
type MemoryFile struct {
	// Site carries the station metadata; its Files field is ignored.
	Site types.Site

	Contents []types.ContentEntry
	Attrs    map[string]string

	// Series holds the time series per variable name
	Series map[string]*Series

	// Err, when set, is returned by Extract
	Err error
}

// Memory is an Adapter over files registered in memory. Every returned value
// is a deep copy, so callers may mutate results freely.
type Memory struct {
	mu    sync.RWMutex
	files map[string]MemoryFile
}

// NewMemory creates an empty in-memory adapter.
func NewMemory() *Memory {
	return &Memory{files: make(map[string]MemoryFile)}
}

// Add registers or replaces a file.
func (m *Memory) Add(name string, f MemoryFile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = f
}

// Files returns the registered file names, sorted.
func (m *Memory) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.files))
}

// List implements Lister.
func (m *Memory) List() ([]string, error) {
	return m.Files(), nil
}

// Extract implements Adapter.
func (m *Memory) Extract(ctx context.Context, file string) (types.SiteIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	f, ok := m.files[file]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("adapter: no such file %s", file)
	}
	if f.Err != nil {
		return nil, f.Err
	}

	site := f.Site
	site.Components = nil
	site.Matrix = nil
	site.FileNum = 0
	site.Files = map[string]*types.FileRecord{
		file: {
			Contents:    slices.Clone(f.Contents),
			DetailAttrs: maps.Clone(f.Attrs),
		},
	}
	return types.SiteIndex{site.ID: &site}, nil
}

// Series implements Adapter.
func (m *Memory) Series(ctx context.Context, file, variable string) (*Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	f, ok := m.files[file]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("adapter: no such file %s", file)
	}
	s, ok := f.Series[variable]
	if !ok {
		return nil, fmt.Errorf("adapter: %s has no variable %q", file, variable)
	}
	out := &Series{
		TimeBounds: slices.Clone(s.TimeBounds),
		Values:     make([][]float64, len(s.Values)),
		QC:         make([][]int, len(s.QC)),
	}
	for i := range s.Values {
		out.Values[i] = slices.Clone(s.Values[i])
	}
	for i := range s.QC {
		out.QC[i] = slices.Clone(s.QC[i])
	}
	return out, nil
}
