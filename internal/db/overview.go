package db

import (
	"context"
	"fmt"

	"github.com/ebasdb/ebasdb/internal/codec"
	"github.com/ebasdb/ebasdb/internal/dictionary"
	"github.com/ebasdb/ebasdb/internal/storage"
	"github.com/ebasdb/ebasdb/pkg/types"
)

// Overview counts what a loaded database covers.
type Overview struct {
	Sites      int `json:"sites"`
	Files      int `json:"files"`
	Entries    int `json:"entries"`
	Components int `json:"components"`
	Matrices   int `json:"matrices"`
	Countries  int `json:"countries"`
}

// String renders the overview the way the CLI prints it.
func (o Overview) String() string {
	return fmt.Sprintf("Database overview: %d sites, %d components, %d matrices, %d countries (%d files, %d entries)",
		o.Sites, o.Components, o.Matrices, o.Countries, o.Files, o.Entries)
}

// Overview summarizes the loaded database.
func (d *Database) Overview() (Overview, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.engine == nil {
		return Overview{}, ErrNotLoaded
	}

	countries := make(map[string]struct{})
	for _, site := range d.siteIndex {
		if site.Country != "" {
			countries[site.Country] = struct{}{}
		}
	}
	return Overview{
		Sites:      len(d.siteIndex),
		Files:      d.siteIndex.FileCount(),
		Entries:    d.siteIndex.EntryCount(),
		Components: d.dict.Len(dictionary.DomainComponent),
		Matrices:   d.dict.Len(dictionary.DomainMatrix),
		Countries:  len(countries),
	}, nil
}

// Export writes the dictionary and the decoded site index to dir as
// value_index.json and site_index.json. The files are for reading only and
// cannot be loaded back.
func (d *Database) Export(ctx context.Context, dir string) error {
	d.mu.RLock()
	idx, dict := d.siteIndex, d.dict
	d.mu.RUnlock()
	if idx == nil || dict == nil {
		return ErrNotLoaded
	}

	decoded, err := cloneIndex(idx)
	if err != nil {
		return err
	}
	if err := dictionary.Decode(dict, decoded); err != nil {
		return err
	}

	out, err := storage.NewLocalStorage(dir)
	if err != nil {
		return fmt.Errorf("db: failed to open export directory: %w", err)
	}
	text := codec.Text{}
	for name, v := range map[string]any{
		ValueIndexName: dict.Snapshot(),
		SiteIndexName:  decoded,
	} {
		data, err := text.Marshal(v)
		if err != nil {
			return fmt.Errorf("db: failed to export %s: %w", name, err)
		}
		key := name + "." + text.Name()
		if err := out.Put(ctx, key, data); err != nil {
			return fmt.Errorf("db: failed to export %s: %w", name, err)
		}
		d.logger.Info("exported "+name, "dir", dir, "key", key)
	}
	return nil
}

// cloneIndex deep-copies an index through the binary codec.
func cloneIndex(idx types.SiteIndex) (types.SiteIndex, error) {
	var c codec.Binary
	data, err := c.Marshal(idx)
	if err != nil {
		return nil, err
	}
	var out types.SiteIndex
	if err := c.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
