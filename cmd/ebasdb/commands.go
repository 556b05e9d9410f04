package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ebasdb/ebasdb/internal/db"
	"github.com/ebasdb/ebasdb/internal/query"
)

// BuildCmd rebuilds the database.
type BuildCmd struct{}

// Execute runs the build and prints its summary.
func (c *BuildCmd) Execute(ctx context.Context, d *db.Database) error {
	info, err := d.Update(ctx)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	fmt.Printf("Run %s: %d sites, %d files, %d records (%s)\n",
		info.RunID, info.Sites, info.Files, info.Records, info.Codec)
	if n := len(info.FailedFiles); n > 0 {
		fmt.Printf("%d files failed:\n", n)
		for _, f := range info.FailedFiles {
			fmt.Printf("  %s\n", f)
		}
	}
	return printOverview(d)
}

// QueryCmd selects records. Every list flag takes one or more values; a
// flag that is not given does not filter.
type QueryCmd struct {
	ID             []string `arg:"--id" help:"site ids"`
	Name           []string `arg:"--name" help:"site names"`
	LandUse        []string `arg:"--land-use" help:"station land use"`
	StationSetting []string `arg:"--station-setting" help:"station setting"`
	Country        []string `arg:"--country" help:"country names"`
	Component      []string `arg:"--component" help:"measured components"`
	Matrix         []string `arg:"--matrix" help:"matrices"`
	Stat           []string `arg:"--stat" help:"statistics"`
	St             string   `arg:"--st" help:"window start, RFC 3339 or YYYY-MM-DD"`
	Ed             string   `arg:"--ed" help:"window end, RFC 3339 or YYYY-MM-DD"`

	Codes  bool   `arg:"--codes" help:"keep categorical columns as dictionary codes"`
	Output string `arg:"-o,--output" help:"write the CSV to this file instead of stdout"`
}

// Condition converts the flags into a query condition.
func (c *QueryCmd) Condition() (query.Condition, error) {
	raw := make(map[string][]string)
	lists := map[string][]string{
		"id":              c.ID,
		"name":            c.Name,
		"land_use":        c.LandUse,
		"station_setting": c.StationSetting,
		"country":         c.Country,
		"component":       c.Component,
		"matrix":          c.Matrix,
		"stat":            c.Stat,
	}
	for k, v := range lists {
		if v != nil {
			raw[k] = v
		}
	}
	if c.St != "" {
		raw["st"] = []string{c.St}
	}
	if c.Ed != "" {
		raw["ed"] = []string{c.Ed}
	}
	return query.ParseCondition(raw)
}

// Execute loads the database and writes the joined table.
func (c *QueryCmd) Execute(ctx context.Context, d *db.Database) error {
	cond, err := c.Condition()
	if err != nil {
		return err
	}
	if err := d.Init(ctx); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	table, err := d.Query(cond, !c.Codes)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if table.Empty() {
		fmt.Fprintln(os.Stderr, "No data matches the query.")
		return nil
	}

	var w io.Writer = os.Stdout
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", c.Output, err)
		}
		defer f.Close()
		w = f
	}
	if err := table.WriteCSV(w); err != nil {
		return err
	}
	if c.Output != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d rows to %s\n", table.Len(), c.Output)
	}
	return nil
}

// OverviewCmd prints the database overview.
type OverviewCmd struct{}

// Execute loads the database and prints its overview.
func (c *OverviewCmd) Execute(ctx context.Context, d *db.Database) error {
	if err := d.Init(ctx); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	return printOverview(d)
}

// ExportCmd writes value_index.json and site_index.json.
type ExportCmd struct {
	Dir string `arg:"positional,required" help:"output directory"`
}

// Execute loads the database and exports its index.
func (c *ExportCmd) Execute(ctx context.Context, d *db.Database) error {
	if err := d.Init(ctx); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	if err := d.Export(ctx, c.Dir); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	fmt.Printf("Exported index to %s\n", c.Dir)
	return nil
}

func printOverview(d *db.Database) error {
	o, err := d.Overview()
	if err != nil {
		return err
	}
	fmt.Println(o.String())
	return nil
}
