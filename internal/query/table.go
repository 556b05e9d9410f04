package query

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/ebasdb/ebasdb/internal/dictionary"
	errs "github.com/ebasdb/ebasdb/internal/errors"
	"github.com/ebasdb/ebasdb/pkg/types"
)

// Columns are the column names of a joined table.
var Columns = []string{"st", "ed", "val", "site", "component", "unit", "matrix"}

// Row is one observation of a joined table with its categories as codes.
type Row struct {
	St        types.Timestamp
	Ed        types.Timestamp
	Val       float64
	Site      int32
	Component int32
	Unit      int32
	Matrix    int32
}

// RowLabels holds the decoded categories of a row.
type RowLabels struct {
	Site      string
	Component string
	Unit      string
	Matrix    string
}

// Table is the joined result of a query. Labels is parallel to Rows and only
// set when the table was decoded.
type Table struct {
	Rows   []Row
	Labels []RowLabels
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Empty reports whether the query produced no rows.
func (t *Table) Empty() bool { return len(t.Rows) == 0 }

// Decoded reports whether the table carries decoded labels.
func (t *Table) Decoded() bool { return t.Labels != nil }

// Join fetches the time series of every selected record, keeps the rows
// whose bound lies inside the selection window and stacks them into one
// table. When decode is set the category codes are resolved through the
// dictionary. An empty selection gives an empty table.
func (e *Engine) Join(sel *Selection, decode bool) (*Table, error) {
	t := &Table{}
	if decode {
		t.Labels = []RowLabels{}
	}
	for _, site := range sel.SiteIDs() {
		hs, ps := e.headers[site], e.payloads[site]
		for _, id := range sel.IDs(site) {
			if id >= len(hs) || id >= len(ps) {
				return nil, errs.NewInternalError(fmt.Sprintf("query: record %d of %s is not loaded", id, site), nil)
			}
			h, p := &hs[id], &ps[id]

			var labels RowLabels
			if decode {
				l, err := e.decodeHeader(h)
				if err != nil {
					return nil, err
				}
				labels = l
			}

			for i, b := range p.TS {
				if !contains(b, sel.St, sel.Ed) {
					continue
				}
				t.Rows = append(t.Rows, Row{
					St:        b.Start(),
					Ed:        b.End(),
					Val:       p.Val[i],
					Site:      h.Codes.Site,
					Component: h.Codes.Component,
					Unit:      h.Codes.Unit,
					Matrix:    h.Codes.Matrix,
				})
				if decode {
					t.Labels = append(t.Labels, labels)
				}
			}
		}
	}
	return t, nil
}

func (e *Engine) decodeHeader(h *types.Header) (RowLabels, error) {
	var l RowLabels
	fields := []struct {
		domain dictionary.Domain
		code   int32
		dst    *string
	}{
		{dictionary.DomainSite, h.Codes.Site, &l.Site},
		{dictionary.DomainComponent, h.Codes.Component, &l.Component},
		{dictionary.DomainUnit, h.Codes.Unit, &l.Unit},
		{dictionary.DomainMatrix, h.Codes.Matrix, &l.Matrix},
	}
	for _, f := range fields {
		v, err := e.dict.Decode(f.domain, f.code)
		if err != nil {
			return RowLabels{}, err
		}
		*f.dst = v
	}
	return l, nil
}

// contains is the row trim test: the whole bound must lie in the window.
func contains(b types.Bound, st, ed *types.Timestamp) bool {
	if st != nil && b.Start() < *st {
		return false
	}
	if ed != nil && b.End() > *ed {
		return false
	}
	return true
}

type csvRow struct {
	St        string `csv:"st"`
	Ed        string `csv:"ed"`
	Val       string `csv:"val"`
	Site      string `csv:"site"`
	Component string `csv:"component"`
	Unit      string `csv:"unit"`
	Matrix    string `csv:"matrix"`
}

// WriteCSV writes the table with RFC 3339 times. Missing values are empty
// cells; categories are labels when decoded and codes otherwise.
func (t *Table) WriteCSV(w io.Writer) error {
	rows := make([]csvRow, len(t.Rows))
	for i, r := range t.Rows {
		row := csvRow{
			St:  formatTime(r.St),
			Ed:  formatTime(r.Ed),
			Val: formatValue(r.Val),
		}
		if t.Decoded() {
			l := t.Labels[i]
			row.Site, row.Component, row.Unit, row.Matrix = l.Site, l.Component, l.Unit, l.Matrix
		} else {
			row.Site = strconv.Itoa(int(r.Site))
			row.Component = strconv.Itoa(int(r.Component))
			row.Unit = strconv.Itoa(int(r.Unit))
			row.Matrix = strconv.Itoa(int(r.Matrix))
		}
		rows[i] = row
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("query: failed to write csv: %w", err)
	}
	return nil
}

func formatTime(ts types.Timestamp) string {
	return time.Unix(0, ts).UTC().Format(time.RFC3339Nano)
}

func formatValue(v float64) string {
	if types.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
