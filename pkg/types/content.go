package types

import (
	"encoding/json"
	"fmt"
	"math"
)

// Labels holds the raw categorical values of a content entry.
type Labels struct {
	Site      string `json:"site" yaml:"site"`
	Matrix    string `json:"matrix" yaml:"matrix"`
	Unit      string `json:"unit" yaml:"unit"`
	Component string `json:"component" yaml:"component"`
	ResCode   string `json:"res_code" yaml:"res_code"`
	Meta      string `json:"meta" yaml:"meta"`
}

// Codes holds the dictionary codes of a content entry's categorical values.
type Codes struct {
	Site      int32 `json:"site" yaml:"site"`
	Matrix    int32 `json:"matrix" yaml:"matrix"`
	Unit      int32 `json:"unit" yaml:"unit"`
	Component int32 `json:"component" yaml:"component"`
	ResCode   int32 `json:"res_code" yaml:"res_code"`
	Meta      int32 `json:"meta" yaml:"meta"`
}

// ContentEntry describes one measured variable within a file.
//
// Before dictionary encoding the categorical values live in Labels. Encoding
// moves them into Codes and clears Labels; Encoded reports which half is
// authoritative. An entry is always switched as a whole.
type ContentEntry struct {
	// Var is the variable name inside the raw container
	Var string `json:"var" yaml:"var"`

	// Stat is the statistic type, e.g. "arithmetic mean"
	Stat string `json:"stat" yaml:"stat"`

	// St and Ed bound the entry's time coverage (inclusive)
	St Timestamp `json:"st" yaml:"st"`
	Ed Timestamp `json:"ed" yaml:"ed"`

	Labels  Labels `json:"labels" yaml:"labels"`
	Codes   Codes  `json:"codes" yaml:"codes"`
	Encoded bool   `json:"encoded" yaml:"encoded"`
}

// Validate checks the time bound invariant of the entry.
func (e *ContentEntry) Validate() error {
	if e.St > e.Ed {
		return fmt.Errorf("types: entry %q has start %d after end %d", e.Var, e.St, e.Ed)
	}
	return nil
}

// Header is the per-record metadata kept in a site's content index. It
// mirrors an encoded ContentEntry plus the file it came from.
type Header struct {
	ID    int       `json:"id"`
	File  string    `json:"file"`
	Var   string    `json:"var"`
	Stat  string    `json:"stat"`
	St    Timestamp `json:"st"`
	Ed    Timestamp `json:"ed"`
	Codes Codes     `json:"codes"`
}

// NewHeader builds the content index header for an encoded entry.
func NewHeader(id int, file string, e *ContentEntry) Header {
	return Header{
		ID:    id,
		File:  file,
		Var:   e.Var,
		Stat:  e.Stat,
		St:    e.St,
		Ed:    e.Ed,
		Codes: e.Codes,
	}
}

// Bound is a [start, end) time bound of one observation.
type Bound [2]Timestamp

// Start returns the inclusive start of the bound.
func (b Bound) Start() Timestamp { return b[0] }

// End returns the exclusive end of the bound.
func (b Bound) End() Timestamp { return b[1] }

// Payload is the time series of one content index entry. TS and Val are
// always the same length; missing or invalid observations are NaN in Val.
type Payload struct {
	TS  []Bound   `json:"ts"`
	Val []float64 `json:"val"`
}

// Missing is the marker stored for observations that failed quality control.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v is the missing-value marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Len returns the number of observations in the payload.
func (p *Payload) Len() int { return len(p.TS) }

// Validate checks that the time bounds and the values line up.
func (p *Payload) Validate() error {
	if len(p.TS) != len(p.Val) {
		return fmt.Errorf("types: payload has %d time bounds but %d values", len(p.TS), len(p.Val))
	}
	return nil
}

// MarshalJSON writes missing values as null. JSON has no NaN.
func (p Payload) MarshalJSON() ([]byte, error) {
	val := make([]*float64, len(p.Val))
	for i := range p.Val {
		if !IsMissing(p.Val[i]) {
			val[i] = &p.Val[i]
		}
	}
	return json.Marshal(struct {
		TS  []Bound    `json:"ts"`
		Val []*float64 `json:"val"`
	}{p.TS, val})
}

// attr returns the raw value of a named attribute.
func (e *ContentEntry) attr(name string) (string, bool) {
	switch name {
	case "stat":
		return e.Stat, true
	case "var":
		return e.Var, true
	}
	if e.Encoded {
		return "", false
	}
	switch name {
	case "site":
		return e.Labels.Site, true
	case "matrix":
		return e.Labels.Matrix, true
	case "unit":
		return e.Labels.Unit, true
	case "component":
		return e.Labels.Component, true
	case "res_code":
		return e.Labels.ResCode, true
	case "meta":
		return e.Labels.Meta, true
	}
	return "", false
}
