package query

import (
	"fmt"
	"strings"
	"time"

	errs "github.com/ebasdb/ebasdb/internal/errors"
	"github.com/ebasdb/ebasdb/pkg/types"
)

// Condition is a query. A nil list means the predicate is absent; a non-nil
// list, even an empty one, must be matched.
type Condition struct {
	// Site predicates
	ID             []string `json:"id,omitempty" yaml:"id,omitempty"`
	Name           []string `json:"name,omitempty" yaml:"name,omitempty"`
	LandUse        []string `json:"land_use,omitempty" yaml:"land_use,omitempty"`
	StationSetting []string `json:"station_setting,omitempty" yaml:"station_setting,omitempty"`
	Country        []string `json:"country,omitempty" yaml:"country,omitempty"`

	// Measurement predicates. Component and matrix are translated through
	// the dictionary; stat is compared as a raw string.
	Component []string `json:"component,omitempty" yaml:"component,omitempty"`
	Matrix    []string `json:"matrix,omitempty" yaml:"matrix,omitempty"`
	Stat      []string `json:"stat,omitempty" yaml:"stat,omitempty"`

	// Temporal predicates
	St *types.Timestamp `json:"st,omitempty" yaml:"st,omitempty"`
	Ed *types.Timestamp `json:"ed,omitempty" yaml:"ed,omitempty"`
}

// Validate rejects a window that ends before it starts.
func (c *Condition) Validate() error {
	if c.St != nil && c.Ed != nil && *c.St > *c.Ed {
		return errs.NewValidationError(errs.CodeInvalidCondition,
			fmt.Sprintf("query: st %d is after ed %d", *c.St, *c.Ed))
	}
	return nil
}

// timeLayouts are tried in order when parsing st and ed.
var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// ParseTime parses an RFC 3339 timestamp or a plain date, in UTC.
func ParseTime(s string) (types.Timestamp, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixNano(), nil
		}
	}
	return 0, errs.NewValidationError(errs.CodeInvalidCondition, fmt.Sprintf("query: cannot parse time %q", s))
}

// ParseCondition builds a condition from loose key/values pairs such as
// query strings or CLI flags. Unknown keys are ignored. st and ed take a
// single time value.
func ParseCondition(raw map[string][]string) (Condition, error) {
	var c Condition
	for key, values := range raw {
		if values == nil {
			values = []string{}
		}
		switch strings.ToLower(key) {
		case "id", "site":
			c.ID = values
		case "name":
			c.Name = values
		case "land_use":
			c.LandUse = values
		case "station_setting":
			c.StationSetting = values
		case "country":
			c.Country = values
		case "component":
			c.Component = values
		case "matrix":
			c.Matrix = values
		case "stat":
			c.Stat = values
		case "st", "ed":
			if len(values) != 1 {
				return Condition{}, errs.NewValidationError(errs.CodeInvalidCondition,
					fmt.Sprintf("query: %s takes exactly one value", key))
			}
			ts, err := ParseTime(values[0])
			if err != nil {
				return Condition{}, err
			}
			if strings.EqualFold(key, "st") {
				c.St = &ts
			} else {
				c.Ed = &ts
			}
		}
	}
	if err := c.Validate(); err != nil {
		return Condition{}, err
	}
	return c, nil
}

// Predicates returns the present predicates keyed by condition key. Times
// are rendered in RFC 3339.
func (c *Condition) Predicates() map[string][]string {
	out := make(map[string][]string)
	lists := []struct {
		key    string
		values []string
	}{
		{"id", c.ID},
		{"name", c.Name},
		{"land_use", c.LandUse},
		{"station_setting", c.StationSetting},
		{"country", c.Country},
		{"component", c.Component},
		{"matrix", c.Matrix},
		{"stat", c.Stat},
	}
	for _, l := range lists {
		if l.values != nil {
			out[l.key] = l.values
		}
	}
	if c.St != nil {
		out["st"] = []string{formatTime(*c.St)}
	}
	if c.Ed != nil {
		out["ed"] = []string{formatTime(*c.Ed)}
	}
	return out
}
