// Package controls defines the dashboard's input controls, the ControlState
// record they make up, and the typed change events that mutate it.
package controls

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iwvelando/sire-dashboard/internal/dataset"
	"github.com/iwvelando/sire-dashboard/pkg/mathutil"
)

var (
	// ErrUnknownControl is returned for an event naming no known control.
	ErrUnknownControl = errors.New("unknown control")

	// ErrInvalidValue is returned when an event value has the wrong type or
	// lies outside the control's enumeration.
	ErrInvalidValue = errors.New("invalid control value")
)

// ID identifies a control.
type ID string

// Control identifiers.
const (
	View      ID = "view"
	Mode      ID = "mode"
	Search    ID = "search"
	Selection ID = "selection"
	MinFoals  ID = "min_foals"
	YearRange ID = "years_active"
)

// All lists every control in display order.
var All = []ID{View, Mode, Search, Selection, MinFoals, YearRange}

// DataMode chooses whether price outliers are kept in the sale table.
type DataMode string

// Data modes.
const (
	ExcludingOutliers DataMode = "excluding-outliers"
	Full              DataMode = "full"
)

// ParseMode validates a data-mode value.
func ParseMode(s string) (DataMode, error) {
	switch DataMode(s) {
	case ExcludingOutliers, Full:
		return DataMode(s), nil
	}
	return "", fmt.Errorf("%w: mode %q, expected %s or %s", ErrInvalidValue, s, ExcludingOutliers, Full)
}

// Range is an inclusive years-active interval.
type Range struct {
	Lo int `json:"lo" yaml:"lo"`
	Hi int `json:"hi" yaml:"hi"`
}

// Empty reports whether no integer lies inside the range.
func (r Range) Empty() bool { return r.Lo > r.Hi }

// Clamp moves both ends into the data bounds. An inverted range stays inverted.
func (r Range) Clamp(b dataset.Bounds) Range {
	return Range{Lo: mathutil.Clamp(r.Lo, b.Min, b.Max), Hi: mathutil.Clamp(r.Hi, b.Min, b.Max)}
}

// State is the current value of every control. The active view is stored as
// a plain string here; the view package owns the set of valid identifiers.
type State struct {
	View      string   `json:"view" yaml:"view"`
	Mode      DataMode `json:"mode" yaml:"mode"`
	Search    string   `json:"search" yaml:"search"`
	Selection []string `json:"selection" yaml:"selection"`
	MinFoals  int      `json:"min_foals" yaml:"min_foals"`
	YearRange Range    `json:"years_active" yaml:"years_active"`
}

// Defaults returns the startup state: no view, outliers excluded, no search,
// no sire filter, the given foal threshold and the full years-active range.
func Defaults(minFoals int, years dataset.Bounds) State {
	return State{
		Mode:      ExcludingOutliers,
		MinFoals:  minFoals,
		YearRange: Range{Lo: years.Min, Hi: years.Max},
	}
}

// Clone returns a deep copy so a pipeline run never shares the selection
// slice with later mutations.
func (s State) Clone() State {
	c := s
	c.Selection = append([]string(nil), s.Selection...)
	return c
}

// Get returns the current value of a control.
func (s State) Get(id ID) (interface{}, error) {
	switch id {
	case View:
		return s.View, nil
	case Mode:
		return s.Mode, nil
	case Search:
		return s.Search, nil
	case Selection:
		return append([]string(nil), s.Selection...), nil
	case MinFoals:
		return s.MinFoals, nil
	case YearRange:
		return s.YearRange, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownControl, id)
}

// ParseID validates a control identifier.
func ParseID(s string) (ID, error) {
	id := ID(strings.TrimSpace(s))
	for _, known := range All {
		if id == known {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownControl, s)
}
