package controls

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/iwvelando/sire-dashboard/internal/dataset"
)

// Event records one control mutation.
type Event struct {
	Control ID          `json:"control"`
	Old     interface{} `json:"old"`
	New     interface{} `json:"new"`
}

// Changed reports whether the mutation altered the stored value.
func (e Event) Changed() bool {
	return !reflect.DeepEqual(e.Old, e.New)
}

// Registry owns the ControlState. It is not safe for concurrent use; the
// orchestrator serializes access.
type Registry struct {
	state State
	years dataset.Bounds
	views map[string]struct{}
}

// NewRegistry creates a registry holding defaults. views lists the accepted
// view identifiers; the unset view "" is always accepted.
func NewRegistry(defaults State, years dataset.Bounds, views []string) *Registry {
	known := map[string]struct{}{"": {}}
	for _, v := range views {
		known[v] = struct{}{}
	}
	r := &Registry{state: defaults.Clone(), years: years, views: known}
	r.state.YearRange = r.state.YearRange.Clamp(years)
	return r
}

// State returns a copy of the current ControlState.
func (r *Registry) State() State { return r.state.Clone() }

// YearBounds returns the bounds the years-active range is clamped to.
func (r *Registry) YearBounds() dataset.Bounds { return r.years }

// Set coerces raw into the control's type, validates it and stores it. On
// error the state is left untouched.
func (r *Registry) Set(id ID, raw interface{}) (Event, error) {
	old, err := r.state.Get(id)
	if err != nil {
		return Event{}, err
	}

	next := r.state.Clone()
	switch id {
	case View:
		v, err := coerceString(raw)
		if err != nil {
			return Event{}, wrapValue(id, err)
		}
		if _, ok := r.views[v]; !ok {
			return Event{}, fmt.Errorf("%w: unknown view %q", ErrInvalidValue, v)
		}
		next.View = v
	case Mode:
		v, err := coerceString(raw)
		if err != nil {
			return Event{}, wrapValue(id, err)
		}
		mode, err := ParseMode(v)
		if err != nil {
			return Event{}, err
		}
		next.Mode = mode
	case Search:
		v, err := coerceString(raw)
		if err != nil {
			return Event{}, wrapValue(id, err)
		}
		next.Search = v
	case Selection:
		v, err := coerceStrings(raw)
		if err != nil {
			return Event{}, wrapValue(id, err)
		}
		next.Selection = dedupe(v)
	case MinFoals:
		v, err := coerceInt(raw)
		if err != nil {
			return Event{}, wrapValue(id, err)
		}
		next.MinFoals = v
	case YearRange:
		v, err := coerceRange(raw)
		if err != nil {
			return Event{}, wrapValue(id, err)
		}
		next.YearRange = v.Clamp(r.years)
	}

	r.state = next
	current, _ := r.state.Get(id)
	return Event{Control: id, Old: old, New: current}, nil
}

func wrapValue(id ID, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidValue, id, err)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func coerceString(raw interface{}) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case DataMode:
		return string(v), nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("expected string, got %T", raw)
}

func coerceStrings(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return append([]string(nil), v...), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return []string{}, nil
		}
		return []string{v}, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d: expected string, got %T", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected list of strings, got %T", raw)
}

func coerceInt(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, fmt.Errorf("expected integer, got %v", v)
		}
		return int(v), nil
	case json.Number:
		n, err := strconv.Atoi(v.String())
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %s", v)
		}
		return n, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("expected integer, got %T", raw)
}

// coerceRange accepts a Range, a two-element list, or an object with lo/hi keys.
func coerceRange(raw interface{}) (Range, error) {
	switch v := raw.(type) {
	case Range:
		return v, nil
	case []int:
		if len(v) != 2 {
			return Range{}, fmt.Errorf("expected two bounds, got %d", len(v))
		}
		return Range{Lo: v[0], Hi: v[1]}, nil
	case []interface{}:
		if len(v) != 2 {
			return Range{}, fmt.Errorf("expected two bounds, got %d", len(v))
		}
		lo, err := coerceInt(v[0])
		if err != nil {
			return Range{}, err
		}
		hi, err := coerceInt(v[1])
		if err != nil {
			return Range{}, err
		}
		return Range{Lo: lo, Hi: hi}, nil
	case map[string]interface{}:
		loRaw, okLo := v["lo"]
		hiRaw, okHi := v["hi"]
		if !okLo || !okHi {
			return Range{}, fmt.Errorf("expected lo and hi keys")
		}
		lo, err := coerceInt(loRaw)
		if err != nil {
			return Range{}, err
		}
		hi, err := coerceInt(hiRaw)
		if err != nil {
			return Range{}, err
		}
		return Range{Lo: lo, Hi: hi}, nil
	}
	return Range{}, fmt.Errorf("expected range, got %T", raw)
}
