// Package view defines the dashboard's views: which controls each depends
// on, which pipeline stages it runs, and the render-ready Artifact it yields.
package view

import (
	"fmt"
	"math"
)

// ChartKind names the chart a render sink should draw.
type ChartKind string

// Chart kinds.
const (
	Box     ChartKind = "box"
	Scatter ChartKind = "scatter"
	Line    ChartKind = "line"
)

// Chart carries the drawing parameters handed to the render sink.
type Chart struct {
	Kind       ChartKind   `json:"kind" yaml:"kind"`
	Title      string      `json:"title" yaml:"title"`
	X          string      `json:"x" yaml:"x"`
	Y          string      `json:"y" yaml:"y"`
	Size       string      `json:"size,omitempty" yaml:"size,omitempty"`
	Color      string      `json:"color,omitempty" yaml:"color,omitempty"`
	HoverName  string      `json:"hoverName,omitempty" yaml:"hoverName,omitempty"`
	Hover      []string    `json:"hover,omitempty" yaml:"hover,omitempty"`
	XTitle     string      `json:"xTitle,omitempty" yaml:"xTitle,omitempty"`
	YTitle     string      `json:"yTitle,omitempty" yaml:"yTitle,omitempty"`
	YRange     *[2]float64 `json:"yRange,omitempty" yaml:"yRange,omitempty"`
	ColorScale string      `json:"colorScale,omitempty" yaml:"colorScale,omitempty"`
	Markers    bool        `json:"markers,omitempty" yaml:"markers,omitempty"`
}

// Table is a column-named row set.
type Table struct {
	Columns []string        `json:"columns" yaml:"columns"`
	Rows    [][]interface{} `json:"rows" yaml:"rows"`
}

// Index returns the position of the named column, or -1.
func (t Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Floats extracts a numeric column.
func (t Table) Floats(column string) ([]float64, error) {
	idx := t.Index(column)
	if idx < 0 {
		return nil, fmt.Errorf("unknown column %q", column)
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		switch v := row[idx].(type) {
		case float64:
			out[i] = v
		case int:
			out[i] = float64(v)
		default:
			return nil, fmt.Errorf("column %q row %d: expected number, got %T", column, i, row[idx])
		}
	}
	return out, nil
}

// Strings extracts a column as text.
func (t Table) Strings(column string) ([]string, error) {
	idx := t.Index(column)
	if idx < 0 {
		return nil, fmt.Errorf("unknown column %q", column)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		switch v := row[idx].(type) {
		case string:
			out[i] = v
		case float64:
			if v == math.Trunc(v) {
				out[i] = fmt.Sprintf("%.0f", v)
			} else {
				out[i] = fmt.Sprintf("%g", v)
			}
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out, nil
}

// Artifact is one redraw's output. It is built from a ControlState snapshot
// and never reused for a later redraw.
type Artifact struct {
	Seq     uint64 `json:"seq" yaml:"seq"`
	View    ID     `json:"view" yaml:"view"`
	Chart   Chart  `json:"chart" yaml:"chart"`
	Table   Table  `json:"table" yaml:"table"`
	Empty   bool   `json:"empty" yaml:"empty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}
