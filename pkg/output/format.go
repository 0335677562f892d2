// Package output provides utilities for formatting and displaying a rendered view.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/iwvelando/sire-dashboard/internal/controls"
	"github.com/iwvelando/sire-dashboard/internal/view"
)

// Report is one rendered view with the control values that produced it.
type Report struct {
	State    controls.State `yaml:"state"`
	Options  []string       `yaml:"options,omitempty"`
	Artifact view.Artifact  `yaml:"artifact"`
}

var priceColumns = map[string]bool{
	"price":        true,
	"median_price": true,
	"avg_price":    true,
}

func formatCell(p *message.Printer, column string, value interface{}) string {
	switch v := value.(type) {
	case float64:
		if priceColumns[column] {
			return p.Sprintf("$%.0f", v)
		}
		return p.Sprintf("%.3f", v)
	case int:
		if strings.HasSuffix(column, "year") {
			return fmt.Sprintf("%d", v)
		}
		return p.Sprintf("%d", v)
	case string:
		return v
	}
	return fmt.Sprint(value)
}

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(w io.Writer, report Report) error {
	p := message.NewPrinter(language.English)
	a := report.Artifact
	st := report.State

	if _, err := fmt.Fprintf(w, "--- %s (seq %d) ---\n", a.Chart.Title, a.Seq); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "view=%s mode=%s min_foals=%d years_active=%d-%d", st.View, st.Mode, st.MinFoals, st.YearRange.Lo, st.YearRange.Hi)
	if st.Search != "" {
		_, _ = fmt.Fprintf(w, " search=%q", st.Search)
	}
	if len(st.Selection) > 0 {
		_, _ = fmt.Fprintf(w, " selection=%s", strings.Join(st.Selection, ","))
	}
	_, _ = fmt.Fprintf(w, "\n")

	if a.Empty {
		_, err := fmt.Fprintf(w, "%s\n", a.Message)
		return err
	}

	cells := make([][]string, len(a.Table.Rows))
	widths := make([]int, len(a.Table.Columns))
	for i, c := range a.Table.Columns {
		widths[i] = len(c)
	}
	for r, row := range a.Table.Rows {
		cells[r] = make([]string, len(row))
		for i, v := range row {
			cells[r][i] = formatCell(p, a.Table.Columns[i], v)
			widths[i] = max(widths[i], len(cells[r][i]))
		}
	}

	line := func(values []string) string {
		padded := make([]string, len(values))
		for i, v := range values {
			padded[i] = fmt.Sprintf("%-*s", widths[i], v)
		}
		return strings.TrimRight(strings.Join(padded, " | "), " ")
	}
	rules := make([]string, len(widths))
	for i, n := range widths {
		rules[i] = strings.Repeat("_", n)
	}

	_, _ = fmt.Fprintln(w, line(a.Table.Columns))
	_, _ = fmt.Fprintln(w, line(rules))
	for _, row := range cells {
		if _, err := fmt.Fprintln(w, line(row)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d rows\n", len(cells))
	return err
}

// CsvFormat outputs the artifact table in comma-separated value format.
func CsvFormat(w io.Writer, report Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(report.Artifact.Table.Columns); err != nil {
		return err
	}
	record := make([]string, len(report.Artifact.Table.Columns))
	for _, row := range report.Artifact.Table.Rows {
		for i, v := range row {
			switch x := v.(type) {
			case float64:
				record[i] = strconv.FormatFloat(x, 'f', -1, 64)
			default:
				record[i] = fmt.Sprint(x)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// YamlFormat outputs the whole report, state included, as YAML.
func YamlFormat(w io.Writer, report Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return enc.Close()
}
