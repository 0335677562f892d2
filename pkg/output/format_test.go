package output

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/iwvelando/sire-dashboard/internal/controls"
	"github.com/iwvelando/sire-dashboard/internal/view"
	"github.com/iwvelando/sire-dashboard/pkg/constants"
)

func sampleReport() Report {
	return Report{
		State: controls.State{
			View:      "sales-box",
			Mode:      controls.ExcludingOutliers,
			Search:    "ta",
			Selection: []string{"Tapit"},
			MinFoals:  10,
			YearRange: controls.Range{Lo: 3, Hi: 8},
		},
		Artifact: view.Artifact{
			Seq:   3,
			View:  view.SalesBox,
			Chart: view.Chart{Kind: view.Box, Title: "Keeneland Sept Yearling Sales by Sire"},
			Table: view.Table{
				Columns: []string{"sale_year", "price", "sire", "description", "purchaser"},
				Rows: [][]interface{}{
					{2021, 400000.0, "Tapit", "gr c", "Godolphin"},
					{2023, 1250000.0, "Tapit", "ro f", "Shadwell, Ltd"},
				},
			},
		},
	}
}

func TestPrettyFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := PrettyFormat(&buf, sampleReport()); err != nil {
		t.Fatalf("PrettyFormat() error = %v", err)
	}
	output := buf.String()

	expected := []string{
		"--- Keeneland Sept Yearling Sales by Sire (seq 3) ---",
		"view=sales-box mode=excluding-outliers min_foals=10 years_active=3-8",
		`search="ta"`,
		"selection=Tapit",
		"sale_year | price",
		"$1,250,000",
		"$400,000",
		"2021",
		"2 rows",
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("PrettyFormat output missing %q:\n%s", want, output)
		}
	}
	if strings.Contains(output, "2,021") {
		t.Errorf("sale years should not be grouped:\n%s", output)
	}
}

func TestPrettyFormatEmpty(t *testing.T) {
	report := sampleReport()
	report.Artifact.Empty = true
	report.Artifact.Message = constants.EmptyMessage
	report.Artifact.Table.Rows = nil

	var buf bytes.Buffer
	if err := PrettyFormat(&buf, report); err != nil {
		t.Fatalf("PrettyFormat() error = %v", err)
	}
	if !strings.Contains(buf.String(), constants.EmptyMessage) {
		t.Errorf("expected empty message, got:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "rows") {
		t.Errorf("empty output should not print a table:\n%s", buf.String())
	}
}

func TestCsvFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := CsvFormat(&buf, sampleReport()); err != nil {
		t.Fatalf("CsvFormat() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(records))
	}
	if records[0][1] != "price" {
		t.Errorf("expected price header, got %q", records[0][1])
	}
	if records[2][1] != "1250000" {
		t.Errorf("unexpected price cell %q", records[2][1])
	}
	if records[2][4] != "Shadwell, Ltd" {
		t.Errorf("expected quoted purchaser to round-trip, got %q", records[2][4])
	}
}

func TestYamlFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := YamlFormat(&buf, sampleReport()); err != nil {
		t.Fatalf("YamlFormat() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid yaml: %v", err)
	}
	state, ok := decoded["state"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing state section:\n%s", buf.String())
	}
	if state["view"] != "sales-box" {
		t.Errorf("expected view sales-box, got %v", state["view"])
	}
	artifact, ok := decoded["artifact"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing artifact section:\n%s", buf.String())
	}
	if artifact["seq"] != 3 {
		t.Errorf("expected seq 3, got %v", artifact["seq"])
	}
}
