package view

import (
	"errors"
	"fmt"

	"github.com/iwvelando/sire-dashboard/internal/controls"
	"github.com/iwvelando/sire-dashboard/internal/dataset"
	"github.com/iwvelando/sire-dashboard/internal/pipeline"
	"github.com/iwvelando/sire-dashboard/pkg/constants"
)

// ID identifies a view.
type ID string

// View identifiers. Unset renders nothing.
const (
	Unset           ID = ""
	SalesBox        ID = "sales-box"
	SireScatter     ID = "sire-scatter"
	CorrelationLine ID = "correlation-line"
)

// Definition describes one view.
type Definition struct {
	ID    ID
	Label string
	// DependsOn lists the controls whose changes make this view stale.
	DependsOn []controls.ID
	// UsesSireSelection marks views fed by the sire multi-select, whose
	// options must be re-resolved when the search text changes. The search
	// itself only makes such a view stale through the selection it prunes.
	UsesSireSelection bool
	build             func(*dataset.Store, controls.State) (Artifact, error)
}

// Depends reports whether a change to id makes the view stale.
func (d Definition) Depends(id controls.ID) bool {
	if id == controls.View {
		return true
	}
	for _, dep := range d.DependsOn {
		if dep == id {
			return true
		}
	}
	return false
}

// Build runs the view's pipeline against a state snapshot.
func (d Definition) Build(store *dataset.Store, state controls.State) (Artifact, error) {
	if d.build == nil {
		return Artifact{}, fmt.Errorf("view %q has no pipeline", d.ID)
	}
	artifact, err := d.build(store, state)
	if err != nil {
		return Artifact{}, err
	}
	artifact.View = d.ID
	if len(artifact.Table.Rows) == 0 {
		artifact.Empty = true
		artifact.Message = constants.EmptyMessage
	}
	return artifact, nil
}

var definitions = []Definition{
	{
		ID:                SalesBox,
		Label:             "Box Plot: Yearly Sales by Sire",
		DependsOn:         []controls.ID{controls.Mode, controls.Selection},
		UsesSireSelection: true,
		build:             buildSalesBox,
	},
	{
		ID:        SireScatter,
		Label:     "Scatter Plot: Sire Performance",
		DependsOn: []controls.ID{controls.MinFoals, controls.YearRange},
		build:     buildSireScatter,
	},
	{
		ID:        CorrelationLine,
		Label:     "Line Plot: Correlation Over Years Active",
		DependsOn: []controls.ID{controls.MinFoals, controls.YearRange},
		build:     buildCorrelationLine,
	},
}

// Definitions returns every selectable view in display order.
func Definitions() []Definition {
	return append([]Definition(nil), definitions...)
}

// IDs returns the identifiers of every selectable view.
func IDs() []string {
	ids := make([]string, 0, len(definitions))
	for _, d := range definitions {
		ids = append(ids, string(d.ID))
	}
	return ids
}

// Lookup finds a view by identifier. The unset view is not found.
func Lookup(id string) (Definition, bool) {
	for _, d := range definitions {
		if string(d.ID) == id {
			return d, true
		}
	}
	return Definition{}, false
}

func buildSalesBox(store *dataset.Store, state controls.State) (Artifact, error) {
	rows := pipeline.FilterSales(store.Sales(), state.Mode, store.OutlierThreshold(), state.Selection)

	table := Table{Columns: []string{"sale_year", "price", "sire", "description", "purchaser"}}
	table.Rows = make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		table.Rows = append(table.Rows, []interface{}{r.SaleYear, r.Price, r.Sire, r.Description, r.Purchaser})
	}

	return Artifact{
		Chart: Chart{
			Kind:   Box,
			Title:  "Keeneland Sept Yearling Sales by Sire",
			X:      "sale_year",
			Y:      "price",
			Hover:  []string{"sire", "description", "purchaser"},
			XTitle: "sale_year",
			YTitle: "Price",
		},
		Table: table,
	}, nil
}

func sireColumns() []string {
	return []string{"sire", "gini_coefficient", "median_price", "avg_price", "foals_per_year", "years_active"}
}

func buildSireScatter(store *dataset.Store, state controls.State) (Artifact, error) {
	rows := pipeline.FilterSires(store.Sires(), state.MinFoals, state.YearRange)

	table := Table{Columns: sireColumns()}
	table.Rows = make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		table.Rows = append(table.Rows, []interface{}{r.Sire, r.GiniCoefficient, r.MedianPrice, r.AvgPrice, r.FoalsPerYear, r.YearsActive})
	}

	return Artifact{
		Chart: Chart{
			Kind:       Scatter,
			Title:      "Sire scatter (interactive thresholds)",
			X:          "gini_coefficient",
			Y:          "median_price",
			Size:       "foals_per_year",
			Color:      "foals_per_year",
			HoverName:  "sire",
			XTitle:     "gini_coef",
			YTitle:     "median_price",
			ColorScale: "plasma",
		},
		Table: table,
	}, nil
}

func buildCorrelationLine(store *dataset.Store, state controls.State) (Artifact, error) {
	rows := pipeline.FilterSires(store.Sires(), state.MinFoals, state.YearRange)

	table := Table{Columns: []string{"years_active", "corr", "sires"}, Rows: [][]interface{}{}}
	corr, err := pipeline.CorrelationByYear(rows)
	if err != nil && !errors.Is(err, pipeline.ErrNoData) {
		return Artifact{}, err
	}
	for _, c := range corr {
		table.Rows = append(table.Rows, []interface{}{c.YearsActive, c.Correlation, c.Sires})
	}

	return Artifact{
		Chart: Chart{
			Kind:    Line,
			Title:   "Correlation (gini coef ↔ median price) by years active",
			X:       "years_active",
			Y:       "corr",
			XTitle:  "Years active",
			YTitle:  "Correlation [-1,1]",
			YRange:  &[2]float64{-1, 1},
			Markers: true,
		},
		Table: table,
	}, nil
}
