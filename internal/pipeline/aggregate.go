package pipeline

import (
	"errors"
	"sort"

	"github.com/iwvelando/sire-dashboard/internal/dataset"
	"github.com/iwvelando/sire-dashboard/pkg/mathutil"
)

// ErrNoData is returned by aggregations that have nothing left to report,
// which is distinct from reporting a zero.
var ErrNoData = errors.New("no data after filters")

// YearCorrelation is the gini/median-price correlation of the sires sharing
// one years_active value.
type YearCorrelation struct {
	YearsActive int     `json:"years_active" yaml:"years_active"`
	Correlation float64 `json:"corr" yaml:"corr"`
	Sires       int     `json:"sires" yaml:"sires"`
}

// CorrelationByYear groups rows by years_active and computes the Pearson
// correlation between gini coefficient and median price within each group.
// Groups with fewer than two rows or a constant column are left out. The
// result is ordered by years_active; ErrNoData is returned if it is empty.
func CorrelationByYear(rows []dataset.SireSummary) ([]YearCorrelation, error) {
	type columns struct {
		gini, median []float64
	}
	groups := make(map[int]*columns)
	for _, r := range rows {
		g, ok := groups[r.YearsActive]
		if !ok {
			g = &columns{}
			groups[r.YearsActive] = g
		}
		g.gini = append(g.gini, r.GiniCoefficient)
		g.median = append(g.median, r.MedianPrice)
	}

	out := make([]YearCorrelation, 0, len(groups))
	for years, g := range groups {
		r, ok := mathutil.Pearson(g.gini, g.median)
		if !ok {
			continue
		}
		out = append(out, YearCorrelation{YearsActive: years, Correlation: r, Sires: len(g.gini)})
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}

	sort.Slice(out, func(i, j int) bool { return out[i].YearsActive < out[j].YearsActive })
	return out, nil
}
