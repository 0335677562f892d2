// Package pipeline holds the pure functions that turn the base tables and
// the current control values into filtered views and derived aggregates.
// Nothing here mutates its inputs or keeps state between calls.
package pipeline

import (
	"github.com/iwvelando/sire-dashboard/internal/controls"
	"github.com/iwvelando/sire-dashboard/internal/dataset"
)

// FilterSales applies the data-mode filter, then the sire-membership filter.
// threshold is the outlier price computed once over the full sale table; in
// excluding-outliers mode rows priced above it are dropped. An empty
// selection passes every sire. Row order is preserved.
func FilterSales(records []dataset.SaleRecord, mode controls.DataMode, threshold float64, selected []string) []dataset.SaleRecord {
	var members map[string]struct{}
	if len(selected) > 0 {
		members = make(map[string]struct{}, len(selected))
		for _, s := range selected {
			members[s] = struct{}{}
		}
	}

	out := make([]dataset.SaleRecord, 0, len(records))
	for _, rec := range records {
		if mode == controls.ExcludingOutliers && rec.Price > threshold {
			continue
		}
		if members != nil {
			if _, ok := members[rec.Sire]; !ok {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

// FilterSires keeps rows with foals_per_year >= minFoals and years_active
// inside the inclusive years range. An inverted range yields no rows.
func FilterSires(summary []dataset.SireSummary, minFoals int, years controls.Range) []dataset.SireSummary {
	out := make([]dataset.SireSummary, 0, len(summary))
	if years.Empty() {
		return out
	}
	window := dataset.Bounds{Min: years.Lo, Max: years.Hi}
	floor := float64(minFoals)
	for _, s := range summary {
		if s.FoalsPerYear < floor || !window.Contains(s.YearsActive) {
			continue
		}
		out = append(out, s)
	}
	return out
}
