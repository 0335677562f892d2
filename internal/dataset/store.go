package dataset

import (
	"fmt"
	"sort"

	"github.com/iwvelando/sire-dashboard/pkg/mathutil"
)

// Store holds the loaded tables and the constants derived from them at load
// time. A Store is never mutated after NewStore returns, so it may be shared
// freely; slices returned by its accessors must be treated as read-only.
type Store struct {
	sales            []SaleRecord
	sires            []SireSummary
	allSires         []string
	outlierQuantile  float64
	outlierThreshold float64
	yearsActive      Bounds
	saleYears        Bounds
}

// NewStore validates both tables and computes the derived constants. The
// outlier threshold is the given price quantile over the full sale table.
func NewStore(sales []SaleRecord, sires []SireSummary, outlierQuantile float64) (*Store, error) {
	if len(sales) == 0 {
		return nil, fmt.Errorf("%w: sale table has no rows", ErrSchema)
	}
	if len(sires) == 0 {
		return nil, fmt.Errorf("%w: sire table has no rows", ErrSchema)
	}
	if outlierQuantile <= 0 || outlierQuantile > 1 {
		return nil, fmt.Errorf("outlier quantile must be in (0, 1], got %v", outlierQuantile)
	}

	prices := make([]float64, len(sales))
	seen := make(map[string]struct{})
	saleYears := Bounds{Min: sales[0].SaleYear, Max: sales[0].SaleYear}
	for i, rec := range sales {
		if rec.Price < 0 {
			return nil, fmt.Errorf("%w: sale row %d has negative price %v", ErrSchema, i+1, rec.Price)
		}
		prices[i] = rec.Price
		seen[rec.Sire] = struct{}{}
		saleYears.Min = min(saleYears.Min, rec.SaleYear)
		saleYears.Max = max(saleYears.Max, rec.SaleYear)
	}

	yearsActive := Bounds{Min: sires[0].YearsActive, Max: sires[0].YearsActive}
	for i, s := range sires {
		if s.GiniCoefficient < 0 || s.GiniCoefficient > 1 {
			return nil, fmt.Errorf("%w: sire row %d has gini coefficient %v outside [0, 1]", ErrSchema, i+1, s.GiniCoefficient)
		}
		if s.MedianPrice < 0 || s.AvgPrice < 0 || s.FoalsPerYear < 0 || s.YearsActive < 0 {
			return nil, fmt.Errorf("%w: sire row %d has a negative statistic", ErrSchema, i+1)
		}
		yearsActive.Min = min(yearsActive.Min, s.YearsActive)
		yearsActive.Max = max(yearsActive.Max, s.YearsActive)
	}

	allSires := make([]string, 0, len(seen))
	for name := range seen {
		allSires = append(allSires, name)
	}
	sort.Strings(allSires)

	threshold, _ := mathutil.Quantile(prices, outlierQuantile)

	return &Store{
		sales:            sales,
		sires:            sires,
		allSires:         allSires,
		outlierQuantile:  outlierQuantile,
		outlierThreshold: threshold,
		yearsActive:      yearsActive,
		saleYears:        saleYears,
	}, nil
}

// Sales returns the per-sale table in file order.
func (s *Store) Sales() []SaleRecord { return s.sales }

// Sires returns the per-sire summary table in file order.
func (s *Store) Sires() []SireSummary { return s.sires }

// AllSires returns the sorted distinct sire names of the sale table.
func (s *Store) AllSires() []string { return s.allSires }

// OutlierThreshold is the price quantile computed over the full, unfiltered
// sale table. It never changes for the lifetime of the store.
func (s *Store) OutlierThreshold() float64 { return s.outlierThreshold }

// OutlierQuantile is the quantile OutlierThreshold was computed at.
func (s *Store) OutlierQuantile() float64 { return s.outlierQuantile }

// YearsActive returns the observed range of years_active in the sire table.
func (s *Store) YearsActive() Bounds { return s.yearsActive }

// SaleYears returns the observed range of sale_year in the sale table.
func (s *Store) SaleYears() Bounds { return s.saleYears }
