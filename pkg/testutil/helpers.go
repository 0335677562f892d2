// Package testutil provides common fixtures for testing.
package testutil

import (
	"testing"

	"github.com/iwvelando/sire-dashboard/internal/dataset"
)

// Sales returns a small sale table with four sires over three sale years.
// The 2022 Tapit colt is priced far above the rest.
func Sales() []dataset.SaleRecord {
	return []dataset.SaleRecord{
		{Sire: "Tapit", Description: "gr c", Price: 400000, SaleYear: 2021, Purchaser: "Godolphin"},
		{Sire: "Curlin", Description: "ch f", Price: 250000, SaleYear: 2021, Purchaser: "Coolmore"},
		{Sire: "Into Mischief", Description: "b c", Price: 600000, SaleYear: 2021, Purchaser: "Spendthrift"},
		{Sire: "Uncle Mo", Description: "b f", Price: 150000, SaleYear: 2021, Purchaser: "WinStar"},
		{Sire: "Tapit", Description: "gr f", Price: 350000, SaleYear: 2022, Purchaser: "Coolmore"},
		{Sire: "Tapit", Description: "gr c", Price: 4000000, SaleYear: 2022, Purchaser: "Godolphin"},
		{Sire: "Curlin", Description: "ch c", Price: 500000, SaleYear: 2022, Purchaser: "Shadwell"},
		{Sire: "Into Mischief", Description: "dk b f", Price: 450000, SaleYear: 2022, Purchaser: "WinStar"},
		{Sire: "Uncle Mo", Description: "b c", Price: 200000, SaleYear: 2023, Purchaser: "Spendthrift"},
		{Sire: "Curlin", Description: "ch f", Price: 300000, SaleYear: 2023, Purchaser: "Godolphin"},
		{Sire: "Into Mischief", Description: "b c", Price: 700000, SaleYear: 2023, Purchaser: "Coolmore"},
		{Sire: "Tapit", Description: "ro f", Price: 275000, SaleYear: 2023, Purchaser: "Shadwell"},
	}
}

// Sires returns a sire summary table. Years-active groups 3 and 5 each hold
// enough sires for a correlation; group 8 holds one.
func Sires() []dataset.SireSummary {
	return []dataset.SireSummary{
		{Sire: "Tapit", GiniCoefficient: 0.62, MedianPrice: 375000, AvgPrice: 1256250, FoalsPerYear: 45, YearsActive: 8},
		{Sire: "Curlin", GiniCoefficient: 0.31, MedianPrice: 300000, AvgPrice: 350000, FoalsPerYear: 30, YearsActive: 5},
		{Sire: "Into Mischief", GiniCoefficient: 0.18, MedianPrice: 600000, AvgPrice: 583333, FoalsPerYear: 55, YearsActive: 5},
		{Sire: "Uncle Mo", GiniCoefficient: 0.22, MedianPrice: 175000, AvgPrice: 175000, FoalsPerYear: 25, YearsActive: 3},
		{Sire: "Gun Runner", GiniCoefficient: 0.35, MedianPrice: 420000, AvgPrice: 500000, FoalsPerYear: 40, YearsActive: 3},
		{Sire: "Justify", GiniCoefficient: 0.48, MedianPrice: 260000, AvgPrice: 330000, FoalsPerYear: 8, YearsActive: 3},
		{Sire: "Quality Road", GiniCoefficient: 0.27, MedianPrice: 350000, AvgPrice: 410000, FoalsPerYear: 12, YearsActive: 5},
	}
}

// Store builds a Store over Sales and Sires at the 0.95 price quantile.
func Store(t testing.TB) *dataset.Store {
	t.Helper()
	store, err := dataset.NewStore(Sales(), Sires(), 0.95)
	if err != nil {
		t.Fatalf("building fixture store: %v", err)
	}
	return store
}
