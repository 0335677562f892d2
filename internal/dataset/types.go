// Package dataset holds the two immutable auction tables the dashboard reads
// and the sources they are loaded from.
package dataset

import "errors"

// ErrSchema is returned when a table is missing a required column or holds a
// value that cannot be parsed into its column type.
var ErrSchema = errors.New("dataset schema mismatch")

// SaleRecord is one sold yearling.
type SaleRecord struct {
	Sire        string  `json:"sire" yaml:"sire"`
	Description string  `json:"description" yaml:"description"`
	Price       float64 `json:"price" yaml:"price"`
	SaleYear    int     `json:"sale_year" yaml:"sale_year"`
	Purchaser   string  `json:"purchaser" yaml:"purchaser"`
}

// SireSummary holds the precomputed per-sire statistics.
type SireSummary struct {
	Sire            string  `json:"sire" yaml:"sire"`
	GiniCoefficient float64 `json:"gini_coefficient" yaml:"gini_coefficient"`
	MedianPrice     float64 `json:"median_price" yaml:"median_price"`
	AvgPrice        float64 `json:"avg_price" yaml:"avg_price"`
	FoalsPerYear    float64 `json:"foals_per_year" yaml:"foals_per_year"`
	YearsActive     int     `json:"years_active" yaml:"years_active"`
}

// Bounds is an inclusive integer interval observed in the data.
type Bounds struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether v lies inside the bounds.
func (b Bounds) Contains(v int) bool {
	return v >= b.Min && v <= b.Max
}
