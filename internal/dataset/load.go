package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Column names after header normalization.
const (
	colSire        = "sire"
	colDescription = "description"
	colPrice       = "price"
	colSaleYear    = "sale_year"
	colPurchaser   = "purchaser"
	colGini        = "gini_coefficient"
	colMedianPrice = "median_price"
	colAvgPrice    = "avg_price"
	colFoals       = "foals_per_year"
	colYearsActive = "years_active"
)

// headerAliases maps alternative header spellings to the canonical column.
var headerAliases = map[string]string{
	"gini_coef": colGini,
	"gini":      colGini,
}

var salesColumns = []string{colSire, colDescription, colPrice, colSaleYear, colPurchaser}

var siresColumns = []string{colSire, colGini, colMedianPrice, colAvgPrice, colFoals, colYearsActive}

var numberCleaner = strings.NewReplacer("$", "", ",", "")

// ReadSales parses the per-sale CSV table. Columns beyond the five it needs
// are ignored.
func ReadSales(r io.Reader) ([]SaleRecord, error) {
	reader, index, err := openTable(r, salesColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to read sales table: %w", err)
	}

	var records []SaleRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read sales table: %w: line %d: %v", ErrSchema, line, err)
		}

		price, err := parseFloat(row[index[colPrice]])
		if err != nil {
			return nil, fmt.Errorf("%w: sales line %d: price: %v", ErrSchema, line, err)
		}
		year, err := parseInt(row[index[colSaleYear]])
		if err != nil {
			return nil, fmt.Errorf("%w: sales line %d: sale_year: %v", ErrSchema, line, err)
		}

		records = append(records, SaleRecord{
			Sire:        strings.TrimSpace(row[index[colSire]]),
			Description: strings.TrimSpace(row[index[colDescription]]),
			Price:       price,
			SaleYear:    year,
			Purchaser:   strings.TrimSpace(row[index[colPurchaser]]),
		})
	}
	return records, nil
}

// ReadSires parses the per-sire summary CSV table.
func ReadSires(r io.Reader) ([]SireSummary, error) {
	reader, index, err := openTable(r, siresColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to read sire table: %w", err)
	}

	var summaries []SireSummary
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read sire table: %w: line %d: %v", ErrSchema, line, err)
		}

		var s SireSummary
		s.Sire = strings.TrimSpace(row[index[colSire]])
		floats := []struct {
			col string
			dst *float64
		}{
			{colGini, &s.GiniCoefficient},
			{colMedianPrice, &s.MedianPrice},
			{colAvgPrice, &s.AvgPrice},
			{colFoals, &s.FoalsPerYear},
		}
		for _, f := range floats {
			v, err := parseFloat(row[index[f.col]])
			if err != nil {
				return nil, fmt.Errorf("%w: sire line %d: %s: %v", ErrSchema, line, f.col, err)
			}
			*f.dst = v
		}
		years, err := parseInt(row[index[colYearsActive]])
		if err != nil {
			return nil, fmt.Errorf("%w: sire line %d: years_active: %v", ErrSchema, line, err)
		}
		s.YearsActive = years

		summaries = append(summaries, s)
	}
	return summaries, nil
}

// openTable reads the header row and maps every required column to its index.
func openTable(r io.Reader, required []string) (*csv.Reader, map[string]int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: empty table", ErrSchema)
		}
		return nil, nil, fmt.Errorf("%w: header: %v", ErrSchema, err)
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		key := normalizeHeader(h)
		if alias, ok := headerAliases[key]; ok {
			key = alias
		}
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: missing columns %s", ErrSchema, strings.Join(missing, ", "))
	}

	// rows must carry the same number of fields as the header
	reader.FieldsPerRecord = len(headers)
	return reader, index, nil
}

// normalizeHeader converts "Sale Year" → "sale_year".
func normalizeHeader(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	h = strings.ToLower(h)
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return h
}

func parseFloat(raw string) (float64, error) {
	cleaned := strings.TrimSpace(numberCleaner.Replace(raw))
	if cleaned == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", raw)
	}
	return v, nil
}

// parseInt accepts integral floats such as "7.0", which pandas writes for
// integer columns that once held missing values.
func parseInt(raw string) (int, error) {
	cleaned := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(cleaned); err == nil {
		return n, nil
	}
	f, err := parseFloat(cleaned)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("expected integer, got %q", raw)
	}
	return int(f), nil
}
