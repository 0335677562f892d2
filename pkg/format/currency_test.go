package format

import "testing"

func TestDollars(t *testing.T) {
	tests := []struct {
		amount   float64
		expected string
	}{
		{0, "$0"},
		{950, "$950"},
		{1000, "$1,000"},
		{1250000, "$1,250,000"},
		{399999.6, "$400,000"},
		{-5000, "-$5,000"},
		{123456789, "$123,456,789"},
	}

	for _, tt := range tests {
		if got := Dollars(tt.amount); got != tt.expected {
			t.Errorf("Dollars(%v) = %q, expected %q", tt.amount, got, tt.expected)
		}
	}
}

func TestCompact(t *testing.T) {
	tests := []struct {
		amount   float64
		expected string
	}{
		{0, "$0"},
		{950, "$950"},
		{450000, "$450K"},
		{2500, "$2.5K"},
		{1250000, "$1.25M"},
		{4000000, "$4M"},
		{-75000, "-$75K"},
	}

	for _, tt := range tests {
		if got := Compact(tt.amount); got != tt.expected {
			t.Errorf("Compact(%v) = %q, expected %q", tt.amount, got, tt.expected)
		}
	}
}
