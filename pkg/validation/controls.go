package validation

import (
	"fmt"
	"strings"
)

// ValidateDefaultView checks a configured startup view against the known
// views. The empty view is always valid.
func ValidateDefaultView(view string, known []string) error {
	if view == "" {
		return nil
	}
	for _, k := range known {
		if view == k {
			return nil
		}
	}
	return fmt.Errorf("unknown default view %q, expected one of %s", view, strings.Join(known, ", "))
}

// ValidateMinFoals rejects a negative foals-per-year threshold.
func ValidateMinFoals(minFoals int) error {
	if minFoals < 0 {
		return fmt.Errorf("minimum foals per year must not be negative, got %d", minFoals)
	}
	return nil
}
