package validation

import "testing"

func TestValidateDefaultView(t *testing.T) {
	known := []string{"sales-box", "sire-scatter", "correlation-line"}

	tests := []struct {
		name      string
		view      string
		expectErr bool
	}{
		{"Empty view", "", false},
		{"Known view", "sire-scatter", false},
		{"Unknown view", "pie", true},
		{"Case sensitive", "Sales-Box", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDefaultView(tt.view, known)
			if tt.expectErr && err == nil {
				t.Errorf("ValidateDefaultView(%q) expected error but got none", tt.view)
			}
			if !tt.expectErr && err != nil {
				t.Errorf("ValidateDefaultView(%q) unexpected error = %v", tt.view, err)
			}
		})
	}
}

func TestValidateMinFoals(t *testing.T) {
	if err := ValidateMinFoals(0); err != nil {
		t.Errorf("zero should be valid: %v", err)
	}
	if err := ValidateMinFoals(10); err != nil {
		t.Errorf("ten should be valid: %v", err)
	}
	if err := ValidateMinFoals(-1); err == nil {
		t.Errorf("negative threshold should be rejected")
	}
}
