// Package validation provides common validation utilities.
package validation

import (
	"fmt"
	"strings"

	"github.com/iwvelando/sire-dashboard/pkg/constants"
)

// OutputFormats lists every supported output format.
var OutputFormats = []string{
	constants.OutputFormatPretty,
	constants.OutputFormatCSV,
	constants.OutputFormatYAML,
	constants.OutputFormatSVG,
	constants.OutputFormatPNG,
}

// ValidateOutputFormat checks if the output format is one of the supported formats.
func ValidateOutputFormat(format string) error {
	for _, f := range OutputFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("expected output format of %s, got %s", strings.Join(OutputFormats, ", "), format)
}

// IsChartFormat reports whether format produces an image.
func IsChartFormat(format string) bool {
	return format == constants.OutputFormatSVG || format == constants.OutputFormatPNG
}
