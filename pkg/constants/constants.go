// Package constants provides shared constants for the sire-dashboard application.
package constants

// Control defaults
const (
	// DefaultMinFoals is the default minimum foals-per-year threshold
	DefaultMinFoals = 10

	// DefaultOutlierQuantile is the price quantile above which sales are
	// treated as outliers in the excluding-outliers data mode
	DefaultOutlierQuantile = 0.95

	// MainRegion is the identifier of the shared output region
	MainRegion = "main"

	// EmptyMessage is shown when a view has nothing left to draw
	EmptyMessage = "No data after filters."
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatYAML dumps the artifact as YAML
	OutputFormatYAML = "yaml"

	// OutputFormatSVG renders the chart as SVG
	OutputFormatSVG = "svg"

	// OutputFormatPNG renders the chart as PNG
	OutputFormatPNG = "png"
)

// Dataset source constants
const (
	// SourceFile reads datasets from the local filesystem
	SourceFile = "file"

	// SourceS3 reads datasets from an S3-compatible bucket
	SourceS3 = "s3"

	// DefaultSalesFile is the default per-sale table
	DefaultSalesFile = "only_sold.csv"

	// DefaultSiresFile is the default per-sire summary table
	DefaultSiresFile = "sire_data.csv"

	// DefaultS3Region is used when no region is configured
	DefaultS3Region = "us-east-1"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the web UI
	DefaultServerAddress = ":8080"

	// DefaultMaxRequestSizeBytes is the default maximum size of a control event body (64 KB)
	DefaultMaxRequestSizeBytes int64 = 64 * 1024
)

