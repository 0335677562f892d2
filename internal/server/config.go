package server

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iwvelando/sire-dashboard/internal/config"
	"github.com/iwvelando/sire-dashboard/pkg/constants"
)

const defaultShutdownTimeout = 10 * time.Second

// Config defines runtime parameters for the HTTP server.
type Config struct {
	Address         string               `yaml:"address"`
	MaxRequestSize  string               `yaml:"maxRequestSize"`
	ShutdownTimeout string               `yaml:"shutdownTimeout"`
	CorsOrigins     []string             `yaml:"corsOrigins"`
	Chart           ChartConfig          `yaml:"chart"`
	Logging         config.LoggingConfig `yaml:"logging"`

	requestSizeBytes int64
	shutdownTimeout  time.Duration
}

// ChartConfig sets the default size of chart images. Requests may override
// it with width and height query parameters.
type ChartConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// LoadConfig loads the server configuration from YAML. A missing file yields
// the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read server config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse server config: %w", err)
			}
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RequestSizeBytes returns the limit on a control event body in bytes.
func (c *Config) RequestSizeBytes() int64 {
	return c.requestSizeBytes
}

// ShutdownGrace returns how long in-flight requests get on shutdown.
func (c *Config) ShutdownGrace() time.Duration {
	return c.shutdownTimeout
}

func (c *Config) normalize() error {
	c.Address = strings.TrimSpace(c.Address)
	if c.Address == "" {
		c.Address = constants.DefaultServerAddress
	}

	var origins []string
	for _, o := range c.CorsOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CorsOrigins = origins

	size, err := ParseSize(c.MaxRequestSize)
	if err != nil {
		return err
	}
	if size == 0 {
		size = constants.DefaultMaxRequestSizeBytes
	}
	c.requestSizeBytes = size

	c.shutdownTimeout = defaultShutdownTimeout
	if s := strings.TrimSpace(c.ShutdownTimeout); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid shutdownTimeout %q: %w", c.ShutdownTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("shutdownTimeout must be positive, got %s", d)
		}
		c.shutdownTimeout = d
	}

	if c.Chart.Width < 0 || c.Chart.Height < 0 || c.Chart.Width > maxChartSide || c.Chart.Height > maxChartSide {
		return fmt.Errorf("chart size must be between 0 and %d pixels, got %dx%d", maxChartSide, c.Chart.Width, c.Chart.Height)
	}
	return nil
}

// sizeUnits is checked in order, so longer suffixes come first.
var sizeUnits = []struct {
	suffix     string
	multiplier int64
}{
	{"GB", 1 << 30},
	{"G", 1 << 30},
	{"MB", 1 << 20},
	{"M", 1 << 20},
	{"KB", 1 << 10},
	{"K", 1 << 10},
	{"B", 1},
}

// ParseSize converts a byte string such as "256K" or "10MB" into bytes.
// Units are binary and case-insensitive. An empty string is zero.
func ParseSize(value string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(value))
	if s == "" {
		return 0, nil
	}

	multiplier := int64(1)
	for _, u := range sizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			multiplier = u.multiplier
			break
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", value, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid size %q: negative", value)
	}
	if n > math.MaxInt64/multiplier {
		return 0, fmt.Errorf("invalid size %q: overflows int64", value)
	}
	return n * multiplier, nil
}
