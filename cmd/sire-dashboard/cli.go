package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	goflags "github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/iwvelando/sire-dashboard/internal/config"
	"github.com/iwvelando/sire-dashboard/internal/controls"
	"github.com/iwvelando/sire-dashboard/internal/dataset"
	"github.com/iwvelando/sire-dashboard/internal/orchestrator"
	"github.com/iwvelando/sire-dashboard/internal/render"
	"github.com/iwvelando/sire-dashboard/internal/view"
	"github.com/iwvelando/sire-dashboard/pkg/constants"
	"github.com/iwvelando/sire-dashboard/pkg/validation"
)

// GlobalFlags apply to every subcommand.
type GlobalFlags struct {
	Config   string `long:"config" short:"c" description:"Path to dashboard configuration file (default: config.yaml)"`
	LogLevel string `long:"log-level" description:"Log level override (debug, info, warn, error)"`
	Version  bool   `long:"version" description:"Show version and exit"`
}

type commands struct {
	Serve  *ServeCommand
	Render *RenderCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(stdout io.Writer) (*goflags.Parser, *GlobalFlags, *commands) {
	globals := GlobalFlags{Config: constants.DefaultConfigFile}

	// Errors are reported by main through the command's logger, so the
	// parser does not print them itself.
	parser := goflags.NewParser(&globals, goflags.HelpFlag|goflags.PassDoubleDash)
	parser.Name = "sire-dashboard"
	parser.LongDescription = "Interactive dashboard over Keeneland September yearling sales by sire."

	cmds := &commands{
		Serve:  &ServeCommand{ServerConfig: constants.DefaultServerConfigFile, globals: &globals},
		Render: &RenderCommand{globals: &globals, stdout: stdout},
	}

	_, _ = parser.AddCommand("serve", "Run the dashboard web server",
		"Load the datasets and serve the dashboard UI, JSON API and WebSocket push channel.", cmds.Serve)
	_, _ = parser.AddCommand("render", "Render one view and exit",
		"Apply the given control values, render the selected view once and write it as a table or chart.", cmds.Render)

	return parser, &globals, cmds
}

// commandError carries a failure out of a subcommand together with the
// logger that subcommand configured.
type commandError struct {
	err    error
	logger *zap.Logger
}

func (e *commandError) Error() string { return e.err.Error() }

func (e *commandError) Unwrap() error { return e.err }

// withLogger attaches logger to a non-nil err.
func withLogger(logger *zap.Logger, err error) error {
	if err == nil {
		return nil
	}
	return &commandError{err: err, logger: logger}
}

// run parses args and executes the matched subcommand.
func run(args []string) error {
	for _, arg := range args {
		if arg == "--version" {
			fmt.Printf("sire-dashboard %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(os.Stdout)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *goflags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == goflags.ErrHelp {
			fmt.Fprintln(os.Stdout, flagsErr.Message)
			return nil
		}
		return err
	}
	return nil
}

// loadConfiguration reads the dashboard config, or returns the defaults when
// the file does not exist.
func loadConfiguration(path string) (*config.Configuration, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return config.Defaults(), false, nil
	}
	conf, err := config.LoadConfiguration(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load configuration at %s: %w", path, err)
	}
	return conf, true, nil
}

func validateConfiguration(conf *config.Configuration) error {
	if err := validation.ValidateDefaultView(conf.Controls.DefaultView, view.IDs()); err != nil {
		return err
	}
	if err := validation.ValidateMinFoals(conf.Controls.MinFoals); err != nil {
		return err
	}
	return validation.ValidateOutputFormat(conf.Output.Format)
}

// openSource builds the dataset source named by the configuration.
func openSource(ctx context.Context, conf *config.Configuration) (dataset.Source, error) {
	switch conf.Datasets.Source {
	case constants.SourceS3:
		return dataset.NewS3Source(ctx, conf.Datasets.S3)
	default:
		return dataset.FileSource{}, nil
	}
}

func loadStore(ctx context.Context, logger *zap.Logger, conf *config.Configuration) (*dataset.Store, error) {
	src, err := openSource(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset source: %w", err)
	}
	store, err := dataset.Load(ctx, logger, src, conf.Datasets.Sales, conf.Datasets.Sires, conf.Controls.OutlierQuantile)
	if err != nil {
		return nil, fmt.Errorf("failed to load datasets: %w", err)
	}
	return store, nil
}

// newDashboard wires a registry seeded from the configuration and an
// orchestrator drawing into sink. The configured default view is applied
// before it is returned.
func newDashboard(ctx context.Context, logger *zap.Logger, conf *config.Configuration, store *dataset.Store, sink render.Sink, reg prometheus.Registerer) (*orchestrator.Orchestrator, error) {
	years := store.YearsActive()
	registry := controls.NewRegistry(controls.Defaults(conf.Controls.MinFoals, years), years, view.IDs())
	orch := orchestrator.New(store, registry, sink, orchestrator.Options{Logger: logger, Registerer: reg})

	if conf.Controls.DefaultView != "" {
		if _, err := orch.Apply(ctx, controls.View, conf.Controls.DefaultView); err != nil {
			return nil, fmt.Errorf("failed to apply default view: %w", err)
		}
	}
	return orch, nil
}
