package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/iwvelando/sire-dashboard/internal/controls"
	"github.com/iwvelando/sire-dashboard/internal/render"
	"github.com/iwvelando/sire-dashboard/pkg/constants"
	"github.com/iwvelando/sire-dashboard/pkg/output"
	"github.com/iwvelando/sire-dashboard/pkg/validation"
)

// RenderCommand renders one view to stdout or a file.
type RenderCommand struct {
	View     string   `long:"view" description:"View to render (sales-box, sire-scatter, correlation-line); defaults to controls.defaultView"`
	Mode     string   `long:"mode" description:"Sale data mode (excluding-outliers, full)"`
	Search   string   `long:"search" description:"Sire search text"`
	Sires    []string `long:"sire" description:"Selected sire; repeat for several"`
	MinFoals string   `long:"min-foals" description:"Minimum foals per year"`
	Years    string   `long:"years" description:"Years-active range as lo:hi"`
	Format   string   `long:"format" short:"f" description:"Output format override (pretty, csv, yaml, svg, png)"`
	Output   string   `long:"output" short:"o" description:"Write to this file instead of stdout"`
	Width    int      `long:"width" description:"Chart width in pixels"`
	Height   int      `long:"height" description:"Chart height in pixels"`

	globals *GlobalFlags
	stdout  io.Writer
}

type controlValue struct {
	id    controls.ID
	value interface{}
}

// events lists the control changes the flags ask for. The view comes last so
// the dashboard redraws once with every other value in place.
func (c *RenderCommand) events(defaultView string) ([]controlValue, error) {
	var out []controlValue
	if c.Mode != "" {
		out = append(out, controlValue{controls.Mode, c.Mode})
	}
	if c.Search != "" {
		out = append(out, controlValue{controls.Search, c.Search})
	}
	if len(c.Sires) > 0 {
		out = append(out, controlValue{controls.Selection, c.Sires})
	}
	if c.MinFoals != "" {
		out = append(out, controlValue{controls.MinFoals, c.MinFoals})
	}
	if c.Years != "" {
		r, err := parseYears(c.Years)
		if err != nil {
			return nil, err
		}
		out = append(out, controlValue{controls.YearRange, r})
	}

	viewID := c.View
	if viewID == "" {
		viewID = defaultView
	}
	if viewID == "" {
		return nil, fmt.Errorf("no view selected: pass --view or set controls.defaultView")
	}
	return append(out, controlValue{controls.View, viewID}), nil
}

// parseYears accepts "lo:hi" or "lo-hi".
func parseYears(s string) (controls.Range, error) {
	sep := ":"
	if !strings.Contains(s, sep) {
		sep = "-"
	}
	parts := strings.SplitN(s, sep, 2)
	if len(parts) != 2 {
		return controls.Range{}, fmt.Errorf("invalid years range %q, expected lo:hi", s)
	}
	lo, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return controls.Range{}, fmt.Errorf("invalid years range %q: %v", s, err)
	}
	hi, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return controls.Range{}, fmt.Errorf("invalid years range %q: %v", s, err)
	}
	return controls.Range{Lo: lo, Hi: hi}, nil
}

// Execute implements goflags.Commander.
func (c *RenderCommand) Execute(_ []string) (err error) {
	conf, found, err := loadConfiguration(c.globals.Config)
	if err != nil {
		return err
	}
	logger, err := initializeLogger(conf.Logging, c.globals.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	defer func() {
		err = withLogger(logger, err)
	}()
	if !found {
		logger.Debug("configuration file not found, using defaults",
			zap.String("op", "main.render"),
			zap.String("path", c.globals.Config),
		)
	}

	if c.Format != "" {
		conf.Output.Format = c.Format
	}
	if err := validateConfiguration(conf); err != nil {
		return err
	}

	events, err := c.events(conf.Controls.DefaultView)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := loadStore(ctx, logger, conf)
	if err != nil {
		return err
	}

	// The default view is applied by the events below, after the other flags.
	viewless := *conf
	viewless.Controls.DefaultView = ""

	region := render.NewRegion()
	orch, err := newDashboard(ctx, logger, &viewless, store, region, nil)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if _, err := orch.Apply(ctx, ev.id, ev.value); err != nil {
			return fmt.Errorf("failed to apply %s: %w", ev.id, err)
		}
	}

	artifact, ok := region.Current(constants.MainRegion)
	if !ok {
		return fmt.Errorf("view %q produced no output", orch.State().View)
	}

	w := c.stdout
	if w == nil {
		w = os.Stdout
	}
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	format := conf.Output.Format
	if validation.IsChartFormat(format) {
		return render.Encode(w, artifact, format, render.Options{Width: c.Width, Height: c.Height})
	}

	report := output.Report{State: orch.State(), Options: orch.Options(), Artifact: artifact}
	switch format {
	case constants.OutputFormatCSV:
		return output.CsvFormat(w, report)
	case constants.OutputFormatYAML:
		return output.YamlFormat(w, report)
	default:
		return output.PrettyFormat(w, report)
	}
}
