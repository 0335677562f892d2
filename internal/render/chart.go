package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/iwvelando/sire-dashboard/internal/view"
	"github.com/iwvelando/sire-dashboard/pkg/constants"
	"github.com/iwvelando/sire-dashboard/pkg/format"
	"github.com/iwvelando/sire-dashboard/pkg/mathutil"
)

// ErrUnsupportedFormat is returned by Encode for formats other than svg and png.
var ErrUnsupportedFormat = errors.New("unsupported chart format")

// Options sizes the encoded chart. Zero values take the defaults.
type Options struct {
	Width  int
	Height int
}

const (
	defaultWidth  = 960
	defaultHeight = 540

	boxHalfWidth = 0.3
	minDotWidth  = 4.0
	maxDotWidth  = 16.0
)

// Encode draws artifact as an SVG or PNG chart onto w.
func Encode(w io.Writer, artifact view.Artifact, chartFormat string, opts Options) error {
	var provider chart.RendererProvider
	switch chartFormat {
	case constants.OutputFormatSVG:
		provider = chart.SVG
	case constants.OutputFormatPNG:
		provider = chart.PNG
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, chartFormat)
	}

	graph, err := Build(artifact)
	if err != nil {
		return err
	}
	graph.Width = opts.Width
	if graph.Width <= 0 {
		graph.Width = defaultWidth
	}
	graph.Height = opts.Height
	if graph.Height <= 0 {
		graph.Height = defaultHeight
	}

	if err := graph.Render(provider, w); err != nil {
		return fmt.Errorf("rendering %s chart for view %q: %w", chartFormat, artifact.View, err)
	}
	return nil
}

// Build converts an artifact into a go-chart definition.
func Build(artifact view.Artifact) (chart.Chart, error) {
	if artifact.Empty || len(artifact.Table.Rows) == 0 {
		return emptyChart(artifact), nil
	}

	switch artifact.Chart.Kind {
	case view.Box:
		return boxChart(artifact)
	case view.Scatter:
		return scatterChart(artifact)
	case view.Line:
		return lineChart(artifact)
	}
	return chart.Chart{}, fmt.Errorf("unknown chart kind %q", artifact.Chart.Kind)
}

func baseChart(artifact view.Artifact) chart.Chart {
	return chart.Chart{
		Title:      artifact.Chart.Title,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 10}},
		XAxis:      chart.XAxis{Name: artifact.Chart.XTitle},
		YAxis:      chart.YAxis{Name: artifact.Chart.YTitle},
	}
}

// emptyChart draws blank axes titled with the empty-state message.
func emptyChart(artifact view.Artifact) chart.Chart {
	message := artifact.Message
	if message == "" {
		message = constants.EmptyMessage
	}
	graph := baseChart(artifact)
	graph.Title = message
	graph.XAxis.Range = &chart.ContinuousRange{Min: 0, Max: 1}
	graph.YAxis.Range = &chart.ContinuousRange{Min: 0, Max: 1}
	graph.Series = []chart.Series{chart.ContinuousSeries{
		XValues: []float64{0, 1},
		YValues: []float64{0, 1},
		Style:   chart.Style{StrokeColor: drawing.ColorTransparent},
	}}
	return graph
}

// BoxStats summarises one box: quartiles, the 1.5 IQR whisker ends and
// the points beyond them.
type BoxStats struct {
	Q1, Median, Q3 float64
	Low, High      float64
	Outliers       []float64
}

// Summarize computes box plot statistics. values must be non-empty.
func Summarize(values []float64) BoxStats {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	s := BoxStats{
		Q1:     mathutil.QuantileSorted(sorted, 0.25),
		Median: mathutil.QuantileSorted(sorted, 0.5),
		Q3:     mathutil.QuantileSorted(sorted, 0.75),
	}
	iqr := s.Q3 - s.Q1
	lowFence, highFence := s.Q1-1.5*iqr, s.Q3+1.5*iqr

	s.Low, s.High = s.Q3, s.Q1
	for _, v := range sorted {
		if v < lowFence || v > highFence {
			s.Outliers = append(s.Outliers, v)
			continue
		}
		s.Low = math.Min(s.Low, v)
		s.High = math.Max(s.High, v)
	}
	return s
}

func boxChart(artifact view.Artifact) (chart.Chart, error) {
	xs, err := artifact.Table.Floats(artifact.Chart.X)
	if err != nil {
		return chart.Chart{}, err
	}
	ys, err := artifact.Table.Floats(artifact.Chart.Y)
	if err != nil {
		return chart.Chart{}, err
	}

	groups := make(map[float64][]float64)
	for i, x := range xs {
		groups[x] = append(groups[x], ys[i])
	}
	keys := make([]float64, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	style := chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 1.5}
	dots := chart.Style{StrokeColor: drawing.ColorTransparent, DotColor: chart.ColorBlue, DotWidth: 3}

	var series []chart.Series
	var ticks []chart.Tick
	yMin, yMax := math.Inf(1), math.Inf(-1)
	for _, x := range keys {
		s := Summarize(groups[x])
		left, right := x-boxHalfWidth, x+boxHalfWidth

		series = append(series,
			chart.ContinuousSeries{
				XValues: []float64{left, right, right, left, left},
				YValues: []float64{s.Q1, s.Q1, s.Q3, s.Q3, s.Q1},
				Style:   style,
			},
			chart.ContinuousSeries{XValues: []float64{left, right}, YValues: []float64{s.Median, s.Median}, Style: style},
			chart.ContinuousSeries{XValues: []float64{x, x}, YValues: []float64{s.Q3, s.High}, Style: style},
			chart.ContinuousSeries{XValues: []float64{x, x}, YValues: []float64{s.Low, s.Q1}, Style: style},
		)
		if len(s.Outliers) > 0 {
			ox := make([]float64, len(s.Outliers))
			for i := range ox {
				ox[i] = x
			}
			series = append(series, chart.ContinuousSeries{XValues: ox, YValues: s.Outliers, Style: dots})
		}

		ticks = append(ticks, chart.Tick{Value: x, Label: strconv.FormatFloat(x, 'f', -1, 64)})
		lo, hi := s.Low, s.High
		if len(s.Outliers) > 0 {
			lo = math.Min(lo, s.Outliers[0])
			hi = math.Max(hi, s.Outliers[len(s.Outliers)-1])
		}
		yMin, yMax = math.Min(yMin, lo), math.Max(yMax, hi)
	}

	graph := baseChart(artifact)
	xLo, xHi := keys[0]-1, keys[len(keys)-1]+1
	graph.XAxis.Range = &chart.ContinuousRange{Min: xLo, Max: xHi}
	graph.XAxis.Ticks = ticks
	yLo, yHi := padRange(yMin, yMax)
	graph.YAxis.Range = &chart.ContinuousRange{Min: yLo, Max: yHi}
	graph.YAxis.ValueFormatter = currencyFormatter
	graph.Series = series
	return graph, nil
}

func scatterChart(artifact view.Artifact) (chart.Chart, error) {
	xs, err := artifact.Table.Floats(artifact.Chart.X)
	if err != nil {
		return chart.Chart{}, err
	}
	ys, err := artifact.Table.Floats(artifact.Chart.Y)
	if err != nil {
		return chart.Chart{}, err
	}

	sizes := normalize(columnOr(artifact, artifact.Chart.Size, len(xs)))
	colors := normalize(columnOr(artifact, artifact.Chart.Color, len(xs)))

	series := chart.ContinuousSeries{
		Name:    artifact.Chart.Title,
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeColor: drawing.ColorTransparent,
			DotWidthProvider: func(_, _ chart.Range, index int, _, _ float64) float64 {
				return minDotWidth + sizes[index]*(maxDotWidth-minDotWidth)
			},
			DotColorProvider: func(_, _ chart.Range, index int, _, _ float64) drawing.Color {
				return Plasma(colors[index])
			},
		},
	}

	graph := baseChart(artifact)
	xLo, xHi := padRange(minMax(xs))
	yLo, yHi := padRange(minMax(ys))
	graph.XAxis.Range = &chart.ContinuousRange{Min: xLo, Max: xHi}
	graph.YAxis.Range = &chart.ContinuousRange{Min: yLo, Max: yHi}
	graph.YAxis.ValueFormatter = currencyFormatter
	graph.Series = []chart.Series{series}
	return graph, nil
}

func lineChart(artifact view.Artifact) (chart.Chart, error) {
	xs, err := artifact.Table.Floats(artifact.Chart.X)
	if err != nil {
		return chart.Chart{}, err
	}
	ys, err := artifact.Table.Floats(artifact.Chart.Y)
	if err != nil {
		return chart.Chart{}, err
	}
	if len(xs) == 1 {
		xs = []float64{xs[0], xs[0]}
		ys = []float64{ys[0], ys[0]}
	}

	style := chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2}
	if artifact.Chart.Markers {
		style.DotColor = chart.ColorBlue
		style.DotWidth = 5
	}

	graph := baseChart(artifact)
	xLo, xHi := padRange(minMax(xs))
	graph.XAxis.Range = &chart.ContinuousRange{Min: xLo, Max: xHi}
	if r := artifact.Chart.YRange; r != nil {
		graph.YAxis.Range = &chart.ContinuousRange{Min: r[0], Max: r[1]}
	} else {
		yLo, yHi := padRange(minMax(ys))
		graph.YAxis.Range = &chart.ContinuousRange{Min: yLo, Max: yHi}
	}
	graph.Series = []chart.Series{chart.ContinuousSeries{XValues: xs, YValues: ys, Style: style}}
	return graph, nil
}

func columnOr(artifact view.Artifact, column string, n int) []float64 {
	if column != "" {
		if values, err := artifact.Table.Floats(column); err == nil {
			return values
		}
	}
	return make([]float64, n)
}

// normalize maps values onto [0, 1]. A constant column maps to 0.5.
func normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := minMax(values)
	for i, v := range values {
		if hi == lo {
			out[i] = 0.5
			continue
		}
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

func minMax(values []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	return lo, hi
}

// padRange widens [lo, hi] by five percent each side and never returns a
// zero-width range, which go-chart refuses to draw.
func padRange(lo, hi float64) (float64, float64) {
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, 1
	}
	span := hi - lo
	if span == 0 {
		span = math.Max(math.Abs(lo), 1)
	}
	return lo - 0.05*span, hi + 0.05*span
}

func currencyFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return format.Compact(f)
	}
	return fmt.Sprint(v)
}

var plasmaStops = []drawing.Color{
	{R: 13, G: 8, B: 135, A: 255},
	{R: 106, G: 0, B: 168, A: 255},
	{R: 177, G: 42, B: 144, A: 255},
	{R: 225, G: 100, B: 98, A: 255},
	{R: 252, G: 166, B: 54, A: 255},
	{R: 240, G: 249, B: 33, A: 255},
}

// Plasma returns the plasma color-scale color at t in [0, 1].
func Plasma(t float64) drawing.Color {
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(plasmaStops)-1)
	i := int(pos)
	if i >= len(plasmaStops)-1 {
		return plasmaStops[len(plasmaStops)-1]
	}
	frac := pos - float64(i)
	a, b := plasmaStops[i], plasmaStops[i+1]
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + frac*(float64(y)-float64(x))))
	}
	return drawing.Color{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}
