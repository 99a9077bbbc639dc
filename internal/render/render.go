package render

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/couchcryptid/incidence-dashboard-service/internal/domain"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Format is an output image format.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

const (
	defaultWidth  = 1024
	defaultHeight = 576

	// yHeadroom keeps the highest line and its label off the top edge.
	yHeadroom = 1.1
)

// palette is the plotly default colorway.
var palette = []string{
	"636efa", "ef553b", "00cc96", "ab63fa", "ffa15a",
	"19d3f3", "ff6692", "b6e880", "ff97ff", "fecb52",
}

var (
	gridColor  = drawing.ColorFromHex("e5ecf6")
	axisColor  = drawing.ColorFromHex("444444")
	emptyColor = drawing.ColorFromHex("ffffff")
)

// ParseFormat validates a format name such as "svg" or "png".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatSVG, FormatPNG:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported chart format %q", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/svg+xml"
}

// Render draws spec to w. A chart without series is drawn as an empty plot.
func Render(w io.Writer, spec domain.ChartSpec, format Format) error {
	provider, err := provider(format)
	if err != nil {
		return err
	}

	c := buildChart(spec)
	if err := c.Render(provider, w); err != nil {
		return fmt.Errorf("render %s chart: %w", format, err)
	}
	return nil
}

func provider(format Format) (chart.RendererProvider, error) {
	switch format {
	case FormatSVG:
		return chart.SVG, nil
	case FormatPNG:
		return chart.PNG, nil
	default:
		return nil, fmt.Errorf("unsupported chart format %q", format)
	}
}

func buildChart(spec domain.ChartSpec) chart.Chart {
	if spec.Empty() {
		return emptyChart(spec)
	}

	series := make([]chart.Series, 0, len(spec.Series)+len(spec.Shapes)+1)
	entries := make([]legendEntry, 0, len(spec.Series))
	for i, s := range spec.Series {
		col := drawing.ColorFromHex(palette[i%len(palette)])
		entries = append(entries, legendEntry{name: s.Name, color: col})
		ts := chart.TimeSeries{
			Name: s.Name,
			Style: chart.Style{
				StrokeColor: col,
				StrokeWidth: 2,
				DotColor:    col,
				DotWidth:    3,
			},
			XValues: make([]time.Time, 0, len(s.Points)),
			YValues: make([]float64, 0, len(s.Points)),
		}
		for _, p := range s.Points {
			ts.XValues = append(ts.XValues, p.Date)
			ts.YValues = append(ts.YValues, float64(p.Value))
		}
		series = append(series, ts)
	}

	for i, sh := range spec.Shapes {
		name := fmt.Sprintf("%g", sh.Y0)
		if i < len(spec.Annotations) {
			name = spec.Annotations[i].Text
		}
		series = append(series, shapeSeries(name, sh))
	}

	if len(spec.Annotations) > 0 {
		labels := chart.AnnotationSeries{Name: "thresholds"}
		for _, a := range spec.Annotations {
			labels.Annotations = append(labels.Annotations, chart.Value2{
				XValue: chart.TimeToFloat64(a.X),
				YValue: a.Y,
				Label:  a.Text,
			})
		}
		series = append(series, labels)
	}

	xMin, xMax := dateRange(spec)
	c := chart.Chart{
		Title:  spec.Title,
		Width:  defaultWidth,
		Height: defaultHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 64, Left: 24, Right: 24, Bottom: 24},
		},
		XAxis: chart.XAxis{
			Name:           spec.XAxis.Title,
			ValueFormatter: dateFormatter(spec.XAxis.TickFormat),
			Range:          &chart.ContinuousRange{Min: xMin, Max: xMax},
			GridMajorStyle: gridStyle(spec.XAxis),
		},
		YAxis: chart.YAxis{
			Name:           spec.YAxis.Title,
			Range:          &chart.ContinuousRange{Min: 0, Max: yMax(spec)},
			GridMajorStyle: gridStyle(spec.YAxis),
		},
		Series: series,
	}
	c.Elements = []chart.Renderable{legend(spec.Legend, entries)}
	return c
}

// emptyChart draws bare axes with an invisible series, since the renderer
// refuses charts without a visible series.
func emptyChart(spec domain.ChartSpec) chart.Chart {
	blank := []chart.Tick{{Value: 0}, {Value: 1}}
	return chart.Chart{
		Title:  spec.Title,
		Width:  defaultWidth,
		Height: defaultHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 64, Left: 24, Right: 24, Bottom: 24},
		},
		XAxis: chart.XAxis{
			Name:  spec.XAxis.Title,
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
			Ticks: blank,
		},
		YAxis: chart.YAxis{
			Name:  spec.YAxis.Title,
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
			Ticks: blank,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Style:   chart.Style{StrokeColor: emptyColor, StrokeWidth: 1},
				XValues: []float64{0, 1},
				YValues: []float64{0, 0},
			},
		},
	}
}

func shapeSeries(name string, sh domain.Shape) chart.TimeSeries {
	style := chart.Style{
		StrokeColor: parseColor(sh.Color),
		StrokeWidth: math.Max(sh.Width, 1),
	}
	if sh.Dash == domain.DashDash {
		style.StrokeDashArray = []float64{6, 4}
	}
	return chart.TimeSeries{
		Name:    name,
		Style:   style,
		XValues: []time.Time{sh.X0, sh.X1},
		YValues: []float64{sh.Y0, sh.Y1},
	}
}

func gridStyle(a domain.Axis) chart.Style {
	if !a.ShowGrid {
		return chart.Style{}
	}
	return chart.Style{StrokeColor: gridColor, StrokeWidth: 1}
}

// parseColor accepts "#rrggbb" or "rrggbb"; anything else draws in the axis color.
func parseColor(s string) drawing.Color {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return axisColor
	}
	return drawing.ColorFromHex(hex)
}

func dateFormatter(layout string) chart.ValueFormatter {
	if layout == "" {
		layout = domain.DateTickFormat
	}
	return func(v interface{}) string {
		f, ok := v.(float64)
		if !ok {
			return ""
		}
		return time.Unix(0, int64(f)).UTC().Format(layout)
	}
}

// dateRange spans every plotted date, padded when all points share one day.
func dateRange(spec domain.ChartSpec) (float64, float64) {
	var first, last time.Time
	for _, s := range spec.Series {
		for _, p := range s.Points {
			if first.IsZero() || p.Date.Before(first) {
				first = p.Date
			}
			if p.Date.After(last) {
				last = p.Date
			}
		}
	}
	if !last.After(first) {
		first = first.Add(-12 * time.Hour)
		last = last.Add(12 * time.Hour)
	}
	return chart.TimeToFloat64(first), chart.TimeToFloat64(last)
}

// yMax fits every series value and threshold label.
func yMax(spec domain.ChartSpec) float64 {
	top := 1.0
	for _, s := range spec.Series {
		for _, p := range s.Points {
			top = math.Max(top, float64(p.Value))
		}
	}
	for _, a := range spec.Annotations {
		top = math.Max(top, a.Y)
	}
	for _, sh := range spec.Shapes {
		top = math.Max(top, math.Max(sh.Y0, sh.Y1))
	}
	return math.Ceil(top * yHeadroom)
}
