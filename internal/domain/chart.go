package domain

import (
	"slices"
	"time"
)

// Chart constants shared with renderers.
const (
	ModeLinesMarkers = "lines+markers"
	ShapeLine        = "line"
	DashDash         = "dash"
	DashSolid        = "solid"
	DateTickFormat   = "2006-01-02"

	// annotationRank is the position among distinct ascending dates used to
	// anchor threshold labels, clear of the plot's left edge.
	annotationRank = 4
)

// Threshold is a fixed horizontal reference line with a text label.
type Threshold struct {
	Value            float64 `yaml:"value" json:"value"`
	Label            string  `yaml:"label" json:"label"`
	Color            string  `yaml:"color" json:"color"`
	AnnotationOffset float64 `yaml:"annotation_offset" json:"annotation_offset"`
}

// Labels are the display names of the normalized columns.
type Labels struct {
	Entity string `yaml:"entity" json:"entity"`
	Date   string `yaml:"date" json:"date"`
	Rate   string `yaml:"rate" json:"rate"`
}

// ChartOptions are the per-dashboard settings applied to every chart.
type ChartOptions struct {
	Title      string
	Labels     Labels
	Thresholds []Threshold
}

// Point is one (date, incidence) sample of a series.
type Point struct {
	Date  time.Time `json:"date"`
	Value int       `json:"value"`
}

// Series is the line drawn for a single entity.
type Series struct {
	Name   string  `json:"name"`
	Mode   string  `json:"mode"`
	Points []Point `json:"points"`
}

// Shape is a straight overlay segment in data coordinates.
type Shape struct {
	Kind  string    `json:"kind"`
	X0    time.Time `json:"x0"`
	Y0    float64   `json:"y0"`
	X1    time.Time `json:"x1"`
	Y1    float64   `json:"y1"`
	Color string    `json:"color"`
	Width float64   `json:"width"`
	Dash  string    `json:"dash"`
}

// Annotation is a text label placed in data coordinates.
type Annotation struct {
	X    time.Time `json:"x"`
	Y    float64   `json:"y"`
	Text string    `json:"text"`
}

// Axis holds display settings for one chart axis.
type Axis struct {
	Title      string `json:"title"`
	TickFormat string `json:"tick_format,omitempty"`
	ShowSpikes bool   `json:"show_spikes"`
	ShowLine   bool   `json:"show_line"`
	ShowGrid   bool   `json:"show_grid"`
	SpikeDash  string `json:"spike_dash"`
}

// Legend places the series legend relative to the plot area (paper coordinates).
type Legend struct {
	Title       string  `json:"title"`
	Orientation string  `json:"orientation"`
	XAnchor     string  `json:"x_anchor"`
	YAnchor     string  `json:"y_anchor"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

// ChartSpec is everything a presentation layer needs to draw the chart.
type ChartSpec struct {
	Title       string       `json:"title"`
	Series      []Series     `json:"series"`
	Shapes      []Shape      `json:"shapes"`
	Annotations []Annotation `json:"annotations"`
	XAxis       Axis         `json:"x_axis"`
	YAxis       Axis         `json:"y_axis"`
	Legend      Legend       `json:"legend"`
}

// Empty reports whether the chart has no data to draw.
func (c ChartSpec) Empty() bool {
	return len(c.Series) == 0
}

// FilterRecords returns the records whose entity is selected, in table order.
// Unknown names simply match nothing.
func FilterRecords(records []IncidenceRecord, selected []string) []IncidenceRecord {
	if len(selected) == 0 {
		return nil
	}
	want := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		want[s] = struct{}{}
	}

	var out []IncidenceRecord
	for _, r := range records {
		if _, ok := want[r.Entity]; ok {
			out = append(out, r)
		}
	}
	return out
}

// BuildChart filters records by selection and builds the line chart with
// threshold overlays. With nothing to plot it returns a chart without series,
// shapes or annotations.
func BuildChart(records []IncidenceRecord, selected []string, opts ChartOptions) ChartSpec {
	spec := ChartSpec{
		Title:       opts.Title,
		Series:      []Series{},
		Shapes:      []Shape{},
		Annotations: []Annotation{},
		XAxis:       crosshairAxis(opts.Labels.Date, DateTickFormat),
		YAxis:       crosshairAxis(opts.Labels.Rate, ""),
		Legend: Legend{
			Title:       opts.Labels.Entity,
			Orientation: "h",
			XAnchor:     "right",
			YAnchor:     "bottom",
			X:           1,
			Y:           1.02,
		},
	}

	filtered := FilterRecords(records, selected)
	if len(filtered) == 0 {
		return spec
	}

	spec.Series = groupSeries(filtered)

	dates := distinctDates(filtered)
	first, last := dates[0], dates[len(dates)-1]
	anchor := annotationAnchor(dates)
	for _, th := range opts.Thresholds {
		spec.Shapes = append(spec.Shapes, Shape{
			Kind:  ShapeLine,
			X0:    first,
			Y0:    th.Value,
			X1:    last,
			Y1:    th.Value,
			Color: th.Color,
			Width: 1,
			Dash:  DashDash,
		})
		spec.Annotations = append(spec.Annotations, Annotation{
			X:    anchor,
			Y:    th.Value + th.AnnotationOffset,
			Text: th.Label,
		})
	}
	return spec
}

func crosshairAxis(title, tickFormat string) Axis {
	return Axis{
		Title:      title,
		TickFormat: tickFormat,
		ShowSpikes: true,
		ShowLine:   true,
		ShowGrid:   true,
		SpikeDash:  DashSolid,
	}
}

// groupSeries builds one series per entity in first-seen order.
func groupSeries(records []IncidenceRecord) []Series {
	index := make(map[string]int)
	var series []Series
	for _, r := range records {
		i, ok := index[r.Entity]
		if !ok {
			i = len(series)
			index[r.Entity] = i
			series = append(series, Series{Name: r.Entity, Mode: ModeLinesMarkers})
		}
		series[i].Points = append(series[i].Points, Point{Date: r.Date, Value: r.Incidence14d})
	}
	return series
}

// distinctDates returns the unique dates in ascending order.
func distinctDates(records []IncidenceRecord) []time.Time {
	dates := make([]time.Time, 0, len(records))
	for _, r := range records {
		dates = append(dates, r.Date)
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(dates, func(a, b time.Time) bool { return a.Equal(b) })
}

// annotationAnchor picks the 4th earliest distinct date, or the latest one
// when fewer exist. dates must be sorted, distinct and non-empty.
func annotationAnchor(dates []time.Time) time.Time {
	if len(dates) < annotationRank {
		return dates[len(dates)-1]
	}
	return dates[annotationRank-1]
}
