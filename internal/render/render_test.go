package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/couchcryptid/incidence-dashboard-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2021, time.January, d, 0, 0, 0, 0, time.UTC)
}

func sampleSpec(t *testing.T) domain.ChartSpec {
	t.Helper()
	records := []domain.IncidenceRecord{
		{Entity: "Getafe", Date: day(1), Incidence14d: 120},
		{Entity: "Fuenlabrada", Date: day(1), Incidence14d: 200},
		{Entity: "Getafe", Date: day(8), Incidence14d: 340},
		{Entity: "Fuenlabrada", Date: day(8), Incidence14d: 410},
		{Entity: "Getafe", Date: day(15), Incidence14d: 520},
		{Entity: "Getafe", Date: day(22), Incidence14d: 610},
	}
	opts := domain.ChartOptions{
		Title:  "Incidencia acumulada",
		Labels: domain.Labels{Entity: "Municipio", Date: "Fecha", Rate: "Tasa"},
		Thresholds: []domain.Threshold{
			{Value: 500, Label: "ministry limit", Color: "#ff0000", AnnotationOffset: 20},
			{Value: 150, Label: "community transmission", Color: "#ff4500", AnnotationOffset: 20},
		},
	}
	spec := domain.BuildChart(records, []string{"Getafe", "Fuenlabrada"}, opts)
	require.False(t, spec.Empty())
	return spec
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" SVG ")
	require.NoError(t, err)
	assert.Equal(t, FormatSVG, f)
	assert.Equal(t, "image/svg+xml", f.ContentType())

	f, err = ParseFormat("png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", f.ContentType())

	_, err = ParseFormat("gif")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gif")
}

func TestRender_SVG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleSpec(t), FormatSVG))

	out := buf.String()
	assert.Contains(t, out, "<svg")
	assert.Contains(t, out, "Getafe")
	assert.Contains(t, out, "Fuenlabrada")
	assert.Contains(t, out, "ministry limit")
	assert.Contains(t, out, "2021-01-01")
}

func TestRender_PNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleSpec(t), FormatPNG))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestRender_EmptySelection(t *testing.T) {
	spec := domain.BuildChart(nil, nil, domain.ChartOptions{Title: "Incidencia acumulada"})
	require.True(t, spec.Empty())

	for _, f := range []Format{FormatSVG, FormatPNG} {
		var buf bytes.Buffer
		require.NoError(t, Render(&buf, spec, f), f)
		assert.NotZero(t, buf.Len())
	}
}

func TestRender_SingleDate(t *testing.T) {
	records := []domain.IncidenceRecord{{Entity: "Getafe", Date: day(1), Incidence14d: 0}}
	spec := domain.BuildChart(records, []string{"Getafe"}, domain.ChartOptions{
		Thresholds: []domain.Threshold{{Value: 25, Label: "target", Color: "2ca02c"}},
	})

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, spec, FormatSVG))
}

func TestRender_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, sampleSpec(t), Format("bmp"))
	require.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestYMax_CoversThresholdLabels(t *testing.T) {
	spec := sampleSpec(t)
	assert.GreaterOrEqual(t, yMax(spec), 610.0)
	assert.GreaterOrEqual(t, yMax(spec), 520.0)

	spec.Series = []domain.Series{{Name: "x", Points: []domain.Point{{Date: day(1), Value: 10}}}}
	assert.GreaterOrEqual(t, yMax(spec), 520.0)
}

func TestDateRange_PadsSingleDay(t *testing.T) {
	spec := domain.ChartSpec{Series: []domain.Series{{Points: []domain.Point{{Date: day(3)}}}}}
	lo, hi := dateRange(spec)
	assert.Less(t, lo, hi)
}

func TestParseColor(t *testing.T) {
	assert.Equal(t, parseColor("ff0000"), parseColor("#ff0000"))
	assert.Equal(t, axisColor, parseColor("red"))
}
