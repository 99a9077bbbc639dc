package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	getafe      = "Getafe"
	fuenlabrada = "Fuenlabrada"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2021, m, d, 0, 0, 0, 0, time.UTC)
}

func scenarioRecords() []IncidenceRecord {
	return []IncidenceRecord{
		{Entity: getafe, Date: day(time.January, 1), Incidence14d: 120},
		{Entity: getafe, Date: day(time.January, 8), Incidence14d: 95},
		{Entity: fuenlabrada, Date: day(time.January, 1), Incidence14d: 200},
	}
}

var (
	ministryOptions = ChartOptions{
		Title:  "Accumulated incidence",
		Labels: Labels{Entity: "Municipality/District", Date: "Date", Rate: "14-day incidence"},
		Thresholds: []Threshold{
			{Value: 500, Label: "ministry limit", Color: "red", AnnotationOffset: 20},
			{Value: 150, Label: "community transmission", Color: "orangered", AnnotationOffset: 20},
		},
	}
	targetOptions = ChartOptions{
		Thresholds: []Threshold{{Value: 25, Label: "incidence target", Color: "green", AnnotationOffset: 5}},
	}
)

func TestBuildChart_SingleEntity(t *testing.T) {
	spec := BuildChart(scenarioRecords(), []string{getafe}, ministryOptions)

	require.Len(t, spec.Series, 1)
	assert.Equal(t, getafe, spec.Series[0].Name)
	assert.Equal(t, ModeLinesMarkers, spec.Series[0].Mode)
	assert.Equal(t, []Point{
		{Date: day(time.January, 1), Value: 120},
		{Date: day(time.January, 8), Value: 95},
	}, spec.Series[0].Points)
}

func TestBuildChart_TwoEntities(t *testing.T) {
	spec := BuildChart(scenarioRecords(), []string{fuenlabrada, getafe}, ministryOptions)

	require.Len(t, spec.Series, 2)
	total := 0
	for _, s := range spec.Series {
		total += len(s.Points)
	}
	assert.Equal(t, 3, total)
	// Series follow table order, not selection order.
	assert.Equal(t, getafe, spec.Series[0].Name)
	assert.Equal(t, fuenlabrada, spec.Series[1].Name)
}

func TestBuildChart_UnknownEntitiesContributeNothing(t *testing.T) {
	spec := BuildChart(scenarioRecords(), []string{getafe, "Atlantis"}, ministryOptions)
	require.Len(t, spec.Series, 1)
	assert.Equal(t, getafe, spec.Series[0].Name)
}

func TestBuildChart_EmptySelection(t *testing.T) {
	for name, selected := range map[string][]string{
		"nil":       nil,
		"empty":     {},
		"unmatched": {"Atlantis"},
	} {
		t.Run(name, func(t *testing.T) {
			spec := BuildChart(scenarioRecords(), selected, ministryOptions)
			assert.True(t, spec.Empty())
			assert.Empty(t, spec.Series)
			assert.Empty(t, spec.Shapes)
			assert.Empty(t, spec.Annotations)
			assert.NotNil(t, spec.Series, "encodes as an empty list")
		})
	}
}

func TestBuildChart_MinistryThresholds(t *testing.T) {
	spec := BuildChart(scenarioRecords(), []string{getafe, fuenlabrada}, ministryOptions)

	require.Len(t, spec.Shapes, 2)
	assert.Equal(t, Shape{
		Kind: ShapeLine, X0: day(time.January, 1), Y0: 500, X1: day(time.January, 8), Y1: 500,
		Color: "red", Width: 1, Dash: DashDash,
	}, spec.Shapes[0])
	assert.Equal(t, 150.0, spec.Shapes[1].Y0)
	assert.Equal(t, "orangered", spec.Shapes[1].Color)

	require.Len(t, spec.Annotations, 2)
	assert.Equal(t, "ministry limit", spec.Annotations[0].Text)
	assert.Equal(t, 520.0, spec.Annotations[0].Y)
	assert.Equal(t, "community transmission", spec.Annotations[1].Text)
	assert.Equal(t, 170.0, spec.Annotations[1].Y)
}

func TestBuildChart_SingleTargetThreshold(t *testing.T) {
	records := []IncidenceRecord{
		{Entity: "Abrantes", Date: day(time.March, 2), Incidence14d: 40},
		{Entity: "Abrantes", Date: day(time.February, 2), Incidence14d: 60},
		{Entity: "Abrantes", Date: day(time.April, 6), Incidence14d: 20},
	}
	spec := BuildChart(records, []string{"Abrantes"}, targetOptions)

	require.Len(t, spec.Shapes, 1)
	assert.Equal(t, day(time.February, 2), spec.Shapes[0].X0)
	assert.Equal(t, 25.0, spec.Shapes[0].Y0)
	assert.Equal(t, day(time.April, 6), spec.Shapes[0].X1)
	assert.Equal(t, 25.0, spec.Shapes[0].Y1)

	require.Len(t, spec.Annotations, 1)
	assert.Equal(t, "incidence target", spec.Annotations[0].Text)
}

func TestBuildChart_AnnotationAnchor(t *testing.T) {
	var records []IncidenceRecord
	// Two entities share dates so duplicates must not count twice.
	for _, d := range []int{15, 1, 8, 22, 29} {
		records = append(records,
			IncidenceRecord{Entity: getafe, Date: day(time.January, d), Incidence14d: d},
			IncidenceRecord{Entity: fuenlabrada, Date: day(time.January, d), Incidence14d: d},
		)
	}

	spec := BuildChart(records, []string{getafe, fuenlabrada}, targetOptions)
	require.Len(t, spec.Annotations, 1)
	assert.Equal(t, day(time.January, 22), spec.Annotations[0].X)
}

func TestBuildChart_AnnotationFallsBackToLatestDate(t *testing.T) {
	spec := BuildChart(scenarioRecords(), []string{getafe}, targetOptions)
	require.Len(t, spec.Annotations, 1)
	assert.Equal(t, day(time.January, 8), spec.Annotations[0].X)
}

func TestBuildChart_Layout(t *testing.T) {
	spec := BuildChart(scenarioRecords(), []string{getafe}, ministryOptions)

	assert.Equal(t, "Accumulated incidence", spec.Title)
	assert.Equal(t, Legend{
		Title: "Municipality/District", Orientation: "h",
		XAnchor: "right", YAnchor: "bottom", X: 1, Y: 1.02,
	}, spec.Legend)
	assert.Equal(t, "2006-01-02", spec.XAxis.TickFormat)
	assert.Equal(t, "Date", spec.XAxis.Title)
	assert.True(t, spec.XAxis.ShowSpikes)
	assert.True(t, spec.YAxis.ShowSpikes)
	assert.Equal(t, DashSolid, spec.YAxis.SpikeDash)
	assert.Equal(t, "14-day incidence", spec.YAxis.Title)
}

func TestBuildChart_Idempotent(t *testing.T) {
	records := scenarioRecords()
	first := BuildChart(records, []string{getafe, fuenlabrada}, ministryOptions)
	second := BuildChart(records, []string{getafe, fuenlabrada}, ministryOptions)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("chart changed between calls (-first +second):\n%s", diff)
	}

	// Mutating one result must not leak into the next.
	first.Series[0].Points[0].Value = -1
	third := BuildChart(records, []string{getafe, fuenlabrada}, ministryOptions)
	assert.Equal(t, 120, third.Series[0].Points[0].Value)
}

func TestFilterRecords_PreservesOrder(t *testing.T) {
	got := FilterRecords(scenarioRecords(), []string{fuenlabrada, getafe})
	require.Len(t, got, 3)
	assert.Equal(t, getafe, got[0].Entity)
	assert.Equal(t, fuenlabrada, got[2].Entity)
}
