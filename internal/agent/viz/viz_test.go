package viz

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telmi-agent/server/internal/agent/model"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return f.reply, f.err
}

func newPlanner(t *testing.T, reply string) *Planner {
	t.Helper()
	return New(&fakeCompleter{reply: reply}, model.VizConfig{
		Dir:                  t.TempDir(),
		NumericThreshold:     0.8,
		PreferenceConfidence: 0.7,
		PieCategoryCap:       8,
		SampleSize:           20,
	})
}

func categoricalResult(rows int) *model.ExecutionResult {
	r := &model.ExecutionResult{Columns: []string{"maison", "total"}}
	for i := 0; i < rows; i++ {
		r.Rows = append(r.Rows, []any{"MFS " + string(rune('A'+i)), int64(100 - i)})
	}
	r.RowCount = rows
	return r
}

func monthlyResult() *model.ExecutionResult {
	return &model.ExecutionResult{
		Columns: []string{"mois", "total"},
		Rows: [][]any{
			{"2024-01", int64(10)},
			{"2024-02", int64(14)},
			{"2024-03", int64(9)},
		},
		RowCount: 3,
	}
}

func TestPlanSkipsUnchartableResults(t *testing.T) {
	p := newPlanner(t, "")

	spec, err := p.Plan(context.Background(), "q", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, spec)

	spec, err = p.Plan(context.Background(), "q", nil, &model.ExecutionResult{Columns: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Nil(t, spec, "zero rows")

	spec, err = p.Plan(context.Background(), "q", nil, &model.ExecutionResult{
		Columns: []string{"total"}, Rows: [][]any{{int64(1)}}, RowCount: 1,
	})
	require.NoError(t, err)
	assert.Nil(t, spec, "single column")

	spec, err = p.Plan(context.Background(), "q", nil, &model.ExecutionResult{
		Columns: []string{"a", "b"}, Rows: [][]any{{"x", "y"}}, RowCount: 1,
	})
	require.NoError(t, err)
	assert.Nil(t, spec, "no numeric column")
}

func TestPlanRendersBarChart(t *testing.T) {
	p := newPlanner(t, `{"chart_type":"bar","title":"Demandes par maison","label_column":"maison","value_column":"total"}`)

	spec, err := p.Plan(context.Background(), "demandes par maison", nil, categoricalResult(4))
	require.NoError(t, err)
	require.NotNil(t, spec)

	assert.Equal(t, model.ChartBar, spec.ChartType)
	assert.Equal(t, "Demandes par maison", spec.Title)
	assert.Equal(t, "maison", spec.LabelColumn)
	assert.Equal(t, "total", spec.ValueColumn)
	assert.Equal(t, 4, spec.Stats.Count)
	assert.InDelta(t, 100, spec.Stats.Max, 0.001)
	assert.InDelta(t, 97, spec.Stats.Min, 0.001)

	data, err := os.ReadFile(spec.Artifact.Path)
	require.NoError(t, err)
	page := string(data)
	assert.Contains(t, page, "Demandes par maison")
	assert.Contains(t, page, `"MFS A"`)
	assert.Contains(t, page, "chart.js")
}

func TestPlanChartFilenameCarriesQuestionSlug(t *testing.T) {
	// two runs in the same second must not share a filename
	p := newPlanner(t, `{"chart_type":"bar","title":"T","label_column":"maison","value_column":"total"}`)

	first, err := p.Plan(context.Background(), "demandes par maison", nil, categoricalResult(3))
	require.NoError(t, err)
	second, err := p.Plan(context.Background(), "usagers par maison", nil, categoricalResult(3))
	require.NoError(t, err)

	assert.Contains(t, filepath.Base(first.Artifact.Path), "demandes_par_maison")
	assert.NotEqual(t, first.Artifact.Path, second.Artifact.Path)
}

func TestPlanTimeSeriesForcesLine(t *testing.T) {
	// the model suggests a bar chart but the label column is temporal
	p := newPlanner(t, `{"chart_type":"bar","title":"Evolution","label_column":"mois","value_column":"total"}`)

	spec, err := p.Plan(context.Background(), "evolution mensuelle", nil, monthlyResult())
	require.NoError(t, err)
	require.NotNil(t, spec)
	assert.Equal(t, model.ChartLine, spec.ChartType)
}

func TestPlanHonorsConfidentPiePreference(t *testing.T) {
	p := newPlanner(t, `{"chart_type":"bar","title":"Repartition","label_column":"maison","value_column":"total"}`)
	rec := &model.IntentRecord{ChartPreference: model.ChartPie, ChartPreferenceConfidence: 0.9}

	spec, err := p.Plan(context.Background(), "repartition en camembert", rec, categoricalResult(5))
	require.NoError(t, err)
	require.NotNil(t, spec)
	assert.Equal(t, model.ChartPie, spec.ChartType)
}

func TestHeuristicPieRespectsConfiguredCap(t *testing.T) {
	rec := &model.IntentRecord{PrimaryIntent: "distribution"}

	assert.Equal(t, model.ChartPie, heuristicType(rec, 10, false, 12))
	assert.Equal(t, model.ChartBar, heuristicType(rec, 10, false, 8))
}

func TestPlanRefusesPiePastCategoryCap(t *testing.T) {
	p := newPlanner(t, `{"chart_type":"bar","title":"Repartition","label_column":"maison","value_column":"total"}`)
	rec := &model.IntentRecord{ChartPreference: model.ChartPie, ChartPreferenceConfidence: 0.9}

	spec, err := p.Plan(context.Background(), "repartition en camembert", rec, categoricalResult(12))
	require.NoError(t, err)
	require.NotNil(t, spec)
	assert.NotEqual(t, model.ChartPie, spec.ChartType)
}

func TestPlanRefusesLowConfidencePreference(t *testing.T) {
	p := newPlanner(t, `{"chart_type":"bar","title":"T","label_column":"maison","value_column":"total"}`)
	rec := &model.IntentRecord{ChartPreference: model.ChartPie, ChartPreferenceConfidence: 0.4}

	spec, err := p.Plan(context.Background(), "q", rec, categoricalResult(5))
	require.NoError(t, err)
	assert.Equal(t, model.ChartBar, spec.ChartType)
}

func TestPlanRefusesNonTemporalPreferenceOnTimeSeries(t *testing.T) {
	p := newPlanner(t, `{"chart_type":"line","title":"T","label_column":"mois","value_column":"total"}`)
	rec := &model.IntentRecord{ChartPreference: model.ChartPie, ChartPreferenceConfidence: 0.95}

	spec, err := p.Plan(context.Background(), "evolution en camembert", rec, monthlyResult())
	require.NoError(t, err)
	assert.Equal(t, model.ChartLine, spec.ChartType)
}

func TestPlanHeuristicsWhenModelFails(t *testing.T) {
	p := New(&fakeCompleter{err: errors.New("gateway down")}, model.VizConfig{
		Dir: t.TempDir(), NumericThreshold: 0.8, PreferenceConfidence: 0.7, PieCategoryCap: 8, SampleSize: 20,
	})
	rec := &model.IntentRecord{PrimaryIntent: "ranking_analysis"}

	spec, err := p.Plan(context.Background(), "top 5 maisons", rec, categoricalResult(5))
	require.NoError(t, err)
	require.NotNil(t, spec)
	assert.Equal(t, model.ChartHorizontalBar, spec.ChartType)
	assert.NotEmpty(t, spec.Title)
}

func TestPlanNativeTimeColumn(t *testing.T) {
	p := New(&fakeCompleter{err: errors.New("down")}, model.VizConfig{
		Dir: t.TempDir(), NumericThreshold: 0.8, PreferenceConfidence: 0.7, PieCategoryCap: 8, SampleSize: 20,
	})
	result := &model.ExecutionResult{
		Columns: []string{"jour", "total"},
		Rows: [][]any{
			{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), int64(5)},
			{time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), int64(8)},
		},
		RowCount: 2,
	}

	spec, err := p.Plan(context.Background(), "demandes par jour", nil, result)
	require.NoError(t, err)
	require.NotNil(t, spec)
	assert.Equal(t, model.ChartLine, spec.ChartType)
}

func TestCoerce(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{int64(42), 42, true},
		{3.5, 3.5, true},
		{"1,234.5", 1234.5, true},
		{"1 234", 1234, true},
		{"87%", 87, true},
		{"12,5", 12.5, true},
		{"MFS Rennes", 0, false},
		{nil, 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := Coerce(c.in)
		assert.Equal(t, c.ok, ok, "input %v", c.in)
		if c.ok {
			assert.InDelta(t, c.want, got, 0.001, "input %v", c.in)
		}
	}
}

func TestNumericRatio(t *testing.T) {
	rows := [][]any{
		{"a", int64(1)},
		{"b", "2"},
		{"c", nil},
		{"d", "not a number"},
	}
	// nil does not count against the column: 2 of 3 seen values coerce
	assert.InDelta(t, 2.0/3.0, NumericRatio(rows, 1, 20), 0.001)
	assert.InDelta(t, 0, NumericRatio(rows, 0, 20), 0.001)
}

func TestIsTemporalColumn(t *testing.T) {
	monthRows := [][]any{{"2024-01"}, {"2024-02"}}
	assert.True(t, IsTemporalColumn("mois", monthRows, 0, 20))
	// same values without a time-hinting name are just strings
	assert.False(t, IsTemporalColumn("code", monthRows, 0, 20))

	nativeRows := [][]any{{time.Now()}, {time.Now()}}
	assert.True(t, IsTemporalColumn("whatever", nativeRows, 0, 20))

	assert.False(t, IsTemporalColumn("date", [][]any{{"hello"}}, 0, 20))
}

func TestChartHTMLEscapesTitle(t *testing.T) {
	p := newPlanner(t, `{"chart_type":"bar","title":"<script>alert(1)</script>","label_column":"maison","value_column":"total"}`)

	spec, err := p.Plan(context.Background(), "q", nil, categoricalResult(3))
	require.NoError(t, err)

	data, err := os.ReadFile(spec.Artifact.Path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "<script>alert(1)</script>"))
}
