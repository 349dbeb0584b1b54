// Package viz decides whether a result set deserves a chart and renders it
// as a self-contained HTML page. The model only advises on presentation;
// deterministic rules have the last word so a preference can never produce
// an unreadable chart.
package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/telmi-agent/server/internal/agent/graph/parsers"
	"github.com/telmi-agent/server/internal/agent/graph/prompts"
	"github.com/telmi-agent/server/internal/agent/llm"
	"github.com/telmi-agent/server/internal/agent/model"
	logx "github.com/telmi-agent/server/pkg/logger"
)

// Planner plans and renders charts for query results.
type Planner struct {
	completer llm.Completer
	cfg       model.VizConfig
	now       func() time.Time
}

func New(completer llm.Completer, cfg model.VizConfig) *Planner {
	return &Planner{completer: completer, cfg: cfg, now: time.Now}
}

// chartAnalysis mirrors the JSON contract of the chart prompt.
type chartAnalysis struct {
	ChartType   string `json:"chart_type"`
	Title       string `json:"title"`
	LabelColumn string `json:"label_column"`
	ValueColumn string `json:"value_column"`
	Reasoning   string `json:"reasoning"`
}

// Plan returns nil without error when the result is not chartable. A non-nil
// error only means rendering failed; the caller treats it as degraded output,
// never as a pipeline failure.
func (p *Planner) Plan(ctx context.Context, question string, rec *model.IntentRecord, result *model.ExecutionResult) (*model.ChartSpec, error) {
	if reason := p.skipReason(result); reason != "" {
		logx.Debug().
			Str("component", "viz").
			Str("reason", reason).
			Msg("skipping chart")
		return nil, nil
	}

	valueCol := p.pickValueColumn(result)
	labelCol := p.pickLabelColumn(result, valueCol)
	temporal := IsTemporalColumn(result.Columns[labelCol], result.Rows, labelCol, p.cfg.SampleSize)

	analysis := p.analyze(ctx, question, result)
	if analysis != nil {
		if i, ok := columnIndex(result.Columns, analysis.ValueColumn); ok && p.numeric(result, i) {
			valueCol = i
		}
		if i, ok := columnIndex(result.Columns, analysis.LabelColumn); ok && i != valueCol {
			labelCol = i
			temporal = IsTemporalColumn(result.Columns[labelCol], result.Rows, labelCol, p.cfg.SampleSize)
		}
	}

	chartType := p.chooseType(analysis, rec, result.RowCount, temporal)

	title := ""
	if analysis != nil {
		title = strings.TrimSpace(analysis.Title)
	}
	if title == "" {
		title = fmt.Sprintf("%s par %s", result.Columns[valueCol], result.Columns[labelCol])
	}

	labels := make([]string, 0, result.RowCount)
	values := make([]float64, 0, result.RowCount)
	for _, row := range result.Rows {
		v, ok := Coerce(row[valueCol])
		if !ok {
			continue
		}
		labels = append(labels, formatLabel(row[labelCol]))
		values = append(values, v)
	}

	spec := &model.ChartSpec{
		ChartType:   chartType,
		Title:       title,
		LabelColumn: result.Columns[labelCol],
		ValueColumn: result.Columns[valueCol],
		Stats:       computeStats(values),
	}
	artifact, err := p.renderHTML(spec, question, labels, values)
	if err != nil {
		return nil, err
	}
	spec.Artifact = *artifact

	logx.Info().
		Str("component", "viz").
		Str("chart_type", string(chartType)).
		Str("path", artifact.Path).
		Int("points", len(values)).
		Msg("chart rendered")
	return spec, nil
}

// skipReason applies the chartability rules; empty string means chartable.
func (p *Planner) skipReason(result *model.ExecutionResult) string {
	switch {
	case result == nil:
		return "no result"
	case result.RowCount == 0:
		return "empty result"
	case len(result.Columns) < 2:
		return "single column"
	}
	for col := range result.Columns {
		if p.numeric(result, col) {
			return ""
		}
	}
	return "no numeric column"
}

func (p *Planner) numeric(result *model.ExecutionResult, col int) bool {
	threshold := p.cfg.NumericThreshold
	if threshold <= 0 {
		threshold = 0.8
	}
	return NumericRatio(result.Rows, col, p.cfg.SampleSize) >= threshold
}

// pickValueColumn prefers the last numeric column: aggregates conventionally
// come after grouping columns in generated SQL.
func (p *Planner) pickValueColumn(result *model.ExecutionResult) int {
	for col := len(result.Columns) - 1; col >= 0; col-- {
		if p.numeric(result, col) {
			return col
		}
	}
	return len(result.Columns) - 1
}

// pickLabelColumn prefers a temporal column, then the first non-numeric one.
func (p *Planner) pickLabelColumn(result *model.ExecutionResult, valueCol int) int {
	for col, name := range result.Columns {
		if col != valueCol && IsTemporalColumn(name, result.Rows, col, p.cfg.SampleSize) {
			return col
		}
	}
	for col := range result.Columns {
		if col != valueCol && !p.numeric(result, col) {
			return col
		}
	}
	for col := range result.Columns {
		if col != valueCol {
			return col
		}
	}
	return 0
}

// analyze asks the model for a presentation suggestion. Failures degrade to
// nil and the deterministic rules take over entirely.
func (p *Planner) analyze(ctx context.Context, question string, result *model.ExecutionResult) *chartAnalysis {
	sample := &strings.Builder{}
	limit := p.cfg.SampleSize
	if limit <= 0 || limit > 5 {
		limit = 5
	}
	for i, row := range result.Rows {
		if i >= limit {
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = formatLabel(v)
		}
		fmt.Fprintln(sample, strings.Join(cells, " | "))
	}

	prompt, err := prompts.RenderViz(question, result.Columns, result.RowCount, sample.String())
	if err != nil {
		return nil
	}
	raw, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		logx.Warn().
			Str("component", "viz").
			Err(err).
			Msg("chart analysis failed, using heuristics")
		return nil
	}
	var analysis chartAnalysis
	if err := parsers.ParseJSONResponse(raw, &analysis); err != nil {
		return nil
	}
	return &analysis
}

// chooseType resolves the final chart family. Priority: explicit user
// preference, then the model suggestion, then heuristics. Temporal data
// always ends up on a line or area chart, and circular charts are refused
// past the category cap.
func (p *Planner) chooseType(analysis *chartAnalysis, rec *model.IntentRecord, rowCount int, temporal bool) model.ChartType {
	pieCap := p.pieCap()
	confidence := p.cfg.PreferenceConfidence
	if confidence <= 0 {
		confidence = 0.7
	}

	chosen := model.ChartAuto
	if analysis != nil {
		if suggested := model.ChartType(analysis.ChartType); model.ValidChartType(suggested) && suggested != model.ChartAuto {
			chosen = suggested
		}
	}
	if chosen == model.ChartAuto {
		chosen = heuristicType(rec, rowCount, temporal, pieCap)
	}

	if rec != nil && rec.ChartPreference != model.ChartAuto && rec.ChartPreferenceConfidence >= confidence {
		pref := rec.ChartPreference
		switch {
		case isCircular(pref) && rowCount > pieCap:
			logx.Debug().
				Str("component", "viz").
				Str("preference", string(pref)).
				Int("rows", rowCount).
				Msg("circular preference refused past category cap")
		case temporal && pref != model.ChartLine && pref != model.ChartArea:
			logx.Debug().
				Str("component", "viz").
				Str("preference", string(pref)).
				Msg("non-temporal preference refused on time series")
		default:
			chosen = pref
		}
	}

	if temporal && chosen != model.ChartLine && chosen != model.ChartArea {
		chosen = model.ChartLine
	}
	if isCircular(chosen) && rowCount > pieCap {
		chosen = model.ChartBar
	}
	return chosen
}

func (p *Planner) pieCap() int {
	if p.cfg.PieCategoryCap > 0 {
		return p.cfg.PieCategoryCap
	}
	return 8
}

func heuristicType(rec *model.IntentRecord, rowCount int, temporal bool, pieCap int) model.ChartType {
	if temporal {
		return model.ChartLine
	}
	if rec != nil {
		switch {
		case strings.Contains(rec.PrimaryIntent, "ranking"):
			return model.ChartHorizontalBar
		case strings.Contains(rec.PrimaryIntent, "distribution") && rowCount <= pieCap:
			return model.ChartPie
		}
	}
	return model.ChartBar
}

func columnIndex(columns []string, name string) (int, bool) {
	if strings.TrimSpace(name) == "" {
		return 0, false
	}
	for i, c := range columns {
		if strings.EqualFold(c, name) {
			return i, true
		}
	}
	return 0, false
}
