// Package intent turns a routed data question into a structured query plan.
// The analyzer trusts nothing coming back from the model: tables are
// validated against the catalog, unknown chart types collapse to auto, and a
// fully failed analysis still yields a usable record via keyword matching.
package intent

import (
	"context"
	"strings"
	"time"

	"github.com/telmi-agent/server/internal/agent/catalog"
	"github.com/telmi-agent/server/internal/agent/graph/parsers"
	"github.com/telmi-agent/server/internal/agent/graph/prompts"
	"github.com/telmi-agent/server/internal/agent/llm"
	"github.com/telmi-agent/server/internal/agent/model"
	logx "github.com/telmi-agent/server/pkg/logger"
)

// Analyzer produces IntentRecords from natural-language questions.
type Analyzer struct {
	completer llm.Completer
	catalog   *catalog.Catalog
}

func New(completer llm.Completer, cat *catalog.Catalog) *Analyzer {
	return &Analyzer{completer: completer, catalog: cat}
}

// intentResponse mirrors the JSON contract of the analysis prompt.
type intentResponse struct {
	IntentAnalysis struct {
		PrimaryIntent    string  `json:"primary_intent"`
		IntentConfidence float64 `json:"intent_confidence"`
	} `json:"intent_analysis"`
	VisualizationPreferences struct {
		ChartType           string  `json:"user_requested_chart_type"`
		ChartTypeConfidence float64 `json:"chart_type_confidence"`
	} `json:"visualization_preferences"`
	TableAnalysis struct {
		RequiredTables []string `json:"required_tables"`
		PrimaryTable   string   `json:"primary_table"`
	} `json:"table_analysis"`
	JoinAnalysis struct {
		RequiredJoins []model.JoinSpec `json:"required_joins"`
	} `json:"join_analysis"`
	ColumnAnalysis struct {
		SelectColumns     []model.ColumnRef `json:"select_columns"`
		AggregationNeeded bool              `json:"aggregation_needed"`
		GroupingColumns   []string          `json:"grouping_columns"`
	} `json:"column_analysis"`
	TemporalAnalysis struct {
		NeedsTimeFilter bool   `json:"needs_time_filter"`
		TimeFilterSQL   string `json:"time_filter_sql"`
	} `json:"temporal_analysis"`
	OutputRequirements struct {
		SuggestedLimit int    `json:"suggested_limit"`
		SortOrder      string `json:"sort_order"`
	} `json:"output_requirements"`
}

// Analyze never returns an empty table list. When the model is unusable the
// analyzer falls back to catalog keyword patterns, and when validation strips
// every table it substitutes the catalog fallback tables.
func (a *Analyzer) Analyze(ctx context.Context, question string) *model.IntentRecord {
	start := time.Now()

	rec, err := a.analyzeLLM(ctx, question)
	if err != nil {
		logx.Warn().
			Str("component", "intent").
			Err(err).
			Msg("model analysis failed, using pattern fallback")
		rec = a.analyzePatterns(question)
	}
	a.validate(rec)

	logx.Info().
		Str("component", "intent").
		Str("primary_intent", rec.PrimaryIntent).
		Strs("tables", rec.RequiredTables).
		Str("chart_preference", string(rec.ChartPreference)).
		Dur("duration", time.Since(start)).
		Msg("intent analyzed")
	return rec
}

func (a *Analyzer) analyzeLLM(ctx context.Context, question string) (*model.IntentRecord, error) {
	prompt, err := prompts.RenderIntent(question, a.catalog.PromptContext())
	if err != nil {
		return nil, err
	}
	raw, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	var resp intentResponse
	if err := parsers.ParseJSONResponse(raw, &resp); err != nil {
		return nil, err
	}

	rec := &model.IntentRecord{
		PrimaryIntent:    resp.IntentAnalysis.PrimaryIntent,
		IntentConfidence: resp.IntentAnalysis.IntentConfidence,

		RequiredTables: resp.TableAnalysis.RequiredTables,
		PrimaryTable:   resp.TableAnalysis.PrimaryTable,
		RequiredJoins:  resp.JoinAnalysis.RequiredJoins,

		SelectColumns:     resp.ColumnAnalysis.SelectColumns,
		GroupingColumns:   resp.ColumnAnalysis.GroupingColumns,
		AggregationNeeded: resp.ColumnAnalysis.AggregationNeeded,

		NeedsTimeFilter:      resp.TemporalAnalysis.NeedsTimeFilter,
		TimeFilterExpression: resp.TemporalAnalysis.TimeFilterSQL,

		ChartPreference:           model.ChartType(resp.VisualizationPreferences.ChartType),
		ChartPreferenceConfidence: resp.VisualizationPreferences.ChartTypeConfidence,

		SuggestedLimit: resp.OutputRequirements.SuggestedLimit,
		SortOrder:      resp.OutputRequirements.SortOrder,
	}
	if rec.PrimaryIntent == "" {
		rec.PrimaryIntent = "general"
	}
	return rec, nil
}

// analyzePatterns matches the question against the catalog's keyword
// patterns. It is intentionally dumb: first pattern with a keyword hit wins
// on match count.
func (a *Analyzer) analyzePatterns(question string) *model.IntentRecord {
	q := strings.ToLower(question)

	var bestName string
	var best catalog.Pattern
	bestHits := 0
	for name, p := range a.catalog.Patterns() {
		hits := 0
		for _, k := range p.Keywords {
			if strings.Contains(q, strings.ToLower(k)) {
				hits++
			}
		}
		if hits > bestHits || (hits == bestHits && hits > 0 && name < bestName) {
			bestName, best, bestHits = name, p, hits
		}
	}

	rec := &model.IntentRecord{
		PrimaryIntent:    "general",
		IntentConfidence: 0.3,
		ChartPreference:  model.ChartAuto,
	}
	if bestHits > 0 {
		rec.PrimaryIntent = best.Intent
		rec.IntentConfidence = 0.5
		rec.RequiredTables = append(rec.RequiredTables, best.RequiredTables...)
		logx.Debug().
			Str("component", "intent").
			Str("pattern", bestName).
			Int("keyword_hits", bestHits).
			Msg("pattern fallback matched")
	}
	return rec
}

// validate enforces the record's invariants in place: every table must exist
// in the catalog (fuzzy-resolved when possible), the chart preference must be
// a known type, and the table list must never end up empty.
func (a *Analyzer) validate(rec *model.IntentRecord) {
	valid := rec.RequiredTables[:0]
	for _, t := range rec.RequiredTables {
		resolved, ok := a.catalog.Resolve(t)
		if !ok {
			logx.Warn().
				Str("component", "intent").
				Str("table", t).
				Msg("dropping unknown table from analysis")
			continue
		}
		valid = append(valid, resolved)
	}
	rec.RequiredTables = valid

	if len(rec.RequiredTables) == 0 {
		rec.RequiredTables = a.catalog.FallbackTables()
		logx.Warn().
			Str("component", "intent").
			Strs("tables", rec.RequiredTables).
			Msg("no valid tables in analysis, substituting catalog fallback")
	}

	if resolved, ok := a.catalog.Resolve(rec.PrimaryTable); ok {
		rec.PrimaryTable = resolved
	} else {
		rec.PrimaryTable = rec.RequiredTables[0]
	}

	if !model.ValidChartType(rec.ChartPreference) {
		rec.ChartPreference = model.ChartAuto
		rec.ChartPreferenceConfidence = 0
	}
}
