// Package sqlgen turns an intent analysis into one validated SELECT
// statement. Unlike the router and analyzer it has no silent fallback: a
// question the model cannot express as safe SQL is a hard stage failure that
// the composer reports.
package sqlgen

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/telmi-agent/server/internal/agent/catalog"
	"github.com/telmi-agent/server/internal/agent/graph/prompts"
	"github.com/telmi-agent/server/internal/agent/llm"
	"github.com/telmi-agent/server/internal/agent/model"
	errx "github.com/telmi-agent/server/internal/core/error"
	logx "github.com/telmi-agent/server/pkg/logger"
)

// Synthesizer generates SQL from intent records.
type Synthesizer struct {
	completer llm.Completer
	catalog   *catalog.Catalog
	cfg       model.ExecutorConfig
}

func New(completer llm.Completer, cat *catalog.Catalog, cfg model.ExecutorConfig) *Synthesizer {
	return &Synthesizer{completer: completer, catalog: cat, cfg: cfg}
}

// Synthesize produces one cleaned, validated SELECT for the question.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, rec *model.IntentRecord) (*model.GeneratedSQL, error) {
	start := time.Now()

	if rec == nil {
		rec = &model.IntentRecord{}
	}
	if len(rec.RequiredTables) == 0 {
		// malformed upstream intent still gets a schema context to work with
		rec.RequiredTables = s.catalog.FallbackTables()
		logx.Warn().
			Str("component", "sqlgen").
			Strs("tables", rec.RequiredTables).
			Msg("intent carried no tables, substituting catalog fallback")
	}

	intentJSON, err := json.Marshal(map[string]any{
		"primary_intent":     rec.PrimaryIntent,
		"required_tables":    rec.RequiredTables,
		"primary_table":      rec.PrimaryTable,
		"required_joins":     rec.RequiredJoins,
		"select_columns":     rec.SelectColumns,
		"grouping_columns":   rec.GroupingColumns,
		"aggregation_needed": rec.AggregationNeeded,
		"needs_time_filter":  rec.NeedsTimeFilter,
		"time_filter_sql":    rec.TimeFilterExpression,
		"suggested_limit":    rec.SuggestedLimit,
		"sort_order":         rec.SortOrder,
	})
	if err != nil {
		return nil, errx.New(err, errx.KindSQLGeneration, "encode intent analysis")
	}

	rowLimit := s.cfg.RowLimit
	if rec.SuggestedLimit > 0 && rec.SuggestedLimit < rowLimit {
		rowLimit = rec.SuggestedLimit
	}
	prompt, err := prompts.RenderSQL(
		question,
		s.catalog.SQLContext(rec.RequiredTables),
		string(intentJSON),
		s.cfg.Dialect,
		DialectGuidance(s.cfg.Dialect),
		rowLimit,
	)
	if err != nil {
		return nil, errx.New(err, errx.KindSQLGeneration, "render sql prompt")
	}

	raw, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, errx.New(err, errx.KindSQLGeneration, "sql model call failed")
	}

	query, err := Clean(raw, s.cfg.Dialect)
	if err != nil {
		logx.Warn().
			Str("component", "sqlgen").
			Err(err).
			Str("raw", truncate(raw, 300)).
			Msg("model output rejected")
		return nil, errx.New(err, errx.KindSQLGeneration, "generated statement rejected").
			WithSuggestion("Try rephrasing the question with the table or metric you are interested in.")
	}

	gen := &model.GeneratedSQL{
		Query:    query,
		Metadata: s.describe(query),
	}
	logx.Info().
		Str("component", "sqlgen").
		Str("complexity", gen.Metadata.Complexity).
		Strs("tables", gen.Metadata.TablesUsed).
		Dur("duration", time.Since(start)).
		Msg("sql generated")
	return gen, nil
}

var aggregationFunctions = []string{"COUNT", "SUM", "AVG", "MIN", "MAX"}

// describe extracts advisory metadata from the cleaned statement. Purely
// lexical; it never gates execution.
func (s *Synthesizer) describe(query string) model.SQLMetadata {
	upper := strings.ToUpper(query)
	lower := strings.ToLower(query)

	md := model.SQLMetadata{
		HasJoins:      strings.Contains(upper, " JOIN "),
		HasLimit:      strings.Contains(upper, "LIMIT"),
		HasTimeFilter: strings.Contains(upper, "INTERVAL") || strings.Contains(upper, "NOW()") || strings.Contains(upper, "CURRENT_DATE"),
	}
	for _, fn := range aggregationFunctions {
		if strings.Contains(upper, fn+"(") {
			md.HasAggregation = true
			md.AggregationsUsed = append(md.AggregationsUsed, fn)
		}
	}
	for _, t := range s.catalog.TableNames() {
		if strings.Contains(lower, strings.ToLower(t)) {
			md.TablesUsed = append(md.TablesUsed, t)
		}
	}

	joins := strings.Count(upper, " JOIN ")
	switch {
	case joins >= 2 || strings.Contains(upper, "WITH ") || strings.Count(upper, "SELECT") > 1:
		md.Complexity = "complex"
	case joins == 1 || md.HasAggregation:
		md.Complexity = "moderate"
	default:
		md.Complexity = "simple"
	}
	return md
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
