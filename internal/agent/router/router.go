// Package router classifies incoming questions into one of three routes
// before any expensive work happens. Classification is best effort: when the
// model call or its output is unusable the router degrades to keyword
// matching and finally to treating the question as a data query.
package router

import (
	"context"
	"strings"
	"time"

	"github.com/telmi-agent/server/internal/agent/graph/parsers"
	"github.com/telmi-agent/server/internal/agent/graph/prompts"
	"github.com/telmi-agent/server/internal/agent/llm"
	"github.com/telmi-agent/server/internal/agent/model"
	logx "github.com/telmi-agent/server/pkg/logger"
)

// Router performs the three-way question classification.
type Router struct {
	completer llm.Completer
}

func New(completer llm.Completer) *Router {
	return &Router{completer: completer}
}

// Classify never returns an error to the caller: any failure along the way
// falls back to keyword classification so the pipeline always has a route.
func (r *Router) Classify(ctx context.Context, question string) model.Classification {
	start := time.Now()

	cls, err := r.classifyLLM(ctx, question)
	if err != nil {
		logx.Warn().
			Str("component", "router").
			Err(err).
			Msg("model classification failed, using keyword fallback")
		cls = classifyKeywords(question)
	}

	logx.Info().
		Str("component", "router").
		Str("route", string(cls.Route)).
		Str("language", cls.Language).
		Float64("confidence", cls.Confidence).
		Dur("duration", time.Since(start)).
		Msg("question classified")
	return cls
}

func (r *Router) classifyLLM(ctx context.Context, question string) (model.Classification, error) {
	var cls model.Classification

	prompt, err := prompts.RenderRouter(question)
	if err != nil {
		return cls, err
	}
	raw, err := r.completer.Complete(ctx, prompt)
	if err != nil {
		return cls, err
	}
	if err := parsers.ParseJSONResponse(raw, &cls); err != nil {
		return cls, err
	}
	if !model.ValidRoute(cls.Route) {
		logx.Warn().
			Str("component", "router").
			Str("route", string(cls.Route)).
			Msg("unknown route from model, using keyword fallback")
		return classifyKeywords(question), nil
	}
	cls.Language = normalizeLanguage(cls.Language, question)
	return cls, nil
}

// normalizeLanguage maps spelled-out answers onto the fr/en codes the rest of
// the pipeline uses. Empty or unknown values fall back to detection.
func normalizeLanguage(lang, question string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "fr", "french", "mixed":
		return "fr"
	case "en", "english":
		return "en"
	}
	return detectLanguage(question)
}

var schemaKeywords = []string{
	"schema", "schéma", "structure", "tables disponibles", "quelles tables",
	"what tables", "colonnes", "columns", "base de données", "database structure",
	"describe table", "décris la table",
}

var helpKeywords = []string{
	"help", "aide", "que peux-tu", "que sais-tu faire", "what can you do",
	"how do i", "comment utiliser", "comment ça marche", "capabilities",
	"exemples de questions",
}

// classifyKeywords is the deterministic fallback. Data query is the default
// route: an unrecognized question still deserves a SQL attempt.
func classifyKeywords(question string) model.Classification {
	q := strings.ToLower(question)
	route := model.RouteDataQuery
	switch {
	case containsAny(q, helpKeywords):
		route = model.RouteHelpRequest
	case containsAny(q, schemaKeywords):
		route = model.RouteSchemaRequest
	}
	return model.Classification{
		Route:      route,
		Language:   detectLanguage(question),
		Confidence: 0.5,
		Rationale:  "keyword fallback",
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

var frenchMarkers = []string{
	" le ", " la ", " les ", " des ", " une ", " combien ", " quel ", " quelle ",
	"où ", "qui ", " pour ", " dans ", " avec ", "évolution", "répartition",
}

// detectLanguage is a coarse fr/en split. The dataset is French so French
// wins ties on accented text.
func detectLanguage(question string) string {
	q := " " + strings.ToLower(question) + " "
	for _, m := range frenchMarkers {
		if strings.Contains(q, m) {
			return "fr"
		}
	}
	for _, r := range q {
		if r > 127 {
			return "fr"
		}
	}
	return "en"
}
