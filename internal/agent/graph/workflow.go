// Package graph runs the question pipeline as an explicit state machine:
// a node enum, one handler per node and static successor maps. Branching
// happens in exactly two places, after classification and on stage failure,
// which keeps the whole control flow readable in one screen.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/telmi-agent/server/internal/agent/model"
	errx "github.com/telmi-agent/server/internal/core/error"
	"github.com/telmi-agent/server/internal/observability"
	logx "github.com/telmi-agent/server/pkg/logger"
)

// node identifies one pipeline stage.
type node string

const (
	nodeClassify node = "classify"
	nodeIntent   node = "intent"
	nodeSQLGen   node = "sqlgen"
	nodeExecute  node = "execute"
	nodeExport   node = "export"
	nodeViz      node = "viz"
	nodeCompose  node = "compose"
	nodeDone     node = "done"
)

// Classifier decides which route a question takes.
type Classifier interface {
	Classify(ctx context.Context, question string) model.Classification
}

// IntentAnalyzer produces the structured query plan.
type IntentAnalyzer interface {
	Analyze(ctx context.Context, question string) *model.IntentRecord
}

// SQLSynthesizer turns a plan into one validated statement.
type SQLSynthesizer interface {
	Synthesize(ctx context.Context, question string, rec *model.IntentRecord) (*model.GeneratedSQL, error)
}

// QueryExecutor runs the statement.
type QueryExecutor interface {
	Execute(ctx context.Context, gen *model.GeneratedSQL) (*model.ExecutionResult, error)
}

// Exporter writes the CSV artifact.
type Exporter interface {
	Export(result *model.ExecutionResult, question string) (*model.Artifact, error)
}

// ChartPlanner plans and renders the chart.
type ChartPlanner interface {
	Plan(ctx context.Context, question string, rec *model.IntentRecord, result *model.ExecutionResult) (*model.ChartSpec, error)
}

// Composer renders the final answer. Must never return an empty string.
type Composer interface {
	Compose(state *model.WorkflowState) string
}

// Workflow wires the stage implementations into the state machine.
type Workflow struct {
	classifier Classifier
	analyzer   IntentAnalyzer
	synth      SQLSynthesizer
	executor   QueryExecutor
	exporter   Exporter
	planner    ChartPlanner
	composer   Composer
	metrics    *observability.Metrics

	handlers   map[node]func(ctx context.Context, state *model.WorkflowState) error
	successors map[node]node
}

// Config collects the stage implementations for New.
type Config struct {
	Classifier Classifier
	Analyzer   IntentAnalyzer
	Synth      SQLSynthesizer
	Executor   QueryExecutor
	Exporter   Exporter
	Planner    ChartPlanner
	Composer   Composer
	Metrics    *observability.Metrics
}

func New(cfg Config) (*Workflow, error) {
	switch {
	case cfg.Classifier == nil:
		return nil, fmt.Errorf("workflow: classifier is required")
	case cfg.Analyzer == nil:
		return nil, fmt.Errorf("workflow: analyzer is required")
	case cfg.Synth == nil:
		return nil, fmt.Errorf("workflow: synthesizer is required")
	case cfg.Executor == nil:
		return nil, fmt.Errorf("workflow: executor is required")
	case cfg.Composer == nil:
		return nil, fmt.Errorf("workflow: composer is required")
	}
	w := &Workflow{
		classifier: cfg.Classifier,
		analyzer:   cfg.Analyzer,
		synth:      cfg.Synth,
		executor:   cfg.Executor,
		exporter:   cfg.Exporter,
		planner:    cfg.Planner,
		composer:   cfg.Composer,
		metrics:    cfg.Metrics,
	}
	w.handlers = map[node]func(ctx context.Context, state *model.WorkflowState) error{
		nodeClassify: w.classify,
		nodeIntent:   w.intent,
		nodeSQLGen:   w.sqlgen,
		nodeExecute:  w.execute,
		nodeExport:   w.export,
		nodeViz:      w.viz,
		nodeCompose:  w.compose,
	}
	w.successors = map[node]node{
		// nodeClassify branches, see next()
		nodeIntent:  nodeSQLGen,
		nodeSQLGen:  nodeExecute,
		nodeExecute: nodeExport,
		nodeExport:  nodeViz,
		nodeViz:     nodeCompose,
		nodeCompose: nodeDone,
	}
	return w, nil
}

// Run answers one question. It never panics outward and never returns an
// empty string: whatever breaks, the composer (or its fallback) speaks.
func (w *Workflow) Run(ctx context.Context, question string) string {
	return w.RunState(ctx, question).FinalResponse
}

// RunState is Run with the full terminal state exposed, for callers that
// persist transcripts or inspect artifacts.
func (w *Workflow) RunState(ctx context.Context, question string) (state *model.WorkflowState) {
	state = &model.WorkflowState{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Question:  question,
	}
	defer func() {
		if r := recover(); r != nil {
			logx.Error().
				Str("component", "workflow").
				Str("runID", state.RunID).
				Msgf("panic recovered: %v", r)
			state.Fail(errx.New(fmt.Errorf("panic: %v", r), errx.KindInternal, "internal failure"))
			state.FinalResponse = w.composer.Compose(state)
		}
		if state.FinalResponse == "" {
			state.FinalResponse = w.composer.Compose(state)
		}
		if state.FinalResponse == "" {
			state.FinalResponse = "Je n'ai pas pu traiter cette demande."
		}
		w.metrics.ObserveRun(string(state.Route), time.Since(state.StartedAt))
	}()

	for current := nodeClassify; current != nodeDone; {
		handler := w.handlers[current]
		start := time.Now()
		err := handler(ctx, state)
		w.metrics.ObserveStage(string(current), time.Since(start))

		if err != nil {
			w.metrics.ObserveFailure(string(errx.KindOf(err)))
			if degraded(current) {
				// export and viz failures weaken the answer, never kill it
				logx.Warn().
					Str("component", "workflow").
					Str("runID", state.RunID).
					Str("node", string(current)).
					Err(err).
					Msg("stage degraded, continuing")
				current = w.successors[current]
				continue
			}
			logx.Error().
				Str("component", "workflow").
				Str("runID", state.RunID).
				Str("node", string(current)).
				Err(err).
				Msg("stage failed")
			state.Fail(err)
			current = nodeCompose
			continue
		}
		current = w.next(current, state)
	}

	logx.Info().
		Str("component", "workflow").
		Str("runID", state.RunID).
		Str("route", string(state.Route)).
		Bool("failed", state.Failed).
		Dur("duration", time.Since(state.StartedAt)).
		Msg("run finished")
	return state
}

// next resolves the successor. Only classification branches; every other
// node has a single static successor.
func (w *Workflow) next(current node, state *model.WorkflowState) node {
	if current == nodeClassify {
		if state.Route == model.RouteDataQuery {
			return nodeIntent
		}
		// schema and help answers come straight from the composer
		return nodeCompose
	}
	return w.successors[current]
}

// degraded reports whether a node's failure is non-fatal.
func degraded(n node) bool {
	return n == nodeExport || n == nodeViz
}

func (w *Workflow) classify(ctx context.Context, state *model.WorkflowState) error {
	cls := w.classifier.Classify(ctx, state.Question)
	state.Route = cls.Route
	state.Language = cls.Language
	return nil
}

func (w *Workflow) intent(ctx context.Context, state *model.WorkflowState) error {
	state.Intent = w.analyzer.Analyze(ctx, state.Question)
	return nil
}

func (w *Workflow) sqlgen(ctx context.Context, state *model.WorkflowState) error {
	gen, err := w.synth.Synthesize(ctx, state.Question, state.Intent)
	if err != nil {
		return err
	}
	state.GeneratedSQL = gen
	return nil
}

func (w *Workflow) execute(ctx context.Context, state *model.WorkflowState) error {
	result, err := w.executor.Execute(ctx, state.GeneratedSQL)
	if err != nil {
		return err
	}
	state.ExecutionResult = result
	return nil
}

func (w *Workflow) export(ctx context.Context, state *model.WorkflowState) error {
	if w.exporter == nil || state.ExecutionResult == nil || state.ExecutionResult.RowCount == 0 {
		return nil
	}
	artifact, err := w.exporter.Export(state.ExecutionResult, state.Question)
	if err != nil {
		return err
	}
	state.ExportArtifact = artifact
	return nil
}

func (w *Workflow) viz(ctx context.Context, state *model.WorkflowState) error {
	if w.planner == nil {
		return nil
	}
	chart, err := w.planner.Plan(ctx, state.Question, state.Intent, state.ExecutionResult)
	if err != nil {
		return err
	}
	state.Chart = chart
	return nil
}

func (w *Workflow) compose(ctx context.Context, state *model.WorkflowState) error {
	state.FinalResponse = w.composer.Compose(state)
	if state.FinalResponse == "" {
		state.FinalResponse = "Je n'ai pas pu traiter cette demande."
	}
	return nil
}
