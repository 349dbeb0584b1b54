package model

import (
	"time"
)

// Route is the three-way classification of a question.
type Route string

const (
	RouteDataQuery     Route = "data_query"
	RouteSchemaRequest Route = "schema_request"
	RouteHelpRequest   Route = "help_request"
)

// ValidRoute reports whether the value is one of the enumerated routes.
// Anything else coming back from the classifier is rejected upstream.
func ValidRoute(r Route) bool {
	switch r {
	case RouteDataQuery, RouteSchemaRequest, RouteHelpRequest:
		return true
	}
	return false
}

// Classification is the router's verdict on a question.
type Classification struct {
	Route      Route   `json:"query_type"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"reasoning"`
}

// GeneratedSQL is the synthesizer's output: one validated SELECT statement
// plus advisory metadata that never gates execution.
type GeneratedSQL struct {
	Query    string
	Metadata SQLMetadata
}

// SQLMetadata describes the generated statement. Best-effort; advisory only.
type SQLMetadata struct {
	TablesUsed       []string
	HasJoins         bool
	HasAggregation   bool
	HasTimeFilter    bool
	HasLimit         bool
	AggregationsUsed []string
	Complexity       string // simple, moderate, complex
}

// ExecutionResult is the uniform columns+rows shape returned by the executor
// regardless of the underlying driver's native row representation.
type ExecutionResult struct {
	Columns  []string
	Rows     [][]any
	RowCount int
	Query    string // the statement actually executed, limits included
}

// Artifact references a file written as a side effect. The core never reads
// the file back; consumers access it by path.
type Artifact struct {
	Path string
	Size int64
}

// ChartSpec is the visualization planner's output.
type ChartSpec struct {
	ChartType   ChartType
	Title       string
	LabelColumn string
	ValueColumn string
	Artifact    Artifact
	Stats       ChartStats
}

// ChartStats is the small statistics panel displayed alongside the chart.
type ChartStats struct {
	Count int
	Sum   float64
	Mean  float64
	Max   float64
	Min   float64
}

// WorkflowState is the single mutable record threaded through every stage.
// It is created fresh per question, flows through the pipeline exactly once
// and is discarded after FinalResponse is read.
type WorkflowState struct {
	RunID     string
	StartedAt time.Time

	Question string // immutable once set
	Route    Route  // set once by the router
	Language string // fr or en, from the router

	Intent          *IntentRecord
	GeneratedSQL    *GeneratedSQL
	ExecutionResult *ExecutionResult
	ExportArtifact  *Artifact // never fatal if absent
	Chart           *ChartSpec

	FinalResponse string

	Failed        bool
	FailureReason string
	FailureErr    error // the stage error, carrying the errx taxonomy
}

// Fail records a stage failure. Downstream degraded-continue stages still run;
// the composer surfaces the failure.
func (s *WorkflowState) Fail(err error) {
	s.Failed = true
	s.FailureErr = err
	if err != nil {
		s.FailureReason = err.Error()
	}
}
