package model

// ChartType enumerates the renderable chart families.
type ChartType string

const (
	ChartAuto          ChartType = "auto"
	ChartLine          ChartType = "line"
	ChartArea          ChartType = "area"
	ChartBar           ChartType = "bar"
	ChartHorizontalBar ChartType = "horizontal_bar"
	ChartPie           ChartType = "pie"
	ChartDoughnut      ChartType = "doughnut"
	ChartScatter       ChartType = "scatter"
	ChartRadar         ChartType = "radar"
)

// ValidChartType reports whether the value names a known chart family.
func ValidChartType(c ChartType) bool {
	switch c {
	case ChartAuto, ChartLine, ChartArea, ChartBar, ChartHorizontalBar,
		ChartPie, ChartDoughnut, ChartScatter, ChartRadar:
		return true
	}
	return false
}

// JoinSpec describes one join required to answer the question.
type JoinSpec struct {
	FromTable string `json:"from_table"`
	ToTable   string `json:"to_table"`
	Condition string `json:"join_condition"`
	Purpose   string `json:"purpose"`
}

// ColumnRef is a column selection with its role in the query.
type ColumnRef struct {
	Column  string `json:"column"`
	Purpose string `json:"purpose"` // grouping, aggregation
	Alias   string `json:"alias"`
}

// IntentRecord is the structured interpretation of a question. RequiredTables
// is never empty: the analyzer substitutes catalog tables when validation
// leaves nothing.
type IntentRecord struct {
	PrimaryIntent    string
	IntentConfidence float64

	RequiredTables []string
	PrimaryTable   string
	RequiredJoins  []JoinSpec

	SelectColumns     []ColumnRef
	GroupingColumns   []string
	AggregationNeeded bool

	NeedsTimeFilter      bool
	TimeFilterExpression string

	ChartPreference           ChartType
	ChartPreferenceConfidence float64

	SuggestedLimit int
	SortOrder      string
}
