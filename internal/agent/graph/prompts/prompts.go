package prompts

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
)

//go:embed template/router_prompt.txt
var routerPrompt string

//go:embed template/intent_prompt.txt
var intentPrompt string

//go:embed template/sql_prompt.txt
var sqlPrompt string

//go:embed template/viz_prompt.txt
var vizPrompt string

// RenderRouter renders the question classification prompt.
func RenderRouter(question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question is empty")
	}
	// Safely render known tokens only to avoid interfering with JSON braces in template
	return strings.NewReplacer(
		"{question}", question,
	).Replace(routerPrompt), nil
}

// RenderIntent renders the intent analysis prompt with the catalog context.
func RenderIntent(question, schemaContext string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question is empty")
	}
	if strings.TrimSpace(schemaContext) == "" {
		return "", fmt.Errorf("schema context is empty")
	}
	return strings.NewReplacer(
		"{question}", question,
		"{schema_context}", schemaContext,
	).Replace(intentPrompt), nil
}

// RenderSQL renders the SQL synthesis prompt. intentJSON carries the
// serialized intent analysis and dialectGuidance the per-dialect
// function hints.
func RenderSQL(question, sqlContext, intentJSON, dialect, dialectGuidance string, rowLimit int) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question is empty")
	}
	if strings.TrimSpace(sqlContext) == "" {
		return "", fmt.Errorf("sql context is empty")
	}
	if rowLimit <= 0 {
		rowLimit = 1000
	}
	return strings.NewReplacer(
		"{question}", question,
		"{sql_context}", sqlContext,
		"{intent_json}", intentJSON,
		"{dialect}", dialect,
		"{dialect_guidance}", dialectGuidance,
		"{row_limit}", strconv.Itoa(rowLimit),
	).Replace(sqlPrompt), nil
}

// RenderViz renders the chart analysis prompt from the result shape.
func RenderViz(question string, columns []string, rowCount int, sampleRows string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question is empty")
	}
	return strings.NewReplacer(
		"{question}", question,
		"{columns}", strings.Join(columns, ", "),
		"{row_count}", strconv.Itoa(rowCount),
		"{sample_rows}", sampleRows,
	).Replace(vizPrompt), nil
}
