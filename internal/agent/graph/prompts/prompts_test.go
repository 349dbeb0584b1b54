package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRouter(t *testing.T) {
	out, err := RenderRouter("combien de demandes hier ?")
	require.NoError(t, err)
	assert.Contains(t, out, "combien de demandes hier ?")
	assert.NotContains(t, out, "{question}")
	// JSON braces in the contract must survive token replacement
	assert.Contains(t, out, `"query_type"`)
}

func TestRenderRouterEmptyQuestion(t *testing.T) {
	_, err := RenderRouter("   ")
	assert.Error(t, err)
}

func TestRenderIntent(t *testing.T) {
	out, err := RenderIntent("top offices", "Table demandes: id, date_demande")
	require.NoError(t, err)
	assert.Contains(t, out, "top offices")
	assert.Contains(t, out, "Table demandes")
	assert.NotContains(t, out, "{schema_context}")
}

func TestRenderIntentRequiresContext(t *testing.T) {
	_, err := RenderIntent("top offices", "")
	assert.Error(t, err)
}

func TestRenderSQL(t *testing.T) {
	out, err := RenderSQL("top offices", "demandes(id, type_service)", `{"primary_intent":"ranking"}`, "postgres", "use NOW() for current time", 500)
	require.NoError(t, err)
	assert.Contains(t, out, "demandes(id, type_service)")
	assert.Contains(t, out, "LIMIT 500")
	assert.Contains(t, out, "postgres")
	for _, token := range []string{"{question}", "{sql_context}", "{intent_json}", "{dialect}", "{row_limit}"} {
		assert.False(t, strings.Contains(out, token), "unreplaced token %s", token)
	}
}

func TestRenderSQLDefaultsRowLimit(t *testing.T) {
	out, err := RenderSQL("q", "ctx", "{}", "postgres", "", 0)
	require.NoError(t, err)
	assert.Contains(t, out, "LIMIT 1000")
}

func TestRenderViz(t *testing.T) {
	out, err := RenderViz("evolution of demands", []string{"month", "total"}, 12, "2024-01 | 42")
	require.NoError(t, err)
	assert.Contains(t, out, "month, total")
	assert.Contains(t, out, "Row count: 12")
	assert.Contains(t, out, "2024-01 | 42")
}
