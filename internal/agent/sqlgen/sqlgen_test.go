package sqlgen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telmi-agent/server/internal/agent/catalog"
	"github.com/telmi-agent/server/internal/agent/model"
	errx "github.com/telmi-agent/server/internal/core/error"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return f.reply, f.err
}

func newSynthesizer(t *testing.T, reply string) *Synthesizer {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	cfg := model.ExecutorConfig{RowLimit: 1000, Dialect: "postgres"}
	return New(&fakeCompleter{reply: reply}, cat, cfg)
}

func baseIntent() *model.IntentRecord {
	return &model.IntentRecord{
		PrimaryIntent:  "ranking",
		RequiredTables: []string{"demandes", "maisons_france_services"},
		PrimaryTable:   "demandes",
	}
}

func TestSynthesizeCleanStatement(t *testing.T) {
	s := newSynthesizer(t, "SELECT type_service, COUNT(*) AS total FROM demandes GROUP BY type_service ORDER BY total DESC LIMIT 10")
	gen, err := s.Synthesize(context.Background(), "demandes par type de service", baseIntent())
	require.NoError(t, err)

	assert.Contains(t, gen.Query, "SELECT type_service")
	assert.True(t, gen.Metadata.HasAggregation)
	assert.Contains(t, gen.Metadata.AggregationsUsed, "COUNT")
	assert.True(t, gen.Metadata.HasLimit)
	assert.Contains(t, gen.Metadata.TablesUsed, "demandes")
	assert.Equal(t, "moderate", gen.Metadata.Complexity)
}

func TestSynthesizeStripsFences(t *testing.T) {
	s := newSynthesizer(t, "```sql\nSELECT nom FROM maisons_france_services;\n```")
	gen, err := s.Synthesize(context.Background(), "liste des maisons", baseIntent())
	require.NoError(t, err)

	assert.Equal(t, "SELECT nom FROM maisons_france_services", gen.Query)
}

func TestSynthesizeSlicesLeadingProse(t *testing.T) {
	s := newSynthesizer(t, "Here is the query you asked for:\nSELECT COUNT(*) FROM usagers")
	gen, err := s.Synthesize(context.Background(), "combien d'usagers", baseIntent())
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(*) FROM usagers", gen.Query)
}

func TestSynthesizeRejectsDrop(t *testing.T) {
	s := newSynthesizer(t, "DROP TABLE usagers")
	_, err := s.Synthesize(context.Background(), "supprime la table", baseIntent())

	require.Error(t, err)
	assert.Equal(t, errx.KindSQLGeneration, errx.KindOf(err))
}

func TestSynthesizeRejectsSmuggledDelete(t *testing.T) {
	s := newSynthesizer(t, "SELECT 1; DELETE FROM demandes")
	_, err := s.Synthesize(context.Background(), "q", baseIntent())

	require.Error(t, err)
	assert.Equal(t, errx.KindSQLGeneration, errx.KindOf(err))
}

func TestSynthesizeRejectsForeignDateFunction(t *testing.T) {
	s := newSynthesizer(t, "SELECT strftime('%Y-%m', date_demande) FROM demandes")
	_, err := s.Synthesize(context.Background(), "demandes par mois", baseIntent())

	require.Error(t, err)
	assert.Equal(t, errx.KindSQLGeneration, errx.KindOf(err))
}

func TestSynthesizeModelFailure(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	s := New(&fakeCompleter{err: context.DeadlineExceeded}, cat, model.ExecutorConfig{RowLimit: 1000, Dialect: "postgres"})

	_, err = s.Synthesize(context.Background(), "q", baseIntent())
	require.Error(t, err)
	assert.Equal(t, errx.KindSQLGeneration, errx.KindOf(err))
}

func TestSynthesizeEmptyIntentTables(t *testing.T) {
	s := newSynthesizer(t, "SELECT COUNT(*) FROM maisons_france_services")
	gen, err := s.Synthesize(context.Background(), "combien de maisons", &model.IntentRecord{})
	require.NoError(t, err)
	assert.NotEmpty(t, gen.Query)
}

func TestCleanRejectsStatementAfterTerminator(t *testing.T) {
	// the scan runs before semicolon truncation, otherwise the trailing
	// statement would be silently dropped instead of rejected
	_, err := Clean("SELECT 1; DROP TABLE usagers", "postgres")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DROP")
}

func TestCleanEmptyOutput(t *testing.T) {
	_, err := Clean("```sql\n```", "postgres")
	assert.Error(t, err)
}

func TestCleanKeepsColumnNamesContainingKeywords(t *testing.T) {
	// created_at contains neither CREATE nor UPDATE as a whole word
	sql := "SELECT created_at, updated_count FROM demandes"
	got, err := Clean(sql, "postgres")
	require.NoError(t, err)
	assert.Equal(t, sql, got)
}

func TestCleanAllowsCTE(t *testing.T) {
	sql := "WITH monthly AS (SELECT DATE_TRUNC('month', date_demande) AS m, COUNT(*) c FROM demandes GROUP BY 1) SELECT m, c FROM monthly ORDER BY m"
	got, err := Clean(sql, "postgres")
	require.NoError(t, err)
	assert.Equal(t, sql, got)
}

func TestValidateKeywordInComment(t *testing.T) {
	// comments are stripped before keyword scanning, so a harmless word in a
	// trailing comment does not reject the statement
	err := Validate("SELECT 1 -- drop nothing", "postgres")
	assert.NoError(t, err)
}

func TestValidateRejectsUpdate(t *testing.T) {
	err := Validate("SELECT 1 UNION SELECT 2; UPDATE demandes SET statut = 'x'", "postgres")
	assert.Error(t, err)
}

func TestStripComments(t *testing.T) {
	got := StripComments("SELECT 1 -- tail\n/* block */ FROM demandes")
	assert.NotContains(t, got, "--")
	assert.NotContains(t, got, "block")
}
