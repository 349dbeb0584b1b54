package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telmi-agent/server/internal/agent/model"
	errx "github.com/telmi-agent/server/internal/core/error"
)

func newExporter(t *testing.T) *Exporter {
	t.Helper()
	return New(model.ExportConfig{Dir: t.TempDir(), MaxFiles: 50})
}

func sampleResult() *model.ExecutionResult {
	return &model.ExecutionResult{
		Columns: []string{"maison", "total", "derniere_demande"},
		Rows: [][]any{
			{"MFS Rennes", int64(42), time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
			{"MFS Brest", int64(17), nil},
		},
		RowCount: 2,
	}
}

func TestExportWritesCSV(t *testing.T) {
	e := newExporter(t)

	artifact, err := e.Export(sampleResult(), "Top maisons par demandes ?")
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Positive(t, artifact.Size)
	assert.Contains(t, filepath.Base(artifact.Path), "top_maisons_par_demandes")

	f, err := os.Open(artifact.Path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"maison", "total", "derniere_demande"}, records[0])
	assert.Equal(t, []string{"MFS Rennes", "42", "2024-03-15"}, records[1])
	// NULL renders as empty cell
	assert.Equal(t, "", records[2][2])
}

func TestExportNilResult(t *testing.T) {
	e := newExporter(t)

	_, err := e.Export(nil, "q")
	require.Error(t, err)
	assert.Equal(t, errx.KindExport, errx.KindOf(err))
}

func TestExportZeroRowsStillWritesHeader(t *testing.T) {
	e := newExporter(t)

	artifact, err := e.Export(&model.ExecutionResult{Columns: []string{"a", "b"}}, "vide")
	require.NoError(t, err)

	data, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
}

func TestListExportsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	e := New(model.ExportConfig{Dir: dir, MaxFiles: 50})

	old := filepath.Join(dir, "export_old.csv")
	recent := filepath.Join(dir, "export_recent.csv")
	require.NoError(t, os.WriteFile(old, []byte("a\n"), 0o644))
	require.NoError(t, os.WriteFile(recent, []byte("b\n"), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	artifacts, err := e.ListExports()
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, recent, artifacts[0].Path)
	assert.Equal(t, old, artifacts[1].Path)
}

func TestListExportsMissingDir(t *testing.T) {
	e := New(model.ExportConfig{Dir: filepath.Join(t.TempDir(), "absent"), MaxFiles: 50})
	artifacts, err := e.ListExports()
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestCleanupPrunesOldest(t *testing.T) {
	dir := t.TempDir()
	e := New(model.ExportConfig{Dir: dir, MaxFiles: 2})

	for i, name := range []string{"one.csv", "two.csv", "three.csv"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))
		mod := time.Now().Add(time.Duration(i-3) * time.Hour)
		require.NoError(t, os.Chtimes(path, mod, mod))
	}

	// a fresh export triggers housekeeping
	_, err := e.Export(sampleResult(), "nouvelle question")
	require.NoError(t, err)

	artifacts, err := e.ListExports()
	require.NoError(t, err)
	assert.Len(t, artifacts, 2)
	// the newest file is the export we just wrote
	assert.Contains(t, artifacts[0].Path, "nouvelle_question")
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "combien_d_usagers_en_2024", slugify("Combien d'usagers en 2024 ?"))
	assert.Equal(t, "resultats", slugify("???"))
	assert.LessOrEqual(t, len(slugify("a very long question that keeps going and going and going far past the cap")), 40)
}
