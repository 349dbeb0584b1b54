// Package export writes query results to CSV files on local disk and keeps
// the export directory from growing without bound.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/telmi-agent/server/internal/agent/model"
	errx "github.com/telmi-agent/server/internal/core/error"
	logx "github.com/telmi-agent/server/pkg/logger"
)

// Exporter writes result sets as CSV artifacts.
type Exporter struct {
	cfg model.ExportConfig
	now func() time.Time
}

func New(cfg model.ExportConfig) *Exporter {
	return &Exporter{cfg: cfg, now: time.Now}
}

// Export writes the result to a timestamped CSV file and returns its
// location. The caller treats a failure here as non-fatal.
func (e *Exporter) Export(result *model.ExecutionResult, question string) (*model.Artifact, error) {
	if result == nil || len(result.Columns) == 0 {
		return nil, errx.New(fmt.Errorf("no result to export"), errx.KindExport, "nothing to export")
	}
	if err := os.MkdirAll(e.cfg.Dir, 0o755); err != nil {
		return nil, errx.New(err, errx.KindExport, "create export directory")
	}

	name := fmt.Sprintf("export_%s_%s.csv", e.now().Format("20060102_150405"), slugify(question))
	path := filepath.Join(e.cfg.Dir, name)

	f, err := os.Create(path)
	if err != nil {
		return nil, errx.New(err, errx.KindExport, "create export file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(result.Columns); err != nil {
		return nil, errx.New(err, errx.KindExport, "write csv header")
	}
	record := make([]string, len(result.Columns))
	for _, row := range result.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatValue(row[i])
			}
		}
		if err := w.Write(record); err != nil {
			return nil, errx.New(err, errx.KindExport, "write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errx.New(err, errx.KindExport, "flush csv")
	}

	info, err := f.Stat()
	if err != nil {
		return nil, errx.New(err, errx.KindExport, "stat export file")
	}

	if removed := e.cleanup(); removed > 0 {
		logx.Debug().
			Str("component", "export").
			Int("removed", removed).
			Msg("pruned old exports")
	}

	logx.Info().
		Str("component", "export").
		Str("path", path).
		Int("rows", result.RowCount).
		Msg("csv written")
	return &model.Artifact{Path: path, Size: info.Size()}, nil
}

// ListExports returns the existing CSV artifacts, newest first.
func (e *Exporter) ListExports() ([]model.Artifact, error) {
	entries, err := os.ReadDir(e.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errx.New(err, errx.KindExport, "read export directory")
	}

	type stamped struct {
		artifact model.Artifact
		modTime  time.Time
	}
	var files []stamped
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, stamped{
			artifact: model.Artifact{Path: filepath.Join(e.cfg.Dir, entry.Name()), Size: info.Size()},
			modTime:  info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	out := make([]model.Artifact, 0, len(files))
	for _, f := range files {
		out = append(out, f.artifact)
	}
	return out, nil
}

// cleanup removes the oldest exports beyond the configured cap. Errors are
// swallowed: housekeeping must never fail an export.
func (e *Exporter) cleanup() int {
	if e.cfg.MaxFiles <= 0 {
		return 0
	}
	artifacts, err := e.ListExports()
	if err != nil || len(artifacts) <= e.cfg.MaxFiles {
		return 0
	}
	removed := 0
	for _, a := range artifacts[e.cfg.MaxFiles:] {
		if os.Remove(a.Path) == nil {
			removed++
		}
	}
	return removed
}

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify turns a question into a short filename fragment.
func slugify(question string) string {
	s := strings.ToLower(question)
	s = nonSlugRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 40 {
		s = s[:40]
		s = strings.Trim(s, "_")
	}
	if s == "" {
		s = "resultats"
	}
	return s
}

// formatValue renders a cell the way a spreadsheet user expects: no Go type
// noise, empty string for NULL, dates in ISO form.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format("2006-01-02 15:04:05")
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
