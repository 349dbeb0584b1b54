package viz

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/telmi-agent/server/internal/agent/model"
	errx "github.com/telmi-agent/server/internal/core/error"
)

//go:embed template/chart.html
var chartTemplate string

// chartJSType maps the chart families onto Chart.js types. Area and
// horizontal bar are rendered as their base type plus an option flag.
func chartJSType(c model.ChartType) string {
	switch c {
	case model.ChartArea:
		return "line"
	case model.ChartHorizontalBar:
		return "bar"
	case model.ChartAuto:
		return "bar"
	default:
		return string(c)
	}
}

func isCircular(c model.ChartType) bool {
	return c == model.ChartPie || c == model.ChartDoughnut
}

// renderHTML writes the self-contained chart page and returns the artifact.
func (p *Planner) renderHTML(spec *model.ChartSpec, question string, labels []string, values []float64) (*model.Artifact, error) {
	if err := os.MkdirAll(p.cfg.Dir, 0o755); err != nil {
		return nil, errx.New(err, errx.KindVisualization, "create visualization directory")
	}

	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return nil, errx.New(err, errx.KindVisualization, "encode labels")
	}
	valuesJSON, err := json.Marshal(values)
	if err != nil {
		return nil, errx.New(err, errx.KindVisualization, "encode values")
	}

	page := strings.NewReplacer(
		"__TITLE__", htmlEscape(spec.Title),
		"__CHART_JS_TYPE__", chartJSType(spec.ChartType),
		"__LABELS__", string(labelsJSON),
		"__VALUES__", string(valuesJSON),
		"__VALUE_LABEL__", htmlEscape(spec.ValueColumn),
		"__IS_CIRCULAR__", strconv.FormatBool(isCircular(spec.ChartType)),
		"__FILL__", strconv.FormatBool(spec.ChartType == model.ChartArea),
		"__INDEX_AXIS__", indexAxis(spec.ChartType),
		"__STAT_COUNT__", strconv.Itoa(spec.Stats.Count),
		"__STAT_SUM__", formatStat(spec.Stats.Sum),
		"__STAT_MEAN__", formatStat(spec.Stats.Mean),
		"__STAT_MAX__", formatStat(spec.Stats.Max),
		"__STAT_MIN__", formatStat(spec.Stats.Min),
		"__GENERATED_AT__", p.now().Format("2006-01-02 15:04:05"),
	).Replace(chartTemplate)

	// slug keeps same-second runs from clobbering each other
	name := fmt.Sprintf("chart_%s_%s.html", p.now().Format("20060102_150405"), slugify(question))
	path := filepath.Join(p.cfg.Dir, name)
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		return nil, errx.New(err, errx.KindVisualization, "write chart file")
	}
	return &model.Artifact{Path: path, Size: int64(len(page))}, nil
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
		s = "graphique"
	}
	return s
}

func indexAxis(c model.ChartType) string {
	if c == model.ChartHorizontalBar {
		return "y"
	}
	return "x"
}

func formatStat(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&#39;",
)

func htmlEscape(s string) string {
	return htmlEscaper.Replace(s)
}

// computeStats fills the statistics panel from the plotted values.
func computeStats(values []float64) model.ChartStats {
	stats := model.ChartStats{Count: len(values)}
	if len(values) == 0 {
		return stats
	}
	stats.Max = values[0]
	stats.Min = values[0]
	for _, v := range values {
		stats.Sum += v
		if v > stats.Max {
			stats.Max = v
		}
		if v < stats.Min {
			stats.Min = v
		}
	}
	stats.Mean = stats.Sum / float64(len(values))
	return stats
}

// formatLabel renders an axis label from a raw cell.
func formatLabel(v any) string {
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
		return t.Format("2006-01-02 15:04")
	default:
		return fmt.Sprintf("%v", t)
	}
}
