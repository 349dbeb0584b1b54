package viz

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Coerce attempts to read a cell as a number. Accepts native numeric types
// and strings with thousands separators, currency symbols or a percent sign.
func Coerce(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case []byte:
		return coerceString(string(t))
	case string:
		return coerceString(t)
	}
	return 0, false
}

func coerceString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimSuffix(s, "€")
	s = strings.TrimPrefix(s, "$")
	// thousands separators: "1,234.5" and "1 234,5" both occur in the data
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	} else if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// NumericRatio reports what share of a sampled column coerces to a number.
// Nil cells do not count against the column.
func NumericRatio(rows [][]any, col, sampleSize int) float64 {
	if sampleSize <= 0 {
		sampleSize = 20
	}
	seen, numeric := 0, 0
	for i, row := range rows {
		if i >= sampleSize {
			break
		}
		if col >= len(row) || row[col] == nil {
			continue
		}
		seen++
		if _, ok := Coerce(row[col]); ok {
			numeric++
		}
	}
	if seen == 0 {
		return 0
	}
	return float64(numeric) / float64(seen)
}

var temporalNameHints = []string{
	"date", "jour", "day", "mois", "month", "annee", "année", "year",
	"semaine", "week", "periode", "période", "time", "trimestre", "quarter",
}

var temporalValueRe = regexp.MustCompile(`^\d{4}([-/]\d{1,2}){0,2}`)

// IsTemporalColumn reports whether a column carries time-series labels:
// either native time values or a time-hinting name whose sampled values look
// like dates.
func IsTemporalColumn(name string, rows [][]any, col, sampleSize int) bool {
	if sampleSize <= 0 {
		sampleSize = 20
	}
	seen, timeLike := 0, 0
	for i, row := range rows {
		if i >= sampleSize {
			break
		}
		if col >= len(row) || row[col] == nil {
			continue
		}
		seen++
		switch t := row[col].(type) {
		case time.Time:
			timeLike++
		case string:
			if temporalValueRe.MatchString(strings.TrimSpace(t)) {
				timeLike++
			}
		case []byte:
			if temporalValueRe.MatchString(strings.TrimSpace(string(t))) {
				timeLike++
			}
		}
	}
	if seen == 0 {
		return false
	}
	if timeLike == seen {
		// all-native time values need no name hint
		allNative := true
		for i, row := range rows {
			if i >= sampleSize {
				break
			}
			if col >= len(row) || row[col] == nil {
				continue
			}
			if _, ok := row[col].(time.Time); !ok {
				allNative = false
				break
			}
		}
		if allNative {
			return true
		}
	}
	lower := strings.ToLower(name)
	for _, hint := range temporalNameHints {
		if strings.Contains(lower, hint) {
			return float64(timeLike)/float64(seen) >= 0.5
		}
	}
	return false
}
