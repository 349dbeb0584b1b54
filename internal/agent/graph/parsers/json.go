// Package parsers isolates the fragile string surgery around LLM output.
// Every stage that receives JSON-shaped model responses goes through
// ParseJSONResponse so the fence-stripping and truncation rules live in
// exactly one place.
package parsers

import (
	"encoding/json"
	"fmt"
	"strings"

	logx "github.com/telmi-agent/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxErrSnippet = 200
)

// ParseJSONResponse decodes a JSON object that may be wrapped in markdown
// code fences or followed by trailing prose. The target must be a pointer.
func ParseJSONResponse(raw string, target any) (err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "json_parser").Msgf("panic recovered: %v", r)
			err = fmt.Errorf("json parser panic")
		}
	}()

	if len(raw) > maxContentLen {
		logx.Warn().
			Str("component", "json_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(raw)).
			Msg("content truncated due to size limit")
		raw = raw[:maxContentLen]
	}

	cleaned := ExtractJSONObject(raw)
	if cleaned == "" {
		return fmt.Errorf("no JSON object found in response: %s", snippet(raw))
	}

	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return fmt.Errorf("decode JSON response: %w (content: %s)", err, snippet(cleaned))
	}
	return nil
}

// ExtractJSONObject strips code-fence markup and trailing text, returning the
// outermost {...} object, or "" when none is present.
func ExtractJSONObject(raw string) string {
	s := StripCodeFences(raw)

	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		return ""
	}
	return strings.TrimSpace(s[start : end+1])
}

// StripCodeFences removes a surrounding markdown code fence, with or without
// a language identifier, leaving other content untouched.
func StripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the language identifier on the fence line, if any
	if idx := strings.Index(s, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(s[:idx])
		if len(firstLine) <= 10 && !strings.ContainsAny(firstLine, "{}(") {
			s = s[idx+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
