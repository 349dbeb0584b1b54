package sqlgen

import (
	"fmt"
	"regexp"
	"strings"
)

// disallowedKeywords are statement kinds that must never reach the database.
// Checked on word boundaries so column names like "created_at" pass.
var disallowedKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE",
	"TRUNCATE", "REPLACE", "EXEC", "EXECUTE", "GRANT", "REVOKE",
}

// foreignDateFunctions maps each dialect to date functions that belong to
// other engines. Models trained on mixed SQL corpora leak these constantly.
var foreignDateFunctions = map[string][]string{
	"postgres": {"STRFTIME", "DATE_FORMAT", "CURDATE", "DATEADD", "GETDATE", "DATEDIFF"},
	"mysql":    {"STRFTIME", "TO_CHAR", "DATE_TRUNC", "DATEADD", "GETDATE"},
	"sqlite":   {"DATE_FORMAT", "TO_CHAR", "DATE_TRUNC", "CURDATE", "DATEADD", "GETDATE"},
}

// DialectGuidance returns the prompt hint describing the date functions the
// target engine actually supports.
func DialectGuidance(dialect string) string {
	switch dialect {
	case "mysql":
		return "Use DATE_FORMAT(col, '%Y-%m') for month grouping, CURDATE() for the current date, and DATE_SUB(NOW(), INTERVAL n DAY) for relative ranges. Never use strftime, TO_CHAR or DATE_TRUNC."
	case "sqlite":
		return "Use strftime('%Y-%m', col) for month grouping and date('now', '-7 days') for relative ranges. Never use DATE_TRUNC, TO_CHAR or DATE_FORMAT."
	default: // postgres
		return "Use DATE_TRUNC('month', col) or TO_CHAR(col, 'YYYY-MM') for month grouping, NOW() for the current time, and col >= NOW() - INTERVAL '7 days' for relative ranges. Never use strftime, DATE_FORMAT or CURDATE."
	}
}

var (
	fenceRe    = regexp.MustCompile("(?s)```[a-zA-Z]*\n?(.*?)```")
	wordRe     = regexp.MustCompile(`[A-Za-z_]+`)
	commentRe  = regexp.MustCompile(`(?s)--[^\n]*|/\*.*?\*/`)
	languageRe = regexp.MustCompile(`(?i)^(sql|postgresql|postgres|mysql|sqlite)\s*$`)
)

// Clean normalizes raw model output into a single bare SELECT statement.
// It strips markdown fences and leading prose, truncates at the first
// semicolon and rejects anything that is not a read-only query.
func Clean(raw, dialect string) (string, error) {
	s := raw

	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = strings.ReplaceAll(s, "```", "")

	// drop bare language-identifier lines left over from fences
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if languageRe.MatchString(strings.TrimSpace(line)) {
			continue
		}
		lines = append(lines, line)
	}
	s = strings.Join(lines, "\n")

	// scan before truncating so a statement smuggled after a semicolon
	// still rejects the whole input
	if err := checkDisallowed(s); err != nil {
		return "", err
	}

	// one statement only
	if i := strings.Index(s, ";"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty statement after cleaning")
	}

	// tolerate prose before the statement by slicing from the first SELECT
	if !hasSelectPrefix(s) {
		upper := strings.ToUpper(s)
		if i := strings.Index(upper, "SELECT"); i >= 0 {
			s = strings.TrimSpace(s[i:])
		}
	}
	if !hasSelectPrefix(s) {
		return "", fmt.Errorf("statement is not a SELECT")
	}

	if err := Validate(s, dialect); err != nil {
		return "", err
	}
	return s, nil
}

func hasSelectPrefix(s string) bool {
	upper := strings.ToUpper(s)
	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")
}

// Validate rejects statements containing data-modifying keywords or date
// functions foreign to the dialect. The executor calls this again on whatever
// it is handed, independent of the synthesizer.
func Validate(sql, dialect string) error {
	if strings.TrimSpace(sql) == "" {
		return fmt.Errorf("empty statement")
	}
	if !hasSelectPrefix(strings.TrimSpace(sql)) {
		return fmt.Errorf("statement is not a SELECT")
	}

	if err := checkDisallowed(sql); err != nil {
		return err
	}
	words := keywordSet(sql)
	for _, fn := range foreignDateFunctions[dialect] {
		if words[fn] {
			return fmt.Errorf("function %s is not available on %s", fn, dialect)
		}
	}
	return nil
}

// checkDisallowed scans comment-stripped text on word boundaries for
// data-modifying keywords.
func checkDisallowed(text string) error {
	words := keywordSet(text)
	for _, kw := range disallowedKeywords {
		if words[kw] {
			return fmt.Errorf("disallowed keyword %s", kw)
		}
	}
	return nil
}

func keywordSet(text string) map[string]bool {
	bare := commentRe.ReplaceAllString(text, " ")
	words := map[string]bool{}
	for _, w := range wordRe.FindAllString(strings.ToUpper(bare), -1) {
		words[w] = true
	}
	return words
}

// StripComments removes SQL comments. The executor applies it before
// appending a row limit so a trailing line comment cannot swallow the clause.
func StripComments(sql string) string {
	return strings.TrimSpace(commentRe.ReplaceAllString(sql, " "))
}
