package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

//go:embed default_catalog.json
var defaultCatalogJSON []byte

// Column describes one column of a catalog table.
type Column struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	PrimaryKey  bool   `json:"is_primary_key,omitempty"`
	ForeignKey  string `json:"foreign_key,omitempty"`
	Temporal    bool   `json:"is_temporal,omitempty"`
	Geographic  bool   `json:"is_geographic,omitempty"`
	Aggregatable bool  `json:"aggregatable,omitempty"`
}

// Table describes one catalog table.
type Table struct {
	Description  string            `json:"description"`
	PrimaryKeyCol string           `json:"primary_key"`
	Columns      map[string]Column `json:"columns"`
	ColumnOrder  []string          `json:"column_order"`
}

// Join describes a known join edge between two tables.
type Join struct {
	JoinKey      string `json:"join_key"`
	Relationship string `json:"relationship"`
	Purpose      string `json:"purpose"`
}

// Pattern is a canned query pattern used by the deterministic intent fallback.
type Pattern struct {
	Keywords       []string `json:"keywords"`
	RequiredTables []string `json:"required_tables"`
	Intent         string   `json:"intent"`
}

type catalogData struct {
	Tables        map[string]Table           `json:"tables"`
	TableOrder    []string                   `json:"table_order"`
	Relationships map[string]map[string]Join `json:"relationships"`
	Patterns      map[string]Pattern         `json:"patterns"`
}

// Catalog is the static description of the dataset. Loaded once at process
// start and immutable thereafter; safe for concurrent reads.
type Catalog struct {
	data catalogData
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalogJSON)
}

// Load reads a catalog from a JSON file, falling back to the embedded
// catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(raw)
}

// Parse builds a catalog from raw JSON.
func Parse(raw []byte) (*Catalog, error) {
	var data catalogData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(data.Tables) == 0 {
		return nil, fmt.Errorf("catalog has no tables")
	}
	if len(data.TableOrder) == 0 {
		for name := range data.Tables {
			data.TableOrder = append(data.TableOrder, name)
		}
		sort.Strings(data.TableOrder)
	}
	return &Catalog{data: data}, nil
}

// TableNames returns all table names in catalog order.
func (c *Catalog) TableNames() []string {
	out := make([]string, len(c.data.TableOrder))
	copy(out, c.data.TableOrder)
	return out
}

// Table returns the schema of a table, matching case-insensitively.
func (c *Catalog) Table(name string) (Table, bool) {
	if t, ok := c.data.Tables[name]; ok {
		return t, true
	}
	lower := strings.ToLower(strings.TrimSpace(name))
	for n, t := range c.data.Tables {
		if strings.ToLower(n) == lower {
			return t, true
		}
	}
	return Table{}, false
}

// HasTable reports whether the table exists, case-insensitively.
func (c *Catalog) HasTable(name string) bool {
	_, ok := c.Table(name)
	return ok
}

// Resolve maps a possibly misspelled or partial table name to the canonical
// catalog name. Returns the canonical name and whether a match was found.
func (c *Catalog) Resolve(name string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return "", false
	}
	for _, n := range c.data.TableOrder {
		if strings.ToLower(n) == lower {
			return n, true
		}
	}
	// substring match either way: "usager" -> "usagers",
	// "maisons" -> "maisons_france_services"
	for _, n := range c.data.TableOrder {
		ln := strings.ToLower(n)
		if strings.Contains(ln, lower) || strings.Contains(lower, ln) {
			return n, true
		}
	}
	return "", false
}

// Suggest returns up to max table names closest to the requested one, for
// "did you mean" hints. Closeness is shared-prefix length then substring hits.
func (c *Catalog) Suggest(name string, max int) []string {
	lower := strings.ToLower(strings.TrimSpace(name))
	type scored struct {
		name  string
		score int
	}
	var candidates []scored
	for _, n := range c.data.TableOrder {
		ln := strings.ToLower(n)
		score := 0
		if strings.Contains(ln, lower) || strings.Contains(lower, ln) {
			score += 10
		}
		score += sharedPrefixLen(ln, lower)
		if score > 0 {
			candidates = append(candidates, scored{name: n, score: score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	var out []string
	for _, cand := range candidates {
		if len(out) >= max {
			break
		}
		out = append(out, cand.name)
	}
	return out
}

// Joins returns the known join edges from a table.
func (c *Catalog) Joins(table string) map[string]Join {
	return c.data.Relationships[table]
}

// Patterns returns the canned query patterns for keyword matching.
func (c *Catalog) Patterns() map[string]Pattern {
	return c.data.Patterns
}

// FallbackTables returns the catalog's first two tables. Used when intent
// extraction yields nothing usable; never empty.
func (c *Catalog) FallbackTables() []string {
	if len(c.data.TableOrder) == 1 {
		return []string{c.data.TableOrder[0]}
	}
	return []string{c.data.TableOrder[0], c.data.TableOrder[1]}
}

// PromptContext renders a compact natural-language description of the whole
// schema for the intent analyzer prompt: per table its purpose and the key
// columns (primary keys, foreign keys, temporal and geographic markers).
func (c *Catalog) PromptContext() string {
	var b strings.Builder
	b.WriteString("# Database Schema\n\n")
	for _, name := range c.data.TableOrder {
		t := c.data.Tables[name]
		b.WriteString("## " + name + "\n")
		b.WriteString("Purpose: " + t.Description + "\n")
		b.WriteString("Key columns: ")
		var keys []string
		for _, col := range t.ColumnOrder {
			info := t.Columns[col]
			if info.PrimaryKey || info.ForeignKey != "" || info.Temporal || info.Geographic {
				keys = append(keys, fmt.Sprintf("%s (%s)", col, info.Type))
			}
			if len(keys) >= 6 {
				break
			}
		}
		b.WriteString(strings.Join(keys, ", ") + "\n\n")
	}
	b.WriteString("# Key Relationships\n")
	for _, from := range c.data.TableOrder {
		for to, join := range c.data.Relationships[from] {
			b.WriteString(fmt.Sprintf("- %s -> %s (%s): %s\n", from, to, join.JoinKey, join.Purpose))
		}
	}
	return b.String()
}

// SQLContext renders the full column list for the given tables only, for the
// SQL synthesizer prompt. Unknown tables are skipped.
func (c *Catalog) SQLContext(tables []string) string {
	var b strings.Builder
	b.WriteString("# SQL Context\n\n")
	for _, name := range tables {
		canonical, ok := c.Resolve(name)
		if !ok {
			continue
		}
		t := c.data.Tables[canonical]
		b.WriteString("## " + canonical + "\n")
		for _, col := range t.ColumnOrder {
			info := t.Columns[col]
			b.WriteString(fmt.Sprintf("- %s (%s): %s\n", col, info.Type, info.Description))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func sharedPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
