// Package respond assembles the final markdown answer. The composer is the
// one stage that must always succeed: whatever happened upstream, the caller
// gets a non-empty string.
package respond

import (
	"fmt"
	"strings"

	"github.com/telmi-agent/server/internal/agent/catalog"
	"github.com/telmi-agent/server/internal/agent/model"
	"github.com/telmi-agent/server/internal/agent/viz"
	errx "github.com/telmi-agent/server/internal/core/error"
)

// Composer renders workflow state into the final answer text.
type Composer struct {
	catalog *catalog.Catalog
}

func New(cat *catalog.Catalog) *Composer {
	return &Composer{catalog: cat}
}

// Compose never returns an empty string.
func (c *Composer) Compose(state *model.WorkflowState) string {
	var out string
	switch {
	case state == nil:
		out = fallbackMessage
	case state.Failed:
		out = c.composeFailure(state)
	case state.Route == model.RouteHelpRequest:
		out = c.composeHelp(state)
	case state.Route == model.RouteSchemaRequest:
		out = c.composeSchema(state)
	default:
		out = c.composeData(state)
	}
	if strings.TrimSpace(out) == "" {
		out = fallbackMessage
	}
	return out
}

const fallbackMessage = "Je n'ai pas pu traiter cette demande. Reformulez votre question ou tapez \"aide\" pour voir des exemples."

const helpText = `## 🤖 Assistant d'analyse France Services

Je réponds à vos questions sur les données des maisons France Services en langage naturel.

**Ce que je sais faire :**
- Interroger les données : *"Combien de demandes CAF cette semaine ?"*
- Classer et comparer : *"Top 5 des maisons par nombre de demandes"*
- Suivre des évolutions : *"Évolution mensuelle des demandes en 2024"*
- Décrire les données : *"Quelles tables sont disponibles ?"*

**Exemples de questions :**
- Répartition des demandes par type de service
- Quelles maisons ont le plus d'usagers à Rennes ?
- Durée moyenne de traitement par conseiller
- Taux de satisfaction par département en camembert

Chaque réponse chiffrée est accompagnée d'un export CSV et, quand les données s'y prêtent, d'un graphique.`

func (c *Composer) composeHelp(state *model.WorkflowState) string {
	return helpText
}

// composeSchema describes either a single table named in the question or the
// whole catalog. An unknown table name gets suggestions rather than nothing.
func (c *Composer) composeSchema(state *model.WorkflowState) string {
	if name, ok := c.mentionedTable(state.Question); ok {
		return c.describeTable(name)
	}
	if unknown := c.unknownTableMention(state.Question); unknown != "" {
		if suggestions := c.catalog.Suggest(unknown, 3); len(suggestions) > 0 {
			return fmt.Sprintf("La table `%s` n'existe pas. Vouliez-vous dire : %s ?\n\n%s",
				unknown, "`"+strings.Join(suggestions, "`, `")+"`", c.describeCatalog())
		}
	}
	return c.describeCatalog()
}

func (c *Composer) describeCatalog() string {
	b := &strings.Builder{}
	b.WriteString("## 📚 Tables disponibles\n\n")
	for _, name := range c.catalog.TableNames() {
		table, _ := c.catalog.Table(name)
		fmt.Fprintf(b, "- **%s** — %s (%d colonnes)\n", name, table.Description, len(table.Columns))
	}
	b.WriteString("\nDemandez par exemple : *\"Décris la table demandes\"* pour le détail des colonnes.")
	return b.String()
}

func (c *Composer) describeTable(name string) string {
	table, ok := c.catalog.Table(name)
	if !ok {
		return c.describeCatalog()
	}
	b := &strings.Builder{}
	fmt.Fprintf(b, "## 📋 Table `%s`\n\n%s\n\n", name, table.Description)
	b.WriteString("| Colonne | Type | Description |\n|---|---|---|\n")
	for _, col := range table.ColumnOrder {
		info := table.Columns[col]
		fmt.Fprintf(b, "| %s | %s | %s |\n", col, info.Type, info.Description)
	}
	return b.String()
}

// mentionedTable finds a catalog table named in the question.
func (c *Composer) mentionedTable(question string) (string, bool) {
	q := strings.ToLower(question)
	for _, name := range c.catalog.TableNames() {
		if strings.Contains(q, strings.ToLower(name)) {
			return name, true
		}
	}
	// partial mentions like "table usager"
	for _, word := range strings.Fields(q) {
		word = strings.Trim(word, "?.,!\"'`")
		if len(word) < 4 {
			continue
		}
		if name, ok := c.catalog.Resolve(word); ok {
			return name, true
		}
	}
	return "", false
}

// unknownTableMention extracts the word following "table" when it does not
// resolve, for did-you-mean suggestions.
func (c *Composer) unknownTableMention(question string) string {
	words := strings.Fields(strings.ToLower(question))
	for i, w := range words {
		if w == "table" && i+1 < len(words) {
			candidate := strings.Trim(words[i+1], "?.,!\"'`")
			if _, ok := c.catalog.Resolve(candidate); !ok && candidate != "" {
				return candidate
			}
		}
	}
	return ""
}

func (c *Composer) composeData(state *model.WorkflowState) string {
	b := &strings.Builder{}
	result := state.ExecutionResult

	b.WriteString("## 📊 Résultats\n\n")
	if result == nil || result.RowCount == 0 {
		b.WriteString("Aucune donnée ne correspond à cette question.\n")
	} else {
		fmt.Fprintf(b, "%d ligne(s) trouvée(s).\n\n", result.RowCount)
		b.WriteString(renderTable(result, 10))
		for _, insight := range insights(result) {
			fmt.Fprintf(b, "- %s\n", insight)
		}
	}

	if state.GeneratedSQL != nil {
		fmt.Fprintf(b, "\n**Requête exécutée :**\n```sql\n%s\n```\n", formatSQL(state.GeneratedSQL.Query))
	}

	if state.Chart != nil {
		fmt.Fprintf(b, "\n📈 Graphique (%s) : `%s`\n", state.Chart.ChartType, state.Chart.Artifact.Path)
	}
	if state.ExportArtifact != nil {
		fmt.Fprintf(b, "\n💾 Export CSV : `%s` (%d octets)\n", state.ExportArtifact.Path, state.ExportArtifact.Size)
	}
	return b.String()
}

// renderTable renders up to max rows as a markdown table.
func renderTable(result *model.ExecutionResult, max int) string {
	b := &strings.Builder{}
	b.WriteString("| " + strings.Join(result.Columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(result.Columns)) + "\n")
	for i, row := range result.Rows {
		if i >= max {
			fmt.Fprintf(b, "\n*… %d autres lignes dans l'export CSV.*\n", result.RowCount-max)
			break
		}
		cells := make([]string, len(result.Columns))
		for j := range cells {
			if j < len(row) {
				cells[j] = cellString(row[j])
			}
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	b.WriteString("\n")
	return b.String()
}

var sqlBreakKeywords = []string{
	"FROM", "LEFT JOIN", "RIGHT JOIN", "INNER JOIN", "JOIN",
	"WHERE", "GROUP BY", "HAVING", "ORDER BY", "LIMIT",
}

// formatSQL breaks a one-line statement at major keywords so long generated
// queries stay readable in chat.
func formatSQL(query string) string {
	out := strings.Join(strings.Fields(query), " ")
	for _, kw := range sqlBreakKeywords {
		out = strings.ReplaceAll(out, " "+kw+" ", "\n"+kw+" ")
	}
	return out
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	if bts, ok := v.([]byte); ok {
		return string(bts)
	}
	return fmt.Sprintf("%v", v)
}

// insights derives one-line observations from the result: the extremes of
// the last numeric column keyed by the first column.
func insights(result *model.ExecutionResult) []string {
	if len(result.Columns) < 2 || result.RowCount == 0 {
		return nil
	}
	valueCol := -1
	for col := len(result.Columns) - 1; col >= 1; col-- {
		if viz.NumericRatio(result.Rows, col, 20) >= 0.8 {
			valueCol = col
			break
		}
	}
	if valueCol == -1 {
		return nil
	}

	var maxLabel, minLabel string
	var maxVal, minVal float64
	first := true
	var sum float64
	count := 0
	for _, row := range result.Rows {
		v, ok := viz.Coerce(row[valueCol])
		if !ok {
			continue
		}
		label := cellString(row[0])
		if first || v > maxVal {
			maxVal, maxLabel = v, label
		}
		if first || v < minVal {
			minVal, minLabel = v, label
		}
		first = false
		sum += v
		count++
	}
	if count == 0 {
		return nil
	}

	col := result.Columns[valueCol]
	out := []string{
		fmt.Sprintf("Valeur la plus élevée de `%s` : **%s** (%s)", col, formatNumber(maxVal), maxLabel),
	}
	if count > 1 {
		out = append(out,
			fmt.Sprintf("Valeur la plus basse : **%s** (%s)", formatNumber(minVal), minLabel),
			fmt.Sprintf("Moyenne : **%s** sur %d lignes", formatNumber(sum/float64(count)), count),
		)
	}
	return out
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

// composeFailure explains what went wrong in the user's terms, with the
// taxonomy suggestion when one exists.
func (c *Composer) composeFailure(state *model.WorkflowState) string {
	b := &strings.Builder{}
	b.WriteString("## ⚠️ Je n'ai pas pu répondre\n\n")

	kind := errx.KindOf(state.FailureErr)
	detail := errx.DetailOf(state.FailureErr)
	switch {
	case detail == errx.ExecTableNotFound:
		b.WriteString("La requête fait référence à une table qui n'existe pas dans la base.\n")
	case detail == errx.ExecColumnNotFound:
		b.WriteString("La requête fait référence à une colonne qui n'existe pas.\n")
	case detail == errx.ExecSyntaxError:
		b.WriteString("La requête générée contient une erreur de syntaxe.\n")
	case detail == errx.ExecResourceLocked:
		b.WriteString("La base de données est momentanément occupée.\n")
	case kind == errx.KindSQLGeneration:
		b.WriteString("Je n'ai pas réussi à traduire cette question en requête SQL sûre.\n")
	case kind == errx.KindSQLExecution:
		b.WriteString("L'exécution de la requête a échoué.\n")
	default:
		b.WriteString("Une erreur interne est survenue pendant le traitement.\n")
	}

	if suggestion := errx.SuggestionOf(state.FailureErr); suggestion != "" {
		fmt.Fprintf(b, "\n💡 %s\n", suggestion)
	} else {
		b.WriteString("\n💡 Reformulez votre question ou tapez \"aide\" pour voir des exemples.\n")
	}

	if state.GeneratedSQL != nil {
		fmt.Fprintf(b, "\n**Requête tentée :**\n```sql\n%s\n```\n", state.GeneratedSQL.Query)
	}
	return b.String()
}
