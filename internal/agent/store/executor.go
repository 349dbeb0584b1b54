package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/telmi-agent/server/internal/agent/model"
	"github.com/telmi-agent/server/internal/agent/sqlgen"
	errx "github.com/telmi-agent/server/internal/core/error"
	logx "github.com/telmi-agent/server/pkg/logger"
)

// Executor is the last line of defense before the database. It re-validates
// every statement even though the synthesizer already did, caps the row
// count and translates driver errors into the stage error taxonomy.
type Executor struct {
	store Store
	cfg   model.ExecutorConfig
}

func NewExecutor(store Store, cfg model.ExecutorConfig) *Executor {
	return &Executor{store: store, cfg: cfg}
}

var limitRe = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)`)

// Execute validates, caps and runs one generated statement.
func (e *Executor) Execute(ctx context.Context, gen *model.GeneratedSQL) (*model.ExecutionResult, error) {
	if gen == nil || strings.TrimSpace(gen.Query) == "" {
		return nil, errx.New(fmt.Errorf("no statement to execute"), errx.KindSQLExecution, "nothing to execute").
			WithDetail(errx.ExecUnknown)
	}

	query := sqlgen.StripComments(gen.Query)
	if err := sqlgen.Validate(query, e.cfg.Dialect); err != nil {
		return nil, errx.New(err, errx.KindSQLExecution, "statement rejected by executor").
			WithDetail(errx.ExecUnknown)
	}
	query = e.applyLimit(query)

	timeout := time.Duration(e.cfg.StatementTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := e.store.Query(ctx, query)
	if err != nil {
		return nil, e.classify(err)
	}

	logx.Info().
		Str("component", "executor").
		Int("rows", result.RowCount).
		Int("columns", len(result.Columns)).
		Dur("duration", time.Since(start)).
		Msg("statement executed")
	return result, nil
}

// applyLimit enforces the row ceiling: statements without a LIMIT get one
// appended, statements asking for more than the ceiling are clamped.
func (e *Executor) applyLimit(query string) string {
	ceiling := e.cfg.RowLimit
	if ceiling <= 0 {
		ceiling = 1000
	}
	if m := limitRe.FindStringSubmatch(query); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > ceiling {
			return limitRe.ReplaceAllString(query, "LIMIT "+strconv.Itoa(ceiling))
		}
		return query
	}
	return strings.TrimSpace(query) + " LIMIT " + strconv.Itoa(ceiling)
}

// classify maps driver errors onto the execution error taxonomy so the
// composer can phrase an actionable hint.
func (e *Executor) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errx.New(err, errx.KindSQLExecution, "query timed out").
			WithDetail(errx.ExecUnknown).
			WithSuggestion("Narrow the date range or ask for an aggregate instead of raw rows.")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01":
			return errx.New(err, errx.KindSQLExecution, "table not found").
				WithDetail(errx.ExecTableNotFound).
				WithSuggestion("Ask for the list of available tables to see what exists.")
		case "42703":
			return errx.New(err, errx.KindSQLExecution, "column not found").
				WithDetail(errx.ExecColumnNotFound).
				WithSuggestion("Ask for the table structure to see its columns.")
		case "42601":
			return errx.New(err, errx.KindSQLExecution, "syntax error in generated statement").
				WithDetail(errx.ExecSyntaxError).
				WithSuggestion("Rephrase the question more simply.")
		case "55P03":
			return errx.New(err, errx.KindSQLExecution, "resource locked").
				WithDetail(errx.ExecResourceLocked).
				WithSuggestion("Retry in a moment.")
		}
	}
	return errx.New(err, errx.KindSQLExecution, "query failed").
		WithDetail(errx.ExecUnknown)
}
