// Package store is the database access layer. The Store interface hides the
// driver; Executor wraps it with the safety net every generated statement
// must pass through regardless of where it came from.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/telmi-agent/server/internal/agent/model"
	logx "github.com/telmi-agent/server/pkg/logger"
)

// ColumnInfo describes one column as reported by the information schema.
type ColumnInfo struct {
	Name     string
	DataType string
	Nullable bool
}

// Store executes read-only queries and answers schema introspection.
type Store interface {
	ListTables(ctx context.Context) ([]string, error)
	TableSchema(ctx context.Context, table string) ([]ColumnInfo, error)
	Query(ctx context.Context, query string) (*model.ExecutionResult, error)
}

// SQLStore implements Store on database/sql.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		 ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (s *SQLStore) TableSchema(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT column_name, data_type, is_nullable FROM information_schema.columns
		 WHERE table_schema = 'public' AND table_name = $1
		 ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("table schema %s: %w", table, err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var c ColumnInfo
		var nullable string
		if err := rows.Scan(&c.Name, &c.DataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.Nullable = nullable == "YES"
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// Query runs the statement and flattens the driver rows into the uniform
// columns+rows shape. Byte slices become strings so downstream consumers
// never see driver-owned buffers.
func (s *SQLStore) Query(ctx context.Context, query string) (*model.ExecutionResult, error) {
	start := time.Now()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := &model.ExecutionResult{Columns: columns, Query: query}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result.RowCount = len(result.Rows)

	logx.Debug().
		Str("component", "store").
		Int("rows", result.RowCount).
		Dur("duration", time.Since(start)).
		Msg("query executed")
	return result, nil
}
