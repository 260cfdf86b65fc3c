// Package sqlquery provides read-only SQL tools over a SQLite database.
package sqlquery

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/tool"
)

const (
	// QueryToolName is the name of the query tool.
	QueryToolName = "sql_query"
	// SchemaToolName is the name of the schema listing tool.
	SchemaToolName = "sql_schema"
)

var readOnlyStatement = regexp.MustCompile(`(?is)^\s*(select|with)\b`)

// Options configure the database tools.
type Options struct {
	MaxRows int
}

// Database is a query-only SQLite handle shared by the tools.
type Database struct {
	db   *sql.DB
	opts Options
}

// Open opens dsn with the sqlite3 driver and switches the connection to query-only mode.
func Open(dsn string, optFns ...func(o *Options)) (*Database, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// query_only is per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA query_only = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable query_only: %w", err)
	}

	return New(db, optFns...), nil
}

// New wraps an existing handle. The caller is responsible for read-only setup.
func New(db *sql.DB, optFns ...func(o *Options)) *Database {
	opts := Options{MaxRows: 100}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Database{db: db, opts: opts}
}

// Close releases the database.
func (d *Database) Close() error { return d.db.Close() }

// QueryResult holds tabular query output.
type QueryResult struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}

// Query runs a single SELECT (or WITH ... SELECT) statement.
func (d *Database) Query(ctx context.Context, query string) (*QueryResult, error) {
	query = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	if !readOnlyStatement.MatchString(query) {
		return nil, tool.NewToolError(QueryToolName, "only SELECT statements are allowed", tool.CodeValidation)
	}
	if strings.Contains(query, ";") {
		return nil, tool.NewToolError(QueryToolName, "multiple statements are not allowed", tool.CodeValidation)
	}

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &QueryResult{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if d.opts.MaxRows > 0 && len(result.Rows) >= d.opts.MaxRows {
			result.Truncated = true
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}

	return result, rows.Err()
}

// Table describes a table and its columns.
type Table struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// Schema lists user tables with their column names and declared types.
func (d *Database) Schema(ctx context.Context) ([]Table, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		cols, err := d.columns(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, Table{Name: name, Columns: cols})
	}

	return tables, nil
}

func (d *Database) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, err
		}
		cols = append(cols, strings.TrimSpace(name+" "+typ))
	}

	return cols, rows.Err()
}

type queryArgs struct {
	Query string `json:"query" description:"A single read-only SQL SELECT statement"`
}

// QueryTool returns the sql_query tool.
func (d *Database) QueryTool() tool.Tool {
	return tool.NewTypedTool(QueryToolName,
		"Run a read-only SQL SELECT against the SQLite database and return columns and rows.",
		func(tc *core.ToolContext, args queryArgs) (any, error) {
			return d.Query(tc.Context(), args.Query)
		})
}

// SchemaTool returns the sql_schema tool.
func (d *Database) SchemaTool() tool.Tool {
	return tool.NewFunctionTool(SchemaToolName,
		"List the tables of the SQLite database with their columns.",
		nil,
		func(tc *core.ToolContext, _ map[string]any) (any, error) {
			return d.Schema(tc.Context())
		})
}
