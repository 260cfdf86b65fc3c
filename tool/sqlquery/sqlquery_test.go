package sqlquery

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/tool"
)

func seed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cities.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE cities (name TEXT NOT NULL, country TEXT, population INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO cities VALUES ('Berlin', 'DE', 3645000), ('Paris', 'FR', 2161000), ('Rome', 'IT', 2873000)`)
	require.NoError(t, err)

	return path
}

func TestQuery(t *testing.T) {
	db, err := Open(seed(t), func(o *Options) { o.MaxRows = 2 })
	require.NoError(t, err)
	defer db.Close()

	res, err := db.Query(context.Background(), "SELECT name, population FROM cities ORDER BY population DESC;")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "population"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Berlin", res.Rows[0][0])
	assert.Equal(t, int64(3645000), res.Rows[0][1])
	assert.True(t, res.Truncated)
}

func TestQuery_RejectsWrites(t *testing.T) {
	db, err := Open(seed(t))
	require.NoError(t, err)
	defer db.Close()

	for _, q := range []string{
		"DELETE FROM cities",
		"SELECT 1; DROP TABLE cities",
		"  insert into cities values ('x', 'y', 1)",
	} {
		_, err := db.Query(context.Background(), q)
		var toolErr *tool.ToolError
		require.ErrorAs(t, err, &toolErr, q)
		assert.Equal(t, tool.CodeValidation, toolErr.Code)
	}

	// A CTE wrapping a write is still rejected by query_only.
	_, err = db.Query(context.Background(), "WITH x AS (SELECT 1) INSERT INTO cities SELECT 'a','b',1 FROM x")
	assert.Error(t, err)
}

func TestSchemaAndTools(t *testing.T) {
	db, err := Open(seed(t))
	require.NoError(t, err)
	defer db.Close()

	tables, err := db.Schema(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "cities", tables[0].Name)
	assert.Equal(t, []string{"name TEXT", "country TEXT", "population INTEGER"}, tables[0].Columns)

	tc := core.NewToolContext(context.Background(), "run", "Analyst", "fc", logging.NoOpLogger{})

	res, err := db.QueryTool().Call(tc, map[string]any{"query": "SELECT count(*) AS n FROM cities"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.(*QueryResult).Rows[0][0])

	_, err = db.SchemaTool().Call(tc, map[string]any{})
	assert.NoError(t, err)
}
