package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	input := `-- header comment
CREATE TABLE a (x Int64) ENGINE = MergeTree() ORDER BY x;

-- second
CREATE TABLE b (y String) ENGINE = MergeTree() ORDER BY y;
`
	stmts := splitStatements(input)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x Int64) ENGINE = MergeTree() ORDER BY x", stmts[0])
	assert.Equal(t, "CREATE TABLE b (y String) ENGINE = MergeTree() ORDER BY y", stmts[1])
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings("SELECT 'a''b'; SELECT 1;"))
	assert.Error(t, validateNoSemicolonInStrings("SELECT 'a;b';"))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/portfolio")
	require.NoError(t, err)
	assert.Equal(t, "portfolio", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

func TestEmbeddedFiles(t *testing.T) {
	pg, err := sqlFiles(PostgresFS, "postgres")
	require.NoError(t, err)
	assert.Equal(t, []string{"postgres/001_portfolio_snapshot.sql"}, pg)

	ch, err := sqlFiles(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.Len(t, ch, 1)

	data, err := ClickhouseFS.ReadFile(ch[0])
	require.NoError(t, err)
	assert.NoError(t, validateNoSemicolonInStrings(string(data)))
	assert.Len(t, splitStatements(string(data)), 1)
}
