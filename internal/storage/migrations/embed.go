// Package migrations embeds and applies the schema for the SQL-backed stores.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// PostgresFS embeds the PostgreSQL migrations (portfolio_snapshot).
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the ClickHouse migrations (valuation_history).
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

// sqlFiles lists the .sql files under dir in lexical order.
func sqlFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read embedded %s migrations", dir)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, dir+"/"+entry.Name())
		}
	}
	sort.Strings(files)

	return files, nil
}
