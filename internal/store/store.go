// Package store persists report tables and the run log. PostgresStore also
// serves snapshot tables synced by the ingest package; SQLiteStore writes a
// standalone report file.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/certspend/internal/export"
)

// Schema is the Postgres schema holding every certspend table.
const Schema = "certspend"

// Stager loads report tables without making them visible. The returned
// export.Staged replaces the published tables on Commit and leaves them
// untouched on Abort, so several sinks can be staged before any commits.
type Stager interface {
	Stage(ctx context.Context, tables []export.Table) (export.Staged, error)
}

// Qualify prefixes a bare table name with Schema.
func Qualify(table string) string {
	if strings.Contains(table, ".") {
		return table
	}
	return Schema + "." + table
}

type dialect struct {
	quote func(string) string
	types map[export.Kind]string
}

var postgresDialect = dialect{
	quote: func(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` },
	types: map[export.Kind]string{
		export.KindText:  "TEXT",
		export.KindFloat: "DOUBLE PRECISION",
		export.KindInt:   "INTEGER",
		export.KindBool:  "BOOLEAN",
	},
}

var sqliteDialect = dialect{
	quote: postgresDialect.quote,
	types: map[export.Kind]string{
		export.KindText:  "TEXT",
		export.KindFloat: "REAL",
		export.KindInt:   "INTEGER",
		export.KindBool:  "INTEGER",
	},
}

// createTableSQL renders the DDL for t under the already-quoted name.
func (d dialect) createTableSQL(name string, t export.Table) string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = fmt.Sprintf("%s %s", d.quote(c.Name), d.types[c.Kind])
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(defs, ", "))
}
