package snapshot

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/certspend/internal/fetcher"
)

// Table is a raw snapshot: a header row and data rows of cell text.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// FromRows builds a Table whose first row is the header.
func FromRows(name string, rows [][]string) *Table {
	t := &Table{Name: name}
	if len(rows) == 0 {
		return t
	}
	t.Header = rows[0]
	t.Rows = rows[1:]
	return t
}

// Source locates a snapshot: a spreadsheet/CSV file, or a Postgres table
// when Table is set.
type Source struct {
	Path     string `mapstructure:"path"`
	Sheet    string `mapstructure:"sheet"`
	Table    string `mapstructure:"table"`
	Encoding string `mapstructure:"encoding"`
}

// IsZero reports whether no location is configured.
func (s Source) IsZero() bool {
	return s.Path == "" && s.Table == ""
}

// ReadFile reads a snapshot file into a Table named name.
func ReadFile(ctx context.Context, name string, src Source) (*Table, error) {
	if src.Path == "" {
		return nil, eris.Errorf("snapshot: %s has no file path", name)
	}
	rows, err := fetcher.ReadFile(ctx, src.Path, fetcher.Options{Sheet: src.Sheet, Encoding: src.Encoding})
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: read %s", name)
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("snapshot: %s file %s is empty", name, src.Path)
	}
	return FromRows(name, rows), nil
}
