// Package fetcher reads tabular snapshot files (XLSX and delimited text)
// into rows of cell strings.
package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Options selects what to read from a snapshot file.
type Options struct {
	Sheet     string // XLSX sheet name; first sheet when empty
	Encoding  string // text encoding label for CSV files (e.g. "windows-1252"); UTF-8 when empty
	Delimiter rune   // CSV delimiter; ',' by default, '\t' for .tsv/.txt
}

// ReadFile reads every row of path, choosing the parser by file extension.
// The first row is the header row.
func ReadFile(ctx context.Context, path string, opts Options) ([][]string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		return ReadXLSX(ctx, path, XLSXOptions{SheetName: opts.Sheet})
	case ".csv", ".tsv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", path)
		}
		defer f.Close() //nolint:errcheck

		delim := opts.Delimiter
		if delim == 0 && ext != ".csv" {
			delim = '\t'
		}
		return ReadCSV(ctx, f, CSVOptions{
			Delimiter: delim,
			Encoding:  opts.Encoding,
			TrimSpace: true,
		})
	default:
		return nil, eris.Errorf("fetcher: unsupported file type %q", ext)
	}
}
