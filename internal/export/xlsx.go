package export

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// Staged is a written report that is not visible to readers until Commit.
// Abort discards it. Exactly one of Commit or Abort should be called.
type Staged interface {
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}

// StagedWorkbook is a workbook saved next to its destination under a
// temporary name.
type StagedWorkbook struct {
	path    string
	tmpPath string
}

// StageXLSX writes tables to a temporary workbook in path's directory, one
// sheet per table. Nothing exists at path until Commit.
func StageXLSX(ctx context.Context, path string, tables []Table) (*StagedWorkbook, error) {
	f := xlsx.NewFile()
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "export: context cancelled")
		}
		if err := addSheet(f, t); err != nil {
			return nil, err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".certspend-*.xlsx")
	if err != nil {
		return nil, eris.Wrap(err, "export: create temp workbook")
	}
	tmpPath := tmp.Name()

	if err := f.Write(tmp); err != nil {
		tmp.Close()        //nolint:errcheck
		os.Remove(tmpPath) //nolint:errcheck
		return nil, eris.Wrap(err, "export: write workbook")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return nil, eris.Wrap(err, "export: close workbook")
	}
	return &StagedWorkbook{path: path, tmpPath: tmpPath}, nil
}

// Commit renames the temporary workbook into place.
func (w *StagedWorkbook) Commit(_ context.Context) error {
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		os.Remove(w.tmpPath) //nolint:errcheck
		return eris.Wrapf(err, "export: move workbook to %s", w.path)
	}
	zap.L().With(zap.String("component", "export")).Info("workbook written", zap.String("path", w.path))
	return nil
}

// Abort removes the temporary workbook.
func (w *StagedWorkbook) Abort(_ context.Context) error {
	if err := os.Remove(w.tmpPath); err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "export: remove temp workbook")
	}
	return nil
}

// WriteXLSX stages and commits a workbook at path, so a failed write never
// leaves a partial workbook behind.
func WriteXLSX(ctx context.Context, path string, tables []Table) error {
	w, err := StageXLSX(ctx, path, tables)
	if err != nil {
		return err
	}
	return w.Commit(ctx)
}

func addSheet(f *xlsx.File, t Table) error {
	sheet, err := f.AddSheet(t.Name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", t.Name)
	}

	header := sheet.AddRow()
	for _, c := range t.Columns {
		header.AddCell().SetString(c.Name)
	}

	for i, values := range t.Rows {
		if len(values) != len(t.Columns) {
			return eris.Errorf("export: %s row %d has %d values, want %d", t.Name, i, len(values), len(t.Columns))
		}
		row := sheet.AddRow()
		for _, v := range values {
			setCell(row.AddCell(), v)
		}
	}
	return nil
}

// setCell leaves null cells empty.
func setCell(cell *xlsx.Cell, v any) {
	switch x := v.(type) {
	case nil:
	case string:
		cell.SetString(x)
	case float64:
		cell.SetFloat(x)
	case int:
		cell.SetInt(x)
	case bool:
		cell.SetBool(x)
	default:
		cell.SetValue(x)
	}
}
