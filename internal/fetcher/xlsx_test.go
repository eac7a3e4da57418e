package fetcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string, order ...string) string {
	t.Helper()
	f := xlsx.NewFile()
	if len(order) == 0 {
		for name := range sheets {
			order = append(order, name)
		}
	}
	for _, name := range order {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range sheets[name] {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Vendors": {
			{"Business Name", "Tax ID"},
			{" Acme ", "11"},
			{"", ""},
			{"Beta", "22"},
		},
	})

	rows, err := ReadXLSX(context.Background(), path, XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Business Name", "Tax ID"},
		{"Acme", "11"},
		{"Beta", "22"},
	}, rows)
}

func TestReadXLSX_SkipRows(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"title"}, {"h"}, {"v"}},
	})

	rows, err := ReadXLSX(context.Background(), path, XLSXOptions{SkipRows: 1})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"h"}, {"v"}}, rows)
}

func TestReadXLSX_SheetByName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"First":  {{"a"}},
		"Second": {{"b"}},
	}, "First", "Second")

	rows, err := ReadXLSX(context.Background(), path, XLSXOptions{SheetName: "Second"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"b"}}, rows)

	_, err = ReadXLSX(context.Background(), path, XLSXOptions{SheetName: "Third"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Third" not found`)
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Only": {{"a"}}})

	_, err := ReadXLSX(context.Background(), path, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSX_FileNotFound(t *testing.T) {
	_, err := ReadXLSX(context.Background(), "/nonexistent/file.xlsx", XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open file")
}

func TestSheetNames(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Vendors":   {{"a"}},
		"Contracts": {{"b"}},
	}, "Vendors", "Contracts")

	names, err := SheetNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Vendors", "Contracts"}, names)
}

func TestReadFile_XLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Ledger": {{"agency"}, {"DOT"}},
	})

	rows, err := ReadFile(context.Background(), path, Options{Sheet: "Ledger"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"agency"}, {"DOT"}}, rows)
}
