// Package tabular loads headline files into rows keyed by column name.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/DeafMist/headline-radar/internal/errs"
)

// Row maps column name to cell value.
type Row map[string]string

// Table is a parsed file: its header and its rows in file order.
type Table struct {
	Columns []string
	Rows    []Row
}

// Require checks that the header carries column.
func (t *Table) Require(column string) error {
	for _, c := range t.Columns {
		if c == column {
			return nil
		}
	}
	return fmt.Errorf("%w: missing required column %q", errs.ErrInputFormat, column)
}

// Load parses a .csv or .xlsx file, picked by extension.
func Load(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return loadXLSX(path)
	case ".csv", ".txt", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", errs.ErrInputFormat, path, err)
		}
		defer f.Close()
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", errs.ErrInputFormat, filepath.Ext(path))
	}
}

// ReadCSV parses comma-separated records whose first record is the header.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", errs.ErrInputFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %w", errs.ErrInputFormat, err)
	}

	var records [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrInputFormat, err)
		}
		records = append(records, rec)
	}
	return build(header, records, 2)
}

func loadXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", errs.ErrInputFormat, path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", errs.ErrInputFormat)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %w", errs.ErrInputFormat, sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty sheet %q", errs.ErrInputFormat, sheets[0])
	}
	return build(rows[0], rows[1:], 2)
}

// build zips records with the header. Short records are padded with empty
// cells (spreadsheets drop trailing blanks); long records are rejected.
func build(header []string, records [][]string, firstLine int) (*Table, error) {
	cols := make([]string, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			return nil, fmt.Errorf("%w: empty column name at position %d", errs.ErrInputFormat, i+1)
		}
		if _, dup := seen[h]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", errs.ErrInputFormat, h)
		}
		seen[h] = struct{}{}
		cols[i] = h
	}

	t := &Table{Columns: cols, Rows: make([]Row, 0, len(records))}
	for n, rec := range records {
		if len(rec) > len(cols) {
			return nil, fmt.Errorf("%w: line %d has %d fields, header has %d",
				errs.ErrInputFormat, firstLine+n, len(rec), len(cols))
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if i < len(rec) {
				row[c] = rec[i]
			} else {
				row[c] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
