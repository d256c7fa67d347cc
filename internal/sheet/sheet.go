// Package sheet reads PAN identifiers from, and writes lookup results to,
// xlsx workbooks.
package sheet

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nexconsult/pan-api/internal/models"
	"github.com/xuri/excelize/v2"
)

// DefaultColumn is the header of the identifier column
const DefaultColumn = "PAN"

var (
	ErrInputNotFound = errors.New("file not found")
	ErrColumnMissing = errors.New("column not found")
	ErrNoSheets      = errors.New("workbook has no sheets")
)

// ReadIdentifiers returns the non-empty values of column from the first
// sheet of the workbook at path, in row order. Header cells are compared
// after trimming whitespace.
func ReadIdentifiers(path, column string) ([]string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat input: %w", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %q (sheet is empty)", ErrColumnMissing, column)
	}

	header := make([]string, len(rows[0]))
	idx := -1
	for i, cell := range rows[0] {
		header[i] = strings.TrimSpace(cell)
		if idx < 0 && header[i] == column {
			idx = i
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q, available columns: %s", ErrColumnMissing, column, strings.Join(header, ", "))
	}

	ids := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if idx >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[idx]); v != "" {
			ids = append(ids, v)
		}
	}
	return ids, nil
}

// WriteResults writes the result set to a new workbook at path, replacing
// any existing file
func WriteResults(path string, results models.ResultSet) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := f.GetSheetName(0)

	if err := writeRow(f, sheetName, 1, results.Columns()); err != nil {
		return err
	}
	for i, row := range results.Rows() {
		if err := writeRow(f, sheetName, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save results to %s: %w", path, err)
	}
	return nil
}

func writeRow(f *excelize.File, sheetName string, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return nil
}
