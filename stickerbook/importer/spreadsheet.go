package importer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/stickerbook/manager/stickerbook/database/models"
	"github.com/tealeg/xlsx"
)

// spreadsheet column roles, resolved from the header row.
type columnMap struct {
	number   int
	name     int
	team     int
	category int
}

// ParseSpreadsheet reads the first sheet of an xlsx workbook. The header
// row is mapped to columns by bilingual keyword matching; without a
// recognizable header the first four columns are taken positionally.
func ParseSpreadsheet(raw []byte) ([]Row, error) {
	file, err := xlsx.OpenBinary(raw)
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("unreadable spreadsheet: %w", err)}
	}
	if len(file.Sheets) == 0 {
		return nil, &DecodeError{Err: fmt.Errorf("spreadsheet has no sheets")}
	}

	sheet := file.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	cols, headerRows := mapColumns(sheet.Rows[0])
	rows := make([]Row, 0, len(sheet.Rows))
	for _, sheetRow := range sheet.Rows[headerRows:] {
		numberStr := strings.TrimSpace(cellAt(sheetRow, cols.number))
		if numberStr == "" {
			continue
		}
		row := Row{
			Number:   models.ParseStickerNumber(numberStr),
			Name:     strings.TrimSpace(cellAt(sheetRow, cols.name)),
			Team:     strings.TrimSpace(cellAt(sheetRow, cols.team)),
			Category: strings.TrimSpace(cellAt(sheetRow, cols.category)),
		}
		if row.Name == "" {
			row.Name = "Sticker " + numberStr
		}
		if row.Team == "" {
			row.Team = "Unknown"
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// mapColumns resolves column indexes from the header row and reports
// how many leading rows to skip (1 when a header was recognized).
func mapColumns(header *xlsx.Row) (columnMap, int) {
	cols := columnMap{number: 0, name: 1, team: 2, category: 3}

	matched := false
	for i, cell := range header.Cells {
		title := strings.ToLower(strings.TrimSpace(cell.String()))
		switch {
		case containsAny(title, "number", "מספר", "#"):
			cols.number = i
			matched = true
		case containsAny(title, "name", "שם"):
			cols.name = i
			matched = true
		case containsAny(title, "team", "קבוצה"):
			cols.team = i
			matched = true
		case containsAny(title, "category", "קטגוריה"):
			cols.category = i
			matched = true
		}
	}
	if matched {
		return cols, 1
	}
	return cols, 0
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func cellAt(row *xlsx.Row, idx int) string {
	if idx < 0 || idx >= len(row.Cells) {
		return ""
	}
	return row.Cells[idx].String()
}

// IsSpreadsheet reports whether the filename points at a workbook
// rather than delimited text.
func IsSpreadsheet(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return true
	}
	return false
}

// ParseFile dispatches on the filename extension: workbooks go through
// the spreadsheet reader, everything else is treated as delimited text.
func ParseFile(filename string, raw []byte) ([]Row, error) {
	if IsSpreadsheet(filename) {
		return ParseSpreadsheet(raw)
	}
	return ParseBytes(raw)
}
