// Package importer turns user-supplied sticker lists (delimited text or
// spreadsheets) into normalized rows ready for a bulk write.
package importer

import (
	"strings"

	"github.com/stickerbook/manager/stickerbook/database/models"
)

// Row is one normalized import line.
type Row struct {
	Number   models.StickerNumber
	Name     string
	Team     string
	Category string
}

// headerKeywords mark a first line as a column header. Matching is
// case-insensitive substring anywhere in the line; files come both in
// English and Hebrew.
var headerKeywords = []string{
	"number", "מספר",
	"name", "שם",
	"team", "קבוצה",
	"category", "קטגוריה",
}

// DetectDelimiter picks the separator by counting candidates in the
// first line: tab, comma and semicolon, highest count wins, comma on
// ties and empty input.
func DetectDelimiter(line string) rune {
	commas := strings.Count(line, ",")
	semis := strings.Count(line, ";")
	tabs := strings.Count(line, "\t")

	delim, best := ',', commas
	if semis > best {
		delim, best = ';', semis
	}
	if tabs > best {
		delim = '\t'
	}
	return delim
}

// IsHeaderLine reports whether the line looks like a column header
// rather than data.
func IsHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range headerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Parse converts delimited text into rows. Malformed individual lines
// are skipped, never fatal: a row without a number field is dropped and
// the rest of the file still imports. Blank names and teams get
// placeholder values so every row is renderable.
func Parse(text string) []Row {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil
	}

	delim := string(DetectDelimiter(lines[0]))
	if IsHeaderLine(lines[0]) {
		lines = lines[1:]
	}

	rows := make([]Row, 0, len(lines))
	for _, line := range lines {
		fields := strings.Split(line, delim)
		numberStr := strings.TrimSpace(fields[0])
		if numberStr == "" {
			continue
		}

		row := Row{Number: models.ParseStickerNumber(numberStr)}
		if len(fields) > 1 {
			row.Name = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 {
			row.Team = strings.TrimSpace(fields[2])
		}
		if len(fields) > 3 {
			row.Category = strings.TrimSpace(fields[3])
		}
		if row.Name == "" {
			row.Name = "Sticker " + numberStr
		}
		if row.Team == "" {
			row.Team = "Unknown"
		}
		rows = append(rows, row)
	}
	return rows
}

// ParseBytes decodes raw and parses it. The only error is a decode
// failure; parse issues degrade to skipped rows.
func ParseBytes(raw []byte) ([]Row, error) {
	text, err := DecodeText(raw)
	if err != nil {
		return nil, err
	}
	return Parse(text), nil
}

// Serialize renders rows back to comma-delimited text. Parsing the
// output yields the same rows, which keeps exports re-importable.
func Serialize(rows []Row) string {
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(row.Number.String())
		b.WriteByte(',')
		b.WriteString(row.Name)
		b.WriteByte(',')
		b.WriteString(row.Team)
		if row.Category != "" {
			b.WriteByte(',')
			b.WriteString(row.Category)
		}
	}
	return b.String()
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}
