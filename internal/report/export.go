package report

import (
	"bytes"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName             = "SQL Results"
	XLSXContentType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	DefaultMaxColumnWidth = 50
)

var unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}_.-]+`)

// ExportFilename is the download name of a principal's export.
func ExportFilename(username, userID string) string {
	name := unsafeFilenameChars.ReplaceAllString(username, "_")
	return fmt.Sprintf("sql_results_%s_%s.xlsx", name, userID)
}

// cellText is the text a value is shown as; nil is the empty cell.
func cellText(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// ExportXLSX renders a result set as a single-sheet workbook: a bold,
// gray, centered header row and columns as wide as their longest value
// plus two, capped at maxWidth.
func ExportXLSX(rs *ResultSet, maxWidth int) (*bytes.Buffer, error) {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxColumnWidth
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"CCCCCC"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	widths := make([]int, len(rs.Columns))
	for i, col := range rs.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, col); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, header); err != nil {
			return nil, fmt.Errorf("style header: %w", err)
		}
		widths[i] = utf8.RuneCountInString(col)
	}

	for r, row := range rs.Rows {
		for i, v := range row {
			if i >= len(widths) || v == nil {
				continue
			}
			text := cellText(v)
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			if err := f.SetCellStr(SheetName, cell, text); err != nil {
				return nil, fmt.Errorf("write row %d: %w", r+1, err)
			}
			if n := utf8.RuneCountInString(text); n > widths[i] {
				widths[i] = n
			}
		}
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, col, col, float64(ColumnWidth(w, maxWidth))); err != nil {
			return nil, fmt.Errorf("set width: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}

// ColumnWidth is min(longest+2, maxWidth).
func ColumnWidth(longest, maxWidth int) int {
	return min(longest+2, maxWidth)
}
