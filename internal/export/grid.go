// Package export turns a protocol into a spreadsheet. BuildGrid produces a
// pure, rectangular description of the sheet from the same line derivation
// the table view uses; WriteXLSX serializes a grid with excelize; Worker runs
// exports asynchronously and stores the workbooks in a blob store.
package export

import (
	"fmt"

	"protocoldesk/internal/render"
	"protocoldesk/pkg/domain"
)

const (
	// SheetName is the name of the single worksheet.
	SheetName = "Протокол планёрки"
	// DataStartRow is the 0-based grid row of the first data line, after the
	// title, a blank row and the column headers.
	DataStartRow = 3
	// HeaderRow is the 0-based grid row holding the column headers.
	HeaderRow = 2
)

// ColumnWidths are the worksheet column widths in characters.
var ColumnWidths = []float64{5, 15, 40, 20, 15, 15, 20, 15, 30}

// Range is an inclusive rectangle of 0-based grid coordinates to be merged.
type Range struct {
	FromRow, FromCol int
	ToRow, ToCol     int
}

// Origin ties a data row back to the record and sub-row it came from.
type Origin struct {
	RecordID    string
	SubRowIndex int
}

// Grid is the full content of the worksheet. Rows[0] is the title row;
// data rows start at DataStartRow and Origins[i] describes Rows[DataStartRow+i].
// Number cells hold an int on the first line of a group and "" elsewhere.
type Grid struct {
	Title   string
	Rows    [][]any
	Merges  []Range
	Origins []Origin
}

// Columns is the grid width.
func (g Grid) Columns() int { return len(render.ColumnHeaders) }

// DataRows returns the data part of the grid.
func (g Grid) DataRows() [][]any {
	if len(g.Rows) <= DataStartRow {
		return nil
	}
	return g.Rows[DataStartRow:]
}

// Title is the sheet title for a protocol number.
func Title(number int) string { return fmt.Sprintf("Протокол планёрки №%d", number) }

// FileName is the deterministic workbook name for a protocol number.
func FileName(number int) string { return fmt.Sprintf("протокол_планёрки_%d.xlsx", number) }

// BuildGrid flattens p into a grid. Every record contributes MergedCount data
// rows; region and number are written once per group and a vertical merge is
// emitted for both columns when the group spans more than one row.
func BuildGrid(p domain.Protocol) Grid {
	cols := len(render.ColumnHeaders)
	g := Grid{Title: Title(p.Number)}

	title := make([]any, cols)
	title[0] = g.Title
	for i := 1; i < cols; i++ {
		title[i] = ""
	}
	header := make([]any, cols)
	for i, h := range render.ColumnHeaders {
		header[i] = h
	}
	g.Rows = append(g.Rows, title, make([]any, 0), header)
	g.Merges = append(g.Merges, Range{FromRow: 0, FromCol: 0, ToRow: 0, ToCol: cols - 1})

	for line := range render.Lines(p.Rows) {
		row := make([]any, 0, cols)
		if line.First {
			row = append(row, line.RowNumber)
		} else {
			row = append(row, "")
		}
		for _, text := range line.Texts() {
			row = append(row, text)
		}
		at := len(g.Rows)
		g.Rows = append(g.Rows, row)
		g.Origins = append(g.Origins, Origin{RecordID: line.RecordID, SubRowIndex: line.SubRowIndex})
		if line.First && line.RegionSpan > 1 {
			end := at + line.RegionSpan - 1
			g.Merges = append(g.Merges,
				Range{FromRow: at, FromCol: 0, ToRow: end, ToCol: 0},
				Range{FromRow: at, FromCol: 1, ToRow: end, ToCol: 1},
			)
		}
	}
	return g
}
