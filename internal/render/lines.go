// Package render derives the physical display lines of a protocol table from
// its row sequence. A record with MergedCount N yields N lines; the region and
// row-number cells are carried only by the first line of each group.
package render

import (
	"iter"
	"strings"

	"protocoldesk/pkg/domain"
)

// Line is one physical row of the table view.
type Line struct {
	RecordID    string
	SubRowIndex int
	// First marks the first sub-row of a merge group.
	First bool
	// RegionSpan is MergedCount on the first line of a group and 0 on the
	// lines whose region and number cells are suppressed.
	RegionSpan int
	// RowNumber is the 1-based position of the record, not of the line.
	RowNumber int
	Cells     domain.SubRowView
}

// FieldEditor receives edits made on a rendered line.
type FieldEditor interface {
	UpdateField(id string, field domain.Field, value any, subRow int) error
}

// Edit routes a cell edit on l back to its record and sub-row.
func (l Line) Edit(ed FieldEditor, field domain.Field, value any) error {
	return ed.UpdateField(l.RecordID, field, value, l.SubRowIndex)
}

// Lines yields every physical line of rows in table order.
func Lines(rows []domain.RowRecord) iter.Seq[Line] {
	return func(yield func(Line) bool) {
		for i, rec := range rows {
			n := rec.MergedCount()
			for k := 0; k < n; k++ {
				line := Line{
					RecordID:    rec.ID,
					SubRowIndex: k,
					First:       k == 0,
					RowNumber:   i + 1,
					Cells:       rec.SubRow(k),
				}
				if k == 0 {
					line.RegionSpan = n
				}
				if !yield(line) {
					return
				}
			}
		}
	}
}

// Count returns the number of lines Lines would yield.
func Count(rows []domain.RowRecord) int { return domain.PhysicalRowCount(rows) }

// ExecutorSeparator joins executor names inside one cell.
const ExecutorSeparator = ", "

// Texts returns the eight text columns of a line after the row number:
// region, tasks, executors, due date, completion, result, signature and
// comment. Region is blank on suppressed lines.
func (l Line) Texts() []string {
	region := l.Cells.Region
	if !l.First {
		region = ""
	}
	return []string{
		region,
		l.Cells.Tasks,
		strings.Join(l.Cells.Executors, ExecutorSeparator),
		l.Cells.DueDate,
		l.Cells.CompletionStatus,
		l.Cells.Result,
		l.Cells.Signature,
		l.Cells.Comment,
	}
}
