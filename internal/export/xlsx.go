package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"protocoldesk/pkg/domain"
)

// ContentType is the MIME type of the produced workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func thinBorders() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
}

func cellName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		// only reachable with negative coordinates
		panic(err)
	}
	return name
}

// WriteXLSX serializes g as a single-sheet workbook.
func WriteXLSX(w io.Writer, g Grid) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	for i, row := range g.Rows {
		if len(row) == 0 {
			continue
		}
		values := row
		if err := f.SetSheetRow(SheetName, cellName(0, i), &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	for _, m := range g.Merges {
		if err := f.MergeCell(SheetName, cellName(m.FromCol, m.FromRow), cellName(m.ToCol, m.ToRow)); err != nil {
			return fmt.Errorf("merge %s:%s: %w", cellName(m.FromCol, m.FromRow), cellName(m.ToCol, m.ToRow), err)
		}
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorders(),
	})
	if err != nil {
		return fmt.Errorf("title style: %w", err)
	}
	bodyStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		Border:    thinBorders(),
	})
	if err != nil {
		return fmt.Errorf("body style: %w", err)
	}
	last := g.Columns() - 1
	if err := f.SetCellStyle(SheetName, cellName(0, 0), cellName(last, 0), titleStyle); err != nil {
		return err
	}
	if len(g.Rows) > 1 {
		if err := f.SetCellStyle(SheetName, cellName(0, 1), cellName(last, len(g.Rows)-1), bodyStyle); err != nil {
			return err
		}
	}
	for i, width := range ColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("width %s: %w", col, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Workbook builds the grid for p and returns the encoded workbook.
func Workbook(p domain.Protocol) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, BuildGrid(p)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
