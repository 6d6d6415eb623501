package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"protocoldesk/pkg/domain"
)

// ColumnHeaders are the table's column titles in order.
var ColumnHeaders = []string{
	"№ п/п",
	"Регион",
	"Задачи",
	"Исполнитель",
	"Срок выполнения",
	"Отметка о выполнении",
	"Результат",
	"Подпись",
	"Комментарий",
}

// PrintTable writes a text rendition of the protocol to w. Number cells are
// printed on the first line of each group only.
func PrintTable(w io.Writer, p domain.Protocol) error {
	if _, err := fmt.Fprintf(w, "Протокол планёрки №%d  %s  %s\nСекретарь: %s\n", p.Number, p.Date, p.Name, p.Secretary); err != nil {
		return err
	}
	headers := make([]any, len(ColumnHeaders))
	for i, h := range ColumnHeaders {
		headers[i] = h
	}
	table := tablewriter.NewWriter(w)
	table.Header(headers...)
	for line := range Lines(p.Rows) {
		number := ""
		if line.First {
			number = strconv.Itoa(line.RowNumber)
		}
		if err := table.Append(append([]string{number}, line.Texts()...)); err != nil {
			return fmt.Errorf("append line %s/%d: %w", line.RecordID, line.SubRowIndex, err)
		}
	}
	return table.Render()
}
