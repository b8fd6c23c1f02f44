package console

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Column is one column of a table
type Column[T any] struct {
	Header string
	Value  func(T) string
}

// RenderTable writes rows as an aligned table. Selected rows are marked
// with an asterisk.
func RenderTable[T any](w io.Writer, columns []Column[T], rows []T, selected func(T) bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	headers := make([]string, 0, len(columns)+1)
	headers = append(headers, " ")
	for _, col := range columns {
		headers = append(headers, col.Header)
	}
	if _, err := fmt.Fprintln(tw, strings.Join(headers, "\t")); err != nil {
		return err
	}

	for _, row := range rows {
		cells := make([]string, 0, len(columns)+1)
		mark := " "
		if selected != nil && selected(row) {
			mark = "*"
		}
		cells = append(cells, mark)
		for _, col := range columns {
			cells = append(cells, sanitize(col.Value(row)))
		}
		if _, err := fmt.Fprintln(tw, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// PageFooter describes the position in a paginated list
func PageFooter(pageNum, pageSize, totalPage, total int) string {
	return fmt.Sprintf("page %d/%d, %d per page, %d total", pageNum, max(totalPage, 1), pageSize, total)
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

// Status renders a 0/1 switch
func Status(v int) string {
	if v == 1 {
		return "on"
	}
	return "off"
}
