package sheet

import (
	"fmt"
	"strings"
)

// TableToMarkdown renders table data as a GitHub-style markdown table, which
// is what the model receives after a range read.
func TableToMarkdown(data TableData) string {
	var b strings.Builder

	b.WriteString("| " + strings.Join(data.Headers, " | ") + " |\n")

	sep := make([]string, len(data.Headers))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")

	for i, row := range data.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			if v == nil {
				cells[j] = ""
			} else {
				cells[j] = fmt.Sprintf("%v", v)
			}
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |")
		if i < len(data.Rows)-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}
