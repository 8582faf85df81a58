package chat

import (
	"fmt"
	"strings"

	"github.com/kalambet/gridchat/internal/sheet"
)

// systemPrompt assembles the assistant's instructions, including the current
// sheet catalog and the confirmation protocol for mutating tools.
func systemPrompt(grid *sheet.Store) string {
	var b strings.Builder

	b.WriteString("You are a helpful spreadsheet assistant. ")
	b.WriteString("You can read and update a workbook through the tools provided.\n\n")

	names := grid.SheetNames()
	if len(names) > 0 {
		fmt.Fprintf(&b, "The workbook contains the following sheets: %s.\n", strings.Join(names, ", "))
	}
	b.WriteString("Sheets typically have a header row in row 1 with data rows below it. ")
	b.WriteString("Cell addresses use standard notation like A1 or D4, and ranges like A1:D6.\n\n")

	b.WriteString("Use getRange to read tables and readCell for single cells. ")
	b.WriteString("When the user asks you to change a cell or delete a conversation thread, ")
	b.WriteString("call the tool with confirmed set to false first. The user will be shown ")
	b.WriteString("a description of the action and asked to approve it. Only pass ")
	b.WriteString("confirmed true when the user has explicitly confirmed the action in ")
	b.WriteString("their message.\n\n")

	b.WriteString("Present table data clearly and keep answers concise.")

	return b.String()
}
