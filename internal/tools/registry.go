package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kalambet/gridchat/internal/llm"
	"github.com/kalambet/gridchat/internal/sheet"
	"github.com/kalambet/gridchat/internal/storage"
)

// Tool names.
const (
	ToolGetRange     = "getRange"
	ToolReadCell     = "readCell"
	ToolUpdateCell   = "updateCell"
	ToolDeleteThread = "deleteThreadTool"
)

// Deps holds the collaborators tool bodies run against.
type Deps struct {
	Store *storage.Store
	Grid  *sheet.Store
	Log   *slog.Logger
}

// Registry declares the fixed set of invocable tools and dispatches calls
// to their bodies. Gated tools pass through the confirmation gate first.
type Registry struct {
	deps Deps
}

func New(deps Deps) *Registry {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Registry{deps: deps}
}

var getRangeSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"sheet": {"type": "string", "description": "Sheet name, e.g. Sheet1"},
		"from": {"type": "string", "description": "Top-left cell of the range, e.g. A1"},
		"to": {"type": "string", "description": "Bottom-right cell of the range, e.g. D6"}
	},
	"required": ["sheet", "from", "to"]
}`)

var readCellSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"sheet": {"type": "string", "description": "Sheet name, e.g. Sheet1"},
		"cell": {"type": "string", "description": "Cell address, e.g. D4"}
	},
	"required": ["sheet", "cell"]
}`)

var updateCellSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"sheet": {"type": "string", "description": "Sheet name, e.g. Sheet1"},
		"cell": {"type": "string", "description": "Cell address, e.g. A1"},
		"value": {"description": "New value for the cell (string, number or boolean)"},
		"confirmed": {"type": "boolean", "description": "Must be true to actually perform the update. Always pass false first so the user can confirm."}
	},
	"required": ["sheet", "cell", "value"]
}`)

var deleteThreadSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"threadId": {"type": "string", "description": "ID of the conversation thread to delete"},
		"confirmed": {"type": "boolean", "description": "Must be true to actually delete. Always pass false first so the user can confirm."}
	},
	"required": ["threadId"]
}`)

// Definitions returns the tool schemas offered to the model.
func (r *Registry) Definitions() []llm.Tool {
	return []llm.Tool{
		{Type: "function", Function: llm.FunctionDef{
			Name:        ToolGetRange,
			Description: "Read a rectangular range from the spreadsheet. The first row of the range is treated as headers.",
			Parameters:  getRangeSchema,
		}},
		{Type: "function", Function: llm.FunctionDef{
			Name:        ToolReadCell,
			Description: "Read a single spreadsheet cell, including its formula if it has one.",
			Parameters:  readCellSchema,
		}},
		{Type: "function", Function: llm.FunctionDef{
			Name:        ToolUpdateCell,
			Description: "Update a single spreadsheet cell. Requires user confirmation before the write happens.",
			Parameters:  updateCellSchema,
		}},
		{Type: "function", Function: llm.FunctionDef{
			Name:        ToolDeleteThread,
			Description: "Delete a conversation thread and all of its messages. Requires user confirmation.",
			Parameters:  deleteThreadSchema,
		}},
	}
}

// Gated reports whether the named tool mutates state and therefore goes
// through the confirmation gate.
func Gated(name string) bool {
	return name == ToolUpdateCell || name == ToolDeleteThread
}

// Dispatch runs one tool call. Faults inside a tool body are converted to
// ExecutedFail so a single bad call never aborts the conversation turn.
// Unknown tool names are a fault like any other.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) Result {
	r.deps.Log.Debug("dispatching tool call", "tool", name)

	var result Result
	switch name {
	case ToolGetRange:
		result = r.getRange(args)
	case ToolReadCell:
		result = r.readCell(args)
	case ToolUpdateCell:
		result = r.gate(ctx, name, args, r.updateCell)
	case ToolDeleteThread:
		result = r.gate(ctx, name, args, r.deleteThread)
	default:
		result = ExecutedFail{Error: fmt.Sprintf("unknown tool: %s", name)}
	}

	if fail, ok := result.(ExecutedFail); ok {
		r.deps.Log.Debug("tool call failed", "tool", name, "error", fail.Error)
	}
	return result
}
