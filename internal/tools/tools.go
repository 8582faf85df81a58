package tools

import (
	"encoding/json"
	"fmt"

	"github.com/kalambet/gridchat/internal/sheet"
)

type getRangeParams struct {
	Sheet string `json:"sheet"`
	From  string `json:"from"`
	To    string `json:"to"`
}

func (r *Registry) getRange(args json.RawMessage) Result {
	var p getRangeParams
	if err := json.Unmarshal(args, &p); err != nil {
		return ExecutedFail{Error: fmt.Sprintf("invalid parameters for getRange: %v", err)}
	}

	td, err := r.deps.Grid.ReadRange(p.Sheet, p.From, p.To)
	if err != nil {
		return ExecutedFail{Error: err.Error()}
	}

	return ExecutedOK{
		Message: fmt.Sprintf("Here is the data from %s:\n\n%s", td.Range, sheet.TableToMarkdown(td)),
		Data:    td,
	}
}

type readCellParams struct {
	Sheet string `json:"sheet"`
	Cell  string `json:"cell"`
}

func (r *Registry) readCell(args json.RawMessage) Result {
	var p readCellParams
	if err := json.Unmarshal(args, &p); err != nil {
		return ExecutedFail{Error: fmt.Sprintf("invalid parameters for readCell: %v", err)}
	}

	cd, err := r.deps.Grid.ReadCell(p.Sheet, p.Cell)
	if err != nil {
		return ExecutedFail{Error: err.Error()}
	}

	var msg string
	switch {
	case cd.Formula != "":
		msg = fmt.Sprintf("Cell %s contains formula =%s which evaluates to %v", cd.Address, cd.Formula, cd.Value)
	case cd.Value == nil:
		msg = fmt.Sprintf("Cell %s is empty", cd.Address)
	default:
		msg = fmt.Sprintf("Cell %s contains %s", cd.Address, formatValue(cd.Value))
	}

	return ExecutedOK{Message: msg, Data: cd}
}

type updateCellParams struct {
	Sheet string `json:"sheet"`
	Cell  string `json:"cell"`
	Value any    `json:"value"`
}

func (r *Registry) updateCell(args json.RawMessage) Result {
	var p updateCellParams
	if err := json.Unmarshal(args, &p); err != nil {
		return ExecutedFail{Error: fmt.Sprintf("invalid parameters for updateCell: %v", err)}
	}

	if err := r.deps.Grid.WriteCell(p.Sheet, p.Cell, p.Value); err != nil {
		return ExecutedFail{Error: err.Error()}
	}

	target := p.Sheet + "!" + p.Cell
	return ExecutedOK{Message: fmt.Sprintf("Updated cell %s to %s", target, formatValue(p.Value))}
}

type deleteThreadParams struct {
	ThreadID string `json:"threadId"`
}

func (r *Registry) deleteThread(args json.RawMessage) Result {
	var p deleteThreadParams
	if err := json.Unmarshal(args, &p); err != nil {
		return ExecutedFail{Error: fmt.Sprintf("invalid parameters for deleteThreadTool: %v", err)}
	}

	if err := r.deps.Store.DeleteThread(p.ThreadID); err != nil {
		return ExecutedFail{Error: err.Error()}
	}

	return ExecutedOK{Message: fmt.Sprintf("Deleted thread %s and all of its messages", p.ThreadID)}
}

// propose builds the deflection for an unconfirmed gated call: a natural
// language description of what would happen plus the original parameters
// echoed under Data. No state is touched here.
func (r *Registry) propose(name string, args json.RawMessage) (Deflected, error) {
	switch name {
	case ToolUpdateCell:
		var p updateCellParams
		if err := json.Unmarshal(args, &p); err != nil {
			return Deflected{}, fmt.Errorf("invalid parameters for updateCell: %w", err)
		}
		if p.Sheet == "" || p.Cell == "" {
			return Deflected{}, fmt.Errorf("updateCell requires sheet and cell")
		}
		target := p.Sheet + "!" + p.Cell
		return Deflected{
			Action:      "update",
			Description: fmt.Sprintf("Update cell %s to %s", target, formatValue(p.Value)),
			TargetType:  "cell",
			TargetID:    target,
			Data:        map[string]any{"sheet": p.Sheet, "cell": p.Cell, "value": p.Value},
		}, nil
	case ToolDeleteThread:
		var p deleteThreadParams
		if err := json.Unmarshal(args, &p); err != nil {
			return Deflected{}, fmt.Errorf("invalid parameters for deleteThreadTool: %w", err)
		}
		if p.ThreadID == "" {
			return Deflected{}, fmt.Errorf("deleteThreadTool requires threadId")
		}
		return Deflected{
			Action:      "delete",
			Description: fmt.Sprintf("Delete thread %s and all of its messages", p.ThreadID),
			TargetType:  "thread",
			TargetID:    p.ThreadID,
			Data:        map[string]any{"threadId": p.ThreadID},
		}, nil
	default:
		return Deflected{}, fmt.Errorf("tool %s is not gated", name)
	}
}

// formatValue renders a parameter value for human-readable descriptions.
// Strings are quoted, numbers and booleans are printed bare.
func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", v)
}
