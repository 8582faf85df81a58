package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/gridchat/internal/storage"
	"github.com/kalambet/gridchat/internal/tools"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Registry *tools.Registry
}

// NewMCPServer exposes the spreadsheet tools over MCP. Calls route through
// the same registry as the chat loop, so the confirmation gate applies to
// MCP clients exactly as it does to the model: unconfirmed mutations come
// back as pending actions, and confirm_action executes them by token.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"gridchat",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("gridchat — spreadsheet access with confirmation-gated mutations."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_range",
			mcp.WithDescription("Read a rectangular range from the spreadsheet. The first row is treated as headers."),
			mcp.WithString("sheet", mcp.Description("Sheet name, e.g. Sheet1"), mcp.Required()),
			mcp.WithString("from", mcp.Description("Top-left cell, e.g. A1"), mcp.Required()),
			mcp.WithString("to", mcp.Description("Bottom-right cell, e.g. D6"), mcp.Required()),
		),
		mcpGetRange(deps),
	)

	s.AddTool(
		mcp.NewTool("read_cell",
			mcp.WithDescription("Read a single spreadsheet cell, including its formula if it has one."),
			mcp.WithString("sheet", mcp.Description("Sheet name, e.g. Sheet1"), mcp.Required()),
			mcp.WithString("cell", mcp.Description("Cell address, e.g. D4"), mcp.Required()),
		),
		mcpReadCell(deps),
	)

	s.AddTool(
		mcp.NewTool("update_cell",
			mcp.WithDescription("Update a single spreadsheet cell. Without confirmed=true the call returns a pending action that must be confirmed first."),
			mcp.WithString("sheet", mcp.Description("Sheet name, e.g. Sheet1"), mcp.Required()),
			mcp.WithString("cell", mcp.Description("Cell address, e.g. A1"), mcp.Required()),
			mcp.WithString("value", mcp.Description("New value for the cell. Strings, numbers and booleans are accepted and stored with their JSON type."), mcp.Required()),
			mcp.WithBoolean("confirmed", mcp.Description("Set true only after the action was approved")),
		),
		mcpUpdateCell(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_thread",
			mcp.WithDescription("Delete a conversation thread and all of its messages. Without confirmed=true the call returns a pending action."),
			mcp.WithString("threadId", mcp.Description("ID of the thread to delete"), mcp.Required()),
			mcp.WithBoolean("confirmed", mcp.Description("Set true only after the action was approved")),
		),
		mcpDeleteThread(deps),
	)

	s.AddTool(
		mcp.NewTool("confirm_action",
			mcp.WithDescription("Execute a previously deflected action by its pending action token."),
			mcp.WithString("pendingActionId", mcp.Description("Token returned by a deflected call"), mcp.Required()),
		),
		mcpConfirmAction(deps),
	)

	return s
}

func mcpGetRange(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sheet, err := req.RequireString("sheet")
		if err != nil {
			return mcpError("sheet is required"), nil
		}
		from, err := req.RequireString("from")
		if err != nil {
			return mcpError("from is required"), nil
		}
		to, err := req.RequireString("to")
		if err != nil {
			return mcpError("to is required"), nil
		}

		return dispatchMCP(ctx, deps, tools.ToolGetRange, map[string]any{
			"sheet": sheet, "from": from, "to": to,
		}), nil
	}
}

func mcpReadCell(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sheet, err := req.RequireString("sheet")
		if err != nil {
			return mcpError("sheet is required"), nil
		}
		cell, err := req.RequireString("cell")
		if err != nil {
			return mcpError("cell is required"), nil
		}

		return dispatchMCP(ctx, deps, tools.ToolReadCell, map[string]any{
			"sheet": sheet, "cell": cell,
		}), nil
	}
}

func mcpUpdateCell(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sheet, err := req.RequireString("sheet")
		if err != nil {
			return mcpError("sheet is required"), nil
		}
		cell, err := req.RequireString("cell")
		if err != nil {
			return mcpError("cell is required"), nil
		}
		// Read the raw argument so numeric and boolean writes keep their
		// JSON type instead of arriving as strings.
		value, ok := req.GetArguments()["value"]
		if !ok || value == nil {
			return mcpError("value is required"), nil
		}

		return dispatchMCP(ctx, deps, tools.ToolUpdateCell, map[string]any{
			"sheet": sheet, "cell": cell, "value": value,
			"confirmed": req.GetBool("confirmed", false),
		}), nil
	}
}

func mcpDeleteThread(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		threadID, err := req.RequireString("threadId")
		if err != nil {
			return mcpError("threadId is required"), nil
		}

		return dispatchMCP(ctx, deps, tools.ToolDeleteThread, map[string]any{
			"threadId":  threadID,
			"confirmed": req.GetBool("confirmed", false),
		}), nil
	}
}

func mcpConfirmAction(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("pendingActionId")
		if err != nil {
			return mcpError("pendingActionId is required"), nil
		}

		result, err := deps.Registry.Confirm(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("pending action %s not found or already resolved", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("confirming action: %v", err)), nil
		}
		return resultToMCP(result), nil
	}
}

func dispatchMCP(ctx context.Context, deps MCPDeps, tool string, params map[string]any) *mcp.CallToolResult {
	args, err := json.Marshal(params)
	if err != nil {
		return mcpError(fmt.Sprintf("encoding parameters: %v", err))
	}
	return resultToMCP(deps.Registry.Dispatch(ctx, tool, args))
}

func resultToMCP(result tools.Result) *mcp.CallToolResult {
	b, err := json.Marshal(result)
	if err != nil {
		return mcpError(fmt.Sprintf("encoding result: %v", err))
	}
	if _, isFail := result.(tools.ExecutedFail); isFail {
		return mcpError(string(b))
	}
	return mcpText(string(b))
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
