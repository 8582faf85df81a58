package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kalambet/gridchat/internal/llm"
	"github.com/kalambet/gridchat/internal/sheet"
	"github.com/kalambet/gridchat/internal/storage"
	"github.com/kalambet/gridchat/internal/tools"
)

// maxSteps caps the number of sequential model rounds within one turn so a
// tool-happy model cannot loop forever.
const maxSteps = 10

const defaultThreadTitle = "New Chat"

// Engine is the model-completion collaborator.
type Engine interface {
	ChatWithTools(ctx context.Context, model string, messages []llm.ChatMessage, tools []llm.Tool) (llm.ChatResponse, error)
}

// Event is one observable step of a conversation turn, streamed to clients
// over SSE and the websocket hub.
type Event struct {
	Type     string          `json:"type"` // thread | tool_call | tool_result | assistant
	ThreadID string          `json:"threadId"`
	ToolName string          `json:"toolName,omitempty"`
	CallID   string          `json:"callId,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Text     string          `json:"text,omitempty"`
}

// Sink receives turn events as they happen. May be nil.
type Sink func(Event)

// ToolOutcome records one tool invocation within a turn.
type ToolOutcome struct {
	CallID   string       `json:"callId"`
	ToolName string       `json:"toolName"`
	Result   tools.Result `json:"result"`
}

// Turn is the completed result of one user turn.
type Turn struct {
	ThreadID string
	Reply    string
	Outcomes []ToolOutcome
}

// Deps holds the orchestrator's collaborators.
type Deps struct {
	Store    *storage.Store
	Grid     *sheet.Store
	Registry *tools.Registry
	Engine   Engine
	Model    string
	Log      *slog.Logger
}

// Orchestrator drives one user turn through the model, dispatching tool
// calls through the registry and persisting both sides of the exchange.
type Orchestrator struct {
	deps Deps
}

func New(deps Deps) *Orchestrator {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Orchestrator{deps: deps}
}

// RunTurn processes one user message. An empty threadID starts a new thread
// titled after the message. Tool faults are fed back to the model as failed
// results; faults in the model engine or the store abort the whole turn.
func (o *Orchestrator) RunTurn(ctx context.Context, threadID, userText string, sink Sink) (Turn, error) {
	threadID, err := o.resolveThread(threadID, userText)
	if err != nil {
		return Turn{}, err
	}
	emit(sink, Event{Type: "thread", ThreadID: threadID})

	if _, err := o.deps.Store.CreateMessage(uuid.New().String(), threadID, "user", userText, ""); err != nil {
		return Turn{}, fmt.Errorf("persisting user message: %w", err)
	}

	history, err := o.deps.Store.MessagesByThread(threadID)
	if err != nil {
		return Turn{}, fmt.Errorf("loading history: %w", err)
	}

	messages := make([]llm.ChatMessage, 0, len(history)+1)
	messages = append(messages, llm.ChatMessage{Role: "system", Content: systemPrompt(o.deps.Grid)})
	for _, m := range history {
		messages = append(messages, llm.ChatMessage{Role: m.Role, Content: m.Content})
	}

	turn := Turn{ThreadID: threadID}
	defs := o.deps.Registry.Definitions()

	for step := 0; step < maxSteps; step++ {
		resp, err := o.deps.Engine.ChatWithTools(ctx, o.deps.Model, messages, defs)
		if err != nil {
			return Turn{}, fmt.Errorf("model completion: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			turn.Reply = resp.Content
			break
		}

		messages = append(messages, llm.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			callID := uuid.New().String()
			emit(sink, Event{
				Type:     "tool_call",
				ThreadID: threadID,
				ToolName: call.Function.Name,
				CallID:   callID,
			})

			result := o.deps.Registry.Dispatch(ctx, call.Function.Name, call.Function.Arguments)
			turn.Outcomes = append(turn.Outcomes, ToolOutcome{
				CallID:   callID,
				ToolName: call.Function.Name,
				Result:   result,
			})

			resultJSON, err := json.Marshal(result)
			if err != nil {
				return Turn{}, fmt.Errorf("encoding tool result: %w", err)
			}
			emit(sink, Event{
				Type:     "tool_result",
				ThreadID: threadID,
				ToolName: call.Function.Name,
				CallID:   callID,
				Result:   resultJSON,
			})

			messages = append(messages, llm.ChatMessage{Role: "tool", Content: string(resultJSON)})
		}

		// The step budget ran out mid-chain. Keep whatever text the model
		// produced alongside its last tool calls.
		if step == maxSteps-1 {
			turn.Reply = resp.Content
		}
	}

	// A cancelled turn does not persist a partial assistant message. The
	// user's own message is already saved, so a retry loses nothing.
	if ctx.Err() != nil {
		return Turn{}, ctx.Err()
	}

	toolCallsJSON := ""
	if len(turn.Outcomes) > 0 {
		b, err := json.Marshal(turn.Outcomes)
		if err != nil {
			return Turn{}, fmt.Errorf("encoding tool outcomes: %w", err)
		}
		toolCallsJSON = string(b)
	}

	if _, err := o.deps.Store.CreateMessage(uuid.New().String(), threadID, "assistant", turn.Reply, toolCallsJSON); err != nil {
		return Turn{}, fmt.Errorf("persisting assistant message: %w", err)
	}

	emit(sink, Event{Type: "assistant", ThreadID: threadID, Text: turn.Reply})

	o.deps.Log.Info("turn completed",
		"thread", threadID, "toolCalls", len(turn.Outcomes), "replyLen", len(turn.Reply))
	return turn, nil
}

// resolveThread returns an existing thread's id or creates a new thread
// titled after the first user message.
func (o *Orchestrator) resolveThread(threadID, userText string) (string, error) {
	if threadID != "" {
		if _, err := o.deps.Store.GetThread(threadID); err != nil {
			return "", fmt.Errorf("resolving thread %s: %w", threadID, err)
		}
		return threadID, nil
	}

	id := uuid.New().String()
	if _, err := o.deps.Store.CreateThread(id, titleFromMessage(userText)); err != nil {
		return "", fmt.Errorf("creating thread: %w", err)
	}
	return id, nil
}

// titleFromMessage derives a thread title from the first user message,
// truncated to 50 runes.
func titleFromMessage(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return defaultThreadTitle
	}
	runes := []rune(text)
	if len(runes) > 50 {
		return string(runes[:50])
	}
	return text
}

func emit(sink Sink, ev Event) {
	if sink != nil {
		sink(ev)
	}
}
