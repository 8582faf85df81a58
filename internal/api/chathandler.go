package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kalambet/gridchat/internal/chat"
	"github.com/kalambet/gridchat/internal/storage"
)

type chatRequest struct {
	ThreadID string `json:"threadId"`
	Message  string `json:"message"`
}

type chatResponse struct {
	ThreadID    string             `json:"threadId"`
	Reply       string             `json:"reply"`
	ToolResults []chat.ToolOutcome `json:"toolResults,omitempty"`
}

// handleChat runs one conversation turn. With Accept: text/event-stream the
// turn's events are streamed as SSE and the final payload arrives as a
// "done" event; otherwise the finished turn is returned as a single JSON
// response. Events are mirrored to the websocket hub either way.
func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
			streamChat(deps, w, r, req)
			return
		}

		turn, err := deps.Orchestrator.RunTurn(r.Context(), req.ThreadID, req.Message, deps.Hub.Sink())
		if err != nil {
			writeTurnError(w, req.ThreadID, err)
			return
		}

		writeJSON(w, http.StatusOK, chatResponse{
			ThreadID:    turn.ThreadID,
			Reply:       turn.Reply,
			ToolResults: turn.Outcomes,
		})
	}
}

func streamChat(deps Deps, w http.ResponseWriter, r *http.Request, req chatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	hubSink := deps.Hub.Sink()
	sink := func(ev chat.Event) {
		if hubSink != nil {
			hubSink(ev)
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return
		}
		w.Write([]byte("data: "))
		w.Write(payload)
		w.Write([]byte("\n\n"))
		flusher.Flush()
	}

	turn, err := deps.Orchestrator.RunTurn(r.Context(), req.ThreadID, req.Message, sink)
	if err != nil {
		payload, _ := json.Marshal(map[string]string{"type": "error", "error": err.Error()})
		w.Write([]byte("data: "))
		w.Write(payload)
		w.Write([]byte("\n\n"))
		flusher.Flush()
		return
	}

	final, err := json.Marshal(map[string]any{
		"type":     "done",
		"threadId": turn.ThreadID,
		"reply":    turn.Reply,
	})
	if err == nil {
		w.Write([]byte("data: "))
		w.Write(final)
		w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

func writeTurnError(w http.ResponseWriter, threadID string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found_error", "thread %s not found", threadID)
		return
	}
	httpError(w, http.StatusBadGateway, "api_error", "turn failed: %v", err)
}
