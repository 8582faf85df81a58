package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/gridchat/internal/chat"
	"github.com/kalambet/gridchat/internal/sheet"
	"github.com/kalambet/gridchat/internal/storage"
	"github.com/kalambet/gridchat/internal/tools"
)

const maxRequestBodySize = 1 << 20 // 1MB

// TurnRunner drives one conversation turn.
type TurnRunner interface {
	RunTurn(ctx context.Context, threadID, userText string, sink chat.Sink) (chat.Turn, error)
}

// ActionConfirmer executes or discards a pending action by its token.
type ActionConfirmer interface {
	Confirm(ctx context.Context, pendingID string) (tools.Result, error)
	Reject(pendingID string) error
}

// Deps holds the HTTP layer's collaborators.
type Deps struct {
	Store        *storage.Store
	Grid         *sheet.Store
	Orchestrator TurnRunner
	Actions      ActionConfirmer
	Hub          *Hub
	Token        string
	Log          *slog.Logger
}

// NewHandler builds the full HTTP API. Everything except /health requires
// the bearer token.
func NewHandler(deps Deps) http.Handler {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}

	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/threads", handleListThreads(deps))
		r.Post("/threads", handleCreateThread(deps))
		r.Get("/threads/{id}", handleGetThread(deps))
		r.Patch("/threads/{id}", handleRenameThread(deps))
		r.Delete("/threads/{id}", handleDeleteThread(deps))

		r.Post("/chat", handleChat(deps))

		r.Get("/sheets", handleListSheets(deps))
		r.Get("/sheets/{name}", handleSheetData(deps))
		r.Get("/sheets/{name}/range", handleReadRange(deps))
		r.Get("/sheets/{name}/cells/{cell}", handleReadCell(deps))

		r.Post("/actions/{id}/confirm", handleConfirmAction(deps))
		r.Post("/actions/{id}/reject", handleRejectAction(deps))

		if deps.Hub != nil {
			r.Get("/ws", deps.Hub.HandleWS)
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
