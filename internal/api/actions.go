package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/gridchat/internal/storage"
)

// handleConfirmAction executes a deflected action by its durable token. The
// stored parameters are re-invoked with confirmed=true; the model is not
// involved.
func handleConfirmAction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		result, err := deps.Actions.Confirm(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "pending action %s not found or already resolved", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "confirming action: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// handleRejectAction marks a pending action rejected. The proposed action is
// abandoned; nothing is communicated to the model.
func handleRejectAction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Actions.Reject(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "pending action %s not found or already resolved", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "rejecting action: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rejected": id})
	}
}
