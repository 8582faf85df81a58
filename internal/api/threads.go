package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/gridchat/internal/storage"
)

func handleListThreads(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		threads, err := deps.Store.ListThreads()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing threads: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"threads": threads})
	}
}

type createThreadRequest struct {
	Title string `json:"title"`
}

func handleCreateThread(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createThreadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Title == "" {
			req.Title = "New Chat"
		}

		thread, err := deps.Store.CreateThread(uuid.New().String(), req.Title)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "creating thread: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, thread)
	}
}

func handleGetThread(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		thread, err := deps.Store.GetThread(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "thread %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading thread: %v", err)
			return
		}

		messages, err := deps.Store.MessagesByThread(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading messages: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"thread":   thread,
			"messages": messages,
		})
	}
}

type renameThreadRequest struct {
	Title string `json:"title"`
}

func handleRenameThread(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req renameThreadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Title == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}

		err := deps.Store.RenameThread(id, req.Title)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "thread %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "renaming thread: %v", err)
			return
		}

		thread, err := deps.Store.GetThread(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading thread: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, thread)
	}
}

func handleDeleteThread(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Store.DeleteThread(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "thread %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "deleting thread: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	}
}
