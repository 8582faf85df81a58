package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/gridchat/internal/sheet"
)

func handleListSheets(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"sheets": deps.Grid.SheetNames()})
	}
}

func handleSheetData(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		data, err := deps.Grid.SheetData(name)
		if err != nil {
			writeSheetError(w, name, err)
			return
		}
		writeJSON(w, http.StatusOK, data)
	}
}

func handleReadRange(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		from := r.URL.Query().Get("from")
		to := r.URL.Query().Get("to")
		if from == "" || to == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "from and to query parameters are required")
			return
		}

		data, err := deps.Grid.ReadRange(name, from, to)
		if err != nil {
			writeSheetError(w, name, err)
			return
		}
		writeJSON(w, http.StatusOK, data)
	}
}

func handleReadCell(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		cell := chi.URLParam(r, "cell")

		data, err := deps.Grid.ReadCell(name, cell)
		if err != nil {
			writeSheetError(w, name, err)
			return
		}
		writeJSON(w, http.StatusOK, data)
	}
}

func writeSheetError(w http.ResponseWriter, name string, err error) {
	switch {
	case errors.Is(err, sheet.ErrSheetNotFound):
		httpError(w, http.StatusNotFound, "not_found_error", "sheet %s not found", name)
	case errors.Is(err, sheet.ErrMalformedRef):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}
