package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/dirtypig/pig/pkg/repository"
)

// statusHandler returns server status with collection summary
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context())
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	var lastBuild *repository.Build
	switch b, err := s.store.LastBuild(r.Context()); {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		renderError(w, r, err, http.StatusInternalServerError)
		return
	default:
		lastBuild = b
	}

	status := map[string]any{
		"status":     "ok",
		"version":    s.version,
		"time":       time.Now().UTC(),
		"records":    count,
		"last_build": lastBuild,
	}
	renderJSON(w, r, http.StatusOK, status)
}

// randomHandler returns a random record, no content when the collection is empty
func (s *Server) randomHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Random(r.Context())
	if errors.Is(err, repository.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, rec)
}

// recordHandler returns a record by post number
func (s *Server) recordHandler(w http.ResponseWriter, r *http.Request) {
	num, err := strconv.ParseInt(r.PathValue("num"), 10, 64)
	if err != nil {
		renderError(w, r, errors.New("invalid record number"), http.StatusBadRequest)
		return
	}

	rec, err := s.store.Get(r.Context(), num)
	if errors.Is(err, repository.ErrNotFound) {
		renderError(w, r, err, http.StatusNotFound)
		return
	}
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, rec)
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			lgr.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON
func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, r, code, map[string]string{"error": errMsg})
}
