package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/dirtypig/pig/pkg/repository"
)

const (
	defaultFeedMinRating = 1
	defaultFeedLimit     = 50
	maxFeedLimit         = 200
)

// rssFeedHandler serves the best rated records, min_rating and limit are optional query params
func (s *Server) rssFeedHandler(w http.ResponseWriter, r *http.Request) {
	minRating, err := intParam(r, "min_rating", defaultFeedMinRating)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := intParam(r, "limit", defaultFeedLimit)
	if err != nil || limit < 1 {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	limit = min(limit, maxFeedLimit)

	records, err := s.store.TopRated(r.Context(), minRating, limit)
	if err != nil {
		lgr.Printf("[ERROR] failed to get records for RSS: %v", err)
		http.Error(w, "failed to get records", http.StatusInternalServerError)
		return
	}

	var builtAt time.Time
	switch b, err := s.store.LastBuild(r.Context()); {
	case err == nil:
		builtAt = b.BuiltAt
	case !errors.Is(err, repository.ErrNotFound):
		lgr.Printf("[WARN] failed to get last build for RSS: %v", err)
	}

	rss, err := s.feed.GenerateRSS(records, minRating, builtAt)
	if err != nil {
		lgr.Printf("[ERROR] failed to generate RSS: %v", err)
		http.Error(w, "failed to generate RSS", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	if _, err := w.Write([]byte(rss)); err != nil {
		lgr.Printf("[WARN] failed to write RSS response: %v", err)
	}
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	res, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return res, nil
}
