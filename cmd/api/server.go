package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"repolens/internal/artifact"
	"repolens/internal/fetch"
	"repolens/internal/history"
	"repolens/internal/pipeline"
	"repolens/internal/util/jsonutil"
)

type server struct {
	coordinator *pipeline.Coordinator
	history     *history.Store
	artifacts   *artifact.S3Store
	mux         *http.ServeMux
}

func newServer(coord *pipeline.Coordinator, hs *history.Store, as *artifact.S3Store) *server {
	s := &server{
		coordinator: coord,
		history:     hs,
		artifacts:   as,
		mux:         http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("GET /api/analyze/stream", s.handleAnalyzeSSE)
	s.mux.HandleFunc("GET /api/analyze/ws", s.handleAnalyzeWS)
	s.mux.HandleFunc("GET /api/reports/{id}", s.handleReport)
	s.mux.HandleFunc("GET /api/runs", s.handleRuns)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnalyze runs one analysis to completion and returns the report in
// a single response. Streaming clients use /api/analyze/stream instead.
func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Repo    string `json:"repo"`
		Ref     string `json:"ref"`
		Refresh bool   `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	report, err := s.coordinator.Analyze(r.Context(), pipeline.Request{
		RepoID:  in.Repo,
		Ref:     in.Ref,
		Refresh: in.Refresh,
	})
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "report id is required", http.StatusBadRequest)
		return
	}
	if report, ok := s.coordinator.Report(r.Context(), id); ok {
		writeJSON(w, http.StatusOK, report)
		return
	}
	// Evicted from the cache does not mean gone: exported copies survive.
	if s.artifacts != nil {
		raw, err := s.artifacts.GetReport(r.Context(), id)
		if err == nil {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(raw)
			return
		}
		if !errors.Is(err, artifact.ErrNotFound) {
			logrus.Warnf("api: artifact read for %q: %v", id, err)
		}
	}
	http.Error(w, "report not found", http.StatusNotFound)
}

func (s *server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	runs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, fetch.ErrBadIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, fetch.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, fetch.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, fetch.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	raw, err := jsonutil.MarshalNoEscape(v)
	if err != nil {
		http.Error(w, "serialization failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
