package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/boostedhh/condorcheck/internal/errors"
)

func (s *Server) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, req *http.Request) {
	version := s.version
	if version == "" {
		version = "dev"
	}
	writeJSON(w, http.StatusOK, versionResponse{
		Version: version,
		Now:     time.Now().UTC(),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, req *http.Request) {
	runs, err := s.store.List()
	if err != nil {
		s.logger.Error("list runs", zap.Error(err))
		apperrors.WriteHTTPError(w, req, http.StatusInternalServerError,
			apperrors.CodeInternal, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleLatestRun(w http.ResponseWriter, req *http.Request) {
	latest, err := s.store.Latest()
	if err != nil {
		s.logger.Error("load latest run", zap.Error(err))
		apperrors.WriteHTTPError(w, req, http.StatusInternalServerError,
			apperrors.CodeInternal, "failed to load latest run")
		return
	}
	if latest == nil {
		apperrors.WriteHTTPError(w, req, http.StatusNotFound,
			apperrors.CodeNotFound, "no runs recorded")
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleRun(w http.ResponseWriter, req *http.Request) {
	runID := chi.URLParam(req, "runID")
	rec, err := s.store.Get(runID)
	if err != nil {
		apperrors.WriteHTTPError(w, req, http.StatusNotFound,
			apperrors.CodeNotFound, "run not found: "+runID)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRunReport(w http.ResponseWriter, req *http.Request) {
	runID := chi.URLParam(req, "runID")
	if _, err := s.store.Get(runID); err != nil {
		apperrors.WriteHTTPError(w, req, http.StatusNotFound,
			apperrors.CodeNotFound, "run not found: "+runID)
		return
	}

	f, err := os.Open(s.store.ReportPath(runID))
	if err != nil {
		apperrors.WriteHTTPError(w, req, http.StatusNotFound,
			apperrors.CodeNotFound, "no report recorded for run: "+runID)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Warn("stream report", zap.String("run_id", runID), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
