package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
)

// startRunRequest is the POST /runs payload.
type startRunRequest struct {
	Input string `json:"input"`
}

// startRunResponse acknowledges an accepted run.
type startRunResponse struct {
	RunID string `json:"run_id"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	// Reject obviously bad input here; the engine re-validates and records
	// the abort for anything that slips through.
	if strings.TrimSpace(req.Input) == "" {
		respondError(w, http.StatusUnprocessableEntity, "input is required")
		return
	}
	if len(req.Input) > core.MaxInputLength {
		respondError(w, http.StatusUnprocessableEntity, "input too long")
		return
	}

	id, err := s.runs.Start(r.Context(), req.Input)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, startRunResponse{RunID: id})
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	ids, err := s.runs.List()
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	respondJSON(w, http.StatusOK, map[string][]string{"runs": ids})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	snap, err := s.runs.Get(runID)
	if err != nil {
		respondError(w, http.StatusNotFound, "run not found: "+runID)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	md, err := s.runs.Report(runID)
	if err != nil {
		respondError(w, http.StatusNotFound, "no report for run: "+runID)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(md))
}
