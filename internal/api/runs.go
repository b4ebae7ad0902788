package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxRunsPerPage = 200

func (s *Server) requireRuns(w http.ResponseWriter, r *http.Request) bool {
	if s.runs != nil {
		return true
	}
	s.errorHandler.HandleError(w, r, NewError(ErrTypeServiceUnavailable, "strategy run store is disabled").
		WithRequestID(middleware.GetReqID(r.Context())).
		Build())
	return false
}

// GET /api/v1/runs?session_id=&limit=&offset=
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireRuns(w, r) {
		return
	}
	limit := clampInt(qInt(r, "limit", 20), 1, maxRunsPerPage)
	offset := max(qInt(r, "offset", 0), 0)

	runs, total, err := s.runs.ListRuns(r.URL.Query().Get("session_id"), limit, offset)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, RunsResponse{Runs: runs, TotalCount: total, Limit: limit, Offset: offset})
}

// GET /api/v1/runs/{runID}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireRuns(w, r) {
		return
	}
	id := chi.URLParam(r, "runID")
	run, err := s.runs.GetRun(id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	snaps, err := s.runs.GetSnapshots(id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, RunResponse{Run: run, Snapshots: snaps})
}

// DELETE /api/v1/runs/{runID}
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireRuns(w, r) {
		return
	}
	if err := s.runs.DeleteRun(chi.URLParam(r, "runID")); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
