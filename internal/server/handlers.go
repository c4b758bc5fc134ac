package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"hoard/internal/api"
	"hoard/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	stats, err := store.CollectStats(r.Context(), s.records, s.buckets)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	record, err := s.records.FindByKey(r.Context(), id)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusInternalServerError, err)
		return
	}
	if record == nil {
		s.writeErrorReq(w, r, http.StatusNotFound, store.ErrRecordNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

// writeErrorReq writes the error body. Only server faults are logged here;
// the request log already records every other status.
func (s *Server) writeErrorReq(w http.ResponseWriter, r *http.Request, status int, err error) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	if status >= http.StatusInternalServerError {
		s.log().Error("request failed", "status", status, "error", err, "path", r.URL.Path)
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}
