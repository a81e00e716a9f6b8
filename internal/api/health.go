package api

import (
	"encoding/json"
	"net/http"
)

type healthResponse struct {
	Status string `json:"status"`
}

type modeResponse struct {
	Mode string `json:"mode"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(healthResponse{Status: "ok"}); err != nil {
		s.logger.Error("encode healthz response", "error", err)
	}
}

// handleMode reports the run mode so trials can build resource URLs.
func (s *Server) handleMode(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, modeResponse{Mode: s.engine.Mode()})
}
