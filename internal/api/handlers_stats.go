package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	stats := s.model.Stats()
	if stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"model":   s.model.Model(),
		"backend": s.model.Backend(),
		"loaded":  s.model.Loaded(),
		"stats":   stats.Snapshot(),
	})
}

// handleModelReload drops the current backend client and loads a fresh one.
func (s *Server) handleModelReload(w http.ResponseWriter, r *http.Request) {
	if err := s.model.Reload(r.Context()); err != nil {
		s.log.Error("model reload failed", "model", s.model.Model(), "error", err)
		jsonError(w, "model reload failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "reloaded",
		"model":  s.model.Model(),
	})
}
