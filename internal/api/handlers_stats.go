package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, ErrKindUnavailable, "llm stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"backend": s.backend,
		"stats":   s.stats.Snapshot(),
	})
}
