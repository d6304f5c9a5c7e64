package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	st := s.deps.Cache.Stats(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":            true,
		"size":               st.Size,
		"max_size":           st.MaxSize,
		"active_count":       st.ActiveCount,
		"expired_count":      st.ExpiredCount,
		"total_access_count": st.TotalAccessCount,
	})
}

func (s *server) handleCachePurge(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache != nil {
		s.deps.Cache.Purge(r.Context())
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if s.deps.Cache == nil || !s.deps.Cache.Delete(r.Context(), key) {
		writeJSON(w, http.StatusNotFound, errorResponse("cache key not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
