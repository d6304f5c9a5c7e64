package server

import (
	"log/slog"
	"net/http"
)

var (
	okBody  = []byte("ok\n")
	plainCT = []string{"text/plain; charset=utf-8"}
)

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header()["Content-Type"] = plainCT
	w.WriteHeader(http.StatusOK)
	w.Write(okBody)
}

// handleReadyz reports ready only when the session store is reachable.
func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.ReadyCheck != nil {
		if err := s.deps.ReadyCheck(r.Context()); err != nil {
			slog.LogAttrs(r.Context(), slog.LevelWarn, "readiness check failed",
				slog.String("error", err.Error()),
			)
			writeJSON(w, http.StatusServiceUnavailable, errorResponse("not ready"))
			return
		}
	}
	w.Header()["Content-Type"] = plainCT
	w.WriteHeader(http.StatusOK)
	w.Write(okBody)
}
