package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	relay "github.com/oddskit/oddsrelay/internal"
)

var jsonCT = []string{"application/json; charset=utf-8"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.LogAttrs(context.Background(), slog.LevelError, "encode response",
			slog.String("error", err.Error()),
		)
	}
}

func errorResponse(msg string) map[string]any {
	return map[string]any{"error": map[string]any{"message": msg}}
}

// statusCoder is implemented by upstream API errors that carry an HTTP status.
type statusCoder interface{ HTTPStatus() int }

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	var sc statusCoder
	switch {
	case errors.Is(err, relay.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, relay.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, relay.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, relay.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, relay.ErrRateLimited), errors.Is(err, relay.ErrQuotaExhausted):
		return http.StatusTooManyRequests
	case errors.Is(err, relay.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &sc):
		return sc.HTTPStatus()
	case errors.Is(err, relay.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.LogAttrs(r.Context(), slog.LevelError, "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, errorResponse(err.Error()))
}
