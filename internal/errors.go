package relay

import "errors"

// Sentinel errors for the relay domain.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrBadRequest      = errors.New("bad request")
	ErrUpstream        = errors.New("upstream error")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrCircuitOpen     = errors.New("upstream circuit open")
	ErrRateLimited     = errors.New("rate limited")
	ErrQuotaExhausted  = errors.New("monthly request quota exhausted")
	ErrSessionMissing  = errors.New("no stored session")
	ErrRefreshRejected = errors.New("refresh token rejected")
)
