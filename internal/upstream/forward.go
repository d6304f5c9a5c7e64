package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	relay "github.com/oddskit/oddsrelay/internal"
)

// hopByHop headers that must not be forwarded between client and backend.
var hopByHop = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// Forward proxies a raw GET to the backend for endpoints the relay does not
// type or cache. The caller's auth headers are discarded; the relay's own
// bearer token is injected instead.
func (c *Client) Forward(ctx context.Context, w http.ResponseWriter, r *http.Request, path string) error {
	if c.breaker != nil && !c.breaker.Allow() {
		http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
		return relay.ErrCircuitOpen
	}
	if c.quota.Exhausted() {
		http.Error(w, "quota exhausted", http.StatusTooManyRequests)
		return relay.ErrQuotaExhausted
	}
	if res := c.limiter.Allow("forward"); !res.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return relay.ErrRateLimited
	}

	target := c.baseURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	outReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("forward: create request: %w", err)
	}

	for key, vals := range r.Header {
		if _, hop := hopByHop[key]; hop {
			continue
		}
		if strings.EqualFold(key, "Authorization") {
			continue
		}
		outReq.Header[key] = vals
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			http.Error(w, "auth unavailable", http.StatusBadGateway)
			return fmt.Errorf("forward: token: %w", err)
		}
		outReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(outReq)
	if err != nil {
		c.recordError("forward", err, 0)
		http.Error(w, "backend request failed", http.StatusBadGateway)
		return fmt.Errorf("forward: %w", err)
	}
	defer resp.Body.Close()
	c.syncQuota(resp.Header)

	if c.breaker != nil {
		if resp.StatusCode >= 500 {
			c.breaker.RecordError(1.0)
		} else {
			c.breaker.RecordSuccess()
		}
	}

	for key, vals := range resp.Header {
		if _, hop := hopByHop[key]; hop {
			continue
		}
		for _, v := range vals {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, io.LimitReader(resp.Body, maxResponseBody)); err != nil {
		return fmt.Errorf("forward: copy response: %w", err)
	}
	return nil
}
