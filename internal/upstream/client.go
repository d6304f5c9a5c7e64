// Package upstream implements the HTTP client for the odds backend API.
//
// All reads go through a retrying client over a DNS-cached transport, behind
// a circuit breaker. Responses are normalized (odds formatting, timestamp
// hygiene) before they reach the cache, so every consumer sees clean data.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/dnscache"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	relay "github.com/oddskit/oddsrelay/internal"
	"github.com/oddskit/oddsrelay/internal/circuitbreaker"
	"github.com/oddskit/oddsrelay/internal/ratelimit"
	"github.com/oddskit/oddsrelay/internal/telemetry"
)

// maxResponseBody caps upstream response reads (8 MB).
const maxResponseBody = 8 << 20

// TokenProvider supplies bearer tokens for backend calls.
// Implemented by auth.TokenSource.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryMax   int
	ForceHTTP2 bool
	Resolver   *dnscache.Resolver      // nil = system resolver
	Breaker    *circuitbreaker.Breaker // nil = no breaking
	Limiter    *ratelimit.Limiter      // nil = no request pacing
	Quota      *ratelimit.Quota        // nil = no allowance tracking
	Metrics    *telemetry.Metrics      // nil = no metrics
}

// Client is the odds backend API client.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenProvider
	breaker *circuitbreaker.Breaker
	limiter *ratelimit.Limiter
	quota   *ratelimit.Quota
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// New creates a Client. Call UseTokens before issuing authenticated reads.
func New(opts Options) *Client {
	r := retryablehttp.NewClient()
	r.RetryMax = opts.RetryMax
	r.Logger = nil // retries are visible in metrics; keep logs quiet
	r.HTTPClient.Timeout = opts.Timeout
	r.HTTPClient.Transport = NewTransport(opts.Resolver, opts.ForceHTTP2)

	return &Client{
		baseURL: opts.BaseURL,
		http:    r.StandardClient(),
		breaker: opts.Breaker,
		limiter: opts.Limiter,
		quota:   opts.Quota,
		metrics: opts.Metrics,
		tracer:  telemetry.Tracer("upstream"),
	}
}

// UseTokens wires the token provider. Separate from New because the token
// source itself needs this client as its Refresher.
func (c *Client) UseTokens(tp TokenProvider) { c.tokens = tp }

// --- Typed reads ---

// Scans lists current arbitrage scan results, normalized for display.
func (c *Client) Scans(ctx context.Context, f relay.ScanFilter) ([]relay.Scan, error) {
	q := url.Values{}
	if f.Sport != "" {
		q.Set("sport", f.Sport)
	}
	if f.MinMargin > 0 {
		q.Set("min_margin", strconv.FormatFloat(f.MinMargin, 'f', -1, 64))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}

	body, err := c.get(ctx, "scans", "/scans", q)
	if err != nil {
		return nil, err
	}

	var wires []scanWire
	if err := json.Unmarshal([]byte(gjson.GetBytes(body, "data").Raw), &wires); err != nil {
		return nil, fmt.Errorf("decode scans: %w", err)
	}
	scans := make([]relay.Scan, 0, len(wires))
	for _, w := range wires {
		s, err := w.normalize()
		if err != nil {
			// One malformed row must not poison the whole poll.
			continue
		}
		scans = append(scans, s)
	}
	return scans, nil
}

// Predictions lists current model picks.
func (c *Client) Predictions(ctx context.Context, sport string) ([]relay.Prediction, error) {
	q := url.Values{}
	if sport != "" {
		q.Set("sport", sport)
	}

	body, err := c.get(ctx, "predictions", "/predictions", q)
	if err != nil {
		return nil, err
	}

	var wires []predictionWire
	if err := json.Unmarshal([]byte(gjson.GetBytes(body, "data").Raw), &wires); err != nil {
		return nil, fmt.Errorf("decode predictions: %w", err)
	}
	preds := make([]relay.Prediction, 0, len(wires))
	for _, w := range wires {
		p, err := w.normalize()
		if err != nil {
			continue
		}
		preds = append(preds, p)
	}
	return preds, nil
}

// Sports lists the backend's sport catalog.
func (c *Client) Sports(ctx context.Context) ([]relay.Sport, error) {
	body, err := c.get(ctx, "sports", "/sports", nil)
	if err != nil {
		return nil, err
	}

	var sports []relay.Sport
	if err := json.Unmarshal([]byte(gjson.GetBytes(body, "data").Raw), &sports); err != nil {
		return nil, fmt.Errorf("decode sports: %w", err)
	}
	return sports, nil
}

// --- Token refresh (auth.Refresher) ---

// Refresh exchanges a refresh token for a new token pair.
// The refresh endpoint itself takes no bearer auth.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, string, error) {
	payload, _ := json.Marshal(map[string]string{"refresh_token": refreshToken})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/auth/refresh", bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.countRefresh("error")
		return nil, "", fmt.Errorf("refresh: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		c.countRefresh("error")
		return nil, "", fmt.Errorf("refresh read: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.countRefresh("rejected")
		return nil, "", fmt.Errorf("%w: %s", relay.ErrRefreshRejected,
			gjson.GetBytes(body, "error.message").String())
	}
	if resp.StatusCode != http.StatusOK {
		c.countRefresh("error")
		return nil, "", parseAPIError(resp.StatusCode, body)
	}

	access := gjson.GetBytes(body, "access_token").String()
	rotated := gjson.GetBytes(body, "refresh_token").String()
	expiresIn := gjson.GetBytes(body, "expires_in").Int()
	if access == "" || rotated == "" {
		c.countRefresh("error")
		return nil, "", fmt.Errorf("refresh: malformed token response")
	}

	c.countRefresh("ok")
	tok := &oauth2.Token{
		AccessToken: access,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
	return tok, rotated, nil
}

func (c *Client) countRefresh(outcome string) {
	if c.metrics != nil {
		c.metrics.TokenRefreshes.WithLabelValues(outcome).Inc()
	}
}

// --- Core request path ---

// get performs an authenticated GET against the backend, with breaker
// gating and a single retry on 401 after invalidating the cached token.
func (c *Client) get(ctx context.Context, route, path string, q url.Values) ([]byte, error) {
	body, status, err := c.do(ctx, route, path, q)
	if err == nil && status == http.StatusUnauthorized && c.tokens != nil {
		// Token revoked server-side; refresh once and retry.
		c.tokens.Invalidate()
		body, status, err = c.do(ctx, route, path, q)
	}
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		apiErr := parseAPIError(status, body)
		c.recordError(route, apiErr, status)
		if status == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %s", relay.ErrUnauthorized, apiErr.Message)
		}
		return nil, apiErr
	}
	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
	return body, nil
}

// do issues one request attempt and returns the raw body and status.
// Transport-level failures are recorded against the breaker here; HTTP
// error statuses are classified by the caller.
func (c *Client) do(ctx context.Context, route, path string, q url.Values) ([]byte, int, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		return nil, 0, relay.ErrCircuitOpen
	}
	if c.quota.Exhausted() {
		return nil, 0, relay.ErrQuotaExhausted
	}
	if res := c.limiter.Allow(route); !res.Allowed {
		return nil, 0, fmt.Errorf("%w: retry in %s", relay.ErrRateLimited, res.RetryAfter.Round(time.Millisecond))
	}

	ctx, span := c.tracer.Start(ctx, "upstream.get",
		trace.WithAttributes(attribute.String("route", route)))
	defer span.End()

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.recordError(route, err, 0)
		span.RecordError(err)
		if isTimeout(err) {
			return nil, 0, fmt.Errorf("%w: %v", relay.ErrUpstreamTimeout, err)
		}
		return nil, 0, fmt.Errorf("%w: %v", relay.ErrUpstream, err)
	}
	defer resp.Body.Close()
	c.syncQuota(resp.Header)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		c.recordError(route, err, 0)
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// syncQuota mirrors the backend's monthly allowance counters when present.
func (c *Client) syncQuota(h http.Header) {
	if c.quota == nil {
		return
	}
	remaining, err := strconv.ParseFloat(h.Get("X-Requests-Remaining"), 64)
	if err != nil {
		return
	}
	used, _ := strconv.ParseFloat(h.Get("X-Requests-Used"), 64)
	c.quota.Sync(used, remaining)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// recordError feeds the breaker and error counters.
func (c *Client) recordError(route string, err error, status int) {
	if c.breaker != nil {
		c.breaker.RecordError(circuitbreaker.ClassifyError(err))
	}
	if c.metrics != nil {
		c.metrics.UpstreamErrors.WithLabelValues(route, strconv.Itoa(status)).Inc()
	}
}
