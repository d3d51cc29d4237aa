// Package apiclient talks to the platform API: bounded retries, a randomized
// cooldown after every attempt, an expiring response cache and a best-effort
// HTML scraper.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"unscored/internal/cache"
	"unscored/internal/config"
	"unscored/internal/models"
	"unscored/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// MaxAttempts is the number of tries of one API request.
const MaxAttempts = 3

// Options configures a Client.
type Options struct {
	BaseURL       string
	UserAgent     string
	APIKey        string
	APISecret     string
	Timeout       time.Duration
	ScrapeTimeout time.Duration
	CooldownMin   time.Duration
	CooldownMax   time.Duration
	CacheEnabled  bool
}

// OptionsFromConfig maps the application configuration onto client options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:       cfg.APIBaseURL,
		UserAgent:     cfg.APIUserAgent,
		APIKey:        cfg.APIKey,
		APISecret:     cfg.APISecret,
		Timeout:       cfg.APITimeout(),
		ScrapeTimeout: cfg.ScrapeTimeout(),
		CooldownMin:   time.Duration(cfg.RequestCooldownMinMs) * time.Millisecond,
		CooldownMax:   time.Duration(cfg.RequestCooldownMaxMs) * time.Millisecond,
		CacheEnabled:  cfg.CacheEnabled,
	}
}

// Result is the outcome of Request. Body holds the raw JSON when Status is true
// or when the platform answered with a well-formed error.
type Result struct {
	Status bool
	Error  string
	Body   []byte
}

// Client is safe for concurrent use. Each request sleeps its own cooldown, so
// callers on different goroutines never wait for each other.
type Client struct {
	opts       Options
	httpClient *http.Client
	scraper    *http.Client
	cache      cache.ResponseCache
	sleep      func(ctx context.Context, d time.Duration)
}

// New builds a Client. rc may be nil to disable response caching.
func New(opts Options, rc cache.ResponseCache) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://scored.co"
	}
	if rc == nil {
		opts.CacheEnabled = false
	}
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		scraper:    &http.Client{Timeout: opts.ScrapeTimeout},
		cache:      rc,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Cooldown pauses for a random duration in [CooldownMin, CooldownMax).
func (c *Client) Cooldown(ctx context.Context) {
	d := c.opts.CooldownMin
	if span := c.opts.CooldownMax - c.opts.CooldownMin; span > 0 {
		d += rand.N(span)
	}
	observability.Logger.DebugContext(ctx, "API cooldown", slog.Duration("duration", d))
	c.sleep(ctx, d)
}

func cacheKey(method, endpoint string, params url.Values) string {
	return strings.ToUpper(method) + " " + endpoint + "?" + params.Encode()
}

type statusProbe struct {
	Status bool   `json:"status"`
	Error  string `json:"error"`
}

// Request performs method on endpoint. A fresh cached response is returned
// without a network call when ttl is positive. Transport failures and non-JSON
// bodies are retried up to MaxAttempts; an API-level error is returned as-is.
func (c *Client) Request(ctx context.Context, method, endpoint string, params url.Values, ttl time.Duration) Result {
	key := cacheKey(method, endpoint, params)
	if ttl > 0 && c.opts.CacheEnabled {
		if body, ok := c.cache.Get(ctx, key); ok {
			observability.APIRequests.WithLabelValues(endpoint, "cached").Inc()
			return Result{Status: true, Body: body}
		}
	}

	span, ctx := observability.NewSpan(ctx, "apiclient.Request",
		attribute.String("http.method", method),
		attribute.String("api.endpoint", endpoint),
	)
	defer span.End()

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		observability.Logger.DebugContext(ctx, "API request",
			slog.String("method", method),
			slog.String("endpoint", endpoint),
			slog.Int("attempt", attempt),
		)

		body, err := c.do(ctx, method, endpoint, params)
		c.Cooldown(ctx)
		if err != nil {
			observability.Logger.ErrorContext(ctx, "API request failed",
				slog.String("endpoint", endpoint),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		var probe statusProbe
		if err := json.Unmarshal(body, &probe); err != nil {
			observability.Logger.ErrorContext(ctx, "API returned a non-JSON body",
				slog.String("endpoint", endpoint),
				slog.Int("attempt", attempt),
			)
			continue
		}

		if !probe.Status {
			observability.Logger.WarnContext(ctx, "API error response",
				slog.String("endpoint", endpoint),
				slog.String("error", probe.Error),
			)
			observability.APIRequests.WithLabelValues(endpoint, "api_error").Inc()
			return Result{Status: false, Error: probe.Error, Body: body}
		}

		observability.APIRequests.WithLabelValues(endpoint, "ok").Inc()
		if ttl > 0 && c.opts.CacheEnabled {
			c.cache.Set(ctx, key, body, ttl)
		}
		return Result{Status: true, Body: body}
	}

	observability.Logger.ErrorContext(ctx, "API request: all attempts failed", slog.String("endpoint", endpoint))
	observability.APIRequests.WithLabelValues(endpoint, "failed").Inc()
	span.SetError(fmt.Errorf("%s: all attempts failed", endpoint))
	return Result{Status: false, Error: "Failed"}
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values) ([]byte, error) {
	defer trackLatency(endpoint)()

	target := strings.TrimRight(c.opts.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")

	var req *http.Request
	var err error
	switch strings.ToUpper(method) {
	case http.MethodGet:
		if len(params) > 0 {
			target += "?" + params.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	case http.MethodPost:
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewBufferString(params.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	default:
		return nil, fmt.Errorf("unsupported method %q", method)
	}
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if c.opts.APIKey != "" && c.opts.APISecret != "" {
		req.Header.Set("X-Api-Key", c.opts.APIKey)
		req.Header.Set("X-Api-Secret", c.opts.APISecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body (status %d): %w", resp.StatusCode, err)
	}
	return b, nil
}

func trackLatency(endpoint string) func() {
	start := time.Now()
	return func() {
		observability.APIRequestLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

// Fetch performs Request and decodes a successful body into dest. Failures are
// returned as TRANSPORT_FAILURE or UPSTREAM_ERROR AppErrors.
func (c *Client) Fetch(ctx context.Context, method, endpoint string, params url.Values, ttl time.Duration, dest any) error {
	res := c.Request(ctx, method, endpoint, params, ttl)
	if !res.Status {
		if res.Body == nil {
			return models.NewTransportFailure(fmt.Errorf("%s %s", method, endpoint))
		}
		return models.NewUpstreamError(res.Error)
	}
	if err := json.Unmarshal(res.Body, dest); err != nil {
		return models.NewTransportFailure(fmt.Errorf("decode %s: %w", endpoint, err))
	}
	return nil
}
