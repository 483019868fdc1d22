package harvester

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/go-catalog-harvest/config"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// Client issues rate-limited, retried GET requests against the catalog API.
// Safe for concurrent use by all pool workers; the limiter is the only
// shared mutable state and guards itself.
type Client struct {
	http       *http.Client
	limiter    *RateLimiter
	metrics    *Metrics
	userAgents []string
	referer    string
	maxRetries int
	backoff    time.Duration
	jitterMin  time.Duration
	jitterMax  time.Duration
}

// NewClient builds a client from cfg sharing the given limiter.
func NewClient(cfg *config.Config, limiter *RateLimiter, metrics *Metrics) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	referer := "https://tiki.vn/"
	if parsed, err := url.Parse(cfg.ListingURL); err == nil && parsed.Host != "" {
		referer = parsed.Scheme + "://" + parsed.Host + "/"
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		limiter:    limiter,
		metrics:    metrics,
		userAgents: cfg.UserAgents,
		referer:    referer,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		jitterMin:  cfg.JitterMin,
		jitterMax:  cfg.JitterMax,
	}
}

// WithTransport swaps the underlying round tripper. Used by tests.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.http.Transport = rt
}

// Get fetches rawURL with the given query parameters, retrying transient
// failures with exponential backoff. On success it returns the response
// body; after the retry budget it returns ErrExhausted.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.metrics.IncRetries()
		}

		waitStart := time.Now()
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		c.metrics.ObserveRateLimitWait(time.Since(waitStart))

		if err := sleepCtx(ctx, c.jitter()); err != nil {
			return nil, err
		}

		c.metrics.IncRequest("started")
		start := time.Now()
		body, status, err := c.do(ctx, rawURL, params)
		c.metrics.ObserveDuration(time.Since(start))

		if err == nil && status == http.StatusOK {
			return body, nil
		}

		classified := classifyError(err, status)
		lastErr = classified
		c.metrics.IncError(errorTypeLabel(classified))

		switch {
		case status == http.StatusTooManyRequests:
			wait := c.backoffDelay(attempt)
			slog.Warn("rate limited by remote, backing off",
				slog.String("url", rawURL),
				slog.Duration("wait", wait),
			)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
		case err != nil:
			wait := c.backoffDelay(attempt)
			slog.Warn("request error",
				slog.String("url", rawURL),
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", c.maxRetries),
				slog.Any("error", err),
			)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
		default:
			wait := c.backoffDelay(attempt)
			slog.Warn("request failed",
				slog.String("url", rawURL),
				slog.Int("status", status),
				slog.Duration("wait", wait),
			)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, ErrExhausted{Attempts: c.maxRetries, Err: lastErr}
}

// GetJSON fetches and decodes a JSON response into v. Decode failures are
// permanent: the body was received but malformed, so they are not retried.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, v any) error {
	body, err := c.Get(ctx, rawURL, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response from %s: %w", rawURL, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, rawURL string, params url.Values) ([]byte, int, error) {
	target := rawURL
	if len(params) > 0 {
		target = rawURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "vi-VN,vi;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Referer", c.referer)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func (c *Client) userAgent() string {
	return c.userAgents[rand.Intn(len(c.userAgents))]
}

// jitter spreads requests so workers waking from the limiter together do
// not burst in lockstep.
func (c *Client) jitter() time.Duration {
	if c.jitterMax <= c.jitterMin {
		return c.jitterMin
	}
	return c.jitterMin + time.Duration(rand.Int63n(int64(c.jitterMax-c.jitterMin)))
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.backoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	return base * time.Duration(1<<attempt)
}
