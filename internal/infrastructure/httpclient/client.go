// Package httpclient is the session-aware pipeline every call to the
// mall-admin API goes through: token injection, envelope unwrapping and
// centralized failure signaling.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/erp/mall-admin/internal/domain/shared"
	"github.com/erp/mall-admin/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the per-call correlation id
const RequestIDHeader = "X-Request-ID"

// TokenSource supplies the credential attached to outgoing requests
type TokenSource interface {
	Token() string
}

// AuthFailureHandler runs the session-expired flow
type AuthFailureHandler interface {
	Handle(ctx context.Context) bool
}

// Config configures the pipeline transport
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// RetryConfig configures retry behavior for idempotent reads.
type RetryConfig struct {
	MaxRetries  int
	RetryDelay  time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	ShouldRetry func(resp *http.Response, err error) bool
}

// DefaultRetryConfig retries a failed read once.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 1,
		RetryDelay: 300 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
		ShouldRetry: func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		},
	}
}

// Client is the HTTP pipeline. It holds no per-call state and performs no
// request coalescing.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	headers     map[string]string
	tokens      TokenSource
	notifier    shared.Notifier
	authFailure AuthFailureHandler
	retryConfig RetryConfig
	limiter     *rate.Limiter
	metrics     *telemetry.Metrics
	logger      *zap.Logger
	mu          sync.RWMutex
}

// Option configures a Client
type Option func(*Client)

// WithTokenSource attaches the session token to every request
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) { c.tokens = tokens }
}

// WithNotifier sets where failures are surfaced
func WithNotifier(n shared.Notifier) Option {
	return func(c *Client) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithAuthFailureHandler sets the flow run on 401/403
func WithAuthFailureHandler(h AuthFailureHandler) Option {
	return func(c *Client) { c.authFailure = h }
}

// WithRetryConfig overrides the read retry policy
func WithRetryConfig(cfg RetryConfig) Option {
	return func(c *Client) {
		if cfg.ShouldRetry == nil {
			cfg.ShouldRetry = DefaultRetryConfig().ShouldRetry
		}
		c.retryConfig = cfg
	}
}

// WithRateLimit caps outgoing calls per second. 0 disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			burst := int(math.Ceil(perSecond))
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithMetrics records request metrics
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHTTPClient replaces the underlying transport, mainly for tests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates the pipeline for one base URL.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "mall-admin-console/1.0"
	}

	c := &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: cfg.Timeout,
		},
		baseURL: base,
		headers: map[string]string{
			"Accept":     "application/json",
			"User-Agent": cfg.UserAgent,
		},
		notifier:    nopNotifier{},
		retryConfig: DefaultRetryConfig(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Request is one call through the pipeline. Body is sent as JSON, Form as
// application/x-www-form-urlencoded; at most one of them may be set.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Form    url.Values
	Body    any
	Headers map[string]string
}

// Get builds a GET request
func Get(path string, query url.Values) Request {
	return Request{Method: http.MethodGet, Path: path, Query: query}
}

// PostJSON builds a POST request with a JSON body
func PostJSON(path string, body any) Request {
	return Request{Method: http.MethodPost, Path: path, Body: body}
}

// PostForm builds a POST request with a form body
func PostForm(path string, form url.Values) Request {
	return Request{Method: http.MethodPost, Path: path, Form: form}
}

// response is a raw HTTP exchange before envelope decoding
type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// do executes req with the read retry policy. A non-nil error always means
// no response was obtained.
func (c *Client) do(ctx context.Context, req Request, requestID string) (*response, error) {
	if req.Body != nil && req.Form != nil {
		return nil, fmt.Errorf("request %s %s sets both body and form", req.Method, req.Path)
	}
	u := c.buildURL(req.Path, req.Query)

	var payload []byte
	contentType := ""
	switch {
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload, contentType = data, "application/json"
	case req.Form != nil:
		payload, contentType = []byte(req.Form.Encode()), "application/x-www-form-urlencoded"
	}

	maxRetries := 0
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		maxRetries = c.retryConfig.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
		if err != nil {
			return nil, fmt.Errorf("creating HTTP request: %w", err)
		}
		c.setHeaders(httpReq, req.Headers)
		if contentType != "" {
			httpReq.Header.Set("Content-Type", contentType)
		}
		httpReq.Header.Set(RequestIDHeader, requestID)
		if c.tokens != nil {
			if token := c.tokens.Token(); token != "" {
				httpReq.Header.Set("Authorization", token)
			}
		}
		injectTraceContext(ctx, httpReq)

		start := time.Now()
		httpResp, err := c.httpClient.Do(httpReq)
		elapsed := time.Since(start)

		if err == nil {
			data, readErr := io.ReadAll(httpResp.Body)
			httpResp.Body.Close()
			if readErr != nil {
				err = fmt.Errorf("reading response body: %w", readErr)
			} else if attempt < maxRetries && c.retryConfig.ShouldRetry(httpResp, nil) {
				c.logger.Debug("Retrying request",
					zap.String("method", req.Method),
					zap.String("path", req.Path),
					zap.Int("status", httpResp.StatusCode),
					zap.Int("attempt", attempt+1),
				)
				lastErr = nil
				continue
			} else {
				return &response{
					StatusCode: httpResp.StatusCode,
					Header:     httpResp.Header,
					Body:       data,
					Duration:   elapsed,
				}, nil
			}
		}

		lastErr = err
		if ctx.Err() != nil || attempt >= maxRetries || !c.retryConfig.ShouldRetry(nil, err) {
			return nil, err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("retries exhausted")
	}
	return nil, lastErr
}

func (c *Client) buildURL(path string, query url.Values) *url.URL {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return &u
}

func (c *Client) setHeaders(req *http.Request, custom map[string]string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range custom {
		req.Header.Set(k, v)
	}
}

// calculateBackoff calculates the backoff delay for the given attempt.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryConfig.RetryDelay) * math.Pow(c.retryConfig.Multiplier, float64(attempt-1))
	if delay > float64(c.retryConfig.MaxDelay) {
		delay = float64(c.retryConfig.MaxDelay)
	}
	// ±25% jitter
	jitter := delay * 0.25
	delay = delay + (rand.Float64()*2-1)*jitter
	return time.Duration(delay)
}

// SetHeader sets a default header for all requests.
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
}

// BaseURL returns the API base URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Warning(string) {}
func (nopNotifier) Error(string)   {}
