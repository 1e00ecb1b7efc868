// Package api is a typed client for the VidLib backend HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Config holds configuration for the API client
type Config struct {
	// BaseURL is the backend root, e.g. https://api.vidlib.example
	BaseURL string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
	// RateLimit is the maximum requests per second
	RateLimit float64
	// UserAgent is the HTTP User-Agent header
	UserAgent string
}

// DefaultConfig returns default API client configuration
func DefaultConfig() *Config {
	return &Config{
		Timeout:   30 * time.Second,
		RateLimit: 10,
		UserAgent: "vidlib-bot/1.0",
	}
}

// Client talks to the backend. Token-bound copies share the underlying
// HTTP client and rate limiter, so the per-backend limit holds across all
// sessions.
type Client struct {
	// OnRequest, when set, observes every completed request.
	OnRequest func(method string, status int, elapsed time.Duration)

	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	token      string
	shareToken string
}

// New creates a new API client
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// HTTP client with connection pooling
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		userAgent:  cfg.UserAgent,
	}
}

// WithToken returns a copy of the client that authenticates every request
// with the given bearer token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// WithShareToken returns a copy of the client bound to a public share
// context. Chat calls made through the copy carry the share token instead
// of an authenticated group.
func (c *Client) WithShareToken(token string) *Client {
	cp := *c
	cp.shareToken = token
	return &cp
}

// do performs a JSON request. in (when non-nil) is marshaled as the body,
// out (when non-nil) receives the decoded response.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request error: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out)
}

// upload performs a multipart POST with one file part plus text fields.
func (c *Client) upload(ctx context.Context, path string, fields map[string]string, fileName string, file io.Reader, out interface{}) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("write form field error: %w", err)
		}
	}
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return fmt.Errorf("create form file error: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy file error: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart error: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, nil, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.send(req, out)
}

// raw performs a request and returns the undecoded response body.
func (c *Client) raw(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, query, nil)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = c.sendWith(req, func(resp *http.Response) error {
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body error: %w", err)
		}
		return nil
	})
	return data, err
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request error: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out interface{}) error {
	return c.sendWith(req, func(resp *http.Response) error {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response error: %w", err)
		}
		return nil
	})
}

// sendWith runs the request through the rate limiter, normalizes non-2xx
// responses to *Error and hands successful ones to consume.
func (c *Client) sendWith(req *http.Request, consume func(*http.Response) error) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)
	log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("API response")

	if c.OnRequest != nil {
		c.OnRequest(req.Method, resp.StatusCode, elapsed)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	return consume(resp)
}

// Health checks backend reachability via GET /health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}
