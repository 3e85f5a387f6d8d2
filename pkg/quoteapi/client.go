// Package quoteapi is an HTTP client for the quote provider's REST API.
// It handles TOTP session login, token refresh, candle history and quote
// snapshots, and classifies provider failures (throttling, unknown symbol,
// outage) into the model sentinel errors so callers can branch on them.
package quoteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"stock-scannerv1/internal/model"
)

// Config configures the quote API client.
type Config struct {
	APIKey  string
	RootURL string // default: https://api.quoteprovider.example

	Timeout  time.Duration // default: 7s
	ProxyURL string        // optional HTTP proxy URL
	Debug    bool
}

const defaultRoot = "https://api.quoteprovider.example"

var routes = map[string]string{
	"auth.login":     "/rest/auth/v1/login",
	"auth.logout":    "/rest/secure/v1/logout",
	"auth.refresh":   "/rest/auth/v1/refreshTokens",
	"user.profile":   "/rest/secure/v1/getProfile",
	"market.candles": "/rest/secure/v1/getCandleData",
	"market.quote":   "/rest/secure/v1/getQuote",
	"market.search":  "/rest/secure/v1/searchSymbol",
}

// Client is the quote provider HTTP client. Safe for concurrent use.
type Client struct {
	apiKey  string
	rootURL string
	debug   bool

	httpClient *http.Client

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	feedToken    string
	clientCode   string

	// SessionExpiryHook is called when the provider rejects the access
	// token (403 TokenException). The daemon re-runs the login loop.
	SessionExpiryHook func()
}

// New creates a quote API client.
func New(cfg Config) *Client {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}

	tr := &http.Transport{}
	if cfg.ProxyURL != "" {
		if purl, err := url.Parse(cfg.ProxyURL); err == nil {
			tr.Proxy = http.ProxyURL(purl)
		}
	}

	return &Client{
		apiKey:     cfg.APIKey,
		rootURL:    strings.TrimRight(cfg.RootURL, "/"),
		debug:      cfg.Debug,
		httpClient: &http.Client{Transport: tr, Timeout: cfg.Timeout},
	}
}

// AccessToken returns the session JWT, or "" before login.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// FeedToken returns the streaming feed token granted at login.
func (c *Client) FeedToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.feedToken
}

// ClientCode returns the logged-in client code, or "" before login.
func (c *Client) ClientCode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientCode
}

// LoggedIn reports whether the client holds an access token.
func (c *Client) LoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken != ""
}

func (c *Client) setTokens(access, refresh, feed string) {
	c.mu.Lock()
	c.accessToken = access
	c.refreshToken = refresh
	if feed != "" {
		c.feedToken = feed
	}
	c.mu.Unlock()
}

func (c *Client) requestHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("X-PrivateKey", c.apiKey)

	c.mu.RLock()
	if c.accessToken != "" {
		h.Set("Authorization", "Bearer "+c.accessToken)
	}
	c.mu.RUnlock()
	return h
}

// apiResponse is the provider's uniform response envelope.
type apiResponse struct {
	Status    bool            `json:"status"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

func (c *Client) buildURL(route string) (string, error) {
	uri, ok := routes[route]
	if !ok {
		return "", fmt.Errorf("unknown route: %s", route)
	}
	return c.rootURL + uri, nil
}

func (c *Client) doRequest(ctx context.Context, method, route string, params any) (*apiResponse, error) {
	fullURL, err := c.buildURL(route)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if method != http.MethodGet && params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, err
	}
	req.Header = c.requestHeaders()

	if c.debug {
		log.Printf("[quoteapi] %s %s", method, fullURL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %v", method, route, model.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s read body: %w", method, route, err)
	}

	if c.debug {
		log.Printf("[quoteapi] response code=%d body=%s", resp.StatusCode, truncate(raw, 512))
	}

	if err := c.classifyStatus(resp.StatusCode, route); err != nil {
		return nil, err
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s %s: parse response: %w", method, route, err)
	}

	if out.ErrorType != "" {
		if resp.StatusCode == http.StatusForbidden && out.ErrorType == "TokenException" && c.SessionExpiryHook != nil {
			c.SessionExpiryHook()
		}
		return &out, classifyAPIError(route, out.ErrorType, out.Message)
	}
	if !out.Status {
		return &out, classifyAPIError(route, "", out.Message)
	}
	return &out, nil
}

// classifyStatus maps transport-level status codes onto sentinel errors.
func (c *Client) classifyStatus(code int, route string) error {
	switch {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w: status 429", route, model.ErrThrottled)
	case code == http.StatusNotFound:
		return fmt.Errorf("%s: %w: status 404", route, model.ErrNotFound)
	case code >= 500:
		return fmt.Errorf("%s: %w: status %d", route, model.ErrDataUnavailable, code)
	}
	return nil
}

// classifyAPIError maps the provider's in-band error envelope onto
// sentinel errors. The provider reports rate limiting both as HTTP 429
// and as an "Access denied because of exceeding access rate" message.
func classifyAPIError(route, errorType, message string) error {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "rate") || strings.Contains(lower, "too many"):
		return fmt.Errorf("%s: %w: %s", route, model.ErrThrottled, message)
	case strings.Contains(lower, "no data") || strings.Contains(lower, "invalid symbol") || strings.Contains(lower, "not found"):
		return fmt.Errorf("%s: %w: %s", route, model.ErrNotFound, message)
	}
	if errorType != "" {
		return fmt.Errorf("%s: %s: %s", route, errorType, message)
	}
	return fmt.Errorf("%s: request failed: %s", route, message)
}

func (c *Client) post(ctx context.Context, route string, params any) (*apiResponse, error) {
	return c.doRequest(ctx, http.MethodPost, route, params)
}

func (c *Client) get(ctx context.Context, route string) (*apiResponse, error) {
	return c.doRequest(ctx, http.MethodGet, route, nil)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
