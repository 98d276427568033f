// Package api is the HTTP client for the askaround backend. Every request
// carries the session bearer token; non-2xx responses decode into *Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/onnwee/askaround/internal/auth"
)

// Default client settings.
const (
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "askaround-client/1"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 4 << 20
)

var (
	// ErrMissingBaseURL is returned when Config.BaseURL is empty.
	ErrMissingBaseURL = errors.New("api base url is required")
	// ErrInvalidBaseURL is returned when Config.BaseURL is not an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("api base url must be an absolute http or https url")
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// Transport is the round tripper chain, typically built with
	// middleware.Chain. Nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidBaseURL
	}
	return nil
}

// invalidator is implemented by token sources that cache tokens.
type invalidator interface {
	Invalidate()
}

// Client calls the askaround API.
type Client struct {
	base      *url.URL
	http      *http.Client
	tokens    auth.TokenSource
	userAgent string
	logger    *slog.Logger
}

// NewClient creates a client. tokens supplies the bearer token per request.
func NewClient(cfg Config, tokens auth.TokenSource, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	base, _ := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if !strings.HasPrefix(base.Path, "/") {
		base.Path = "/" + base.Path
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		base:      base,
		http:      &http.Client{Timeout: timeout, Transport: transport},
		tokens:    tokens,
		userAgent: ua,
		logger:    logger,
	}, nil
}

// request describes one API call.
type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	header      http.Header
}

// jsonRequest builds a request with a JSON-encoded body.
func jsonRequest(method, path string, body any) (request, error) {
	r := request{method: method, path: path}
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return r, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		r.body = bytes.NewReader(buf)
		r.contentType = "application/json"
	}
	return r, nil
}

// do sends r and decodes a 2xx JSON body into out when out is non-nil.
func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.base.JoinPath(r.path)
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), r.body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", r.method, r.path, err)
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("session token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", r.method, r.path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(r.method, u.Path, resp.StatusCode, body)
		if resp.StatusCode == http.StatusUnauthorized {
			if inv, ok := c.tokens.(invalidator); ok {
				inv.Invalidate()
				c.logger.Debug("session token rejected, cached token dropped",
					slog.String("path", u.Path))
			}
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", r.method, r.path, err)
	}
	return nil
}
