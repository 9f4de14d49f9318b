// Package client posts graph documents to a running layout server.
//
// # Usage
//
//	c, err := client.New("http://127.0.0.1:3000")
//	...
//	resp, err := c.LayoutBytes(ctx, body)
//	var se *client.StatusError
//	if errors.As(err, &se) && se.StatusCode == http.StatusBadRequest {
//	    // the document was rejected; se.Message explains why
//	}
//
// Connection failures and transient statuses (429, 5xx) are retried with
// exponential backoff. A 4xx response is returned at once as a
// [*StatusError].
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/viewgraph/pkg/buildinfo"
	"github.com/matzehuels/viewgraph/pkg/document"
	verrors "github.com/matzehuels/viewgraph/pkg/errors"
	"github.com/matzehuels/viewgraph/pkg/httputil"
	"github.com/matzehuels/viewgraph/pkg/observability"
	"github.com/matzehuels/viewgraph/pkg/viewgraph"
)

// Defaults.
const (
	DefaultBaseURL  = "http://127.0.0.1:3000"
	DefaultTimeout  = 60 * time.Second
	DefaultAttempts = 3
	DefaultDelay    = 500 * time.Millisecond

	// errorCodeHeader matches the header set by the server on failures.
	errorCodeHeader = "X-Error-Code"

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 64 << 10
)

// ErrNetwork is returned (wrapped) when the server could not be reached.
var ErrNetwork = errors.New("network error")

// StatusError is a non-200 response from the server.
type StatusError struct {
	StatusCode int
	// Code is the server's error code, when it sent one.
	Code verrors.Code
	// Message is the response body, e.g. "400 Bad Request. ...".
	Message string
}

func (e *StatusError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, msg)
}

// Client talks to one layout server. It is safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	attempts  int
	delay     time.Duration
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRetry sets the number of attempts and the initial backoff delay.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = max(attempts, 1)
		c.delay = delay
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for the server at baseURL ("" selects
// [DefaultBaseURL]). A baseURL without scheme is treated as http.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server url %q has no host", baseURL)
	}

	c := &Client{
		baseURL:   u,
		http:      &http.Client{Timeout: DefaultTimeout},
		attempts:  DefaultAttempts,
		delay:     DefaultDelay,
		userAgent: "viewgraph/" + buildinfo.Version,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Layout posts doc and returns the computed coordinates.
func (c *Client) Layout(ctx context.Context, doc *document.Document) (viewgraph.Response, error) {
	if doc == nil {
		return viewgraph.Response{}, errors.New("no document")
	}
	body, err := doc.Canonical()
	if err != nil {
		return viewgraph.Response{}, fmt.Errorf("encode document: %w", err)
	}
	return c.LayoutBytes(ctx, body)
}

// LayoutBytes posts a raw JSON body unchanged. The server validates it.
func (c *Client) LayoutBytes(ctx context.Context, body []byte) (viewgraph.Response, error) {
	data, err := c.do(ctx, http.MethodPost, "/layout", body)
	if err != nil {
		return viewgraph.Response{}, err
	}
	resp, err := viewgraph.UnmarshalResponse(data)
	if err != nil {
		return viewgraph.Response{}, fmt.Errorf("decode layout response: %w", err)
	}
	return resp, nil
}

// Health checks the server's /healthz route.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	return err
}

// Version returns the server's build information.
func (c *Client) Version(ctx context.Context) (buildinfo.Info, error) {
	var info buildinfo.Info
	data, err := c.do(ctx, http.MethodGet, "/version", nil)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("decode version: %w", err)
	}
	return info, nil
}

// do sends one request with retries and returns the body of a 200 response.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var out []byte
	err := httputil.Retry(ctx, c.attempts, c.delay, func() error {
		data, err := c.once(ctx, method, path, body)
		if err != nil {
			return err
		}
		out = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) once(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	u := c.baseURL.JoinPath(path)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, method, u.Host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, method, u.Host, path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: %w", ErrNetwork, err)}
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, method, u.Host, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusOK {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: read response: %w", ErrNetwork, err)}
		}
		return data, nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	se := &StatusError{
		StatusCode: resp.StatusCode,
		Code:       verrors.Code(resp.Header.Get(errorCodeHeader)),
		Message:    string(msg),
	}
	if httputil.IsTransientStatus(resp.StatusCode) {
		return nil, &httputil.RetryableError{Err: se}
	}
	return nil, se
}
