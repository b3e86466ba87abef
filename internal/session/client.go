package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Response headers of the session contract.
const (
	HeaderValue     = "X-Value"
	HeaderSessionID = "X-Session-Id"
)

// ClientConfig configures the HTTP client used for a whole run.
type ClientConfig struct {
	// Timeout bounds each request; zero means no timeout.
	Timeout time.Duration
	// Cookies keeps the container's session cookie between requests.
	Cookies bool
	Logger  log.Logger
}

// Client issues the session requests. It is acquired once per run and must be
// closed when the run ends.
type Client struct {
	http   *http.Client
	logger log.Logger
}

// NewClient creates a client from cfg.
func NewClient(cfg ClientConfig) (*Client, error) {
	hc := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
	}

	if cfg.Cookies {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		hc.Jar = jar
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &Client{http: hc, logger: log.WithPrefix(logger, "component", "client")}, nil
}

// Response holds the parts of a reply the verification looks at.
type Response struct {
	Method       string
	URI          string
	Status       int
	SessionID    string
	HasSessionID bool
	RawValue     string
	HasValue     bool
}

// Value parses the counter header.
func (r Response) Value() (int, error) {
	if !r.HasValue {
		return 0, fmt.Errorf("missing %s header", HeaderValue)
	}

	v, err := strconv.Atoi(r.RawValue)
	if err != nil {
		return 0, fmt.Errorf("%s header %q is not an integer", HeaderValue, r.RawValue)
	}

	if v < 0 {
		return 0, fmt.Errorf("%s header %d is negative", HeaderValue, v)
	}

	return v, nil
}

// TransportError means no response was received.
type TransportError struct {
	Method string
	URI    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URI, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Get reads and increments the session counter.
func (c *Client) Get(ctx context.Context, ep Endpoint) (Response, error) {
	return c.do(ctx, http.MethodGet, ep)
}

// Head checks whether a live session resolves.
func (c *Client) Head(ctx context.Context, ep Endpoint) (Response, error) {
	return c.do(ctx, http.MethodHead, ep)
}

// Delete invalidates the session.
func (c *Client) Delete(ctx context.Context, ep Endpoint) (Response, error) {
	return c.do(ctx, http.MethodDelete, ep)
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) do(ctx context.Context, method string, ep Endpoint) (Response, error) {
	uri := ep.URI()

	req, err := http.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return Response{}, &TransportError{Method: method, URI: uri, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		level.Debug(c.logger).Log("msg", "request failed", "method", method, "uri", uri, "err", err)
		return Response{}, &TransportError{Method: method, URI: uri, Err: err}
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return Response{}, &TransportError{Method: method, URI: uri, Err: err}
	}

	out := Response{Method: method, URI: uri, Status: resp.StatusCode}
	out.SessionID, out.HasSessionID = header(resp.Header, HeaderSessionID)
	out.RawValue, out.HasValue = header(resp.Header, HeaderValue)

	level.Debug(c.logger).Log(
		"msg", "response",
		"method", method,
		"endpoint", ep.Name(),
		"status", resp.StatusCode,
		"value", out.RawValue,
		"session", out.SessionID,
	)

	return out, nil
}

// header returns the first value of key and whether it was sent.
func header(h http.Header, key string) (string, bool) {
	values := h.Values(key)
	if len(values) == 0 {
		return "", false
	}

	return values[0], true
}
