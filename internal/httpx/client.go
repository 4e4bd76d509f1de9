// Package httpx is a small JSON-over-HTTP client that retries transient
// failures (network errors, 408, 429, 5xx) with exponential backoff.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hpungsan/leetsync/internal/ctxlog"
	"github.com/hpungsan/leetsync/internal/poll"
)

const (
	defaultMaxAttempts = 5
	defaultMinBackoff  = time.Second
	defaultMaxBackoff  = 30 * time.Second
	maxErrorBody       = 512
)

// Options configures a Client. Zero values pick defaults.
type Options struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	Timeout     time.Duration
	// Header is sent with every request (user agent, cookies, auth).
	Header http.Header
	// Sleep replaces the backoff wait, for tests.
	Sleep poll.SleepFunc
}

// Client wraps *http.Client with retry.
type Client struct {
	client      *http.Client
	header      http.Header
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration
	sleep       poll.SleepFunc
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Snippet returns a trimmed prefix of the body for error messages.
func (r *Response) Snippet() string {
	s := strings.TrimSpace(string(r.Body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}

// RequestError is returned when retries are exhausted or a request could not be sent.
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Attempts   int
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: http %d after %d attempts: %s", e.Method, e.URL, e.StatusCode, e.Attempts, e.Message)
	}
	return fmt.Sprintf("%s %s: after %d attempts: %s", e.Method, e.URL, e.Attempts, e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Retryable reports whether status is worth retrying.
func Retryable(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// New creates a Client with its own *http.Client.
func New(opts Options) *Client {
	return NewWithClient(&http.Client{Timeout: opts.Timeout}, opts)
}

// NewWithClient wraps an existing *http.Client (httptest servers in tests).
func NewWithClient(client *http.Client, opts Options) *Client {
	if client == nil {
		client = &http.Client{}
	}
	c := &Client{
		client:      client,
		header:      opts.Header.Clone(),
		maxAttempts: opts.MaxAttempts,
		minBackoff:  opts.MinBackoff,
		maxBackoff:  opts.MaxBackoff,
		sleep:       opts.Sleep,
	}
	if c.header == nil {
		c.header = http.Header{}
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.minBackoff <= 0 {
		c.minBackoff = defaultMinBackoff
	}
	if c.maxBackoff < c.minBackoff {
		c.maxBackoff = max(defaultMaxBackoff, c.minBackoff)
	}
	if c.sleep == nil {
		c.sleep = poll.Sleep
	}
	return c
}

// Do sends a request, retrying transient failures. body is JSON-encoded
// when non-nil. A non-retryable status (including 4xx) is returned as a
// Response with a nil error so callers can branch on it.
func (c *Client) Do(ctx context.Context, method, url string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		payload = buf.Bytes()
	}

	log := ctxlog.FromContext(ctx)
	backoff := c.minBackoff
	var lastErr *RequestError

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.send(ctx, method, url, payload)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = &RequestError{Method: method, URL: url, Attempts: attempt, Message: err.Error(), Err: err}
		case Retryable(resp.StatusCode):
			lastErr = &RequestError{Method: method, URL: url, StatusCode: resp.StatusCode, Attempts: attempt, Message: resp.Snippet()}
		default:
			return resp, nil
		}

		if attempt == c.maxAttempts {
			break
		}
		log.Debug("retrying request", "method", method, "url", url, "attempt", attempt, "backoff", backoff, "error", lastErr.Message)
		if err := c.sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
	return nil, lastErr
}

// DoJSON sends a request and decodes a 2xx body into out.
// Non-2xx responses are returned alongside a nil error, undecoded.
func (c *Client) DoJSON(ctx context.Context, method, url string, body, out any) (*Response, error) {
	resp, err := c.Do(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if resp.OK() && out != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return resp, fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}
	return resp, nil
}

// ErrDecode marks a 2xx response whose body is not the expected JSON.
var ErrDecode = errors.New("decode response body")

func (c *Client) send(ctx context.Context, method, url string, payload []byte) (*Response, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}
