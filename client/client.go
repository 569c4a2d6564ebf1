package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aep/parsekit/config"
	"github.com/aep/parsekit/query"
	"github.com/aep/parsekit/reader"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// Client talks to one backend application over its REST API. All
// connection state lives in the Client; use WithSession to get a copy
// acting on behalf of a logged in user.
type Client struct {
	cfg     config.Config
	http    *http.Client
	enc     *query.Encoder
	reader  reader.Reader
	limiter *rate.Limiter
	log     *slog.Logger

	maxAttempts    int
	initialBackoff time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func WithEncoder(enc *query.Encoder) Option {
	return func(c *Client) {
		c.enc = enc
	}
}

func WithReader(r reader.Reader) Option {
	return func(c *Client) {
		c.reader = r
	}
}

// WithRateLimit caps the request rate of this client and its session
// copies to rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets how often a failed request is attempted in total and the
// initial pause between attempts, which doubles after every attempt.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if attempts < 1 {
			attempts = 1
		}
		c.maxAttempts = attempts
		c.initialBackoff = backoff
	}
}

func New(cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
		enc:            query.NewEncoder(),
		reader:         reader.New(),
		log:            slog.Default(),
		maxAttempts:    3,
		initialBackoff: 100 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) Config() config.Config {
	return c.cfg
}

// WithSession returns a copy of c that sends token as session token.
func (c *Client) WithSession(token string) *Client {
	cc := *c
	cc.cfg = c.cfg.WithSession(token)
	return &cc
}

type request struct {
	method      string
	path        string
	params      query.Params
	body        any
	raw         []byte
	contentType string
}

func (c *Client) newHTTPRequest(ctx context.Context, r request) (*http.Request, error) {
	url := c.cfg.BaseURL() + r.path
	if len(r.params) > 0 {
		url += "?" + r.params.Encode()
	}

	var body io.Reader
	contentType := r.contentType
	switch {
	case r.raw != nil:
		body = bytes.NewReader(r.raw)
	case r.body != nil:
		buf, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(buf)
		if contentType == "" {
			contentType = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.method, url, body)
	if err != nil {
		return nil, err
	}

	headers, err := c.cfg.Headers()
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	return req, nil
}

// retryable reports whether a request may be sent again after it failed
// with the given status. A status of 0 means the transport failed.
func retryable(method string, status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if method == http.MethodPost {
		return false
	}
	return status == 0 || status >= 500
}

// do sends r and returns the response if the backend answered with a
// success status. Otherwise the body is decoded into an Error.
func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	backoff := c.initialBackoff

	for attempt := 1; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := c.newHTTPRequest(ctx, r)
		if err != nil {
			return nil, err
		}

		rsp, err := c.http.Do(req)

		status := 0
		if err == nil {
			status = rsp.StatusCode
			if status < 300 {
				return rsp, nil
			}
		}

		if attempt >= c.maxAttempts || !retryable(r.method, status) || ctx.Err() != nil {
			if err != nil {
				return nil, err
			}
			defer rsp.Body.Close()
			return nil, parseError(rsp)
		}

		if err != nil {
			c.log.Warn("request failed, retrying", "method", r.method, "path", r.path, "attempt", attempt, "err", err)
		} else {
			c.log.Warn("request failed, retrying", "method", r.method, "path", r.path, "attempt", attempt, "status", status)
			// the caller never sees this response
			io.Copy(io.Discard, rsp.Body)
			rsp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// doJSON sends r and decodes the response body into out, if out is not nil.
func (c *Client) doJSON(ctx context.Context, r request, out any) error {
	rsp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer rsp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, rsp.Body)
		return nil
	}

	if err := json.NewDecoder(rsp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", r.method, r.path, err)
	}
	return nil
}

// doRead sends r and extracts the records of the response.
func (c *Client) doRead(ctx context.Context, r request) (*reader.ResultSet, error) {
	rsp, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	defer rsp.Body.Close()

	rs, err := c.reader.Read(rsp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s response: %w", r.method, r.path, err)
	}
	return rs, nil
}

func requireName(field, value string) error {
	if value == "" {
		return &query.ValidationError{Field: field, Reason: "must not be empty"}
	}
	return nil
}
