package request

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Response is an HTTP response with its measured duration
type Response struct {
	Status     string
	StatusCode int
	Version    string
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// String returns the response body as text
func (r *Response) String() string {
	return string(r.Body)
}

// JSON decodes the response body
func (r *Response) JSON() (interface{}, error) {
	var result interface{}
	err := json.Unmarshal(r.Body, &result)
	return result, err
}

// Client sends concrete requests
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// Option is a client configuration option
type Option func(*Client)

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger used for request debug logs
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a new HTTP client. Connection reuse matters under load,
// so the transport keeps a generous idle pool.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout: 30 * time.Second,
		logger:  slog.Default(),
	}
	c.httpClient.Timeout = c.timeout

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends the request and returns the response with its duration.
// Transport failures come back as a classified *Error.
func (c *Client) Do(ctx context.Context, request *Request) (*Response, error) {
	var body io.Reader
	if request.Body != "" {
		body = strings.NewReader(request.Body)
	}

	req, err := http.NewRequestWithContext(ctx, request.Method, request.URL, body)
	if err != nil {
		return nil, &Error{Kind: Protocol, Err: err}
	}
	for name, values := range request.Header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}

	c.logger.Debug("sending request", "method", request.Method, "url", request.URL)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		return nil, classify(err)
	}

	c.logger.Debug("received response",
		"method", request.Method, "url", request.URL,
		"status", resp.StatusCode, "duration", duration)

	return &Response{
		Status:     resp.Status,
		StatusCode: resp.StatusCode,
		Version:    resp.Proto,
		Header:     resp.Header,
		Body:       respBody,
		Duration:   duration,
	}, nil
}
