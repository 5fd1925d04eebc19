// Package httpclient issues HTTP requests tagged with the OCP headers of an
// agent context and records each call in that context.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opencontextprotocol/ocp-go/internal/agentctx"
)

// DefaultTimeout bounds every request unless the caller supplies a client.
const DefaultTimeout = 30 * time.Second

// Request describes one outgoing call.
type Request struct {
	Method  string
	URL     string
	Query   url.Values
	Headers agentctx.Headers
	// JSON, when non-nil, is encoded as the request body.
	JSON any
	// Body is sent as-is when JSON is nil.
	Body io.Reader
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Client sends requests on behalf of one context.
type Client struct {
	ctx         *agentctx.Context
	httpClient  *http.Client
	baseURL     string
	baseHeaders agentctx.Headers
	autoUpdate  bool
	compress    bool
	logger      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAutoUpdate controls whether each call is appended to the context
// history. It is on by default.
func WithAutoUpdate(on bool) Option {
	return func(c *Client) { c.autoUpdate = on }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL makes relative request URLs resolve against base.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

// WithBaseHeaders adds headers to every request. OCP headers always win.
func WithBaseHeaders(h agentctx.Headers) Option {
	return func(c *Client) { c.baseHeaders = h }
}

// WithCompression controls gzip compression of large session headers.
func WithCompression(on bool) Option {
	return func(c *Client) { c.compress = on }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client for c.
func New(c *agentctx.Context, opts ...Option) *Client {
	cl := &Client{
		ctx:        c,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		autoUpdate: true,
		compress:   true,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cl)
	}
	cl.logger = cl.logger.With(zap.String("component", "httpclient"))
	return cl
}

// Context returns the context attached to requests.
func (c *Client) Context() *agentctx.Context { return c.ctx }

// SetContext replaces the context attached to requests.
func (c *Client) SetContext(ctx *agentctx.Context) { c.ctx = ctx }

// Do sends req with the current OCP headers. Non-2xx responses are returned,
// not treated as errors.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	target, err := c.resolve(req.URL, req.Query)
	if err != nil {
		return nil, err
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	body := req.Body
	if req.JSON != nil {
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	headers, err := agentctx.CreateHeaders(c.ctx, agentctx.MergeHeaders(c.baseHeaders, req.Headers), c.compress)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	if req.JSON != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug("request failed", zap.String("method", method), zap.String("url", target.String()), zap.Error(err))
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Header:     httpResp.Header,
		Body:       data,
	}
	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("url", target.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if c.autoUpdate {
		c.ctx.AddInteraction(
			"api_call_"+strings.ToLower(method),
			method+" "+target.Path,
			fmt.Sprintf("HTTP %d", resp.StatusCode),
			map[string]any{"url": target.String(), "domain": target.Host},
		)
	}
	return resp, nil
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Query: query})
}

// Post sends a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, rawURL string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, URL: rawURL, JSON: body})
}

// Put sends a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, rawURL string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, URL: rawURL, JSON: body})
}

// Patch sends a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, rawURL string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, URL: rawURL, JSON: body})
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, URL: rawURL})
}

func (c *Client) resolve(rawURL string, query url.Values) (*url.URL, error) {
	if c.baseURL != "" && !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		if rawURL != "" && !strings.HasPrefix(rawURL, "/") {
			rawURL = "/" + rawURL
		}
		rawURL = c.baseURL + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing URL %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("URL %q is not absolute", rawURL)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}
