// Package registry resolves API names to pre-discovered tool sets through
// the OCP registry's HTTP API.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/opencontextprotocol/ocp-go/internal/discovery"
)

// DefaultURL is the public registry.
const DefaultURL = "https://registry.ocp.dev"

const (
	defaultLookupTimeout = 10 * time.Second
	defaultSearchTimeout = 5 * time.Second
	maxSuggestions       = 3
	searchPageSize       = 10
)

// ConnectivityError means the registry could not be reached or answered
// with an unexpected status. Callers may retry or fall back to discovery.
type ConnectivityError struct {
	RegistryURL string
	Err         error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("registry %s unavailable: %v", e.RegistryURL, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// NotFoundError means the registry has no API with the requested name.
type NotFoundError struct {
	Name        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("API %q not found in registry", e.Name)
	if len(e.Suggestions) > 0 {
		msg += "; did you mean: " + strings.Join(e.Suggestions, ", ")
	}
	return msg
}

// Entry is a catalog entry as served by the registry.
type Entry struct {
	Name        string           `json:"name"`
	DisplayName string           `json:"display_name"`
	Description string           `json:"description"`
	BaseURL     string           `json:"base_url"`
	Tools       []discovery.Tool `json:"tools"`
}

// Client talks to one registry.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	lookupTimeout time.Duration
	searchTimeout time.Duration
	logger        *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the timeout for lookups and listings.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.lookupTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for the registry at registryURL, or DefaultURL when
// empty. The URL must use http or https.
func New(registryURL string, opts ...Option) (*Client, error) {
	if registryURL == "" {
		registryURL = DefaultURL
	}
	registryURL = strings.TrimRight(registryURL, "/")
	if !strings.HasPrefix(registryURL, "http://") && !strings.HasPrefix(registryURL, "https://") {
		return nil, fmt.Errorf("invalid registry URL %q: must start with http:// or https://", registryURL)
	}

	c := &Client{
		baseURL:       registryURL,
		httpClient:    http.DefaultClient,
		lookupTimeout: defaultLookupTimeout,
		searchTimeout: defaultSearchTimeout,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "registry"), zap.String("registry", c.baseURL))
	return c, nil
}

// URL returns the registry base URL.
func (c *Client) URL() string { return c.baseURL }

// GetAPISpec fetches the catalog entry for name and converts it to an
// APISpec. baseURL, when non-empty, overrides the entry's base URL.
// It returns *NotFoundError for unknown names and *ConnectivityError for
// any other failure.
func (c *Client) GetAPISpec(ctx context.Context, name, baseURL string) (*discovery.APISpec, error) {
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	resp, err := c.get(ctx, "/api/v1/registry/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, &ConnectivityError{RegistryURL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{Name: name, Suggestions: c.suggestions(ctx, name)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ConnectivityError{RegistryURL: c.baseURL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectivityError{RegistryURL: c.baseURL, Err: err}
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, &ConnectivityError{RegistryURL: c.baseURL, Err: fmt.Errorf("decoding entry: %w", err)}
	}
	var doc map[string]any
	_ = json.Unmarshal(raw, &doc)

	spec := entry.toSpec(baseURL, doc)
	c.logger.Debug("resolved API", zap.String("api", name), zap.Int("tools", len(spec.Tools)))
	return spec, nil
}

func (e Entry) toSpec(baseURL string, raw map[string]any) *discovery.APISpec {
	if baseURL == "" {
		baseURL = e.BaseURL
	}
	title := e.DisplayName
	if title == "" {
		title = e.Name
	}
	tools := make([]discovery.Tool, 0, len(e.Tools))
	for _, t := range e.Tools {
		if t.Parameters == nil {
			t.Parameters = map[string]discovery.Parameter{}
		}
		if t.ResponseSchema == nil {
			t.ResponseSchema = map[string]any{}
		}
		if t.Tags == nil {
			t.Tags = []string{}
		}
		tools = append(tools, t)
	}
	return &discovery.APISpec{
		Title:       title,
		Version:     "1.0.0",
		Description: e.Description,
		BaseURL:     baseURL,
		Tools:       tools,
		Raw:         raw,
	}
}

// SearchAPIs returns the names of APIs matching query. Any failure yields
// an empty result.
func (c *Client) SearchAPIs(ctx context.Context, query string) []string {
	ctx, cancel := context.WithTimeout(ctx, c.searchTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", query)
	params.Set("per_page", strconv.Itoa(searchPageSize))

	var body struct {
		Results []struct {
			Name string `json:"name"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, "/api/v1/search", params, &body); err != nil {
		c.logger.Warn("registry search failed", zap.String("query", query), zap.Error(err))
		return []string{}
	}
	names := make([]string, 0, len(body.Results))
	for _, r := range body.Results {
		names = append(names, r.Name)
	}
	return names
}

// ListAPIs returns the names of every API in the registry. Any failure
// yields an empty result.
func (c *Client) ListAPIs(ctx context.Context) []string {
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	var entries []struct {
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, "/api/v1/registry", nil, &entries); err != nil {
		c.logger.Warn("registry listing failed", zap.Error(err))
		return []string{}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

// suggestions searches for the full name, then for its first three
// characters, and keeps at most three results.
func (c *Client) suggestions(ctx context.Context, name string) []string {
	found := c.SearchAPIs(ctx, name)
	if len(found) == 0 && utf8.RuneCountInString(name) > 2 {
		found = c.SearchAPIs(ctx, string([]rune(name)[:3]))
	}
	if len(found) > maxSuggestions {
		found = found[:maxSuggestions]
	}
	return found
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	resp, err := c.get(ctx, path, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
