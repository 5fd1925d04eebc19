package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single document fetch.
const DefaultTimeout = 30 * time.Second

// Error reports a failed fetch or parse of an OpenAPI document.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("discovering API from %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config configures a Discoverer.
type Config struct {
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Discoverer fetches OpenAPI documents and memoizes the parsed result per
// source, so a repeated discovery of the same source is not re-fetched.
type Discoverer struct {
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.RWMutex
	cache map[string]*APISpec
}

// New creates a Discoverer.
func New(cfg Config, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Discoverer{
		httpClient: client,
		logger:     logger.With(zap.String("component", "discovery")),
		cache:      make(map[string]*APISpec),
	}
}

// Discover loads the document at source (an http(s) URL or a local path)
// and converts it into an APISpec. baseURL overrides the document's servers.
// Failures are returned as *Error.
func (d *Discoverer) Discover(ctx context.Context, source, baseURL string) (*APISpec, error) {
	d.mu.RLock()
	if spec, ok := d.cache[source]; ok {
		d.mu.RUnlock()
		d.logger.Debug("discovery cache hit", zap.String("source", source))
		return spec, nil
	}
	d.mu.RUnlock()

	data, err := d.load(ctx, source)
	if err != nil {
		return nil, &Error{Source: source, Err: err}
	}
	spec, err := Parse(data, baseURL)
	if err != nil {
		return nil, &Error{Source: source, Err: err}
	}
	spec.BaseURL = resolveBaseURL(source, spec.BaseURL)

	d.mu.Lock()
	d.cache[source] = spec
	d.mu.Unlock()

	d.logger.Info("discovered API",
		zap.String("source", source),
		zap.String("title", spec.Title),
		zap.String("version", spec.Version),
		zap.Int("tools", len(spec.Tools)),
	)
	return spec, nil
}

// ClearCache forgets every memoized document.
func (d *Discoverer) ClearCache() {
	d.mu.Lock()
	d.cache = make(map[string]*APISpec)
	d.mu.Unlock()
}

func (d *Discoverer) load(ctx context.Context, source string) ([]byte, error) {
	if isHTTP(source) {
		return d.fetchFromURL(ctx, source)
	}
	return os.ReadFile(strings.TrimPrefix(source, "file://"))
}

func (d *Discoverer) fetchFromURL(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.8")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// resolveBaseURL makes a relative server URL absolute against the document
// URL it was served from. Other values are returned unchanged.
func resolveBaseURL(source, baseURL string) string {
	if isHTTP(baseURL) || !isHTTP(source) {
		return baseURL
	}
	src, err := url.Parse(source)
	if err != nil {
		return baseURL
	}
	ref, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	return strings.TrimSuffix(src.ResolveReference(ref).String(), "/")
}
