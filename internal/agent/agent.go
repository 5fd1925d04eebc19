// Package agent ties context, discovery, the registry, the local store and
// the HTTP client together behind register, list, search and call
// operations.
//
// An Agent targets one logical session and does no internal locking;
// callers sharing an Agent must serialize their calls.
package agent

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/opencontextprotocol/ocp-go/internal/agentctx"
	"github.com/opencontextprotocol/ocp-go/internal/discovery"
	"github.com/opencontextprotocol/ocp-go/internal/httpclient"
	"github.com/opencontextprotocol/ocp-go/internal/metrics"
	"github.com/opencontextprotocol/ocp-go/internal/registry"
	"github.com/opencontextprotocol/ocp-go/internal/storage"
)

const (
	// DefaultAgentType is the agent type used when none is configured.
	DefaultAgentType = "ai_agent"
	// DefaultCacheMaxAge is how long a cached API spec stays usable.
	DefaultCacheMaxAge = 7 * 24 * time.Hour
	// DefaultTimeout bounds each tool call.
	DefaultTimeout = 30 * time.Second
)

// Options configures an Agent. The zero value is usable: it talks to the
// default registry and caches nothing.
type Options struct {
	AgentType string
	User      string
	Workspace string
	Goal      string

	RegistryURL     string
	RegistryTimeout time.Duration

	// Storage enables the local cache and session persistence when non-nil.
	Storage *storage.Store
	// CacheMaxAge limits cache reuse; zero means DefaultCacheMaxAge and a
	// negative value disables expiry.
	CacheMaxAge time.Duration
	// Timeout bounds each tool call; zero means DefaultTimeout.
	Timeout time.Duration

	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *metrics.Collector
}

// Agent owns one context and the components that act on it.
type Agent struct {
	ctx       *agentctx.Context
	discovery *discovery.Discoverer
	registry  *registry.Client
	store     *storage.Store
	client    *httpclient.Client

	apis  map[string]*discovery.APISpec
	order []string

	cacheMaxAge time.Duration
	timeout     time.Duration

	logger  *zap.Logger
	metrics *metrics.Collector
}

// New creates an Agent with a fresh context.
func New(opts Options) (*Agent, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	agentType := opts.AgentType
	if agentType == "" {
		agentType = DefaultAgentType
	}

	regOpts := []registry.Option{registry.WithLogger(logger), registry.WithTimeout(opts.RegistryTimeout)}
	if opts.HTTPClient != nil {
		regOpts = append(regOpts, registry.WithHTTPClient(opts.HTTPClient))
	}
	reg, err := registry.New(opts.RegistryURL, regOpts...)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		ctx: agentctx.New(
			agentctx.WithAgentType(agentType),
			agentctx.WithUser(opts.User),
			agentctx.WithWorkspace(opts.Workspace),
			agentctx.WithGoal(opts.Goal),
		),
		discovery:   discovery.New(discovery.Config{HTTPClient: opts.HTTPClient}, logger),
		registry:    reg,
		store:       opts.Storage,
		apis:        make(map[string]*discovery.APISpec),
		cacheMaxAge: opts.CacheMaxAge,
		timeout:     opts.Timeout,
		logger:      logger.With(zap.String("component", "agent")),
		metrics:     opts.Metrics,
	}
	if a.cacheMaxAge == 0 {
		a.cacheMaxAge = DefaultCacheMaxAge
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}

	// Tool calls record their own tool_call/tool_response pair, so the
	// client must not add a third entry.
	clientOpts := []httpclient.Option{httpclient.WithAutoUpdate(false), httpclient.WithLogger(logger)}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, httpclient.WithHTTPClient(opts.HTTPClient))
	}
	a.client = httpclient.New(a.ctx, clientOpts...)
	return a, nil
}

// Context returns the agent's context.
func (a *Agent) Context() *agentctx.Context { return a.ctx }

// RegistryURL returns the registry the agent resolves names against.
func (a *Agent) RegistryURL() string { return a.registry.URL() }

// APIs returns the registered API names, sorted.
func (a *Agent) APIs() []string {
	names := append([]string(nil), a.order...)
	sort.Strings(names)
	return names
}

// API returns the spec registered under name.
func (a *Agent) API(name string) (*discovery.APISpec, bool) {
	spec, ok := a.apis[name]
	return spec, ok
}

// RegisterAPI makes the tools of an API available under name. It returns an
// already registered spec as is, then tries the local cache, then discovers
// specURL when given or asks the registry for name otherwise. baseURL
// overrides the API's base URL for fresh lookups.
func (a *Agent) RegisterAPI(ctx context.Context, name, specURL, baseURL string) (*discovery.APISpec, error) {
	if spec, ok := a.apis[name]; ok {
		a.metrics.RecordRegistration("memory")
		return spec, nil
	}
	if !storage.ValidName(name) {
		return nil, &InvalidNameError{Name: name}
	}

	if a.store != nil {
		spec, hit := a.store.GetCachedAPI(name, max(a.cacheMaxAge, 0))
		a.metrics.RecordCacheLookup(hit)
		if hit {
			a.remember(name, spec)
			a.ctx.AddAPISpec(name, "cache")
			a.metrics.RecordRegistration("cache")
			a.logger.Info("API loaded from cache", zap.String("api", name), zap.Int("tools", len(spec.Tools)))
			return spec, nil
		}
	}

	var (
		spec   *discovery.APISpec
		err    error
		source string
		kind   string
	)
	if specURL != "" {
		spec, err = a.discovery.Discover(ctx, specURL, baseURL)
		source, kind = specURL, "openapi"
	} else {
		spec, err = a.registry.GetAPISpec(ctx, name, baseURL)
		source, kind = "registry:"+name, "registry"
	}
	if err != nil {
		a.metrics.RecordRegistration("failed")
		return nil, err
	}

	a.remember(name, spec)
	if a.store != nil {
		a.store.CacheAPI(name, spec, map[string]any{"source": source})
	}
	a.ctx.AddAPISpec(name, source)
	a.ctx.AddInteraction("api_registered", source, fmt.Sprintf("Discovered %d tools", len(spec.Tools)), map[string]any{
		"api_name":   name,
		"api_title":  spec.Title,
		"tool_count": len(spec.Tools),
		"base_url":   spec.BaseURL,
		"source":     kind,
	})
	a.metrics.RecordRegistration(kind)
	a.logger.Info("API registered",
		zap.String("api", name),
		zap.String("source", source),
		zap.Int("tools", len(spec.Tools)),
	)
	return spec, nil
}

func (a *Agent) remember(name string, spec *discovery.APISpec) {
	if _, ok := a.apis[name]; !ok {
		a.order = append(a.order, name)
	}
	a.apis[name] = spec
}

// InvalidateAPI forgets name in memory and in the local cache, and drops
// memoized discovery results, so the next registration fetches afresh.
func (a *Agent) InvalidateAPI(name string) {
	delete(a.apis, name)
	for i, n := range a.order {
		if n == name {
			a.order = append(a.order[:i:i], a.order[i+1:]...)
			break
		}
	}
	if a.store != nil {
		a.store.ClearCache(name)
	}
	a.discovery.ClearCache()
}

// ListTools returns the tools of apiName, or of every registered API in
// registration order when apiName is empty.
func (a *Agent) ListTools(apiName string) ([]discovery.Tool, error) {
	if apiName != "" {
		spec, ok := a.apis[apiName]
		if !ok {
			return nil, &UnknownAPIError{Name: apiName}
		}
		return append([]discovery.Tool(nil), spec.Tools...), nil
	}
	var tools []discovery.Tool
	for _, name := range a.order {
		tools = append(tools, a.apis[name].Tools...)
	}
	return tools, nil
}

// GetTool finds a tool by name. Across APIs the first registered match wins.
func (a *Agent) GetTool(toolName, apiName string) (discovery.Tool, bool) {
	tool, _, _, ok := a.findTool(toolName, apiName)
	return tool, ok
}

// findTool also returns the name the matching API is registered under;
// names registered from one source share a spec.
func (a *Agent) findTool(toolName, apiName string) (discovery.Tool, *discovery.APISpec, string, bool) {
	names := a.order
	if apiName != "" {
		names = []string{apiName}
	}
	for _, name := range names {
		spec, ok := a.apis[name]
		if !ok {
			continue
		}
		if tool, ok := spec.Tool(toolName); ok {
			return tool, spec, name, true
		}
	}
	return discovery.Tool{}, nil, "", false
}

// SearchTools matches query against tool names and descriptions, within
// apiName or across all APIs. An unknown apiName yields no results.
func (a *Agent) SearchTools(query, apiName string) []discovery.Tool {
	if apiName != "" {
		spec, ok := a.apis[apiName]
		if !ok {
			return nil
		}
		return discovery.SearchTools(spec.Tools, query)
	}
	var found []discovery.Tool
	for _, name := range a.order {
		found = append(found, discovery.SearchTools(a.apis[name].Tools, query)...)
	}
	return found
}

// ToolDocumentation renders markdown documentation for a tool.
func (a *Agent) ToolDocumentation(toolName, apiName string) (string, error) {
	tool, ok := a.GetTool(toolName, apiName)
	if !ok {
		return "", a.toolNotFound(toolName, apiName)
	}
	return discovery.ToolDocumentation(tool), nil
}

func (a *Agent) toolNotFound(toolName, apiName string) error {
	if apiName != "" {
		if _, ok := a.apis[apiName]; !ok {
			return &UnknownAPIError{Name: apiName}
		}
	}
	tools, _ := a.ListTools(apiName)
	available := make([]string, len(tools))
	for i, t := range tools {
		available[i] = t.Name
	}
	return &ToolNotFoundError{Name: toolName, Available: available}
}

// UpdateGoal sets the context's goal and, when non-empty, its summary.
func (a *Agent) UpdateGoal(goal, summary string) {
	a.ctx.UpdateGoal(goal, summary)
}

// SaveSession persists the context under id. It reports false when no
// store is configured or the write fails.
func (a *Agent) SaveSession(id string) bool {
	if a.store == nil {
		return false
	}
	return a.store.SaveSession(id, a.ctx)
}

// ResumeSession replaces the agent's context with the one saved under id.
// Registered APIs are kept.
func (a *Agent) ResumeSession(id string) bool {
	if a.store == nil {
		return false
	}
	c, ok := a.store.LoadSession(id)
	if !ok {
		return false
	}
	a.ctx = c
	a.client.SetContext(c)
	a.logger.Info("session resumed", zap.String("session", id), zap.String("context_id", c.ID()))
	return true
}
