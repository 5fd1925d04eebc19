// Package agentctx manages the agent context that travels between
// independent HTTP calls, and its encoding into OCP headers.
package agentctx

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultAgentType is used when a Context is created without an agent type.
const DefaultAgentType = "generic_agent"

// MaxRecentChanges is the number of recent changes a Context keeps.
const MaxRecentChanges = 10

// Context is the conversational and workspace state an agent carries across
// independent HTTP calls. All mutation goes through methods so that every
// change stamps LastUpdated.
//
// A Context is not safe for concurrent use.
type Context struct {
	id        string
	agentType string

	user        string
	workspace   string
	currentFile string

	session map[string]any
	history []Interaction

	currentGoal    string
	contextSummary string
	errorContext   string

	recentChanges []string
	apiSpecs      map[string]string

	createdAt   time.Time
	lastUpdated time.Time
}

// Option configures a new Context.
type Option func(*Context)

// WithAgentType sets the agent type. Any string is accepted.
func WithAgentType(agentType string) Option {
	return func(c *Context) {
		if agentType != "" {
			c.agentType = agentType
		}
	}
}

// WithUser sets the user identifier.
func WithUser(user string) Option {
	return func(c *Context) { c.user = user }
}

// WithWorkspace sets the workspace or project name.
func WithWorkspace(workspace string) Option {
	return func(c *Context) { c.workspace = workspace }
}

// WithGoal sets the initial goal without counting it as an interaction.
func WithGoal(goal string) Option {
	return func(c *Context) { c.currentGoal = goal }
}

// WithCurrentFile sets the currently active file.
func WithCurrentFile(path string) Option {
	return func(c *Context) { c.currentFile = path }
}

// New creates a Context with a fresh id and a seeded session.
func New(opts ...Option) *Context {
	now := timestamp()
	c := &Context{
		id:          NewID(),
		agentType:   DefaultAgentType,
		history:     []Interaction{},
		apiSpecs:    map[string]string{},
		createdAt:   now,
		lastUpdated: now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.session = map[string]any{
		"start_time":        c.createdAt.Format(time.RFC3339Nano),
		"interaction_count": 0,
		"agent_type":        c.agentType,
	}
	return c
}

// NewID returns a context id of the form "ocp-" followed by eight hex digits.
func NewID() string {
	return "ocp-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func timestamp() time.Time {
	return time.Now().UTC()
}

func (c *Context) touch() {
	now := timestamp()
	if !now.After(c.lastUpdated) {
		now = c.lastUpdated.Add(time.Nanosecond)
	}
	c.lastUpdated = now
}

func (c *Context) ID() string             { return c.id }
func (c *Context) AgentType() string      { return c.agentType }
func (c *Context) User() string           { return c.user }
func (c *Context) Workspace() string      { return c.workspace }
func (c *Context) CurrentFile() string    { return c.currentFile }
func (c *Context) CurrentGoal() string    { return c.currentGoal }
func (c *Context) ContextSummary() string { return c.contextSummary }
func (c *Context) ErrorContext() string   { return c.errorContext }
func (c *Context) CreatedAt() time.Time   { return c.createdAt }
func (c *Context) LastUpdated() time.Time { return c.lastUpdated }

// Session returns a shallow copy of the session map.
func (c *Context) Session() map[string]any {
	out := make(map[string]any, len(c.session))
	for k, v := range c.session {
		out[k] = v
	}
	return out
}

// InteractionCount returns the number of goal updates recorded in the session.
func (c *Context) InteractionCount() int {
	return toInt(c.session["interaction_count"])
}

// History returns a copy of the interaction history, oldest first.
func (c *Context) History() []Interaction {
	out := make([]Interaction, len(c.history))
	for i, in := range c.history {
		out[i] = in.clone()
	}
	return out
}

// RecentChanges returns a copy of the recent changes, oldest first.
func (c *Context) RecentChanges() []string {
	return append([]string(nil), c.recentChanges...)
}

// APISpecs returns a copy of the API name to source map.
func (c *Context) APISpecs() map[string]string {
	out := make(map[string]string, len(c.apiSpecs))
	for k, v := range c.apiSpecs {
		out[k] = v
	}
	return out
}

// UpdateGoal sets the current goal and, when non-empty, the summary. It
// counts as one interaction in the session.
func (c *Context) UpdateGoal(goal, summary string) {
	c.currentGoal = goal
	if summary != "" {
		c.contextSummary = summary
	}
	c.session["interaction_count"] = toInt(c.session["interaction_count"]) + 1
	c.touch()
}

// AddInteraction appends an event to the history.
func (c *Context) AddInteraction(action, endpoint, result string, metadata map[string]any) Interaction {
	in := newInteraction(action, endpoint, result, metadata)
	c.history = append(c.history, in)
	c.touch()
	return in.clone()
}

// SetErrorContext records an error and, when given, the file it relates to.
func (c *Context) SetErrorContext(errText, filePath string) {
	c.errorContext = errText
	if filePath != "" {
		c.currentFile = filePath
	}
	c.touch()
}

// ClearErrorContext removes any recorded error.
func (c *Context) ClearErrorContext() {
	c.errorContext = ""
	c.touch()
}

// AddRecentChange records a change, evicting the oldest beyond MaxRecentChanges.
func (c *Context) AddRecentChange(change string) {
	c.recentChanges = append(c.recentChanges, change)
	if over := len(c.recentChanges) - MaxRecentChanges; over > 0 {
		c.recentChanges = append([]string(nil), c.recentChanges[over:]...)
	}
	c.touch()
}

// AddAPISpec records where the named API's specification came from.
func (c *Context) AddAPISpec(name, source string) {
	c.apiSpecs[name] = source
	c.touch()
}

func (c *Context) SetUser(user string) {
	c.user = user
	c.touch()
}

func (c *Context) SetWorkspace(workspace string) {
	c.workspace = workspace
	c.touch()
}

func (c *Context) SetCurrentFile(path string) {
	c.currentFile = path
	c.touch()
}

// SetSessionValue stores an arbitrary value in the extensible session map.
func (c *Context) SetSessionValue(key string, value any) {
	c.session[key] = value
	c.touch()
}

// Clone returns a deep copy with a fresh id, for branching a workflow
// without losing its history.
func (c *Context) Clone() *Context {
	clone := &Context{
		id:             NewID(),
		agentType:      c.agentType,
		user:           c.user,
		workspace:      c.workspace,
		currentFile:    c.currentFile,
		session:        deepCopyMap(c.session),
		history:        c.History(),
		currentGoal:    c.currentGoal,
		contextSummary: c.contextSummary,
		errorContext:   c.errorContext,
		recentChanges:  c.RecentChanges(),
		apiSpecs:       c.APISpecs(),
		createdAt:      c.createdAt,
		lastUpdated:    c.lastUpdated,
	}
	if clone.recentChanges == nil {
		clone.recentChanges = []string{}
	}
	return clone
}

// ConversationSummary renders a one-line description of the context for
// logs. It is not used for any protocol decision.
func (c *Context) ConversationSummary() string {
	var parts []string
	if c.currentGoal != "" {
		parts = append(parts, "Goal: "+c.currentGoal)
	}
	if c.errorContext != "" {
		parts = append(parts, "Error: "+c.errorContext)
	}
	if c.currentFile != "" {
		parts = append(parts, "Working on: "+c.currentFile)
	}
	if n := len(c.recentChanges); n > 0 {
		parts = append(parts, "Recent changes: "+strings.Join(c.recentChanges[max(0, n-3):], ", "))
	}
	if n := len(c.history); n > 0 {
		actions := make([]string, 0, 3)
		for _, in := range c.history[max(0, n-3):] {
			actions = append(actions, in.Action)
		}
		parts = append(parts, "Recent actions: "+strings.Join(actions, ", "))
	}
	if len(parts) == 0 {
		return "New conversation"
	}
	return strings.Join(parts, " | ")
}

// UpdateFromHeaders merges the context carried by h into c. Only the goal,
// the summary and history entries c does not already have are taken; the
// id of c never changes. It reports whether h carried a context.
func (c *Context) UpdateFromHeaders(h Headers) bool {
	incoming, ok := DecodeContext(h)
	if !ok {
		return false
	}
	c.Merge(incoming)
	return true
}

// Merge applies the goal, summary and new history entries of other to c.
func (c *Context) Merge(other *Context) {
	if other.currentGoal != "" && other.currentGoal != c.currentGoal {
		c.currentGoal = other.currentGoal
	}
	if other.contextSummary != "" {
		c.contextSummary = other.contextSummary
	}
	seen := make(map[string]struct{}, len(c.history))
	for _, in := range c.history {
		seen[in.key()] = struct{}{}
	}
	for _, in := range other.history {
		if _, dup := seen[in.key()]; dup {
			continue
		}
		seen[in.key()] = struct{}{}
		c.history = append(c.history, in.clone())
	}
	c.touch()
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	}
	return 0
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
