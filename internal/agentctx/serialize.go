package agentctx

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireContext is the canonical JSON shape of a Context.
type wireContext struct {
	ContextID      string            `json:"context_id"`
	AgentType      string            `json:"agent_type"`
	User           *string           `json:"user"`
	Workspace      *string           `json:"workspace"`
	CurrentFile    *string           `json:"current_file"`
	Session        map[string]any    `json:"session"`
	History        []Interaction     `json:"history"`
	CurrentGoal    *string           `json:"current_goal"`
	ContextSummary *string           `json:"context_summary"`
	ErrorContext   *string           `json:"error_context"`
	RecentChanges  []string          `json:"recent_changes"`
	APISpecs       map[string]string `json:"api_specs"`
	CreatedAt      time.Time         `json:"created_at"`
	LastUpdated    time.Time         `json:"last_updated"`
}

// MarshalJSON encodes c in the canonical context shape.
func (c *Context) MarshalJSON() ([]byte, error) {
	w := wireContext{
		ContextID:      c.id,
		AgentType:      c.agentType,
		User:           optional(c.user),
		Workspace:      optional(c.workspace),
		CurrentFile:    optional(c.currentFile),
		Session:        c.session,
		History:        c.history,
		CurrentGoal:    optional(c.currentGoal),
		ContextSummary: optional(c.contextSummary),
		ErrorContext:   optional(c.errorContext),
		RecentChanges:  c.recentChanges,
		APISpecs:       c.apiSpecs,
		CreatedAt:      c.createdAt,
		LastUpdated:    c.lastUpdated,
	}
	if w.Session == nil {
		w.Session = map[string]any{}
	}
	if w.History == nil {
		w.History = []Interaction{}
	}
	if w.RecentChanges == nil {
		w.RecentChanges = []string{}
	}
	if w.APISpecs == nil {
		w.APISpecs = map[string]string{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a canonical context document. Documents that do not
// satisfy the context schema are rejected.
func (c *Context) UnmarshalJSON(data []byte) error {
	if err := ValidateJSON(data); err != nil {
		return err
	}
	var w wireContext
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding context: %w", err)
	}
	*c = Context{
		id:             w.ContextID,
		agentType:      w.AgentType,
		user:           deref(w.User),
		workspace:      deref(w.Workspace),
		currentFile:    deref(w.CurrentFile),
		session:        w.Session,
		history:        w.History,
		currentGoal:    deref(w.CurrentGoal),
		contextSummary: deref(w.ContextSummary),
		errorContext:   deref(w.ErrorContext),
		recentChanges:  w.RecentChanges,
		apiSpecs:       w.APISpecs,
		createdAt:      w.CreatedAt.UTC(),
		lastUpdated:    w.LastUpdated.UTC(),
	}
	if c.session == nil {
		c.session = map[string]any{}
	}
	if c.history == nil {
		c.history = []Interaction{}
	}
	if c.recentChanges == nil {
		c.recentChanges = []string{}
	}
	if c.apiSpecs == nil {
		c.apiSpecs = map[string]string{}
	}
	for i := range c.history {
		if c.history[i].Metadata == nil {
			c.history[i].Metadata = map[string]any{}
		}
	}
	return nil
}

// FromJSON decodes a Context from its canonical JSON form.
func FromJSON(data []byte) (*Context, error) {
	c := &Context{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks c against the context schema.
func (c *Context) Validate() error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding context: %w", err)
	}
	return ValidateJSON(data)
}
