package agentctx

import (
	"encoding/json"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	c := New()

	assert.Regexp(t, regexp.MustCompile(`^ocp-[a-f0-9]{8}$`), c.ID())
	assert.Equal(t, DefaultAgentType, c.AgentType())
	assert.Empty(t, c.History())
	assert.Empty(t, c.RecentChanges())
	assert.Empty(t, c.APISpecs())
	assert.Equal(t, 0, c.InteractionCount())
	assert.Equal(t, DefaultAgentType, c.Session()["agent_type"])
	assert.Contains(t, c.Session(), "start_time")
	assert.True(t, c.CreatedAt().Equal(c.LastUpdated()))
}

func TestNewWithOptions(t *testing.T) {
	c := New(
		WithAgentType("ide_coding_assistant"),
		WithUser("alice"),
		WithWorkspace("billing-service"),
		WithGoal("fix flaky test"),
		WithCurrentFile("main.go"),
	)

	assert.Equal(t, "ide_coding_assistant", c.AgentType())
	assert.Equal(t, "ide_coding_assistant", c.Session()["agent_type"])
	assert.Equal(t, "alice", c.User())
	assert.Equal(t, "billing-service", c.Workspace())
	assert.Equal(t, "fix flaky test", c.CurrentGoal())
	assert.Equal(t, "main.go", c.CurrentFile())
}

func TestMutationsStampLastUpdated(t *testing.T) {
	mutations := map[string]func(c *Context){
		"UpdateGoal":        func(c *Context) { c.UpdateGoal("g", "") },
		"AddInteraction":    func(c *Context) { c.AddInteraction("a", "", "", nil) },
		"SetErrorContext":   func(c *Context) { c.SetErrorContext("boom", "") },
		"ClearErrorContext": func(c *Context) { c.ClearErrorContext() },
		"AddRecentChange":   func(c *Context) { c.AddRecentChange("x") },
		"AddAPISpec":        func(c *Context) { c.AddAPISpec("github", "registry:github") },
		"SetUser":           func(c *Context) { c.SetUser("bob") },
		"SetWorkspace":      func(c *Context) { c.SetWorkspace("ws") },
		"SetCurrentFile":    func(c *Context) { c.SetCurrentFile("f.go") },
		"SetSessionValue":   func(c *Context) { c.SetSessionValue("k", "v") },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			c := New()
			before := c.LastUpdated()
			mutate(c)
			assert.True(t, c.LastUpdated().After(before), "last_updated did not advance")
			assert.True(t, c.CreatedAt().Equal(before), "created_at changed")
		})
	}
}

func TestUpdateGoal(t *testing.T) {
	c := New()
	c.UpdateGoal("debug login", "user cannot log in")
	c.UpdateGoal("debug logout", "")

	assert.Equal(t, "debug logout", c.CurrentGoal())
	assert.Equal(t, "user cannot log in", c.ContextSummary())
	assert.Equal(t, 2, c.InteractionCount())
}

func TestAddInteraction(t *testing.T) {
	c := New()
	in := c.AddInteraction("api_call", "GET /repos", "HTTP 200", map[string]any{"k": "v"})
	c.AddInteraction("second", "", "", nil)

	history := c.History()
	require.Len(t, history, 2)
	assert.Equal(t, in.ID, history[0].ID)
	assert.NotEmpty(t, history[0].ID)
	assert.Equal(t, "api_call", history[0].Action)
	assert.Equal(t, "GET /repos", history[0].EndpointString())
	assert.Equal(t, "HTTP 200", history[0].ResultString())
	assert.Equal(t, "v", history[0].Metadata["k"])
	assert.Nil(t, history[1].Endpoint)
	assert.NotNil(t, history[1].Metadata)

	// The returned history is a copy.
	history[0].Action = "changed"
	assert.Equal(t, "api_call", c.History()[0].Action)
}

func TestSetErrorContext(t *testing.T) {
	c := New(WithCurrentFile("a.go"))
	c.SetErrorContext("nil pointer", "")
	assert.Equal(t, "a.go", c.CurrentFile())

	c.SetErrorContext("index out of range", "b.go")
	assert.Equal(t, "index out of range", c.ErrorContext())
	assert.Equal(t, "b.go", c.CurrentFile())
}

func TestRecentChangesEviction(t *testing.T) {
	c := New()
	for i := 0; i < 15; i++ {
		c.AddRecentChange(fmt.Sprintf("change %d", i))
	}

	changes := c.RecentChanges()
	require.Len(t, changes, MaxRecentChanges)
	for i, change := range changes {
		assert.Equal(t, fmt.Sprintf("change %d", i+5), change)
	}
}

func TestClone(t *testing.T) {
	c := New(WithAgentType("debugger"), WithUser("alice"))
	c.UpdateGoal("goal", "summary")
	c.AddInteraction("a1", "GET /x", "HTTP 200", map[string]any{"nested": map[string]any{"k": "v"}})
	c.AddRecentChange("edited main.go")
	c.AddAPISpec("github", "registry:github")

	clone := c.Clone()

	assert.NotEqual(t, c.ID(), clone.ID())
	assert.Regexp(t, contextIDPattern, clone.ID())
	assert.Equal(t, c.AgentType(), clone.AgentType())
	assert.Equal(t, c.User(), clone.User())
	assert.Equal(t, c.CurrentGoal(), clone.CurrentGoal())
	assert.Equal(t, c.ContextSummary(), clone.ContextSummary())
	assert.Equal(t, c.RecentChanges(), clone.RecentChanges())
	assert.Equal(t, c.APISpecs(), clone.APISpecs())
	assert.Equal(t, c.History(), clone.History())

	// Mutating the clone leaves the original untouched.
	clone.AddInteraction("a2", "", "", nil)
	clone.AddAPISpec("stripe", "https://example.com/openapi.json")
	clone.history[0].Metadata["nested"].(map[string]any)["k"] = "changed"
	assert.Len(t, c.History(), 1)
	assert.NotContains(t, c.APISpecs(), "stripe")
	assert.Equal(t, "v", c.History()[0].Metadata["nested"].(map[string]any)["k"])
}

func TestConversationSummary(t *testing.T) {
	c := New()
	assert.Equal(t, "New conversation", c.ConversationSummary())

	c.UpdateGoal("ship release", "")
	c.SetErrorContext("build failed", "Makefile")
	for _, ch := range []string{"c1", "c2", "c3", "c4"} {
		c.AddRecentChange(ch)
	}
	for _, a := range []string{"a1", "a2", "a3", "a4"} {
		c.AddInteraction(a, "", "", nil)
	}

	want := "Goal: ship release | Error: build failed | Working on: Makefile | " +
		"Recent changes: c2, c3, c4 | Recent actions: a2, a3, a4"
	assert.Equal(t, want, c.ConversationSummary())
	assert.Equal(t, want, c.ConversationSummary())
}

func TestJSONRoundTrip(t *testing.T) {
	c := New(WithAgentType("ide"), WithUser("alice"), WithWorkspace("ws"))
	c.UpdateGoal("goal", "summary")
	c.AddInteraction("api_call", "GET /a", "HTTP 200", map[string]any{"url": "https://x/a"})
	c.AddRecentChange("edit")
	c.AddAPISpec("github", "registry:github")

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Nil(t, doc["current_file"])
	assert.Nil(t, doc["error_context"])
	for _, k := range requiredFields {
		assert.Contains(t, doc, k)
	}

	decoded, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, c.ID(), decoded.ID())
	assert.Equal(t, c.AgentType(), decoded.AgentType())
	assert.Equal(t, c.User(), decoded.User())
	assert.Equal(t, c.Workspace(), decoded.Workspace())
	assert.Equal(t, c.CurrentGoal(), decoded.CurrentGoal())
	assert.Equal(t, c.RecentChanges(), decoded.RecentChanges())
	assert.Equal(t, c.APISpecs(), decoded.APISpecs())
	assert.True(t, c.CreatedAt().Equal(decoded.CreatedAt()))
	assert.True(t, c.LastUpdated().Equal(decoded.LastUpdated()))
	assert.Equal(t, 1, decoded.InteractionCount())

	again, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestFromJSONRejectsSchemaViolations(t *testing.T) {
	now := time.Now().UTC().Format(time.RFC3339)
	valid := map[string]any{
		"context_id":   "ocp-deadbeef",
		"agent_type":   "x",
		"session":      map[string]any{},
		"history":      []any{},
		"api_specs":    map[string]any{},
		"created_at":   now,
		"last_updated": now,
	}

	tests := []struct {
		name   string
		mutate func(m map[string]any)
		want   string
	}{
		{"unknown field", func(m map[string]any) { m["extra"] = 1 }, `unknown field "extra"`},
		{"missing field", func(m map[string]any) { delete(m, "history") }, `missing required field "history"`},
		{"bad id", func(m map[string]any) { m["context_id"] = "abc" }, "context_id"},
		{"bad timestamp", func(m map[string]any) { m["created_at"] = "yesterday" }, "created_at"},
		{"history item", func(m map[string]any) { m["history"] = []any{map[string]any{"action": "x"}} }, "history[0] missing timestamp"},
		{"api_specs type", func(m map[string]any) { m["api_specs"] = map[string]any{"items": 1} }, "api_specs must be an object of strings"},
		{"user type", func(m map[string]any) { m["user"] = 5 }, "user must be a string or null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := map[string]any{}
			for k, v := range valid {
				m[k] = v
			}
			tt.mutate(m)
			data, err := json.Marshal(m)
			require.NoError(t, err)

			_, err = FromJSON(data)
			require.Error(t, err)
			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	data, err := json.Marshal(valid)
	require.NoError(t, err)
	_, err = FromJSON(data)
	assert.NoError(t, err)

	valid["api_specs"] = map[string]any{"items.v1": "https://x/openapi.json", "my api": "registry:my api"}
	data, err = json.Marshal(valid)
	require.NoError(t, err)
	c, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "https://x/openapi.json", c.APISpecs()["items.v1"])
}

func TestValidateReportsEveryViolation(t *testing.T) {
	err := ValidateJSON([]byte(`{"context_id":"nope","extra":true}`))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	// unknown field, bad id, and six missing required fields
	assert.Len(t, schemaErr.Violations, 8)

	assert.NoError(t, New().Validate())
}

func TestUpdateFromHeaders(t *testing.T) {
	local := New(WithAgentType("local"))
	local.UpdateGoal("old goal", "")
	shared := local.AddInteraction("shared", "", "", nil)

	remote, err := FromJSON(mustJSON(t, local))
	require.NoError(t, err)
	remote.UpdateGoal("new goal", "remote summary")
	remote.AddInteraction("remote_only", "", "", nil)
	remoteID := NewID()
	remote.id = remoteID

	h, err := EncodeContext(remote, true)
	require.NoError(t, err)

	localID := local.ID()
	require.True(t, local.UpdateFromHeaders(h))

	assert.Equal(t, localID, local.ID())
	assert.Equal(t, "new goal", local.CurrentGoal())
	assert.Equal(t, "remote summary", local.ContextSummary())
	history := local.History()
	require.Len(t, history, 2)
	assert.Equal(t, shared.ID, history[0].ID)
	assert.Equal(t, "remote_only", history[1].Action)

	// Applying the same headers again adds nothing.
	require.True(t, local.UpdateFromHeaders(h))
	assert.Len(t, local.History(), 2)

	assert.False(t, local.UpdateFromHeaders(Headers{"Content-Type": "application/json"}))
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
