// Package discovery turns OpenAPI documents into callable tools with
// deterministic names.
package discovery

import "strings"

// Location is where a parameter travels in the outgoing request.
type Location string

const (
	LocationPath   Location = "path"
	LocationQuery  Location = "query"
	LocationHeader Location = "header"
	LocationBody   Location = "body"
)

// Parameter describes one input of a tool.
type Parameter struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Required    bool           `json:"required"`
	Location    Location       `json:"location"`
	Enum        []any          `json:"enum,omitempty"`
	Format      string         `json:"format,omitempty"`
	Schema      map[string]any `json:"schema,omitempty"`
}

// Tool is one callable HTTP operation. Its name identifies it for invocation.
type Tool struct {
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	Method         string               `json:"method"`
	Path           string               `json:"path"`
	Parameters     map[string]Parameter `json:"parameters"`
	ResponseSchema map[string]any       `json:"response_schema"`
	OperationID    string               `json:"operation_id,omitempty"`
	Tags           []string             `json:"tags"`
}

// RequiredParameters returns the names of required parameters in sorted order.
func (t Tool) RequiredParameters() []string {
	var names []string
	for _, name := range sortedKeys(t.Parameters) {
		if t.Parameters[name].Required {
			names = append(names, name)
		}
	}
	return names
}

// HasTag reports whether the tool carries tag.
func (t Tool) HasTag(tag string) bool {
	for _, tg := range t.Tags {
		if tg == tag {
			return true
		}
	}
	return false
}

// APISpec is a parsed API: its metadata, base URL and tools in
// deterministic order.
type APISpec struct {
	Title       string         `json:"title"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	BaseURL     string         `json:"base_url"`
	Tools       []Tool         `json:"tools"`
	Raw         map[string]any `json:"raw_spec"`
}

// Tool returns the tool named name.
func (s *APISpec) Tool(name string) (Tool, bool) {
	for _, t := range s.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// ToolNames returns the tool names in spec order.
func (s *APISpec) ToolNames() []string {
	names := make([]string, len(s.Tools))
	for i, t := range s.Tools {
		names[i] = t.Name
	}
	return names
}

// SearchTools returns the tools whose name or description contains query,
// ignoring case. Results keep the input order.
func SearchTools(tools []Tool, query string) []Tool {
	q := strings.ToLower(query)
	var out []Tool
	for _, t := range tools {
		if strings.Contains(strings.ToLower(t.Name), q) || strings.Contains(strings.ToLower(t.Description), q) {
			out = append(out, t)
		}
	}
	return out
}

// ToolsByTag returns the tools of spec tagged with tag.
func ToolsByTag(spec *APISpec, tag string) []Tool {
	var out []Tool
	for _, t := range spec.Tools {
		if t.HasTag(tag) {
			out = append(out, t)
		}
	}
	return out
}
