package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/opencontextprotocol/ocp-go/internal/discovery"
)

// handleRegisterAPI registers an API with the agent.
func (s *Server) handleRegisterAPI(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: name"), nil
	}
	specURL := request.GetString("spec_url", "")
	baseURL := request.GetString("base_url", "")

	s.mu.Lock()
	defer s.mu.Unlock()

	spec, err := s.agent.RegisterAPI(ctx, name, specURL, baseURL)
	if err != nil {
		s.logger.Warn("register_api failed", zap.String("api", name), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("registering %s: %v", name, err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Registered %s (%s %s) with %d tool(s) at %s\n", name, spec.Title, spec.Version, len(spec.Tools), spec.BaseURL)
	for _, t := range spec.Tools {
		fmt.Fprintf(&sb, "- %s\n", t.Name)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleListTools lists registered tools.
func (s *Server) handleListTools(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	apiName := request.GetString("api_name", "")

	s.mu.Lock()
	defer s.mu.Unlock()

	tools, err := s.agent.ListTools(apiName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(tools) == 0 {
		return mcp.NewToolResultText("No tools registered. Use register_api first."), nil
	}
	return mcp.NewToolResultText(formatTools(tools)), nil
}

// handleSearchTools searches registered tools.
func (s *Server) handleSearchTools(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	apiName := request.GetString("api_name", "")

	s.mu.Lock()
	defer s.mu.Unlock()

	tools := s.agent.SearchTools(query, apiName)
	if len(tools) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No tools match %q.", query)), nil
	}
	return mcp.NewToolResultText(formatTools(tools)), nil
}

// handleCallTool calls a tool and returns its status and body.
func (s *Server) handleCallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	toolName, err := request.RequireString("tool_name")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: tool_name"), nil
	}
	apiName := request.GetString("api_name", "")

	params := map[string]any{}
	if raw, ok := request.GetArguments()["parameters"]; ok && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return mcp.NewToolResultError("parameters must be an object"), nil
		}
		params = m
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.agent.CallTool(ctx, toolName, params, apiName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("HTTP %s\n\n%s", resp.Status, resp.Body)
	if !resp.OK() {
		return mcp.NewToolResultError(text), nil
	}
	return mcp.NewToolResultText(text), nil
}

// handleGetContext returns the agent context as indented JSON.
func (s *Server) handleGetContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.agent.Context(), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding context: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleUpdateGoal sets the agent goal.
func (s *Server) handleUpdateGoal(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	goal, err := request.RequireString("goal")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: goal"), nil
	}
	summary := request.GetString("summary", "")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.agent.UpdateGoal(goal, summary)
	return mcp.NewToolResultText("Goal updated: " + goal), nil
}

// formatTools renders one tool per line with its required parameters.
func formatTools(tools []discovery.Tool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d tool(s):\n", len(tools))
	for _, t := range tools {
		fmt.Fprintf(&sb, "\n- %s: %s %s", t.Name, t.Method, t.Path)
		if t.Description != "" {
			fmt.Fprintf(&sb, "\n  %s", t.Description)
		}
		if req := t.RequiredParameters(); len(req) > 0 {
			fmt.Fprintf(&sb, "\n  required: %s", strings.Join(req, ", "))
		}
	}
	sb.WriteString("\n")
	return sb.String()
}
