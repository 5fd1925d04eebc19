// Package mcp exposes an agent's register, list, search and call operations
// as Model Context Protocol tools over stdio.
package mcp

import (
	"sync"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/opencontextprotocol/ocp-go/internal/agent"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server backed by a single agent. The agent does no
// locking of its own, so every handler holds mu while using it.
type Server struct {
	mu     sync.Mutex
	agent  *agent.Agent
	logger *zap.Logger
	mcp    *server.MCPServer
}

// NewServer creates a new MCP server for a.
func NewServer(a *agent.Agent, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		agent:  a,
		logger: logger.With(zap.String("component", "mcp")),
	}

	s.mcp = server.NewMCPServer(
		"ocp",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(registerAPITool, s.handleRegisterAPI)
	s.mcp.AddTool(listToolsTool, s.handleListTools)
	s.mcp.AddTool(searchToolsTool, s.handleSearchTools)
	s.mcp.AddTool(callToolTool, s.handleCallTool)
	s.mcp.AddTool(getContextTool, s.handleGetContext)
	s.mcp.AddTool(updateGoalTool, s.handleUpdateGoal)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	s.logger.Info("serving MCP on stdio", zap.String("context_id", s.agent.Context().ID()))
	return server.ServeStdio(s.mcp)
}
