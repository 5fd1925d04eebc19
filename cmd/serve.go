package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	mcpserver "github.com/opencontextprotocol/ocp-go/internal/mcp"
	"github.com/opencontextprotocol/ocp-go/internal/metrics"
	"github.com/opencontextprotocol/ocp-go/internal/server"
)

var (
	serveHTTP bool
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve an agent to editors over MCP (stdio) or a local HTTP bridge",
	Long: `Starts a Model Context Protocol (MCP) server on stdio that exposes
register_api, list_tools, search_tools, call_tool, get_context and update_goal.
With --http, starts a local HTTP bridge instead, with the same operations
under /api, Prometheus metrics at /metrics and OCP headers on every response.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		defer logger.Sync()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := metrics.NewCollector(metrics.DefaultNamespace, reg, logger)

		a, err := newAgent(cfg, logger, m)
		if err != nil {
			return err
		}
		defer saveSession(a, logger)

		if !serveHTTP {
			mcpserver.Version = Version
			fmt.Fprintf(os.Stderr, "ocp MCP server started on stdio (context=%s, registry=%s)\n", a.Context().ID(), a.RegistryURL())
			return mcpserver.NewServer(a, logger).Serve()
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		srv := server.New(server.Config{Port: port, AllowAll: cfg.Server.AllowAll}, server.Deps{
			Agent:    a,
			Metrics:  m,
			Gatherer: reg,
			Logger:   logger,
		})

		ctx := cmd.Context()
		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("shutdown", zap.Error(err))
			}
		}()

		fmt.Fprintf(os.Stderr, "ocp bridge v%s starting on 127.0.0.1:%d\n", Version, port)
		fmt.Fprintf(os.Stderr, "  Registry: %s\n", a.RegistryURL())
		fmt.Fprintf(os.Stderr, "  Context: %s\n", a.Context().ID())

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveHTTP, "http", false, "serve the local HTTP bridge instead of MCP on stdio")
	serveCmd.Flags().IntVar(&servePort, "port", 8765, "port for the HTTP bridge (default from config)")
	rootCmd.AddCommand(serveCmd)
}
