package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opencontextprotocol/ocp-go/internal/config"
)

var (
	cfgFile     string
	verbose     bool
	registryURL string
	jsonOutput  bool
	sessionID   string
)

var rootCmd = &cobra.Command{
	Use:   "ocp",
	Short: "Open Context Protocol client for AI agents",
	Long: `ocp lets an agent carry its conversational and workspace context across
independent HTTP calls using OCP headers. It discovers callable tools from
OpenAPI documents or the OCP registry, calls them with the agent's context
attached, and records every call in the context history.`,
	SilenceUsage: true,
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&registryURL, "registry", "", "registry URL (overrides config and OCP_REGISTRY_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "resume and save the agent context under this session id")
}
