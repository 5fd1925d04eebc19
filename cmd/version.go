package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencontextprotocol/ocp-go/internal/agentctx"
)

// Version is set via ldflags at build time.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of ocp",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(out(cmd), "ocp %s (protocol %s)\n", Version, agentctx.ProtocolVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
