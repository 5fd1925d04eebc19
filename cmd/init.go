package cmd

import (
	"github.com/spf13/cobra"

	"github.com/opencontextprotocol/ocp-go/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize ocp configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the registry, agent identity and local cache, and writes the result to the --config path (.ocp.yml by default).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
