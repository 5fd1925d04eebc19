package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencontextprotocol/ocp-go/internal/registry"
)

var apisCmd = &cobra.Command{
	Use:   "apis [query]",
	Short: "List or search the APIs available in the registry",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		defer logger.Sync()

		client, err := registry.New(cfg.RegistryURL, registry.WithTimeout(cfg.RegistryTimeout), registry.WithLogger(logger))
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		var names []string
		if len(args) == 1 {
			names = client.SearchAPIs(ctx, args[0])
		} else {
			names = client.ListAPIs(ctx)
		}

		if jsonOutput {
			return printJSON(out(cmd), names)
		}
		if len(names) == 0 {
			fmt.Fprintf(out(cmd), "No APIs found in %s.\n", client.URL())
			return nil
		}
		for _, n := range names {
			fmt.Fprintln(out(cmd), n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(apisCmd)
}
