package cmd

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/opencontextprotocol/ocp-go/internal/agentctx"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Create, validate and encode agent contexts",
}

var contextCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Print a new context as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		agentType, _ := cmd.Flags().GetString("agent-type")
		if agentType == "" {
			agentType = cfg.AgentType
		}
		goal, _ := cmd.Flags().GetString("goal")
		user, _ := cmd.Flags().GetString("user")
		if user == "" {
			user = cfg.User
		}
		workspace, _ := cmd.Flags().GetString("workspace")
		if workspace == "" {
			workspace = cfg.Workspace
		}

		c := agentctx.New(
			agentctx.WithAgentType(agentType),
			agentctx.WithGoal(goal),
			agentctx.WithUser(user),
			agentctx.WithWorkspace(workspace),
		)
		return printJSON(out(cmd), c)
	},
}

var contextValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a context JSON file against the OCP context schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		err = agentctx.ValidateJSON(data)
		var schemaErr *agentctx.SchemaError
		switch {
		case err == nil:
			if jsonOutput {
				return printJSON(out(cmd), map[string]any{"valid": true})
			}
			fmt.Fprintf(out(cmd), "%s: valid\n", args[0])
			return nil
		case errors.As(err, &schemaErr) && jsonOutput:
			if perr := printJSON(out(cmd), map[string]any{"valid": false, "violations": schemaErr.Violations}); perr != nil {
				return perr
			}
		}
		return fmt.Errorf("%s: %w", args[0], err)
	},
}

var contextHeadersCmd = &cobra.Command{
	Use:   "headers [file]",
	Short: "Encode a context JSON file as OCP headers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		c, err := agentctx.FromJSON(data)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}
		compress, _ := cmd.Flags().GetBool("compress")
		h, err := agentctx.EncodeContext(c, compress)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(out(cmd), h)
		}
		names := make([]string, 0, len(h))
		for k := range h {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			fmt.Fprintf(out(cmd), "%s: %s\n", k, h[k])
		}
		return nil
	},
}

func init() {
	contextCreateCmd.Flags().String("agent-type", "", "agent type (default from config)")
	contextCreateCmd.Flags().String("goal", "", "initial goal")
	contextCreateCmd.Flags().String("user", "", "user name")
	contextCreateCmd.Flags().String("workspace", "", "workspace name")
	contextHeadersCmd.Flags().Bool("compress", true, "gzip large session payloads")

	contextCmd.AddCommand(contextCreateCmd, contextValidateCmd, contextHeadersCmd)
	rootCmd.AddCommand(contextCmd)
}
