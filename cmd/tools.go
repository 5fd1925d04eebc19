package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opencontextprotocol/ocp-go/internal/agent"
	"github.com/opencontextprotocol/ocp-go/internal/discovery"
	"github.com/opencontextprotocol/ocp-go/internal/progress"
)

var (
	specURL string
	baseURL string
)

var registerCmd = &cobra.Command{
	Use:   "register [name...]",
	Short: "Register APIs from the registry or an OpenAPI document",
	Long: `Registers each named API. Without --spec a name is resolved through the
OCP registry; with --spec the OpenAPI document is fetched and parsed, which
only makes sense for a single name. Registered APIs are cached locally so
later commands start fast.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if specURL != "" && len(args) > 1 {
			return fmt.Errorf("--spec applies to a single API, got %d names", len(args))
		}
		_, logger, a, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		var reporter progress.Reporter
		if len(args) > 1 && !jsonOutput {
			reporter = progress.NewReporter(os.Stderr, "Registering APIs")
			reporter.Start(len(args))
		}

		var (
			results []map[string]any
			failed  []string
		)
		for i, name := range args {
			spec, err := a.RegisterAPI(cmd.Context(), name, specURL, baseURL)
			if reporter != nil {
				reporter.Update(i+1, name)
			}
			if err != nil {
				if len(args) == 1 {
					return err
				}
				logger.Warn("registration failed", zap.String("api", name), zap.Error(err))
				failed = append(failed, name)
				continue
			}
			results = append(results, map[string]any{
				"name":        name,
				"title":       spec.Title,
				"version":     spec.Version,
				"base_url":    spec.BaseURL,
				"tool_count":  len(spec.Tools),
				"tools":       spec.ToolNames(),
				"description": spec.Description,
			})
		}
		if reporter != nil {
			reporter.Finish()
		}
		saveSession(a, logger)

		if jsonOutput {
			if err := printJSON(out(cmd), results); err != nil {
				return err
			}
		} else {
			for _, r := range results {
				fmt.Fprintf(out(cmd), "Registered %s: %s %s (%d tools) at %s\n",
					r["name"], r["title"], r["version"], r["tool_count"], r["base_url"])
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("could not register: %s", strings.Join(failed, ", "))
		}
		return nil
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List, search, document and call the tools of an API",
}

// withAPI registers apiName and hands the agent to fn, saving the session
// afterwards.
func withAPI(ctx context.Context, apiName string, fn func(a *agent.Agent) error) error {
	_, logger, a, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if _, err := a.RegisterAPI(ctx, apiName, specURL, baseURL); err != nil {
		return err
	}
	err = fn(a)
	saveSession(a, logger)
	return err
}

var toolsListCmd = &cobra.Command{
	Use:   "list [api]",
	Short: "List the tools of an API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAPI(cmd.Context(), args[0], func(a *agent.Agent) error {
			tools, err := a.ListTools(args[0])
			if err != nil {
				return err
			}
			return printTools(cmd, tools)
		})
	},
}

var toolsSearchCmd = &cobra.Command{
	Use:   "search [api] [query]",
	Short: "Search the tools of an API by name and description",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAPI(cmd.Context(), args[0], func(a *agent.Agent) error {
			return printTools(cmd, a.SearchTools(args[1], args[0]))
		})
	},
}

var toolsDocCmd = &cobra.Command{
	Use:   "doc [api] [tool]",
	Short: "Show markdown documentation for a tool",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAPI(cmd.Context(), args[0], func(a *agent.Agent) error {
			doc, err := a.ToolDocumentation(args[1], args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(out(cmd), doc)
			return nil
		})
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "call [api] [tool]",
	Short: "Call a tool with the agent context attached",
	Long: `Calls a tool. Parameters are given as a JSON object with --params and are
validated against the tool before anything is sent. The call and its
response are recorded in the agent context; use --session to keep it.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("params")
		params := map[string]any{}
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &params); err != nil {
				return fmt.Errorf("--params must be a JSON object: %w", err)
			}
		}

		return withAPI(cmd.Context(), args[0], func(a *agent.Agent) error {
			resp, err := a.CallTool(cmd.Context(), args[1], params, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				body := json.RawMessage(resp.Body)
				if !json.Valid(resp.Body) {
					body, _ = json.Marshal(string(resp.Body))
				}
				return printJSON(out(cmd), map[string]any{
					"status_code": resp.StatusCode,
					"status":      resp.Status,
					"body":        body,
				})
			}
			fmt.Fprintf(out(cmd), "HTTP %s\n%s\n", resp.Status, resp.Body)
			if !resp.OK() {
				return fmt.Errorf("tool returned %s", resp.Status)
			}
			return nil
		})
	},
}

func printTools(cmd *cobra.Command, tools []discovery.Tool) error {
	if jsonOutput {
		if tools == nil {
			tools = []discovery.Tool{}
		}
		return printJSON(out(cmd), tools)
	}
	if len(tools) == 0 {
		fmt.Fprintln(out(cmd), "No tools found.")
		return nil
	}
	for _, t := range tools {
		fmt.Fprintf(out(cmd), "%-32s %-7s %s\n", t.Name, t.Method, t.Path)
		if t.Description != "" {
			fmt.Fprintf(out(cmd), "    %s\n", firstLine(t.Description))
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, toolsCmd} {
		c.PersistentFlags().StringVar(&specURL, "spec", "", "OpenAPI document URL or path (default: look up in the registry)")
		c.PersistentFlags().StringVar(&baseURL, "base-url", "", "override the API base URL")
	}
	toolsCallCmd.Flags().String("params", "", `tool parameters as a JSON object, e.g. '{"owner":"me"}'`)

	toolsCmd.AddCommand(toolsListCmd, toolsSearchCmd, toolsDocCmd, toolsCallCmd)
	rootCmd.AddCommand(registerCmd, toolsCmd)
}
