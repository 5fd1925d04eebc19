package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencontextprotocol/ocp-go/internal/storage"
)

// localStore opens the store regardless of cache_enabled; these commands
// manage it directly.
func localStore() (*storage.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return storage.New(cfg.StorageDir, newLogger(cfg)), nil
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved agent sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := localStore()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		sessions := store.ListSessions(limit)

		if jsonOutput {
			if sessions == nil {
				sessions = []storage.SessionInfo{}
			}
			return printJSON(out(cmd), sessions)
		}
		if len(sessions) == 0 {
			fmt.Fprintln(out(cmd), "No saved sessions.")
			return nil
		}
		for _, s := range sessions {
			fmt.Fprintf(out(cmd), "%-24s %-14s %-10s %3d interactions  %s\n",
				s.ID, s.ContextID, s.AgentType, s.InteractionCount, s.ModifiedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var sessionsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete all but the most recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := localStore()
		if err != nil {
			return err
		}
		keep, _ := cmd.Flags().GetInt("keep")
		removed := store.CleanupSessions(keep)
		if jsonOutput {
			return printJSON(out(cmd), map[string]int{"removed": removed})
		}
		fmt.Fprintf(out(cmd), "Removed %d session(s).\n", removed)
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the local API cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached APIs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := localStore()
		if err != nil {
			return err
		}
		names := store.ListCachedAPIs()
		if jsonOutput {
			return printJSON(out(cmd), names)
		}
		if len(names) == 0 {
			fmt.Fprintln(out(cmd), "Cache is empty.")
			return nil
		}
		for _, n := range names {
			fmt.Fprintln(out(cmd), n)
		}
		return nil
	},
}

var cacheSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search cached APIs by name, title, description and tools",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := localStore()
		if err != nil {
			return err
		}
		hits := store.SearchCache(args[0])
		if jsonOutput {
			if hits == nil {
				hits = []storage.CacheHit{}
			}
			return printJSON(out(cmd), hits)
		}
		if len(hits) == 0 {
			fmt.Fprintf(out(cmd), "No cached APIs match %q.\n", args[0])
			return nil
		}
		for _, h := range hits {
			fmt.Fprintf(out(cmd), "%-20s %s %s (%d tools, cached %s)\n",
				h.Name, h.Title, h.Version, h.ToolCount, h.CachedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [name]",
	Short: "Clear one cached API, or the whole cache",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := localStore()
		if err != nil {
			return err
		}
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		if !store.ClearCache(name) {
			return fmt.Errorf("could not clear cache in %s", store.Dir())
		}
		if name == "" {
			fmt.Fprintln(out(cmd), "Cache cleared.")
		} else {
			fmt.Fprintf(out(cmd), "Removed %s from cache.\n", name)
		}
		return nil
	},
}

func init() {
	sessionsListCmd.Flags().Int("limit", 20, "maximum number of sessions to show (0 for all)")
	sessionsCleanupCmd.Flags().Int("keep", 10, "number of recent sessions to keep")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsCleanupCmd)
	cacheCmd.AddCommand(cacheListCmd, cacheSearchCmd, cacheClearCmd)
	rootCmd.AddCommand(sessionsCmd, cacheCmd)
}
