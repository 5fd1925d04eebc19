package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opencontextprotocol/ocp-go/internal/agent"
	"github.com/opencontextprotocol/ocp-go/internal/config"
	"github.com/opencontextprotocol/ocp-go/internal/logging"
	"github.com/opencontextprotocol/ocp-go/internal/metrics"
	"github.com/opencontextprotocol/ocp-go/internal/storage"
)

// loadConfig loads and validates the config, applying the --registry flag
// on top of the file and environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `ocp init` to create a config file", err)
	}
	if registryURL != "" {
		cfg.RegistryURL = registryURL
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *zap.Logger {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// openStore returns the local store, or nil when caching is disabled.
func openStore(cfg *config.Config, logger *zap.Logger) *storage.Store {
	if !cfg.CacheEnabled {
		return nil
	}
	return storage.New(cfg.StorageDir, logger)
}

// newAgent builds an agent from cfg and resumes --session when it exists.
func newAgent(cfg *config.Config, logger *zap.Logger, m *metrics.Collector) (*agent.Agent, error) {
	store := openStore(cfg, logger)
	if store == nil && sessionID != "" {
		store = storage.New(cfg.StorageDir, logger)
	}
	a, err := agent.New(agent.Options{
		AgentType:       cfg.AgentType,
		User:            cfg.User,
		Workspace:       cfg.Workspace,
		RegistryURL:     cfg.RegistryURL,
		RegistryTimeout: cfg.RegistryTimeout,
		Storage:         store,
		CacheMaxAge:     cfg.CacheMaxAge(),
		Timeout:         cfg.RequestTimeout,
		Logger:          logger,
		Metrics:         m,
	})
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	if sessionID != "" && !a.ResumeSession(sessionID) {
		logger.Debug("starting new session", zap.String("session", sessionID))
	}
	return a, nil
}

// saveSession persists the agent context when --session is set.
func saveSession(a *agent.Agent, logger *zap.Logger) {
	if sessionID == "" {
		return
	}
	if !a.SaveSession(sessionID) {
		logger.Warn("could not save session", zap.String("session", sessionID))
	}
}

// setup is the common prologue of commands that drive an agent.
func setup() (*config.Config, *zap.Logger, *agent.Agent, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(cfg)
	a, err := newAgent(cfg, logger, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, a, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
