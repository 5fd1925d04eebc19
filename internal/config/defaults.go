package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultRegistryURL is the public OCP registry.
const DefaultRegistryURL = "https://registry.ocp.dev"

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = ".ocp.yml"

// DefaultStorageDir returns ~/.ocp, or .ocp when the home directory is
// unknown.
func DefaultStorageDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ocp"
	}
	return filepath.Join(home, ".ocp")
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RegistryURL:     DefaultRegistryURL,
		StorageDir:      DefaultStorageDir(),
		CacheEnabled:    true,
		CacheMaxAgeDays: 7,
		RequestTimeout:  30 * time.Second,
		RegistryTimeout: 10 * time.Second,
		AgentType:       "ai_agent",
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatConsole,
		},
		Server: ServerConfig{
			Port: 8765,
		},
	}
}
