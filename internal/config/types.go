package config

import "time"

// LogFormat selects the log encoder.
type LogFormat string

const (
	LogFormatConsole LogFormat = "console"
	LogFormatJSON    LogFormat = "json"
)

// Config is the top-level ocp configuration, corresponding to .ocp.yml.
type Config struct {
	RegistryURL     string        `yaml:"registry_url" koanf:"registry_url"`
	StorageDir      string        `yaml:"storage_dir" koanf:"storage_dir"`
	CacheEnabled    bool          `yaml:"cache_enabled" koanf:"cache_enabled"`
	CacheMaxAgeDays int           `yaml:"cache_max_age_days" koanf:"cache_max_age_days"`
	RequestTimeout  time.Duration `yaml:"request_timeout" koanf:"request_timeout"`
	RegistryTimeout time.Duration `yaml:"registry_timeout" koanf:"registry_timeout"`
	AgentType       string        `yaml:"agent_type" koanf:"agent_type"`
	User            string        `yaml:"user" koanf:"user"`
	Workspace       string        `yaml:"workspace" koanf:"workspace"`
	Log             LogConfig     `yaml:"log" koanf:"log"`
	Server          ServerConfig  `yaml:"server" koanf:"server"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string    `yaml:"level" koanf:"level"`
	Format LogFormat `yaml:"format" koanf:"format"`
}

// ServerConfig holds settings for the local HTTP bridge.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all" koanf:"allow_all"`
}

// CacheMaxAge converts CacheMaxAgeDays to a duration for agent.Options.
// Zero days means cached specs never expire, which agent.Options spells
// as a negative duration.
func (c *Config) CacheMaxAge() time.Duration {
	if c.CacheMaxAgeDays == 0 {
		return -1
	}
	return time.Duration(c.CacheMaxAgeDays) * 24 * time.Hour
}
