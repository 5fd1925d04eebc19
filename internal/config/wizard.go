package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to ocp! Let's configure your agent.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Registry.
	registryPrompt := promptui.Prompt{
		Label:    "Registry URL",
		Default:  cfg.RegistryURL,
		Validate: validateURL,
	}
	registryURL, err := registryPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("registry url: %w", err)
	}
	cfg.RegistryURL = registryURL

	// 2. Agent identity.
	typePrompt := promptui.Select{
		Label: "Select agent type",
		Items: []string{"ai_agent", "ide_copilot", "cli", "workflow"},
	}
	_, agentType, err := typePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("agent type: %w", err)
	}
	cfg.AgentType = agentType

	userPrompt := promptui.Prompt{
		Label:   "User (optional)",
		Default: os.Getenv("USER"),
	}
	if cfg.User, err = userPrompt.Run(); err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}

	workspacePrompt := promptui.Prompt{
		Label: "Workspace (optional)",
	}
	if cfg.Workspace, err = workspacePrompt.Run(); err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}

	// 3. Local cache.
	cachePrompt := promptui.Select{
		Label: "Cache discovered APIs locally",
		Items: []string{"yes", "no"},
	}
	cacheIdx, _, err := cachePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("cache selection: %w", err)
	}
	cfg.CacheEnabled = cacheIdx == 0

	if cfg.CacheEnabled {
		agePrompt := promptui.Prompt{
			Label:    "Cache lifetime in days (0 = never expire)",
			Default:  strconv.Itoa(cfg.CacheMaxAgeDays),
			Validate: validateDays,
		}
		ageStr, err := agePrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("cache lifetime: %w", err)
		}
		cfg.CacheMaxAgeDays, _ = strconv.Atoi(ageStr)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("enter an http or https URL")
	}
	return nil
}

func validateDays(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("enter a whole number of days")
	}
	return nil
}
