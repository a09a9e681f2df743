// Package config provides configuration management for fleet.
//
// Settings come from three layers, lowest precedence first: built-in
// defaults, an optional fleet.yaml in the workspace root, and environment
// variables (LOG_LEVEL, OLLAMA_BASE_URL, FLEET_WORKER_CMD).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/fleet/internal/util"
)

const (
	// ConfigFileName is the optional workspace config file.
	ConfigFileName = "fleet.yaml"

	// DefaultWorkerCommand is the worker subprocess binary.
	DefaultWorkerCommand = "claude"
	// DefaultLocalModel is passed via --model for local-tier tasks.
	DefaultLocalModel = "qwen3-coder"
	// DefaultOllamaBaseURL is the local model endpoint.
	DefaultOllamaBaseURL = "http://localhost:11434"
	// DefaultMaxTurns bounds a single worker conversation.
	DefaultMaxTurns = 25
)

// TrackerConfig selects and configures the issue-tracker provider.
type TrackerConfig struct {
	// Provider: "ghcli" (default), "github", or "gitlab".
	Provider string `yaml:"provider" mapstructure:"provider"`
	// BaseURL for self-hosted instances; empty for the public services.
	BaseURL string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	// TokenEnvVar overrides the token environment variable name.
	TokenEnvVar string `yaml:"token_env_var,omitempty" mapstructure:"token_env_var"`
	// Concurrency bounds the bridge's parallel remote calls.
	Concurrency int `yaml:"concurrency,omitempty" mapstructure:"concurrency"`
}

// JiraConfig configures the inbound Jira importer.
type JiraConfig struct {
	BaseURL string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Email   string `yaml:"email,omitempty" mapstructure:"email"`
	// APIToken is normally injected via the JIRA_API_TOKEN environment
	// variable rather than written to fleet.yaml.
	APIToken string `yaml:"-" mapstructure:"-"`
}

// Config is the resolved fleet configuration.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// Worker subprocess settings.
	WorkerCommand  string   `yaml:"worker_command" mapstructure:"worker_command"`
	WorkerBaseArgs []string `yaml:"worker_base_args,omitempty" mapstructure:"worker_base_args"`
	LocalModel     string   `yaml:"local_model" mapstructure:"local_model"`
	OllamaBaseURL  string   `yaml:"ollama_base_url" mapstructure:"ollama_base_url"`
	MaxTurns       int      `yaml:"max_turns" mapstructure:"max_turns"`

	Tracker TrackerConfig `yaml:"tracker" mapstructure:"tracker"`
	Jira    JiraConfig    `yaml:"jira,omitempty" mapstructure:"jira"`

	LogLevel string `yaml:"log_level,omitempty" mapstructure:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version:        1,
		WorkerCommand:  DefaultWorkerCommand,
		WorkerBaseArgs: []string{"--print", "--dangerously-skip-permissions"},
		LocalModel:     DefaultLocalModel,
		OllamaBaseURL:  DefaultOllamaBaseURL,
		MaxTurns:       DefaultMaxTurns,
		Tracker: TrackerConfig{
			Provider:    "ghcli",
			Concurrency: 4,
		},
		LogLevel: "info",
	}
}

// Load resolves the configuration for a workspace. A missing fleet.yaml
// is not an error; environment variables always win.
func Load(workspace string) (*Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("version", def.Version)
	v.SetDefault("worker_command", def.WorkerCommand)
	v.SetDefault("worker_base_args", def.WorkerBaseArgs)
	v.SetDefault("local_model", def.LocalModel)
	v.SetDefault("ollama_base_url", def.OllamaBaseURL)
	v.SetDefault("max_turns", def.MaxTurns)
	v.SetDefault("tracker.provider", def.Tracker.Provider)
	v.SetDefault("tracker.concurrency", def.Tracker.Concurrency)
	v.SetDefault("log_level", def.LogLevel)

	// LOG_LEVEL and OLLAMA_BASE_URL bind without a prefix; the worker
	// command override carries the FLEET_ prefix.
	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("ollama_base_url", "OLLAMA_BASE_URL")
	_ = v.BindEnv("worker_command", "FLEET_WORKER_CMD")
	_ = v.BindEnv("jira.base_url", "JIRA_BASE_URL")
	_ = v.BindEnv("jira.email", "JIRA_EMAIL")

	v.SetConfigFile(filepath.Join(workspace, ConfigFileName))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read %s: %w", ConfigFileName, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Jira.APIToken = os.Getenv("JIRA_API_TOKEN")
	return &cfg, nil
}

// WriteDefault writes the built-in configuration as fleet.yaml in the
// workspace root. Fails if the file already exists.
func WriteDefault(workspace string) (string, error) {
	path := filepath.Join(workspace, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", path)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
