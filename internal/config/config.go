// Package config handles loading, defaulting, and hot-reloading of the
// folio configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/folio-labs/folio/internal/embeddings"
	"github.com/folio-labs/folio/internal/jobs"
	"github.com/folio-labs/folio/internal/providers"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v *viper.Viper

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a config manager and loads the initial config.
// cfgFile may be empty, in which case the standard search paths are used
// and a missing file falls back to defaults.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{v: viper.New()}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg
	return cm, nil
}

// initViper sets up viper with defaults, env overrides, and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	cm.v.SetDefault("server", defaults.Server)
	cm.v.SetDefault("storage", defaults.Storage)
	cm.v.SetDefault("llm", defaults.LLM)
	cm.v.SetDefault("embeddings", defaults.Embeddings)
	cm.v.SetDefault("jobs", defaults.Jobs)
	cm.v.SetDefault("logs", defaults.Logs)

	// Environment variables with FOLIO_ prefix, e.g. FOLIO_SERVER_PORT.
	cm.v.SetEnvPrefix("FOLIO")
	cm.v.SetEnvKeyReplacer(envKeyReplacer)
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.folio")
	}

	// Config file is optional when searched for, required when named.
	if err := cm.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// ToOpenRouterConfig converts the LLM section for the OpenRouter client,
// resolving ${ENV_VAR} references in the API key.
func (c *Config) ToOpenRouterConfig() providers.OpenRouterConfig {
	return providers.OpenRouterConfig{
		APIKey:       ResolveEnvVars(c.LLM.APIKey),
		BaseURL:      c.LLM.BaseURL,
		DefaultModel: c.LLM.Model,
		Timeout:      time.Duration(c.LLM.TimeoutSeconds) * time.Second,
		RPM:          c.LLM.RPM,
		MaxRetries:   c.LLM.MaxRetries,
	}
}

// ToEmbeddingsConfig converts the embeddings section for the provider
// factory.
func (c *Config) ToEmbeddingsConfig() embeddings.Config {
	return embeddings.Config{
		Backend:    c.Embeddings.Backend,
		LocalURL:   c.Embeddings.LocalURL,
		OpenAIKey:  ResolveEnvVars(c.Embeddings.OpenAIKey),
		Model:      c.Embeddings.Model,
		Timeout:    time.Duration(c.Embeddings.TimeoutSeconds) * time.Second,
		MaxRetries: c.Embeddings.MaxRetries,
	}
}

// ToQueueConfig converts the jobs section for the job queue.
func (c *Config) ToQueueConfig() jobs.Config {
	return jobs.Config{
		TickInterval: time.Duration(c.Jobs.TickIntervalSeconds) * time.Second,
		Workers:      c.Jobs.Workers,
		MaxAttempts:  c.Jobs.MaxAttempts,
		MaxBackoff:   time.Duration(c.Jobs.MaxBackoffSeconds) * time.Second,
	}
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Folio configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENROUTER_API_KEY=xxx OPENAI_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
