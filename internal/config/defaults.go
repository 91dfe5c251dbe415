package config

import "strings"

// envKeyReplacer maps nested keys to env var names: server.port becomes
// FOLIO_SERVER_PORT.
var envKeyReplacer = strings.NewReplacer(".", "_")

// Config is the full folio configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage"`
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings" yaml:"embeddings"`
	Jobs       JobsConfig       `mapstructure:"jobs" yaml:"jobs"`
	Logs       LogsConfig       `mapstructure:"logs" yaml:"logs"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// StorageConfig controls the sqlite data directory.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// LLMConfig configures the extraction model provider.
type LLMConfig struct {
	Model          string `mapstructure:"model" yaml:"model"`
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	RPM            int    `mapstructure:"rpm" yaml:"rpm"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries"`
}

// EmbeddingsConfig selects and configures the embedding backend.
type EmbeddingsConfig struct {
	Backend        string `mapstructure:"backend" yaml:"backend"` // "local" or "openai"
	LocalURL       string `mapstructure:"local_url" yaml:"local_url"`
	OpenAIKey      string `mapstructure:"openai_api_key" yaml:"openai_api_key"`
	Model          string `mapstructure:"model" yaml:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries"`
}

// JobsConfig tunes the in-process job queue.
type JobsConfig struct {
	TickIntervalSeconds int `mapstructure:"tick_interval_seconds" yaml:"tick_interval_seconds"`
	Workers             int `mapstructure:"workers" yaml:"workers"`
	MaxAttempts         int `mapstructure:"max_attempts" yaml:"max_attempts"`
	MaxBackoffSeconds   int `mapstructure:"max_backoff_seconds" yaml:"max_backoff_seconds"`
}

// LogsConfig controls structured logging and flow log retention.
type LogsConfig struct {
	Level         string `mapstructure:"level" yaml:"level"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Storage: StorageConfig{
			DataDir: "", // empty means ~/.folio/data
		},
		LLM: LLMConfig{
			Model:          "anthropic/claude-3.5-sonnet",
			APIKey:         "${OPENROUTER_API_KEY}",
			RPM:            150,
			TimeoutSeconds: 120,
			MaxRetries:     3,
		},
		Embeddings: EmbeddingsConfig{
			Backend:        "local",
			LocalURL:       "http://localhost:8000",
			OpenAIKey:      "${OPENAI_API_KEY}",
			TimeoutSeconds: 30,
			MaxRetries:     2,
		},
		Jobs: JobsConfig{
			TickIntervalSeconds: 1,
			Workers:             4,
			MaxAttempts:         3,
			MaxBackoffSeconds:   60,
		},
		Logs: LogsConfig{
			Level:         "info",
			RetentionDays: 30,
		},
	}
}
