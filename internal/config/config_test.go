package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Jobs.Workers != 4 || cfg.Jobs.MaxAttempts != 3 {
		t.Errorf("Jobs defaults = %+v", cfg.Jobs)
	}
	if cfg.Embeddings.Backend != "local" {
		t.Errorf("Embeddings.Backend = %q, want local", cfg.Embeddings.Backend)
	}
	if cfg.LLM.Model == "" {
		t.Error("LLM.Model default missing")
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("FOLIO_TEST_KEY", "secret123")

	tests := []struct{ in, want string }{
		{"${FOLIO_TEST_KEY}", "secret123"},
		{"prefix-${FOLIO_TEST_KEY}-suffix", "prefix-secret123-suffix"},
		{"no refs here", "no refs here"},
		{"${FOLIO_UNSET_VAR}", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ResolveEnvVars(tt.in); got != tt.want {
			t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestManagerLoadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server:\n  port: 9999\nllm:\n  model: test/model\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cm, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := cm.Get()
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.LLM.Model != "test/model" {
		t.Errorf("LLM.Model = %q, want test/model", cfg.LLM.Model)
	}
	// Unset sections keep their defaults.
	if cfg.Jobs.Workers != 4 {
		t.Errorf("Jobs.Workers = %d, want default 4", cfg.Jobs.Workers)
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	cm, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	got := cm.Get()
	want := DefaultConfig()
	if got.Server != want.Server {
		t.Errorf("Server = %+v, want %+v", got.Server, want.Server)
	}
	if got.Jobs != want.Jobs {
		t.Errorf("Jobs = %+v, want %+v", got.Jobs, want.Jobs)
	}
	if got.LLM.APIKey != "${OPENROUTER_API_KEY}" {
		t.Errorf("APIKey = %q, env reference should survive the round trip", got.LLM.APIKey)
	}
}

func TestToQueueConfig(t *testing.T) {
	cfg := DefaultConfig()
	qc := cfg.ToQueueConfig()
	if qc.TickInterval != time.Second {
		t.Errorf("TickInterval = %v, want 1s", qc.TickInterval)
	}
	if qc.MaxBackoff != 60*time.Second {
		t.Errorf("MaxBackoff = %v, want 60s", qc.MaxBackoff)
	}
}

func TestToOpenRouterConfigResolvesKey(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
	cfg := DefaultConfig()
	oc := cfg.ToOpenRouterConfig()
	if oc.APIKey != "sk-or-test" {
		t.Errorf("APIKey = %q, want resolved value", oc.APIKey)
	}
	if oc.Timeout != 120*time.Second {
		t.Errorf("Timeout = %v, want 120s", oc.Timeout)
	}
}
