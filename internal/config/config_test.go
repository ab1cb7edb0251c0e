package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadFrom(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Host != "127.0.0.1" || cfg.Port != 8080 {
		t.Errorf("endpoint = %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.Model != "default" || cfg.Temperature != 0.7 || cfg.MaxTokens != 4096 {
		t.Errorf("model settings = %q %v %d", cfg.Model, cfg.Temperature, cfg.MaxTokens)
	}
	if cfg.MaxHistory != 100 || cfg.ContextWindow != 32768 || cfg.CharsPerToken != 4 {
		t.Errorf("budget settings = %d %d %v", cfg.MaxHistory, cfg.ContextWindow, cfg.CharsPerToken)
	}
	if cfg.ToolTimeout != 60*time.Second {
		t.Errorf("tool_timeout = %v", cfg.ToolTimeout)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.Backoff != time.Second || cfg.Retry.MaxBackoff != 30*time.Second {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if cfg.Tools.MaxOutputBytes != 65536 {
		t.Errorf("tools.max_output_bytes = %d", cfg.Tools.MaxOutputBytes)
	}
	if !strings.HasSuffix(cfg.SavePath, filepath.Join("term-agent", "conversation.json")) {
		t.Errorf("save_path = %q", cfg.SavePath)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	isolate(t)

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	content := `host: llm.local
port: 9000
model: qwen
tool_timeout: 5s
retry:
  max_attempts: 5
tools:
  shell_deny: ["rm *"]
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TERM_AGENT_MODEL", "llama")
	t.Setenv("TERM_AGENT_RETRY_BACKOFF", "250ms")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := LoadFrom(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Host != "llm.local" || cfg.Port != 9000 {
		t.Errorf("endpoint = %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.Model != "llama" {
		t.Errorf("model = %q, env should win over file", cfg.Model)
	}
	if cfg.ToolTimeout != 5*time.Second {
		t.Errorf("tool_timeout = %v", cfg.ToolTimeout)
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.Backoff != 250*time.Millisecond {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if len(cfg.Tools.ShellDeny) != 1 || cfg.Tools.ShellDeny[0] != "rm *" {
		t.Errorf("tools.shell_deny = %v", cfg.Tools.ShellDeny)
	}
	if cfg.APIKey != "sk-env" {
		t.Errorf("api_key = %q, want OPENAI_API_KEY fallback", cfg.APIKey)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("api_key: ${MY_KEY}\nmax_history: 10\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MY_KEY", "sk-file")

	cfg, err := LoadFrom(viper.New(), path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.APIKey != "sk-file" || cfg.MaxHistory != 10 {
		t.Errorf("cfg = %+v", cfg)
	}

	if _, err := LoadFrom(viper.New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{Port: 8080, ContextWindow: 1000, MaxHistory: 10, CharsPerToken: 4, Retry: RetryConfig{MaxAttempts: 1}}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"port zero", func(c *Config) { c.Port = 0 }, false},
		{"port too large", func(c *Config) { c.Port = 70000 }, false},
		{"zero window", func(c *Config) { c.ContextWindow = 0 }, false},
		{"zero history", func(c *Config) { c.MaxHistory = 0 }, false},
		{"zero ratio", func(c *Config) { c.CharsPerToken = 0 }, false},
		{"no attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, false},
		{"bad deny pattern", func(c *Config) { c.Tools.ShellDeny = []string{"[x"} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
