package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samsaffron/term-agent/internal/session"
	"github.com/samsaffron/term-agent/internal/tools"
)

// EnvPrefix is prepended to every config key when read from the environment,
// e.g. TERM_AGENT_MODEL or TERM_AGENT_RETRY_MAX_ATTEMPTS.
const EnvPrefix = "TERM_AGENT"

type Config struct {
	Host          string           `mapstructure:"host" yaml:"host"`
	Port          int              `mapstructure:"port" yaml:"port"`
	APIKey        string           `mapstructure:"api_key" yaml:"api_key"`
	Model         string           `mapstructure:"model" yaml:"model"`
	Temperature   float64          `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens     int              `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxHistory    int              `mapstructure:"max_history" yaml:"max_history"`
	ContextWindow int              `mapstructure:"context_window" yaml:"context_window"`
	ToolTimeout   time.Duration    `mapstructure:"tool_timeout" yaml:"tool_timeout"`
	SavePath      string           `mapstructure:"save_path" yaml:"save_path"`
	SystemPrompt  string           `mapstructure:"system_prompt" yaml:"system_prompt,omitempty"` // Replaces the built-in prompt
	Instructions  string           `mapstructure:"instructions" yaml:"instructions,omitempty"`   // Appended to the built-in prompt
	CharsPerToken float64          `mapstructure:"chars_per_token" yaml:"chars_per_token"`
	Retry         RetryConfig      `mapstructure:"retry" yaml:"retry"`
	Tools         tools.ToolConfig `mapstructure:"tools" yaml:"tools"`
}

// RetryConfig configures request retries.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff" yaml:"backoff"`         // Multiplied by the attempt number
	MaxBackoff  time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"` // Upper bound on any single wait
}

// SetDefaults registers every key with its default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8080)
	v.SetDefault("api_key", "")
	v.SetDefault("model", "default")
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max_tokens", 4096)
	v.SetDefault("max_history", 100)
	v.SetDefault("context_window", 32768)
	v.SetDefault("tool_timeout", "60s")
	v.SetDefault("save_path", session.DefaultPath())
	v.SetDefault("system_prompt", "")
	v.SetDefault("instructions", "")
	v.SetDefault("chars_per_token", 4)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff", "1s")
	v.SetDefault("retry.max_backoff", "30s")
	toolDefaults := tools.DefaultToolConfig()
	v.SetDefault("tools.shell_deny", toolDefaults.ShellDeny)
	v.SetDefault("tools.protected_paths", toolDefaults.ProtectedPaths)
	v.SetDefault("tools.max_output_bytes", toolDefaults.MaxOutputBytes)
}

// Load reads configuration into the global viper instance, where cobra flags
// are bound.
func Load(configFile string) (*Config, error) {
	return LoadFrom(viper.GetViper(), configFile)
}

// LoadFrom reads configuration from defaults, the config file, the environment
// and any flags already bound on v, in increasing order of precedence.
// An empty configFile searches the config directory and the working directory.
func LoadFrom(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		configPath, err := GetConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config dir: %w", err)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configPath)
		v.AddConfigPath(".")
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - won't error if missing)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.APIKey = resolveAPIKey(cfg.APIKey)
	cfg.SavePath = os.ExpandEnv(cfg.SavePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if c.ContextWindow <= 0 {
		errs = append(errs, fmt.Errorf("context_window must be positive, got %d", c.ContextWindow))
	}
	if c.MaxHistory <= 0 {
		errs = append(errs, fmt.Errorf("max_history must be positive, got %d", c.MaxHistory))
	}
	if c.CharsPerToken <= 0 {
		errs = append(errs, fmt.Errorf("chars_per_token must be positive, got %g", c.CharsPerToken))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max_tokens must not be negative, got %d", c.MaxTokens))
	}
	if c.ToolTimeout < 0 {
		errs = append(errs, fmt.Errorf("tool_timeout must not be negative, got %s", c.ToolTimeout))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	errs = append(errs, c.Tools.Validate()...)
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// resolveAPIKey expands an env reference in the configured key and falls
// back to OPENAI_API_KEY.
func resolveAPIKey(key string) string {
	if key = expandEnv(key); key != "" {
		return key
	}
	return os.Getenv("OPENAI_API_KEY")
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// GetConfigDir returns the XDG config directory for term-agent.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config
func GetConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, "term-agent"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "term-agent"), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}
