package tools

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
)

// ToolConfig holds configuration for the built-in tools.
type ToolConfig struct {
	ShellDeny      []string `mapstructure:"shell_deny" yaml:"shell_deny"`             // Shell command patterns that are refused
	ProtectedPaths []string `mapstructure:"protected_paths" yaml:"protected_paths"`   // Paths write_file/edit_file must not touch
	MaxOutputBytes int64    `mapstructure:"max_output_bytes" yaml:"max_output_bytes"` // Per-field output cap
}

// DefaultToolConfig returns sensible defaults for tool configuration.
func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		ShellDeny:      []string{},
		ProtectedPaths: []string{},
		MaxOutputBytes: DefaultOutputLimits().MaxBytes,
	}
}

// Validate checks the configuration for errors.
func (c *ToolConfig) Validate() []error {
	var errs []error

	for _, pattern := range c.ShellDeny {
		if _, err := glob.Compile(pattern); err != nil {
			errs = append(errs, fmt.Errorf("invalid shell_deny pattern %q: %w", pattern, err))
		}
	}
	for _, pattern := range c.ProtectedPaths {
		if !doublestar.ValidatePattern(pattern) {
			errs = append(errs, fmt.Errorf("invalid protected_paths pattern %q", pattern))
		}
	}
	if c.MaxOutputBytes < 0 {
		errs = append(errs, fmt.Errorf("max_output_bytes must not be negative"))
	}

	return errs
}

// Limits returns the output limits derived from the config.
func (c ToolConfig) Limits() OutputLimits {
	limits := DefaultOutputLimits()
	if c.MaxOutputBytes > 0 {
		limits.MaxBytes = c.MaxOutputBytes
	}
	return limits
}

// Policy is the compiled form of ToolConfig's patterns.
type Policy struct {
	shellDeny   []glob.Glob
	denySources []string
	protected   []string
}

// NewPolicy compiles the patterns in cfg.
func NewPolicy(cfg ToolConfig) (*Policy, error) {
	p := &Policy{}
	for _, pattern := range cfg.ShellDeny {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid shell_deny pattern %q: %w", pattern, err)
		}
		p.shellDeny = append(p.shellDeny, g)
		p.denySources = append(p.denySources, pattern)
	}
	for _, pattern := range cfg.ProtectedPaths {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid protected_paths pattern %q", pattern)
		}
		p.protected = append(p.protected, filepath.ToSlash(expandHome(pattern)))
	}
	return p, nil
}

// deniedCommand reports the first shell_deny pattern matching command.
func (p *Policy) deniedCommand(command string) (string, bool) {
	if p == nil {
		return "", false
	}
	command = strings.TrimSpace(command)
	for i, g := range p.shellDeny {
		if g.Match(command) {
			return p.denySources[i], true
		}
	}
	return "", false
}

// checkWritable returns a PERMISSION_DENIED error when path matches a protected pattern.
// Both the path as given and its absolute form are checked.
func (p *Policy) checkWritable(path string) error {
	if p == nil || len(p.protected) == 0 {
		return nil
	}
	candidates := []string{filepath.ToSlash(filepath.Clean(path))}
	if abs, err := filepath.Abs(path); err == nil {
		candidates = append(candidates, filepath.ToSlash(abs))
	}
	for _, pattern := range p.protected {
		for _, c := range candidates {
			if !strings.HasPrefix(pattern, "/") {
				c = strings.TrimPrefix(c, "/")
			}
			if ok, _ := doublestar.Match(pattern, c); ok {
				return NewToolErrorf(ErrPermissionDenied, "%s is protected (matches %q)", path, pattern)
			}
		}
	}
	return nil
}
