package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/samsaffron/term-agent/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show term-agent configuration",
	Long: `Show the effective configuration after merging defaults, the config file,
TERM_AGENT_* environment variables and flags.

Examples:
  term-agent config                     # show current config
  term-agent config --model qwen3       # show config with an override applied
  term-agent config path                # print the config file path`,
	Args: cobra.NoArgs,
	RunE: configShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print configuration file path",
	Args:  cobra.NoArgs,
	RunE:  configPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPathCmd)
}

func configShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	path := configFile
	if path == "" {
		if path, err = config.GetConfigPath(); err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		fmt.Fprintf(out, "# No config file (using defaults)\n")
		fmt.Fprintf(out, "# Create one at: %s\n\n", path)
	} else {
		fmt.Fprintf(out, "# %s\n\n", path)
	}

	return writeConfigYAML(out, cfg)
}

// writeConfigYAML dumps cfg with the API key masked.
func writeConfigYAML(w io.Writer, cfg *config.Config) error {
	masked := *cfg
	masked.APIKey = maskSecret(cfg.APIKey)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(&masked); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return encoder.Close()
}

// maskSecret keeps only enough of a key to tell keys apart.
func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "[set]"
	default:
		return s[:3] + "..." + s[len(s)-4:]
	}
}

func configPath(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		fmt.Fprintln(cmd.OutOrStdout(), configFile)
		return nil
	}
	path, err := config.GetConfigPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
