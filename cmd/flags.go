package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configFlags maps flag names to config keys. Flags only override the config
// when set explicitly.
var configFlags = []struct {
	flag, key string
}{
	{"host", "host"},
	{"port", "port"},
	{"api-key", "api_key"},
	{"model", "model"},
	{"temperature", "temperature"},
	{"max-tokens", "max_tokens"},
	{"max-history", "max_history"},
	{"context-window", "context_window"},
	{"tool-timeout", "tool_timeout"},
	{"save-path", "save_path"},
	{"system-prompt", "system_prompt"},
	{"instructions", "instructions"},
	{"chars-per-token", "chars_per_token"},
	{"retry-max-attempts", "retry.max_attempts"},
	{"retry-backoff", "retry.backoff"},
	{"retry-max-backoff", "retry.max_backoff"},
	{"shell-deny", "tools.shell_deny"},
	{"protected-path", "tools.protected_paths"},
	{"max-output-bytes", "tools.max_output_bytes"},
}

// AddConfigFlags adds a persistent flag for every config key and binds it to
// the global viper instance.
func AddConfigFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("host", "", "Chat endpoint host (default 127.0.0.1)")
	flags.Int("port", 0, "Chat endpoint port (default 8080)")
	flags.String("api-key", "", "API key sent as a bearer token")
	flags.StringP("model", "m", "", "Model name sent with each request")
	flags.Float64("temperature", 0, "Sampling temperature")
	flags.Int("max-tokens", 0, "Maximum tokens per response (0 for server default)")
	flags.Int("max-history", 0, "Message count that triggers a summarization offer")
	flags.Int("context-window", 0, "Model context window in tokens")
	flags.Duration("tool-timeout", 0, "Time limit for a single tool call")
	flags.String("save-path", "", "Conversation file (.json, or .db for SQLite; empty disables saving)")
	flags.String("system-prompt", "", "Replace the built-in system prompt")
	flags.String("instructions", "", "Extra instructions appended to the system prompt")
	flags.Float64("chars-per-token", 0, "Characters per token used for budget estimates")
	flags.Int("retry-max-attempts", 0, "Attempts per request, including the first")
	flags.Duration("retry-backoff", 0, "Base delay between attempts, multiplied by the attempt number")
	flags.Duration("retry-max-backoff", 0, "Upper bound on a single retry delay")
	flags.StringSlice("shell-deny", nil, "Shell command glob to refuse (repeatable)")
	flags.StringSlice("protected-path", nil, "Path glob that write_file and edit_file refuse (repeatable)")
	flags.Int64("max-output-bytes", 0, "Byte limit for tool output returned to the model")

	for _, f := range configFlags {
		if err := viper.BindPFlag(f.key, flags.Lookup(f.flag)); err != nil {
			panic("failed to bind flag " + f.flag + ": " + err.Error())
		}
	}
}
