package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samsaffron/term-agent/internal/config"
	"github.com/samsaffron/term-agent/internal/signal"
)

var (
	configFile string
	debug      bool
	noColor    bool
	debugLog   bool
)

var rootCmd = &cobra.Command{
	Use:   "term-agent [prompt]",
	Short: "Chat with a local model that can read, edit and run things",
	Long: `term-agent talks to an OpenAI-compatible chat endpoint and lets the model
use local tools: read_file, write_file, edit_file, exec_shell and set_time_out.

The conversation is saved after every turn and resumed on the next run.

Examples:
  term-agent                                  # interactive session
  term-agent "why does make test fail?"       # one prompt, then interactive
  term-agent --host 10.0.0.5 --port 11434 --model qwen3
  echo "summarize README.md" | term-agent     # read prompts from stdin

  term-agent config                           # show effective configuration
  term-agent history                          # show the saved conversation`,
	Args:              cobra.ArbitraryArgs,
	SilenceUsage:      true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	PersistentPreRun:  setupLogging,
	RunE:              runRoot,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default is $XDG_CONFIG_HOME/term-agent/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Log debug information to stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.Flags().BoolVar(&debugLog, "debug-log", false, "Write a JSONL trace of requests and events to the data directory")
	AddConfigFlags(rootCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, args []string) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, appOptions{
		in:       cmd.InOrStdin(),
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
		noColor:  noColor,
		debugLog: debugLog,
		args:     os.Args,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	stop := signal.OnTerminate(func() {
		a.session.Flush(context.Background())
		a.debug.Close()
	}, os.Exit)
	defer stop()

	if len(args) > 0 {
		a.submit(ctx, strings.Join(args, " "))
	}
	if err := a.repl(ctx); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}
