package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samsaffron/term-agent/internal/session"
	"github.com/samsaffron/term-agent/internal/ui"
)

var historyJSON bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the saved conversation",
	Long: `Render the conversation stored at save_path as markdown.

Examples:
  term-agent history
  term-agent history --json             # raw message log
  term-agent history --save-path chat.db`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print the raw message log as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := session.NewStore(cfg.SavePath)
	if err != nil {
		return fmt.Errorf("failed to open conversation store: %w", err)
	}
	defer store.Close()

	msgs, err := store.Load(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(msgs)
	}

	styles := ui.NewStyles(out, noColor)
	fmt.Fprintln(out, styles.RenderMarkdown(ui.HistoryMarkdown(msgs), defaultWidth))
	return nil
}
