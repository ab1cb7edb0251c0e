package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/samsaffron/term-agent/internal/ui"
)

// Command represents a slash command
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
}

// AllCommands returns all available slash commands
func AllCommands() []Command {
	return []Command{
		{
			Name:        "help",
			Aliases:     []string{"h", "?"},
			Description: "Show help and available commands",
			Usage:       "/help",
		},
		{
			Name:        "clear",
			Aliases:     []string{"c", "new"},
			Description: "Clear conversation history",
			Usage:       "/clear",
		},
		{
			Name:        "summarize",
			Aliases:     []string{"compact"},
			Description: "Replace the conversation with a summary",
			Usage:       "/summarize",
		},
		{
			Name:        "tokens",
			Aliases:     []string{"t", "usage"},
			Description: "Show context usage and the last response's token counts",
			Usage:       "/tokens",
		},
		{
			Name:        "history",
			Aliases:     []string{"inspect"},
			Description: "Show the conversation",
			Usage:       "/history",
		},
		{
			Name:        "exit",
			Aliases:     []string{"q", "quit"},
			Description: "Save and exit",
			Usage:       "/exit",
		},
	}
}

// CommandSource implements fuzzy.Source for command searching
type CommandSource []Command

func (c CommandSource) String(i int) string {
	return c[i].Name
}

func (c CommandSource) Len() int {
	return len(c)
}

// parseCommand splits "/name args..." into a lowercase name and its arguments.
func parseCommand(line string) (string, []string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", nil
	}
	return strings.ToLower(strings.TrimPrefix(parts[0], "/")), parts[1:]
}

// FindCommand looks a command up by name or alias.
func FindCommand(name string) (Command, bool) {
	name = strings.ToLower(strings.TrimPrefix(name, "/"))
	for _, cmd := range AllCommands() {
		if cmd.Name == name || slices.Contains(cmd.Aliases, name) {
			return cmd, true
		}
	}
	return Command{}, false
}

// SuggestCommands returns commands that fuzzily match query, best first.
func SuggestCommands(query string) []Command {
	query = strings.ToLower(strings.TrimPrefix(query, "/"))
	commands := AllCommands()
	if query == "" {
		return commands
	}

	var result []Command
	for _, match := range fuzzy.FindFrom(query, CommandSource(commands)) {
		result = append(result, commands[match.Index])
	}

	// Fall back to commands the query is a prefix of
	if len(result) == 0 {
		for _, cmd := range commands {
			if strings.HasPrefix(cmd.Name, query) {
				result = append(result, cmd)
			}
		}
	}
	return result
}

// runCommand executes a slash command. It returns errQuit for /exit.
func (a *app) runCommand(ctx context.Context, line string) error {
	name, _ := parseCommand(line)
	cmd, ok := FindCommand(name)
	if !ok {
		a.printer.Error(fmt.Errorf("unknown command /%s", name))
		if suggestions := SuggestCommands(name); len(suggestions) > 0 {
			names := make([]string, len(suggestions))
			for i, s := range suggestions {
				names[i] = "/" + s.Name
			}
			a.printer.Info("Did you mean %s?", strings.Join(names, ", "))
		}
		return nil
	}

	switch cmd.Name {
	case "help":
		a.printer.Markdown(helpMarkdown(), a.width())

	case "clear":
		if err := a.session.Clear(ctx); err != nil {
			a.printer.Error(err)
			return nil
		}
		a.printer.Info("Conversation cleared.")

	case "summarize":
		before := a.session.Conversation().Len()
		if err := a.session.Summarize(ctx); err != nil {
			a.printer.Error(fmt.Errorf("summarization failed: %w", err))
			return nil
		}
		a.printer.Info("Summarized %d messages.", before)

	case "tokens":
		a.printer.Info("Context: %s", a.session.Status())
		if usage := a.printer.LastUsage(); usage != nil {
			a.printer.Info("Last response: %d prompt + %d completion = %d tokens",
				usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
		}
		if n := a.builtins.Timer.Pending(); n > 0 {
			a.printer.Info("Pending timers: %d", n)
		}

	case "history":
		a.printer.Markdown(ui.HistoryMarkdown(a.session.Conversation().Messages()), a.width())

	case "exit":
		return errQuit
	}
	return nil
}

func helpMarkdown() string {
	var sb strings.Builder
	sb.WriteString("## Commands\n\n")
	for _, cmd := range AllCommands() {
		fmt.Fprintf(&sb, "- `%s` %s", cmd.Usage, cmd.Description)
		if len(cmd.Aliases) > 0 {
			fmt.Fprintf(&sb, " (aliases: /%s)", strings.Join(cmd.Aliases, ", /"))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nAnything else is sent to the model. Ctrl+D exits.\n")
	return sb.String()
}
