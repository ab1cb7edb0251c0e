package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/samsaffron/term-agent/internal/agent"
	"github.com/samsaffron/term-agent/internal/config"
	"github.com/samsaffron/term-agent/internal/llm"
	"github.com/samsaffron/term-agent/internal/prompt"
	"github.com/samsaffron/term-agent/internal/session"
	"github.com/samsaffron/term-agent/internal/tools"
	"github.com/samsaffron/term-agent/internal/ui"
)

// errQuit ends the interactive loop.
var errQuit = errors.New("quit")

const defaultWidth = 80

type appOptions struct {
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	noColor  bool
	debugLog bool
	args     []string
}

// app wires the engine, session, store and terminal together for one run.
type app struct {
	cfg     *config.Config
	out     io.Writer
	lines   *bufio.Reader
	styles  *ui.Styles
	printer *ui.Printer
	confirm *ui.Confirmer

	builtins *tools.Builtins
	engine   *llm.Engine
	store    session.Store
	session  *agent.Session
	debug    *llm.DebugLogger
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	styles := ui.NewStyles(opts.out, opts.noColor)
	printer := ui.NewPrinter(opts.out, styles)
	lines := bufio.NewReader(opts.in)

	a := &app{
		cfg:     cfg,
		out:     opts.out,
		lines:   lines,
		styles:  styles,
		printer: printer,
		confirm: ui.NewConfirmer(opts.in, opts.out).WithLineReader(lines),
	}

	sessionID := uuid.NewString()
	if opts.debugLog {
		if err := a.openDebugLog(sessionID, opts.args); err != nil {
			fmt.Fprintf(opts.errOut, "warning: %v\n", err)
		}
	}

	builtins, err := tools.NewBuiltins(cfg.Tools, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid tool config: %w", err)
	}
	a.builtins = builtins
	registry := llm.NewToolRegistry()
	builtins.RegisterWith(registry)

	client := llm.NewClient(llm.ClientConfig{
		BaseURL: llm.BaseURL(cfg.Host, cfg.Port),
		APIKey:  cfg.APIKey,
		Retry: llm.RetryConfig{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseBackoff: cfg.Retry.Backoff,
			MaxBackoff:  cfg.Retry.MaxBackoff,
		},
		OnEvent: a.clientEvent,
	})

	temperature := cfg.Temperature
	a.engine = llm.NewEngine(client, registry, llm.EngineConfig{
		Model:        cfg.Model,
		SystemPrompt: systemPrompt(cfg),
		Temperature:  &temperature,
		MaxTokens:    cfg.MaxTokens,
		ToolTimeout:  cfg.ToolTimeout,
	})
	a.engine.SetEventHandler(printer.Handle)
	a.engine.SetDebugLogger(a.debug)

	a.store = openStore(cfg.SavePath)
	msgs, err := session.NewLoggingStore(a.store, nil).Load(ctx)
	if err != nil {
		msgs = nil
		a.recoverStore(err)
	}
	persister := session.NewLoggingStore(a.store, nil)

	a.session = agent.NewSession(a.engine, agent.NewConversation(msgs), agent.Options{
		Budget: agent.Budget{
			ContextWindow: cfg.ContextWindow,
			MaxHistory:    cfg.MaxHistory,
			CharsPerToken: cfg.CharsPerToken,
		},
		Store:   persister,
		Confirm: a.confirmSummary,
		Hooks: agent.Hooks{
			OnWakeup:  func(text string) { printer.Info("%s", text) },
			OnError:   a.reportError,
			OnSummary: func(text string) { printer.Markdown(text, a.width()) },
		},
		BaseCtx:   ctx,
		SessionID: sessionID,
	})
	builtins.Timer.SetWakeFunc(a.session.Wakeup)

	if n := len(msgs); n > 0 {
		printer.Info("Resumed conversation with %d messages (/clear to start over)", n)
	}
	return a, nil
}

// systemPrompt returns the configured prompt or the built-in one.
func systemPrompt(cfg *config.Config) string {
	if cfg.SystemPrompt != "" {
		return cfg.SystemPrompt
	}
	return prompt.AgentSystemPrompt(prompt.DetectShell(), cfg.Instructions)
}

// openStore falls back to an in-memory session when the store cannot be opened.
func openStore(path string) session.Store {
	store, err := session.NewStore(path)
	if err != nil {
		slog.Warn("failed to open conversation store, continuing without saving", "path", path, "error", err)
		return &session.NoopStore{}
	}
	return store
}

// recoverStore keeps an unreadable conversation from being overwritten. A
// corrupt file is moved aside; if that fails, saving is disabled for this run.
func (a *app) recoverStore(loadErr error) {
	fs, ok := a.store.(*session.FileStore)
	if !ok || !errors.Is(loadErr, session.ErrCorrupt) {
		return
	}
	moved, err := fs.MoveAside()
	if err != nil {
		slog.Warn("failed to move corrupt conversation aside, not saving this session", "error", err)
		a.printer.Error(errors.New("saved conversation is unreadable and could not be moved; this session will not be saved"))
		a.store = &session.NoopStore{}
		return
	}
	a.printer.Info("Saved conversation was unreadable; moved it to %s and started fresh", moved)
}

func (a *app) openDebugLog(sessionID string, args []string) error {
	dataDir, err := session.GetDataDir()
	if err != nil {
		return err
	}
	logger, err := llm.NewDebugLogger(filepath.Join(dataDir, "debug"), sessionID)
	if err != nil {
		return fmt.Errorf("failed to open debug log: %w", err)
	}
	cwd, _ := os.Getwd()
	logger.LogSessionStart(args, cwd)
	a.debug = logger
	return nil
}

// clientEvent receives retry notices from the HTTP client.
func (a *app) clientEvent(ev llm.Event) {
	a.debug.LogEvent(ev)
	a.printer.Handle(ev)
}

func (a *app) confirmSummary(status agent.BudgetStatus) bool {
	return a.confirm.Confirm("Conversation is over budget. Summarize it?", status.String())
}

func (a *app) reportError(err error) {
	a.printer.Finish()
	a.printer.Error(err)
}

// submit runs one user turn and reports its outcome.
func (a *app) submit(ctx context.Context, text string) {
	err := a.session.Submit(ctx, text)
	a.printer.Finish()
	switch {
	case err == nil:
	case errors.Is(err, agent.ErrBusy):
		a.printer.Info("A timer turn is running; send your message again when it finishes.")
	default:
		a.printer.Error(err)
	}
}

// repl reads lines until EOF or /exit. Lines starting with "/" are commands.
func (a *app) repl(ctx context.Context) error {
	for {
		fmt.Fprint(a.out, a.styles.Prompt.Render(">")+" ")
		line, readErr := a.lines.ReadString('\n')
		line = strings.TrimSpace(line)

		if line != "" {
			var err error
			if strings.HasPrefix(line, "/") {
				err = a.runCommand(ctx, line)
			} else {
				a.submit(ctx, line)
			}
			if err != nil {
				return err
			}
		}

		if readErr != nil {
			fmt.Fprintln(a.out)
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return readErr
		}
	}
}

func (a *app) width() int {
	if f, ok := a.out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return defaultWidth
}

// Close stops pending timers, saves the conversation and releases resources.
func (a *app) Close() error {
	if n := a.builtins.Timer.Stop(); n > 0 {
		a.printer.Info("Cancelled %d pending timer(s)", n)
	}
	a.session.Flush(context.Background())
	a.debug.Close()
	return a.store.Close()
}
