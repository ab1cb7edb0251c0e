package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/samsaffron/term-agent/internal/llm"
	"github.com/samsaffron/term-agent/internal/tools"
)

// previewWidth bounds the tool preview shown next to a tool name.
const previewWidth = 60

// Printer renders engine events to a terminal as they arrive.
type Printer struct {
	out    io.Writer
	styles *Styles

	mu        sync.Mutex
	lineStart bool
	lastUsage *llm.Usage
}

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer, styles *Styles) *Printer {
	return &Printer{out: out, styles: styles, lineStart: true}
}

// Handle renders one event. It satisfies llm.EventHandler.
func (p *Printer) Handle(ev llm.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Type {
	case llm.EventSectionStart:
		p.newline()
		if ev.Channel == llm.ChannelReasoning {
			p.writeLine(p.styles.Reasoning.Render("thinking..."))
		}

	case llm.EventSectionEnd:
		p.newline()

	case llm.EventTextDelta:
		p.write(ev.Text)

	case llm.EventReasoningDelta:
		p.write(renderInline(p.styles.Reasoning.Render, ev.Text))

	case llm.EventToolExecStart:
		if ev.Tool == nil {
			return
		}
		p.newline()
		line := p.styles.Muted.Render(ToolIcon+" ") + p.styles.ToolName.Render(ev.Tool.Name)
		if ev.Text != "" {
			line += " " + p.styles.Muted.Render(Truncate(ev.Text, previewWidth))
		}
		p.writeLine(line)

	case llm.EventToolExecEnd:
		if ev.Tool == nil || ev.Result == nil {
			return
		}
		p.newline()
		p.writeLine(p.formatToolResult(ev.Tool.Name, ev.Result))
		if edit, ok := ev.Result.Result.(tools.EditFileResult); ok && edit.Diff != "" {
			p.writeLine(p.styles.RenderUnifiedDiff(edit.Diff))
		}

	case llm.EventRetry:
		p.newline()
		msg := fmt.Sprintf("%s retrying in %s (attempt %d)", RetryIcon, ev.Wait, ev.Attempt)
		if ev.Err != nil {
			msg += ": " + Truncate(ev.Err.Error(), 120)
		}
		p.writeLine(p.styles.Warning.Render(msg))

	case llm.EventUsage:
		p.lastUsage = ev.Use
	}
}

// Finish ends the current line after a turn.
func (p *Printer) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newline()
}

// LastUsage returns the token usage reported by the most recent response, if any.
func (p *Printer) LastUsage() *llm.Usage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastUsage
}

// Info prints a muted informational line.
func (p *Printer) Info(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newline()
	p.writeLine(p.styles.Muted.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error line.
func (p *Printer) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newline()
	p.writeLine(p.styles.FormatResult(false, err.Error()))
}

// Markdown prints rendered markdown.
func (p *Printer) Markdown(content string, width int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newline()
	p.writeLine(p.styles.RenderMarkdown(content, width))
}

func (p *Printer) formatToolResult(name string, r *llm.ToolResult) string {
	if r.IsError() {
		return p.styles.FormatResult(false, name+": "+Truncate(firstLine(r.Err), 120))
	}
	return p.styles.FormatResult(true, name+p.styles.Muted.Render(summarizeResult(r.Result)))
}

// summarizeResult describes a successful tool result in a few words.
func summarizeResult(result any) string {
	switch r := result.(type) {
	case tools.ReadFileResult:
		if r.TotalLines == 0 {
			return " (empty file)"
		}
		return fmt.Sprintf(" (lines %d-%d of %d)", r.StartLine, r.EndLine, r.TotalLines)
	case tools.WriteFileResult:
		return fmt.Sprintf(" (%d bytes)", r.BytesWritten)
	case tools.EditFileResult:
		return fmt.Sprintf(" (%d replacements)", r.Replacements)
	case tools.ShellResult:
		return fmt.Sprintf(" (exit %d)", r.ExitCode)
	case tools.TimerResult:
		return " (fires at " + r.FiresAt + ")"
	}
	return ""
}

// renderInline styles each line of a fragment separately so the renderer does
// not pad lines to a common width and newlines stay at the end.
func renderInline(render func(...string) string, text string) string {
	parts := strings.Split(text, "\n")
	for i, part := range parts {
		if part != "" {
			parts[i] = render(part)
		}
	}
	return strings.Join(parts, "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func (p *Printer) write(s string) {
	if s == "" {
		return
	}
	io.WriteString(p.out, s)
	p.lineStart = strings.HasSuffix(s, "\n")
}

func (p *Printer) writeLine(s string) {
	io.WriteString(p.out, s+"\n")
	p.lineStart = true
}

func (p *Printer) newline() {
	if !p.lineStart {
		io.WriteString(p.out, "\n")
		p.lineStart = true
	}
}
